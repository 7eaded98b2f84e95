package log

import (
	"os"
	"path/filepath"
	"runtime"
)

// defaultDir follows each platform's convention for per-user log files.
func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "dubtap"), nil
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "dubtap", "logs"), nil
	}
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "dubtap", "logs"), nil
}

// ResolveDir picks the log directory: the flag, then DUBTAP_LOG_PATH, then
// the platform default. Relative paths are taken from the working directory.
func ResolveDir(flagPath string) (string, error) {
	p := flagPath
	if p == "" {
		p = os.Getenv(EnvDir)
	}
	if p == "" {
		return defaultDir()
	}
	return filepath.Abs(p)
}
