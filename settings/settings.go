// Package settings resolves persisted and per-run configuration values.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	FileName = "config.yml"
	AppDir   = "dubtap"
)

const (
	KeyProvider        = "provider"
	KeyAPIKey          = "api_key"
	KeyPreferredDevice = "preferred_device"
	KeyLanguage        = "language"
	KeySpeechThreshold = "speech_threshold"
	KeyStopRetries     = "stop_retries"
	KeyAutoPaste       = "autopaste"
)

const DefaultProvider = "groq"

var ErrMissingAPIKey = errors.New("no API key configured")

// providerEnv maps a provider to the environment variable holding its key.
var providerEnv = map[string]string{
	"groq":   "GROQ_API_KEY",
	"openai": "OPENAI_API_KEY",
}

// Provider is read-only access to settings by key.
type Provider interface {
	Value(key string) string
}

// Map is a fixed Provider, mostly useful in tests.
type Map map[string]string

func (m Map) Value(key string) string { return m[key] }

// File is the on-disk schema.
type File struct {
	Provider        string  `yaml:"provider,omitempty"`
	APIKey          string  `yaml:"api_key,omitempty"`
	PreferredDevice string  `yaml:"preferred_device,omitempty"`
	Language        string  `yaml:"language,omitempty"`
	SpeechThreshold float64 `yaml:"speech_threshold,omitempty"`
	StopRetries     int     `yaml:"stop_retries,omitempty"`
	AutoPaste       *bool   `yaml:"autopaste,omitempty"`
}

// Store layers values: explicit overrides (command-line flags) win over
// environment variables, which win over the settings file.
type Store struct {
	path   string
	getenv func(string) string

	mu        sync.RWMutex
	file      File
	overrides map[string]string
}

// DefaultPath returns the standard settings location.
// Windows: %APPDATA%\dubtap\config.yml
// macOS/Linux: ~/.config/dubtap/config.yml
func DefaultPath() (string, error) {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppDir, FileName), nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDir, FileName), nil
}

// Load reads path. A missing file yields empty settings.
func Load(path string) (*Store, error) {
	s := &Store{path: path, getenv: os.Getenv, overrides: make(map[string]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Override sets a value for this run only. Empty values are ignored so
// unset flags fall through.
func (s *Store) Override(key, value string) {
	if value == "" {
		return
	}
	s.mu.Lock()
	s.overrides[key] = value
	s.mu.Unlock()
}

func (s *Store) Value(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.overrides[key]; ok {
		return v
	}
	if v := s.envValue(key); v != "" {
		return v
	}
	return s.fileValue(key)
}

func (s *Store) envValue(key string) string {
	switch key {
	case KeyProvider:
		return s.getenv("DUBTAP_PROVIDER")
	case KeyAPIKey:
		if v := s.getenv("DUBTAP_API_KEY"); v != "" {
			return v
		}
		if name, ok := providerEnv[s.provider()]; ok {
			return s.getenv(name)
		}
	case KeyPreferredDevice:
		return s.getenv("DUBTAP_DEVICE")
	case KeyLanguage:
		return s.getenv("DUBTAP_LANG")
	}
	return ""
}

func (s *Store) fileValue(key string) string {
	switch key {
	case KeyProvider:
		if s.file.Provider == "" {
			return DefaultProvider
		}
		return s.file.Provider
	case KeyAPIKey:
		return s.file.APIKey
	case KeyPreferredDevice:
		return s.file.PreferredDevice
	case KeyLanguage:
		return s.file.Language
	case KeySpeechThreshold:
		if s.file.SpeechThreshold > 0 {
			return strconv.FormatFloat(s.file.SpeechThreshold, 'f', -1, 64)
		}
	case KeyStopRetries:
		if s.file.StopRetries > 0 {
			return strconv.Itoa(s.file.StopRetries)
		}
	case KeyAutoPaste:
		if s.file.AutoPaste != nil {
			return strconv.FormatBool(*s.file.AutoPaste)
		}
	}
	return ""
}

// provider resolves the active provider without taking the lock.
func (s *Store) provider() string {
	if v, ok := s.overrides[KeyProvider]; ok {
		return v
	}
	if v := s.getenv("DUBTAP_PROVIDER"); v != "" {
		return v
	}
	return s.fileValue(KeyProvider)
}

// SetPreferredDevice records the device to try first on the next capture.
func (s *Store) SetPreferredDevice(name string) {
	s.mu.Lock()
	s.file.PreferredDevice = name
	delete(s.overrides, KeyPreferredDevice)
	s.mu.Unlock()
}

// Save writes the file layer back to disk. Overrides and environment values
// are never persisted.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := yaml.Marshal(&s.file)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	return os.WriteFile(s.path, data, 0600)
}

// RequireAPIKey is the precondition for starting a capture: there is no
// point recording if the result cannot be transcribed.
func RequireAPIKey(p Provider) error {
	if p.Value(KeyAPIKey) == "" {
		return fmt.Errorf("%w for provider %s", ErrMissingAPIKey, p.Value(KeyProvider))
	}
	return nil
}

// Float parses a numeric setting, returning def when unset or invalid.
func Float(p Provider, key string, def float64) float64 {
	v, err := strconv.ParseFloat(p.Value(key), 64)
	if err != nil {
		return def
	}
	return v
}

// Int parses an integer setting, returning def when unset or invalid.
func Int(p Provider, key string, def int) int {
	v, err := strconv.Atoi(p.Value(key))
	if err != nil {
		return def
	}
	return v
}

// Bool parses a boolean setting, returning def when unset or invalid.
func Bool(p Provider, key string, def bool) bool {
	v, err := strconv.ParseBool(p.Value(key))
	if err != nil {
		return def
	}
	return v
}
