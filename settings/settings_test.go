package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DUBTAP_PROVIDER", "DUBTAP_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY", "DUBTAP_DEVICE", "DUBTAP_LANG"} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	s, err := Load(filepath.Join(t.TempDir(), "nope", FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.Value(KeyProvider); got != DefaultProvider {
		t.Errorf("provider = %q, want %q", got, DefaultProvider)
	}
	if got := s.Value(KeyAPIKey); got != "" {
		t.Errorf("api key = %q, want empty", got)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	if _, err := Load(writeFile(t, "provider: [unterminated")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, strings.Join([]string{
		"provider: openai",
		"api_key: file-key",
		"preferred_device: USB Mic",
		"language: de",
		"speech_threshold: 0.03",
		"stop_retries: 12",
		"autopaste: false",
	}, "\n"))
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		setup func()
		key   string
		want  string
	}{
		{"file", func() {}, KeyLanguage, "de"},
		{"file float", func() {}, KeySpeechThreshold, "0.03"},
		{"file int", func() {}, KeyStopRetries, "12"},
		{"file bool", func() {}, KeyAutoPaste, "false"},
		{"provider env key", func() { t.Setenv("OPENAI_API_KEY", "env-openai") }, KeyAPIKey, "env-openai"},
		{"generic env key wins", func() { t.Setenv("DUBTAP_API_KEY", "env-generic") }, KeyAPIKey, "env-generic"},
		{"env device", func() { t.Setenv("DUBTAP_DEVICE", "Headset") }, KeyPreferredDevice, "Headset"},
		{"override device", func() { s.Override(KeyPreferredDevice, "Flag Mic") }, KeyPreferredDevice, "Flag Mic"},
		{"empty override ignored", func() { s.Override(KeyLanguage, "") }, KeyLanguage, "de"},
		{"override language", func() { s.Override(KeyLanguage, "fr") }, KeyLanguage, "fr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			if got := s.Value(tt.key); got != tt.want {
				t.Errorf("Value(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestProviderSelectsKeyVariable(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	s, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Value(KeyAPIKey); got != "groq-key" {
		t.Errorf("default provider key = %q", got)
	}
	s.Override(KeyProvider, "openai")
	if got := s.Value(KeyAPIKey); got != "openai-key" {
		t.Errorf("openai key = %q", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", FileName)
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Override(KeyAPIKey, "secret-from-flag")
	s.Override(KeyPreferredDevice, "Old")
	s.SetPreferredDevice("Studio Mic")
	if got := s.Value(KeyPreferredDevice); got != "Studio Mic" {
		t.Errorf("SetPreferredDevice should replace the override, got %q", got)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("mode = %o, want 600", perm)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "secret-from-flag") {
		t.Error("override was persisted")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Value(KeyPreferredDevice); got != "Studio Mic" {
		t.Errorf("reloaded device = %q", got)
	}
}

func TestRequireAPIKey(t *testing.T) {
	if err := RequireAPIKey(Map{KeyAPIKey: "k"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := RequireAPIKey(Map{KeyProvider: "groq"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
	if !strings.Contains(err.Error(), "groq") {
		t.Errorf("error should name the provider: %v", err)
	}
}

func TestTypedAccessors(t *testing.T) {
	m := Map{"f": "0.5", "i": "7", "b": "true", "bad": "x"}
	if got := Float(m, "f", 1); got != 0.5 {
		t.Errorf("Float = %v", got)
	}
	if got := Float(m, "bad", 1); got != 1 {
		t.Errorf("Float default = %v", got)
	}
	if got := Int(m, "i", 0); got != 7 {
		t.Errorf("Int = %v", got)
	}
	if got := Int(m, "missing", 3); got != 3 {
		t.Errorf("Int default = %v", got)
	}
	if !Bool(m, "b", false) {
		t.Error("Bool = false")
	}
	if !Bool(m, "bad", true) {
		t.Error("Bool default not used")
	}
}
