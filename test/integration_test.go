//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atotto/clipboard"
)

var testBinary string

var dataDir string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("DUBTAP_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "DUBTAP_TEST_BIN not set; build with: go build -o /tmp/dubtap . && DUBTAP_TEST_BIN=/tmp/dubtap go test -tags integration ./test")
		os.Exit(1)
	}

	var err error
	dataDir, err = os.MkdirTemp("", "dubtap-data")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := writeWAV(filepath.Join(dataDir, "silence.wav"), 16000, make([]int16, 16000)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate silence.wav: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	os.RemoveAll(dataDir)
	os.Exit(code)
}

func writeWAV(path string, sampleRate int, samples []int16) error {
	const headerSize = 44
	dataSize := len(samples) * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(s))
	}
	return os.WriteFile(path, buf, 0644)
}

func toneSamples(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(9000 * math.Sin(2*math.Pi*220*float64(i)/16000))
	}
	return out
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

// gesture is a double-press-and-hold of the default key; KEYUP ends it.
var gesture = []string{"KEYDOWN", "KEYUP", "KEYDOWN"}

func dictate(extra ...string) string {
	parts := append(append([]string{}, gesture...), extra...)
	return cmds(append(parts, "QUIT")...)
}

// runDubtap runs the binary in test mode with a private HOME so no real
// settings file is read. env entries are KEY=VALUE.
func runDubtap(t *testing.T, stdin string, env []string, args ...string) (logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir, "-test"}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "DUBTAP_") || strings.HasPrefix(kv, "HOME=") {
			continue
		}
		if len(env) > 0 && (strings.HasPrefix(kv, "GROQ_API_KEY=") || strings.HasPrefix(kv, "OPENAI_API_KEY=")) {
			continue
		}
		cmd.Env = append(cmd.Env, kv)
	}
	cmd.Env = append(cmd.Env, "HOME="+t.TempDir())
	cmd.Env = append(cmd.Env, env...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("dubtap exited with error: %v\noutput: %s", err, out)
	}
	return logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func requireGroqKey(t *testing.T) {
	t.Helper()
	if os.Getenv("GROQ_API_KEY") == "" {
		t.Skip("GROQ_API_KEY not set")
	}
}

// speechWAV is a recording of real speech, supplied by the environment.
func speechWAV(t *testing.T) string {
	t.Helper()
	p := os.Getenv("DUBTAP_TEST_WAV")
	if p == "" {
		t.Skip("DUBTAP_TEST_WAV not set")
	}
	return p
}

func TestMissingKeyRefusesToRecord(t *testing.T) {
	logDir := runDubtap(t, dictate("KEYUP", "WAIT"), []string{"DUBTAP_PROVIDER=groq", "GROQ_API_KEY="},
		filepath.Join(dataDir, "silence.wav"))
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "begin_failed") {
		t.Errorf("expected begin_failed in diagnostics:\n%s", diag)
	}
	if strings.Contains(diag, "recording_start") {
		t.Error("recording started without a key")
	}
}

func TestSilenceSkipsNetwork(t *testing.T) {
	// The key is bogus: reaching the provider would log a transcription failure.
	logDir := runDubtap(t, dictate("SLEEP 200", "KEYUP", "WAIT"), []string{"DUBTAP_API_KEY=bogus"},
		filepath.Join(dataDir, "silence.wav"))
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "kind=no_speech") {
		t.Errorf("expected a no_speech dictation:\n%s", diag)
	}
	if strings.Contains(diag, "transcription_failed") {
		t.Error("silence was sent to the provider")
	}
	if strings.Contains(diag, "capture leak") {
		t.Error("capture handle leaked")
	}
}

func TestSingleTapDoesNothing(t *testing.T) {
	logDir := runDubtap(t, cmds("KEYDOWN", "KEYUP", "SLEEP 400", "QUIT"), []string{"DUBTAP_API_KEY=bogus"},
		filepath.Join(dataDir, "silence.wav"))
	if diag := readLog(t, logDir, "diagnostics_log.txt"); strings.Contains(diag, "recording_start") {
		t.Errorf("single tap started a recording:\n%s", diag)
	}
}

func TestBogusKeyReportsAuthFailure(t *testing.T) {
	tone := filepath.Join(t.TempDir(), "tone.wav")
	if err := writeWAV(tone, 16000, toneSamples(16000)); err != nil {
		t.Fatal(err)
	}
	logDir := runDubtap(t, dictate("KEYUP", "WAIT"), []string{"DUBTAP_API_KEY=bogus"}, tone)
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if strings.Contains(diag, "kind=no_speech") {
		t.Skip("tone was not classified as speech")
	}
	if !strings.Contains(diag, "transcription_failed") {
		t.Errorf("expected transcription_failed:\n%s", diag)
	}
}

func TestTranscribesSpeech(t *testing.T) {
	requireGroqKey(t)
	wav := speechWAV(t)
	logDir := runDubtap(t, dictate("KEYUP", "WAIT"), nil, wav)
	if text := readLog(t, logDir, "transcribe_log.txt"); strings.TrimSpace(text) == "" {
		t.Fatal("transcribe_log.txt is empty, expected transcribed words")
	}
}

func TestConnReuse(t *testing.T) {
	requireGroqKey(t)
	wav := speechWAV(t)
	stdin := cmds(append(append(append(append([]string{}, gesture...), "KEYUP", "WAIT"), gesture...), "KEYUP", "WAIT", "QUIT")...)
	logDir := runDubtap(t, stdin, nil, wav)
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if strings.Count(diag, "transcription ") < 2 {
		t.Error("expected 2 transcription entries in diagnostics")
	}
	if !strings.Contains(diag, "conn=reused") {
		t.Error("expected conn=reused in diagnostics")
	}
}

func TestClipboardUntouchedInTestMode(t *testing.T) {
	sentinel := "dubtap-test-sentinel"
	if err := clipboard.WriteAll(sentinel); err != nil {
		t.Skip("clipboard not available")
	}
	_ = runDubtap(t, dictate("KEYUP", "WAIT"), []string{"DUBTAP_API_KEY=bogus"},
		filepath.Join(dataDir, "silence.wav"))
	got, err := clipboard.ReadAll()
	if err != nil {
		t.Skip("clipboard not available")
	}
	if got != sentinel {
		t.Errorf("clipboard changed: got %q, want %q", got, sentinel)
	}
}
