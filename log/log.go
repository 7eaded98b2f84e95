// Package log owns dubtap's on-disk logs: a zerolog diagnostics stream, a
// plain transcript history and the runtime crash file.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvDir = "DUBTAP_LOG_PATH"

	diagName       = "diagnostics_log.txt"
	transcriptName = "transcribe_log.txt"
	crashName      = "crash_log.txt"
	stamp          = "2006-01-02 15:04:05"
)

type state struct {
	mu         sync.Mutex
	dir        string
	level      zerolog.Level
	diag       zerolog.Logger
	diagFile   *os.File
	transcript *os.File
	crash      *os.File
}

var st = state{level: zerolog.InfoLevel, diag: zerolog.Nop()}

// Metrics is one transcription request as written to the diagnostics log.
type Metrics struct {
	Provider  string
	Format    string
	RateLimit string
	TLSProto  string
	Reused    bool

	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	DNSTimeMs        float64
	TLSTimeMs        float64
	TTFBMs           float64
	TotalTimeMs      float64
}

func SetDir(d string) {
	st.mu.Lock()
	st.dir = d
	st.mu.Unlock()
}

func Dir() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.dir
}

// SetDebug enables debug-level events in the diagnostics log.
func SetDebug(on bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.level = zerolog.InfoLevel
	if on {
		st.level = zerolog.DebugLevel
	}
	st.diag = st.diag.Level(st.level)
}

func EnsureDir() error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func openAppend(dir, name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// Init opens the diagnostics and transcript files in Dir.
func Init() error {
	if err := EnsureDir(); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	diag, err := openAppend(st.dir, diagName)
	if err != nil {
		return err
	}
	transcript, err := openAppend(st.dir, transcriptName)
	if err != nil {
		diag.Close()
		return err
	}
	st.diagFile, st.transcript = diag, transcript
	st.diag = zerolog.New(zerolog.ConsoleWriter{Out: diag, TimeFormat: stamp, NoColor: true}).
		Level(st.level).With().Timestamp().Int("pid", os.Getpid()).Logger()
	return nil
}

// InitCrash routes fatal runtime errors to crash_log.txt. Call it before
// any cgo audio or keyboard code runs.
func InitCrash() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.crash != nil || st.dir == "" {
		return
	}
	if os.MkdirAll(st.dir, 0755) != nil {
		return
	}
	f, err := openAppend(st.dir, crashName)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format(stamp), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
	st.crash = f
}

// Close flushes and detaches the diagnostics and transcript files. The
// crash file stays attached for the life of the process.
func Close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, f := range []**os.File{&st.diagFile, &st.transcript} {
		if *f != nil {
			(*f).Close()
			*f = nil
		}
	}
	st.diag = zerolog.Nop()
}

// Logger returns the diagnostics logger for components that log structured
// events. Before Init it discards everything.
func Logger() zerolog.Logger {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.diag
}

func event(level zerolog.Level) *zerolog.Event {
	l := Logger()
	return l.WithLevel(level)
}

func Info(msg string)  { event(zerolog.InfoLevel).Msg(msg) }
func Warn(msg string)  { event(zerolog.WarnLevel).Msg(msg) }
func Error(msg string) { event(zerolog.ErrorLevel).Msg(msg) }

func Warnf(format string, args ...any) {
	event(zerolog.WarnLevel).Msgf(format, args...)
}

func Errorf(format string, args ...any) {
	event(zerolog.ErrorLevel).Msgf(format, args...)
}

func TranscriptionMetrics(m Metrics) {
	conn := "new"
	if m.Reused {
		conn = "reused"
	}
	l := Logger()
	ev := l.Info().
		Str("format", m.Format).
		Str("provider", m.Provider).
		Str("conn", conn)
	if m.TLSProto != "" {
		ev = ev.Str("tls_proto", m.TLSProto)
	}
	if m.RateLimit != "" {
		ev = ev.Str("rate_limit", m.RateLimit)
	}
	ev.Float64("audio_s", m.AudioLengthS).
		Float64("raw_kb", m.RawSizeKB).
		Float64("compressed_kb", m.CompressedSizeKB).
		Float64("compression_pct", m.CompressionPct).
		Float64("encode_ms", m.EncodeTimeMs).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalTimeMs).
		Msg("transcription")
}

// TranscriptionText appends one line to the transcript history:
// timestamp, pid and text separated by tabs.
func TranscriptionText(text string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.transcript == nil {
		return
	}
	fmt.Fprintf(st.transcript, "%s\t[%d]\t%s\n", time.Now().Format(stamp), os.Getpid(), text)
}

func SessionStart(provider, format, hotkey string) {
	l := Logger()
	l.Info().
		Str("provider", provider).
		Str("format", format).
		Str("hotkey", hotkey).
		Msg("session_start")
}

func SessionEnd(count int) {
	l := Logger()
	l.Info().Int("count", count).Msg("session_end")
}
