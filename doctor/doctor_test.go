package doctor

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"runtime"
	"strings"
	"testing"
	"time"

	"dubtap/audio"
	"dubtap/gesture"
	"dubtap/hotkey"
	"dubtap/insert"
	"dubtap/settings"
	"dubtap/transcriber"
)

func tone(ms int) []byte {
	n := 16000 * ms / 1000
	pcm := make([]byte, n*2)
	for i := range n {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

// gestureKeys queues a complete double-tap-hold-release.
func gestureKeys() *hotkey.Fake {
	k := gesture.TargetFor(runtime.GOOS)[0]
	f := hotkey.NewFake()
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	f.SimAt(k, true, ms(0))
	f.SimAt(k, false, ms(50))
	f.SimAt(k, true, ms(100))
	f.SimAt(k, false, ms(900))
	return f
}

func newEnv(out *strings.Builder, s settings.Map) *Env {
	return &Env{
		Out:         out,
		Settings:    s,
		Keys:        gestureKeys(),
		Audio:       audio.NewFakeContext(tone(500), false),
		Clipboard:   &insert.MemoryClipboard{},
		Transcriber: transcriber.NewFake("hello there", nil),
		Record:      10 * time.Millisecond,
		KeyTimeout:  2 * time.Second,
	}
}

func TestRunAllPass(t *testing.T) {
	var out strings.Builder
	env := newEnv(&out, settings.Map{settings.KeyProvider: "groq", settings.KeyAPIKey: "k"})

	if code := env.Run(context.Background()); code != 0 {
		t.Fatalf("exit code = %d, want 0\n%s", code, out.String())
	}
	for _, want := range []string{
		"PASS: gesture detected",
		"PASS: microphone captured audio",
		"PASS: API key configured for groq",
		"Transcribed text: hello there",
		"PASS: clipboard write/read verified",
		"All checks passed!",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q\n%s", want, out.String())
		}
	}
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Env)
		want   string
	}{
		{
			name:   "missing key",
			mutate: func(e *Env) { e.Settings = settings.Map{settings.KeyProvider: "groq"} },
			want:   "FAIL: no API key configured",
		},
		{
			name:   "no gesture",
			mutate: func(e *Env) { e.Keys = hotkey.NewFake(); e.KeyTimeout = 50 * time.Millisecond },
			want:   "FAIL: timeout waiting for gesture",
		},
		{
			name:   "key source denied",
			mutate: func(e *Env) { e.Diagnose = func() (string, error) { return "", errors.New("no access to /dev/input") } },
			want:   "FAIL: no access to /dev/input",
		},
		{
			name:   "silent microphone",
			mutate: func(e *Env) { e.Audio = audio.NewFakeContext(nil, false) },
			want:   "FAIL: no audio captured",
		},
		{
			name:   "missing device",
			mutate: func(e *Env) { e.Settings.(settings.Map)[settings.KeyPreferredDevice] = "usb-mic" },
			want:   "PASS: microphone captured audio", // falls back to the default device
		},
		{
			name: "transcription error",
			mutate: func(e *Env) {
				e.Transcriber = transcriber.NewFake("", &transcriber.APIError{Provider: "groq", StatusCode: 401})
			},
			want: "FAIL: " + transcriber.FailureAuth.Message(),
		},
		{
			name:   "clipboard write",
			mutate: func(e *Env) { e.Clipboard = &insert.MemoryClipboard{WriteErr: errors.New("no display")} },
			want:   "FAIL: clipboard write failed: no display",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			env := newEnv(&out, settings.Map{settings.KeyProvider: "groq", settings.KeyAPIKey: "k"})
			tt.mutate(env)
			code := env.Run(context.Background())
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q\n%s", tt.want, out.String())
			}
			if strings.HasPrefix(tt.want, "PASS") {
				return
			}
			if code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
		})
	}
}
