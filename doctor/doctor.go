// Package doctor runs interactive checks of everything a dictation needs:
// the key source, the microphone, the credential and the clipboard.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"dubtap/audio"
	"dubtap/gesture"
	"dubtap/hotkey"
	"dubtap/insert"
	"dubtap/recording"
	"dubtap/settings"
	"dubtap/shutdown"
	"dubtap/speech"
	"dubtap/transcriber"
)

// Env holds the collaborators the checks exercise. Zero durations take
// defaults.
type Env struct {
	Out         io.Writer
	Settings    settings.Provider
	Keys        hotkey.Source
	Audio       audio.Context
	Clipboard   insert.Clipboard
	Transcriber transcriber.Transcriber // built from Settings when nil
	// Diagnose and PasteInit probe OS permissions. Nil skips the probe.
	Diagnose  func() (string, error)
	PasteInit func() error

	Record     time.Duration
	KeyTimeout time.Duration
}

// Run executes the checks against the real system and returns an exit code
// (0=all pass, 1=any fail).
func Run(store settings.Provider) int {
	resetTerminal()
	stop := shutdown.OnSignal(func(os.Signal) {
		resetTerminal()
		fmt.Println("\nInterrupted")
		os.Exit(1)
	})
	defer stop()

	env := &Env{
		Out:       os.Stdout,
		Settings:  store,
		Keys:      hotkey.New(),
		Clipboard: insert.SystemClipboard{},
		Diagnose:  hotkey.Diagnose,
		PasteInit: insert.Init,
	}
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("FAIL: cannot connect to audio: %v\n", err)
		return 1
	}
	defer actx.Close()
	env.Audio = actx

	return env.Run(context.Background())
}

func (e *Env) Run(ctx context.Context) int {
	if e.Record <= 0 {
		e.Record = 3 * time.Second
	}
	if e.KeyTimeout <= 0 {
		e.KeyTimeout = 10 * time.Second
	}

	e.printf("dubtap doctor - interactive system diagnostics\n")
	e.printf("==============================================\n")

	allPass := e.checkKeys(ctx)
	clip, ok := e.checkMicrophone(ctx)
	allPass = allPass && ok
	if e.checkCredential() {
		allPass = e.checkTranscription(ctx, clip) && allPass
	} else {
		allPass = false
	}
	allPass = e.checkClipboard() && allPass

	e.printf("\n")
	if allPass {
		e.printf("All checks passed!\n")
		return 0
	}
	e.printf("Some checks failed. See details above.\n")
	return 1
}

func (e *Env) printf(format string, args ...any) {
	fmt.Fprintf(e.Out, format, args...)
}

func (e *Env) checkKeys(ctx context.Context) bool {
	e.printf("\n[1/5] Gesture key\n")
	if e.Diagnose != nil {
		msg, err := e.Diagnose()
		if err != nil {
			e.printf("  FAIL: %v\n", err)
			return false
		}
		e.printf("  %s\n", msg)
	}

	if err := e.Keys.Register(); err != nil {
		e.printf("  FAIL: could not register key source: %v\n", err)
		return false
	}
	defer e.Keys.Unregister()

	ctx, cancel := context.WithTimeout(ctx, e.KeyTimeout)
	defer cancel()

	e.printf("Double-tap and hold the gesture key, then release...\n")
	machine := gesture.New(gesture.TargetFor(runtime.GOOS), gesture.DefaultThreshold)
	intents := machine.Run(ctx, e.Keys.Events())

	var began bool
	for in := range intents {
		switch in {
		case gesture.Begin:
			began = true
			e.printf("  held...\n")
		case gesture.End:
			resetTerminal()
			e.printf("  PASS: gesture detected\n")
			return true
		}
	}
	if began {
		e.printf("  FAIL: key was never released\n")
	} else {
		e.printf("  FAIL: timeout waiting for gesture\n")
	}
	return false
}

func (e *Env) checkMicrophone(ctx context.Context) (recording.Clip, bool) {
	e.printf("\n[2/5] Microphone\n")

	devices, err := e.Audio.Devices()
	if err != nil {
		e.printf("  FAIL: cannot list devices: %v\n", err)
		return recording.Clip{}, false
	}
	for _, d := range devices {
		e.printf("  found: %s\n", d.Name)
	}

	ctrl := recording.New(recording.Config{}, recording.Deps{
		Device:   recording.NewAudioDevice(e.Audio),
		Settings: e.Settings,
	})
	if err := ctrl.Begin(ctx); err != nil {
		e.printf("  FAIL: %v (%s)\n", err, recording.Classify(err))
		return recording.Clip{}, false
	}

	e.printf("  Speak for %.0f seconds...\n", e.Record.Seconds())
	select {
	case <-time.After(e.Record):
	case <-ctx.Done():
	}
	out := <-ctrl.End(ctx)
	if out.Err != nil {
		e.printf("  FAIL: %v\n", out.Err)
		return recording.Clip{}, false
	}

	clip := out.Clip
	if len(clip.PCM) == 0 {
		e.printf("  FAIL: no audio captured from %s\n", clip.Device)
		return clip, false
	}
	lv := speech.Analyze(clip.PCM)
	e.printf("  Recorded %.1fs from %s (rms %.3f, peak %.3f)\n",
		clip.Duration().Seconds(), clip.Device, lv.RMS, lv.Peak)
	if audio.IsBluetooth(clip.Device) {
		e.printf("  Warning: Bluetooth microphones switch to a low quality codec while recording\n")
	}
	e.printf("  PASS: microphone captured audio\n")
	return clip, true
}

func (e *Env) checkCredential() bool {
	e.printf("\n[3/5] Credential\n")
	if err := settings.RequireAPIKey(e.Settings); err != nil {
		e.printf("  FAIL: %v\n", err)
		return false
	}
	e.printf("  PASS: API key configured for %s\n", e.Settings.Value(settings.KeyProvider))
	return true
}

func (e *Env) checkTranscription(ctx context.Context, clip recording.Clip) bool {
	e.printf("\n[4/5] Transcription\n")
	if len(clip.PCM) == 0 {
		e.printf("  SKIP: no audio to send\n")
		return false
	}

	tr := e.Transcriber
	if tr == nil {
		var err error
		tr, err = transcriber.New(e.Settings.Value(settings.KeyProvider), transcriber.Options{
			APIKey:   e.Settings.Value(settings.KeyAPIKey),
			Language: e.Settings.Value(settings.KeyLanguage),
		})
		if err != nil {
			e.printf("  FAIL: %v\n", err)
			return false
		}
	}

	res := tr.Transcribe(ctx, transcriber.Audio{
		PCM:        clip.PCM,
		MIMEType:   clip.MIMEType,
		SampleRate: clip.SampleRate,
	})
	if !res.OK() {
		e.printf("  FAIL: %s (%v)\n", res.ErrorMessage, res.Err)
		return false
	}
	text := res.Text
	if text == "" {
		text = "(no speech detected)"
	}
	e.printf("  Transcribed text: %s\n", text)
	for _, m := range res.Metrics {
		e.printf("    %s\n", m)
	}
	e.printf("  PASS: %s answered\n", tr.Name())
	return true
}

func (e *Env) checkClipboard() bool {
	e.printf("\n[5/5] Clipboard\n")
	if insert.Unsupported() {
		e.printf("  Warning: no clipboard utility found (install xclip, xsel or wl-clipboard)\n")
	}

	testStr := fmt.Sprintf("dubtap-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		prev, _ := e.Clipboard.Read()
		defer e.Clipboard.Write(prev)
		if err := e.Clipboard.Write(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := e.Clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			e.printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			e.printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
	case <-time.After(3 * time.Second):
		e.printf("  FAIL: clipboard timed out (clipboard tool hung - compositor not accessible?)\n")
		return false
	}
	e.printf("  PASS: clipboard write/read verified\n")

	if e.PasteInit == nil {
		return true
	}
	if err := e.PasteInit(); err != nil {
		e.printf("  Warning: paste keystroke unavailable, text will only be copied: %v\n", err)
	} else {
		e.printf("  Paste shortcut: %s\n", insert.PasteShortcut())
	}
	return true
}
