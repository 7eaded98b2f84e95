package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"dubtap/audio"
	"dubtap/beep"
	"dubtap/dictation"
	"dubtap/doctor"
	"dubtap/encoder"
	"dubtap/focus"
	"dubtap/gesture"
	"dubtap/hotkey"
	"dubtap/insert"
	"dubtap/log"
	"dubtap/recording"
	"dubtap/settings"
	"dubtap/shutdown"
	"dubtap/speech"
	"dubtap/transcriber"
)

var version = "dev"

type options struct {
	logPath   string
	device    string
	provider  string
	lang      string
	format    string
	threshold float64
	retries   int
	autoPaste bool
	setup     bool
	tui       bool
	test      bool
	doctor    bool
	version   bool
	debug     bool

	// set records which flags were given explicitly.
	set map[string]bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.StringVar(&o.device, "device", "", "Use named microphone device")
	flag.StringVar(&o.provider, "provider", "", "Transcription provider: groq or openai (default from settings, then groq)")
	flag.StringVar(&o.lang, "lang", "", "Language code for transcription and notices (e.g., en, es, fr). Empty = auto-detect")
	flag.StringVar(&o.format, "format", "flac", "Upload encoding: flac or wav")
	flag.Float64Var(&o.threshold, "threshold", 0, "Speech RMS threshold in [0,1] (0 = default)")
	flag.IntVar(&o.retries, "retries", 0, "Polls to wait for a pending microphone before giving up (0 = default)")
	flag.BoolVar(&o.autoPaste, "autopaste", true, "Paste into the focused window after transcription")
	flag.BoolVar(&o.setup, "setup", false, "Select microphone device and remember it")
	flag.BoolVar(&o.tui, "tui", true, "Run with terminal UI")
	flag.BoolVar(&o.test, "test", false, "Test mode (headless, stdin-driven)")
	flag.BoolVar(&o.doctor, "doctor", false, "Run system diagnostics and exit")
	flag.BoolVar(&o.version, "version", false, "Print version and exit")
	flag.BoolVar(&o.debug, "debug", false, "Log debug events")
	flag.Parse()

	o.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o
}

// encodingsFor orders the supported upload encodings with the requested
// one first.
func encodingsFor(format string) ([]string, error) {
	var first string
	switch format {
	case "flac":
		first = encoder.MIMEFlac
	case "wav":
		first = encoder.MIMEWav
	default:
		return nil, fmt.Errorf("unknown format %q (use flac or wav)", format)
	}
	out := []string{first}
	for _, m := range encoder.Preferred {
		if m != first {
			out = append(out, m)
		}
	}
	return out, nil
}

// applyFlags layers explicit command-line values over the settings file.
func applyFlags(store *settings.Store, o options) {
	store.Override(settings.KeyProvider, o.provider)
	store.Override(settings.KeyLanguage, o.lang)
	store.Override(settings.KeyPreferredDevice, o.device)
	if o.threshold > 0 {
		store.Override(settings.KeySpeechThreshold, strconv.FormatFloat(o.threshold, 'f', -1, 64))
	}
	if o.retries > 0 {
		store.Override(settings.KeyStopRetries, strconv.Itoa(o.retries))
	}
	if o.set["autopaste"] {
		store.Override(settings.KeyAutoPaste, strconv.FormatBool(o.autoPaste))
	}
}

func loadSettings(o options) (*settings.Store, error) {
	path, err := settings.DefaultPath()
	if err != nil {
		return nil, err
	}
	store, err := settings.Load(path)
	if err != nil {
		return nil, err
	}
	applyFlags(store, o)
	return store, nil
}

// unavailable stands in when no credential is configured. The recording
// precondition refuses to capture in that state, so it is only reached if
// the key disappears mid-session.
type unavailable struct{ name string }

func (u unavailable) Name() string { return u.name }

func (u unavailable) Transcribe(context.Context, transcriber.Audio) transcriber.Result {
	f := transcriber.FailureAuth
	return transcriber.Result{Err: settings.ErrMissingAPIKey, Failure: f, ErrorMessage: f.Message()}
}

func newTranscriber(store settings.Provider) (transcriber.Transcriber, error) {
	provider := store.Value(settings.KeyProvider)
	opts := transcriber.Options{
		APIKey:   store.Value(settings.KeyAPIKey),
		Language: store.Value(settings.KeyLanguage),
	}
	if opts.APIKey == "" {
		switch provider {
		case "groq", "openai":
			return unavailable{name: provider}, nil
		}
	}
	return transcriber.New(provider, opts)
}

// wiring is everything that differs between a live session and the stdin
// test mode.
type wiring struct {
	store    *settings.Store
	audio    audio.Context
	focus    focus.Signal
	inserter dictation.Inserter
	sink     EventSink
	hist     *history
	format   string

	// transcriber overrides the provider chosen by settings.
	transcriber transcriber.Transcriber
	// warm opens the provider connection ahead of the first dictation.
	warm bool
}

type warmer interface {
	Warm(ctx context.Context)
}

func newOrchestrator(w wiring) (*dictation.Orchestrator, *recording.Controller, error) {
	logger := log.Logger()

	encodings, err := encodingsFor(w.format)
	if err != nil {
		return nil, nil, err
	}
	tr := w.transcriber
	if tr == nil {
		if tr, err = newTranscriber(w.store); err != nil {
			return nil, nil, err
		}
	}

	if wm, ok := tr.(warmer); ok && w.warm {
		go wm.Warm(context.Background())
	}

	dev := recording.NewAudioDevice(w.audio)
	dev.OnLevel = w.sink.AudioLevel

	ctrl := recording.New(recording.Config{
		MaxRetries: settings.Int(w.store, settings.KeyStopRetries, recording.DefaultMaxRetries),
		Encodings:  encodings,
	}, recording.Deps{
		Device:       dev,
		Settings:     w.store,
		Precondition: settings.RequireAPIKey,
		Focus:        w.focus,
		Logger:       logger,
	})

	det := speech.NewDetector(speech.Options{
		RMSThreshold: settings.Float(w.store, settings.KeySpeechThreshold, 0),
	})

	orch := dictation.New(dictation.Deps{
		Recorder:    ctrl,
		Detector:    det,
		Transcriber: tr,
		Inserter:    w.inserter,
		Messages:    dictation.MessagesFor(w.store.Value(settings.KeyLanguage)),
		Hooks:       hooks(w),
		Logger:      logger,
	})
	return orch, ctrl, nil
}

func hooks(w wiring) dictation.Hooks {
	return dictation.Hooks{
		OnRecordingStart: func() {
			log.Info("recording_start")
			go beep.PlayStart()
			w.sink.RecordingStart()
		},
		OnRecordingStop: func() {
			log.Info("recording_stop")
			go beep.PlayEnd()
			w.sink.RecordingStop()
		},
		OnPipelineStart: func() { w.sink.Processing(true) },
		OnPipelineEnd:   func() { w.sink.Processing(false) },
		OnReport: func(r dictation.Report) {
			switch r.Kind {
			case dictation.Transcribed:
				log.TranscriptionText(r.Text)
			case dictation.NoSpeech:
				log.Info("no_speech")
			default:
				go beep.PlayError()
			}

			var stats *transcriber.BatchStats
			if r.Result != nil {
				stats = r.Result.Stats
				logMetrics(w.format, r.Provider, r.Result)
				if rl := r.Result.RateLimit; rl != "" && !strings.Contains(rl, "?") {
					w.sink.RateLimit("requests: " + rl + " remaining")
				}
			}
			text := ""
			if r.Kind == dictation.Transcribed {
				text = r.Text
			}
			w.hist.add(stats, text)
			w.sink.Dictation(r)
		},
	}
}

// dispatch forwards gesture intents until the intent stream closes.
func dispatch(ctx context.Context, intents <-chan gesture.Intent, orch *dictation.Orchestrator, deviceSelect <-chan struct{}, onDeviceSelect func()) {
	l := log.Logger()
	for {
		select {
		case in, ok := <-intents:
			if !ok {
				return
			}
			l.Debug().Stringer("intent", in).Msg("gesture")
			switch in {
			case gesture.Begin:
				orch.Begin(ctx)
			case gesture.End:
				orch.End(ctx)
			}
		case <-deviceSelect:
			if onDeviceSelect != nil {
				onDeviceSelect()
			}
		case <-ctx.Done():
			return
		}
	}
}

func gestureLabel() string {
	if runtime.GOOS != "linux" {
		return "double-tap-hold Ctrl+Shift+Space"
	}
	return "double-tap-hold Ctrl"
}

func deviceLineText(name string) string {
	suffix := ""
	if name == "" {
		name = "system default"
	} else if audio.IsBluetooth(name) {
		suffix = " (BT!)"
	}
	return "mic: " + name + suffix
}

func modeLineText(store settings.Provider, format string) string {
	label := store.Value(settings.KeyProvider)
	if lang := store.Value(settings.KeyLanguage); lang != "" {
		label += " (" + lang + ")"
	}
	paste := "paste"
	if !settings.Bool(store, settings.KeyAutoPaste, true) {
		paste = "copy"
	}
	return fmt.Sprintf("[%s | %s | %s]", strings.ToUpper(format), label, paste)
}

func rememberDevice(store *settings.Store, name string) {
	store.SetPreferredDevice(name)
	if err := store.Save(); err != nil {
		log.Warnf("saving settings: %v", err)
		return
	}
	log.Info("device_selected: " + name)
}

var shutdownOnce sync.Once

func gracefulShutdown(cancel context.CancelFunc, orch *dictation.Orchestrator, hist *history, p *tea.Program) {
	shutdownOnce.Do(func() {
		cancel()
		if orch != nil {
			orch.Wait()
		}
		log.SessionEnd(hist.count())
		log.Close()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func run() {
	o := parseFlags()

	if o.version {
		fmt.Printf("dubtap %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(o.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	log.InitCrash()
	log.SetDebug(o.debug)

	store, err := loadSettings(o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if o.doctor {
		os.Exit(doctor.Run(store))
	}

	if o.test {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: dubtap -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(store, o, args[0])
		return
	}

	if _, err := encodingsFor(o.format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := settings.RequireAPIKey(store); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; set DUBTAP_API_KEY or api_key in %s\n", err, store.Path())
	}

	if o.setup && o.device == "" {
		actx, err := audio.NewContext()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
			os.Exit(1)
		}
		dev, err := audio.SelectDevice(actx, store.Value(settings.KeyPreferredDevice))
		actx.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
		} else {
			rememberDevice(store, dev.Name)
		}
	}

	// Daemonize in non-TUI mode: re-exec in background, return shell prompt
	if !o.tui && os.Getenv("_DUBTAP_BG") == "" {
		var args []string
		for _, a := range os.Args[1:] {
			if a != "-setup" && a != "--setup" {
				args = append(args, a)
			}
		}
		exe, _ := os.Executable()
		cmd := exec.Command(exe, args...)
		cmd.Env = append(os.Environ(), "_DUBTAP_BG=1")
		devnull, _ := os.Open(os.DevNull)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
		if err := cmd.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.SessionStart(store.Value(settings.KeyProvider), o.format, gestureLabel())

	autoPaste := settings.Bool(store, settings.KeyAutoPaste, true)
	if autoPaste {
		if err := insert.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: paste init failed: %v\n", err)
			if runtime.GOOS == "linux" {
				fmt.Fprintln(os.Stderr, "Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
			}
		}
	}
	if insert.Unsupported() {
		log.Warn("clipboard_unsupported")
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	var sig focus.Signal = focus.NewBroadcaster()
	if sys, err := focus.NewSystem(); err != nil {
		log.Warnf("focus watcher unavailable: %v", err)
	} else {
		defer sys.Close()
		sig = sys
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hist := &history{}
	deviceSelect := make(chan struct{}, 1)

	var program *tea.Program
	var sink EventSink = headlessSink{quiet: !o.tui}
	if o.tui {
		program = NewTUIProgram(gestureLabel(), hist, func() {
			select {
			case deviceSelect <- struct{}{}:
			default:
			}
		})
		sink = tuiSink{p: program}
	}

	orch, _, err := newOrchestrator(wiring{
		store: store,
		audio: actx,
		focus: sig,
		inserter: insert.New(insert.Options{
			AutoPaste: autoPaste,
			Logger:    log.Logger(),
		}),
		sink:   sink,
		hist:   hist,
		format: o.format,
		warm:   true,
	})
	if err != nil {
		log.Errorf("init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if program != nil {
		go func() {
			if _, err := program.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			gracefulShutdown(cancel, orch, hist, nil)
		}()
	}

	stopSignals := shutdown.OnSignal(func(s os.Signal) {
		log.Info("signal_received: " + s.String())
		gracefulShutdown(cancel, orch, hist, program)
	})
	defer stopSignals()

	go beep.Init()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()

	sink.ModeLine(modeLineText(store, o.format))
	sink.DeviceLine(deviceLineText(store.Value(settings.KeyPreferredDevice)))

	machine := gesture.New(gesture.TargetFor(runtime.GOOS), gesture.DefaultThreshold)
	dispatch(ctx, machine.Run(ctx, hk.Events()), orch, deviceSelect, func() {
		if program != nil {
			program.ReleaseTerminal()
		}
		dev, err := audio.SelectDevice(actx, store.Value(settings.KeyPreferredDevice))
		if program != nil {
			program.RestoreTerminal()
		}
		if err != nil {
			if !errors.Is(err, audio.ErrSelectionCancelled) {
				log.Warnf("device selection failed: %v", err)
			}
			return
		}
		rememberDevice(store, dev.Name)
		sink.DeviceLine(deviceLineText(dev.Name))
	})
	gracefulShutdown(cancel, orch, hist, program)
}
