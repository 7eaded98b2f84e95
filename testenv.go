package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"dubtap/audio"
	"dubtap/beep"
	"dubtap/dictation"
	"dubtap/focus"
	"dubtap/gesture"
	"dubtap/hotkey"
	"dubtap/insert"
	"dubtap/log"
	"dubtap/settings"
)

// testSink signals every finished dictation so the WAIT command can block
// on it.
type testSink struct {
	headlessSink
	done chan dictation.Report
}

func (s testSink) Dictation(r dictation.Report) {
	s.headlessSink.Dictation(r)
	select {
	case s.done <- r:
	default:
		log.Warn("test_report_dropped")
	}
}

// runTestMode replays a WAV file as the microphone and reads key events
// from stdin, one command per line:
//
//	KEYDOWN [key]  KEYUP [key]  BLUR  WAIT  SLEEP <ms>  QUIT
//
// The key defaults to the platform gesture key.
func runTestMode(store *settings.Store, o options, wavPath string) {
	beep.Disable()

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	log.SessionStart(store.Value(settings.KeyProvider), o.format, "stdin")

	fakeCtx, err := audio.NewFakeContextFromWAV(wavPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	hk := hotkey.NewFake()
	blur := focus.NewBroadcaster()
	sink := testSink{done: make(chan dictation.Report, 16)}
	hist := &history{}

	orch, _, err := newOrchestrator(wiring{
		store:    store,
		audio:    fakeCtx,
		focus:    blur,
		inserter: &insert.Fake{},
		sink:     sink,
		hist:     hist,
		format:   o.format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	machine := gesture.New(gesture.TargetFor(runtime.GOOS), gesture.DefaultThreshold)
	go dispatch(ctx, machine.Run(ctx, hk.Events()), orch, nil, nil)

	defaultKey := gesture.TargetFor(runtime.GOOS)[0]
	quit := func() {
		cancel()
		orch.Wait()
		opened, closed := fakeCtx.Captures()
		if opened != closed {
			log.Errorf("capture leak: opened=%d closed=%d", opened, closed)
		}
		log.SessionEnd(hist.count())
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		key := defaultKey
		if len(fields) > 1 {
			key = hotkey.Key(strings.ToLower(fields[1]))
		}
		switch strings.ToUpper(fields[0]) {
		case "KEYDOWN":
			hk.SimKeydown(key)
		case "KEYUP":
			hk.SimKeyup(key)
		case "BLUR":
			blur.Blur()
		case "WAIT":
			select {
			case <-sink.done:
			case <-time.After(time.Minute):
				log.Warn("test_wait_timeout")
			}
		case "SLEEP":
			if len(fields) > 1 {
				if ms, err := strconv.Atoi(fields[1]); err == nil {
					time.Sleep(time.Duration(ms) * time.Millisecond)
				}
			}
		case "QUIT":
			quit()
			return
		default:
			log.Warnf("unknown test command %q", fields[0])
		}
	}
	quit()
}
