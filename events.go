package main

import (
	"fmt"
	"os"

	"dubtap/dictation"
	"dubtap/log"
)

// EventSink abstracts the display layer so the TUI and headless mode receive
// the same recording and dictation events.
type EventSink interface {
	RecordingStart()
	RecordingStop()
	AudioLevel(level float64)
	Processing(on bool)
	Dictation(r dictation.Report)
	ModeLine(text string)
	DeviceLine(text string)
	RateLimit(text string)
}

// headlessSink prints a one-line summary per dictation when stderr is
// attached, and nothing else.
type headlessSink struct {
	quiet bool
}

func (headlessSink) RecordingStart()      {}
func (headlessSink) RecordingStop()       {}
func (headlessSink) AudioLevel(float64)   {}
func (headlessSink) Processing(bool)      {}
func (headlessSink) ModeLine(string)      {}
func (headlessSink) DeviceLine(string)    {}
func (headlessSink) RateLimit(text string) { log.Info("rate_limit: " + text) }

func (s headlessSink) Dictation(r dictation.Report) {
	if s.quiet {
		return
	}
	fmt.Fprintf(os.Stderr, "[%s] %s\n", r.Kind, r.Text)
}
