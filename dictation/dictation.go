// Package dictation turns begin/end gestures into inserted text: it drives
// the recording controller and, once a clip is captured, runs speech
// detection, transcription and insertion.
package dictation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"dubtap/recording"
	"dubtap/transcriber"
)

type Recorder interface {
	Start(ctx context.Context) <-chan error
	End(ctx context.Context) <-chan recording.Outcome
}

type Detector interface {
	HasSpeech(ctx context.Context, pcm []byte) (bool, error)
}

type Inserter interface {
	Insert(ctx context.Context, text string) bool
}

// Hooks observe progress. All are optional and may be called from any
// goroutine.
type Hooks struct {
	OnRecordingStart func()
	OnRecordingStop  func()
	// OnPipelineStart marks the processing indicator as shown and
	// OnPipelineEnd as cleared. OnPipelineEnd runs exactly once per
	// pipeline.
	OnPipelineStart func()
	OnPipelineEnd   func()
	OnReport        func(Report)
}

type Kind int

const (
	Transcribed Kind = iota
	NoSpeech
	CaptureFailed
	TranscriptionFailed
	BeginFailed
)

func (k Kind) String() string {
	switch k {
	case Transcribed:
		return "transcribed"
	case NoSpeech:
		return "no_speech"
	case CaptureFailed:
		return "capture_failed"
	case TranscriptionFailed:
		return "transcription_failed"
	case BeginFailed:
		return "begin_failed"
	}
	return "unknown"
}

// Report describes how one dictation ended.
type Report struct {
	Kind     Kind
	Text     string // inserted text: the transcript or a notice
	Inserted bool
	Err      error
	Audio    time.Duration
	Elapsed  time.Duration
	Provider string
	Result   *transcriber.Result
}

type Deps struct {
	Recorder    Recorder
	Detector    Detector
	Transcriber transcriber.Transcriber
	Inserter    Inserter
	Messages    Messages
	Hooks       Hooks
	Logger      zerolog.Logger
}

type Orchestrator struct {
	rec  Recorder
	det  Detector
	tr   transcriber.Transcriber
	ins  Inserter
	msgs Messages
	h    Hooks
	log  zerolog.Logger

	mu      sync.Mutex
	busy    bool // a stop or pipeline is in flight
	attempt *attempt
	wg      sync.WaitGroup
}

// attempt is one Begin. settled closes once its start hook has run or the
// start failed, so End can order its stop hook after it.
type attempt struct {
	settled chan struct{}
	live    atomic.Bool
}

func New(d Deps) *Orchestrator {
	if d.Messages.CaptureFailed == "" {
		d.Messages = MessagesFor("en")
	}
	return &Orchestrator{
		rec:  d.Recorder,
		det:  d.Detector,
		tr:   d.Transcriber,
		ins:  d.Inserter,
		msgs: d.Messages,
		h:    d.Hooks,
		log:  d.Logger.With().Str("component", "dictation").Logger(),
	}
}

// Busy reports whether a previous dictation is still being processed.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// Begin starts a recording. It does not wait for the microphone; failures
// are reported to the user asynchronously.
func (o *Orchestrator) Begin(ctx context.Context) {
	if o.Busy() {
		o.log.Info().Msg("begin_rejected_pipeline_busy")
		return
	}
	a := &attempt{settled: make(chan struct{})}
	o.mu.Lock()
	prev := o.attempt
	o.attempt = a
	o.mu.Unlock()

	errc := o.rec.Start(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(a.settled)
		err := <-errc
		if errors.Is(err, recording.ErrBusy) {
			// The running session keeps its own attempt.
			o.mu.Lock()
			if o.attempt == a {
				o.attempt = prev
			}
			o.mu.Unlock()
		}
		if err != nil {
			o.beginFailed(ctx, err)
			return
		}
		a.live.Store(true)
		call(o.h.OnRecordingStart)
	}()
}

func (o *Orchestrator) beginFailed(ctx context.Context, err error) {
	var ae *recording.AcquisitionError
	var msg string
	switch {
	case errors.Is(err, recording.ErrBusy),
		errors.Is(err, recording.ErrFocusLost),
		errors.Is(err, recording.ErrStoppedBeforeStart):
		o.log.Info().Err(err).Msg("begin_abandoned")
		return
	case errors.Is(err, recording.ErrPreconditionFailed):
		msg = o.msgs.MissingKey
	case errors.As(err, &ae):
		msg = o.msgs.acquisition(ae.Kind)
	default:
		msg = o.msgs.MicFailed
	}
	o.log.Warn().Err(err).Msg("begin_failed")
	o.report(Report{
		Kind:     BeginFailed,
		Text:     msg,
		Inserted: o.ins.Insert(ctx, msg),
		Err:      err,
	})
}

// End stops the recording and processes the clip in the background.
func (o *Orchestrator) End(ctx context.Context) {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return
	}
	o.busy = true
	a := o.attempt
	o.mu.Unlock()

	out := o.rec.End(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.setIdle()

		outcome := <-out
		switch {
		case errors.Is(outcome.Err, recording.ErrNotRecording):
			return
		case errors.Is(outcome.Err, recording.ErrStopTimeout):
			// Capture never came up; the session just ends.
			o.log.Warn().Err(outcome.Err).Msg("stop_timeout")
			return
		}
		if a != nil {
			select {
			case <-a.settled:
			case <-ctx.Done():
			}
		}
		if a == nil || a.live.Load() {
			call(o.h.OnRecordingStop)
		}
		o.process(ctx, outcome)
	}()
}

func (o *Orchestrator) setIdle() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

// Wait blocks until every pending dictation has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) process(ctx context.Context, out recording.Outcome) {
	start := time.Now()
	call(o.h.OnPipelineStart)
	ind := NewIndicator(o.h.OnPipelineEnd)
	defer ind.Clear()

	r := o.pipeline(ctx, out)
	r.Audio = out.Clip.Duration()
	r.Elapsed = time.Since(start)

	// The indicator goes away before the report so observers see a
	// settled state.
	ind.Clear()
	o.report(r)
}

func (o *Orchestrator) pipeline(ctx context.Context, out recording.Outcome) Report {
	pcm := out.Clip.PCM
	if out.Err != nil || len(pcm) < 2 {
		o.log.Warn().Err(out.Err).Int("bytes", len(pcm)).Msg("capture_empty")
		return o.notice(ctx, CaptureFailed, o.msgs.CaptureFailed, out.Err)
	}

	if o.det != nil {
		has, err := o.det.HasSpeech(ctx, pcm)
		switch {
		case err != nil:
			o.log.Warn().Err(err).Msg("speech_detection_failed")
		case !has:
			o.log.Info().Dur("audio", out.Clip.Duration()).Msg("no_speech")
			return o.notice(ctx, NoSpeech, o.msgs.NoSpeech, nil)
		}
	}

	res := o.tr.Transcribe(ctx, transcriber.Audio{
		PCM:        pcm,
		MIMEType:   out.Clip.MIMEType,
		SampleRate: out.Clip.SampleRate,
	})
	if !res.OK() {
		o.log.Error().Err(res.Err).Stringer("failure", res.Failure).Msg("transcription_failed")
		r := o.notice(ctx, TranscriptionFailed, o.msgs.failure(res.Failure), res.Err)
		r.Provider = o.tr.Name()
		r.Result = &res
		return r
	}
	if res.Text == "" {
		r := o.notice(ctx, NoSpeech, o.msgs.NoSpeech, nil)
		r.Provider = o.tr.Name()
		r.Result = &res
		return r
	}

	return Report{
		Kind:     Transcribed,
		Text:     res.Text,
		Inserted: o.ins.Insert(ctx, res.Text),
		Provider: o.tr.Name(),
		Result:   &res,
	}
}

func (o *Orchestrator) notice(ctx context.Context, k Kind, msg string, err error) Report {
	return Report{Kind: k, Text: msg, Inserted: o.ins.Insert(ctx, msg), Err: err}
}

func (o *Orchestrator) report(r Report) {
	o.log.Info().
		Stringer("kind", r.Kind).
		Bool("inserted", r.Inserted).
		Dur("elapsed", r.Elapsed).
		Msg("dictation_done")
	if o.h.OnReport != nil {
		o.h.OnReport(r)
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

// Indicator clears a visible state exactly once no matter how many paths
// try to clear it.
type Indicator struct {
	once  sync.Once
	clear func()
}

func NewIndicator(clear func()) *Indicator {
	return &Indicator{clear: clear}
}

func (i *Indicator) Clear() {
	i.once.Do(func() {
		if i.clear != nil {
			i.clear()
		}
	})
}
