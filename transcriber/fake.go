package transcriber

import (
	"context"
	"sync"
)

// Fake returns a canned text or error and records every call.
type Fake struct {
	text string
	err  error

	mu    sync.Mutex
	calls []Audio
	// gate, when set, blocks Transcribe until closed or ctx ends.
	gate chan struct{}
}

func NewFake(text string, err error) *Fake {
	return &Fake{text: text, err: err}
}

func (f *Fake) Name() string { return "fake" }

// Block makes subsequent calls wait until the returned func is called.
func (f *Fake) Block() (unblock func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *Fake) Transcribe(ctx context.Context, a Audio) Result {
	f.mu.Lock()
	f.calls = append(f.calls, a)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return failed(ctx.Err())
		}
	}
	if f.err != nil {
		return failed(f.err)
	}
	return Result{
		Text:    f.text,
		Stats:   &BatchStats{AudioLengthS: float64(len(a.PCM)/2) / 16000, TotalTimeMs: 10},
		Metrics: []string{"total: 10ms (fake)"},
	}
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
