package recording

import (
	"context"
	"slices"
	"sync"
	"time"

	"dubtap/encoder"
)

// FakeDevice is an in-memory Device. Acquisition can be held open to
// simulate a pending permission prompt.
type FakeDevice struct {
	PCM []byte
	// Errs fails Acquire for the given device id ("" is the default device).
	Errs     map[string]error
	StartErr error
	StopErr  error
	// Types overrides the supported encodings when non-nil.
	Types []string

	mu       sync.Mutex
	gate     chan struct{}
	entered  chan struct{}
	attempts []string
	acquired int
	started  int
	stops    int
	releases int
	handles  map[*fakeHandle]int
}

type fakeHandle struct {
	name string
}

func (h *fakeHandle) DeviceName() string { return h.name }

func NewFakeDevice(pcm []byte) *FakeDevice {
	return &FakeDevice{PCM: pcm, handles: make(map[*fakeHandle]int)}
}

// Hold makes the next Acquire block until release is called. entered is
// closed once that Acquire has been reached.
func (f *FakeDevice) Hold() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	f.entered = make(chan struct{})
	var once sync.Once
	return f.entered, func() { once.Do(func() { close(gate) }) }
}

func (f *FakeDevice) Acquire(ctx context.Context, id string) (Handle, error) {
	f.mu.Lock()
	f.attempts = append(f.attempts, id)
	gate, entered := f.gate, f.entered
	f.gate, f.entered = nil, nil
	f.mu.Unlock()

	if gate != nil {
		close(entered)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := f.Errs[id]; err != nil {
		return nil, err
	}
	name := id
	if name == "" {
		name = "default"
	}
	h := &fakeHandle{name: name}

	f.mu.Lock()
	f.acquired++
	f.handles[h] = 0
	f.mu.Unlock()
	return h, nil
}

func (f *FakeDevice) Start(Handle, time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.started++
	return nil
}

func (f *FakeDevice) Stop(context.Context, Handle) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.StopErr != nil {
		return nil, f.StopErr
	}
	return slices.Clone(f.PCM), nil
}

func (f *FakeDevice) Release(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	if fh, ok := h.(*fakeHandle); ok {
		f.handles[fh]++
	}
}

func (f *FakeDevice) IsTypeSupported(mime string) bool {
	if f.Types != nil {
		return slices.Contains(f.Types, mime)
	}
	return encoder.IsTypeSupported(mime)
}

// Attempts lists the device ids passed to Acquire, in order.
func (f *FakeDevice) Attempts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.attempts)
}

type FakeCounts struct {
	Acquired int
	Started  int
	Stops    int
	Releases int
	// Leaked counts handles never released, DoubleReleased those released
	// more than once.
	Leaked         int
	DoubleReleased int
}

func (f *FakeDevice) Counts() FakeCounts {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := FakeCounts{
		Acquired: f.acquired,
		Started:  f.started,
		Stops:    f.stops,
		Releases: f.releases,
	}
	for _, n := range f.handles {
		switch {
		case n == 0:
			c.Leaked++
		case n > 1:
			c.DoubleReleased++
		}
	}
	return c
}
