package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"

	"dubtap/encoder"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays a fixed PCM clip on every capture it creates. It
// counts opened and closed captures so tests can check for leaks.
type FakeContext struct {
	pcm      []byte
	realtime bool
	devices  []DeviceInfo

	mu     sync.Mutex
	opened int
	closed int
}

func NewFakeContext(pcm []byte, realtime bool, devices ...DeviceInfo) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime, devices: devices}
}

// NewFakeContextFromWAV loads a 16-bit WAV file. Only the first channel is
// kept.
func NewFakeContextFromWAV(path string, realtime bool) (*FakeContext, error) {
	pcm, err := LoadWAV(path)
	if err != nil {
		return nil, err
	}
	return NewFakeContext(pcm, realtime), nil
}

func LoadWAV(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}
	if d.BitDepth != encoder.BitsPerSample {
		return nil, fmt.Errorf("%s: %d-bit WAV not supported", path, d.BitDepth)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	chans := int(d.NumChans)
	if chans < 1 {
		chans = 1
	}
	n := len(buf.Data) / chans
	pcm := make([]byte, n*2)
	for i := range n {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(buf.Data[i*chans])))
	}
	return pcm, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return f.devices, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	name := "fake"
	if device != nil {
		found := false
		for _, d := range f.devices {
			if d.ID == device.ID {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, device.ID)
		}
		name = device.Name
	}

	f.mu.Lock()
	f.opened++
	f.mu.Unlock()

	return &FakeCapture{ctx: f, name: name, audioDone: make(chan struct{})}, nil
}

// Captures reports how many captures were created and how many were closed.
func (f *FakeContext) Captures() (opened, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened, f.closed
}

type FakeCapture struct {
	ctx       *FakeContext
	name      string
	audioDone chan struct{}

	mu        sync.Mutex
	cb        DataCallback
	stopCh    chan struct{}
	feedDone  chan struct{}
	closeOnce sync.Once
}

// AudioDone is closed once the whole clip has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return f.name }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	pcm := f.ctx.pcm
	end := min(pos+chunkBytes, len(pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	pcm := f.ctx.pcm

	if !f.ctx.realtime {
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(pcm); {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
		close(f.audioDone)
		close(f.feedDone)
		return nil
	}

	if len(pcm) == 0 {
		close(f.audioDone)
	}
	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)
	go func() {
		defer close(f.feedDone)
		pos := 0
		silence := make([]byte, chunkBytes)
		for {
			if cb := f.callback(); cb != nil {
				if pos < len(pcm) {
					pos = f.feedChunk(cb, pos, chunkBytes)
					if pos >= len(pcm) {
						close(f.audioDone)
					}
				} else {
					cb(silence, fakeFrameSize)
				}
			}
			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {
	f.closeOnce.Do(func() {
		f.Stop()
		f.ctx.mu.Lock()
		f.ctx.closed++
		f.ctx.mu.Unlock()
	})
}
