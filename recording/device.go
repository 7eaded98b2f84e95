package recording

import (
	"context"
	"sync"
	"time"

	"dubtap/audio"
	"dubtap/encoder"
	"dubtap/speech"
)

// AudioDevice adapts an audio.Context to Device.
type AudioDevice struct {
	ctx    audio.Context
	config audio.CaptureConfig

	// OnLevel, if set, receives the input RMS at most once per chunk
	// interval while capturing.
	OnLevel func(rms float64)
}

func NewAudioDevice(ctx audio.Context) *AudioDevice {
	return &AudioDevice{
		ctx: ctx,
		config: audio.CaptureConfig{
			SampleRate: encoder.SampleRate,
			Channels:   encoder.Channels,
			Gain:       audio.DefaultGain,
		},
	}
}

type audioHandle struct {
	capture audio.CaptureDevice

	mu        sync.Mutex
	pcm       []byte
	lastLevel time.Time
	stopped   bool

	releaseOnce sync.Once
}

func (h *audioHandle) DeviceName() string { return h.capture.DeviceName() }

func (d *AudioDevice) Acquire(ctx context.Context, id string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var info *audio.DeviceInfo
	if id != "" {
		found, err := audio.FindDevice(d.ctx, id)
		if err != nil {
			return nil, acquisitionError(id, err)
		}
		info = found
	}
	capture, err := d.ctx.NewCapture(info, d.config)
	if err != nil {
		return nil, acquisitionError(id, err)
	}
	return &audioHandle{capture: capture}, nil
}

func (d *AudioDevice) Start(h Handle, chunkInterval time.Duration) error {
	ah := h.(*audioHandle)
	onLevel := d.OnLevel

	ah.capture.SetCallback(func(data []byte, _ uint32) {
		if len(data) == 0 {
			return
		}
		ah.mu.Lock()
		if ah.stopped {
			ah.mu.Unlock()
			return
		}
		ah.pcm = append(ah.pcm, data...)
		report := onLevel != nil && time.Since(ah.lastLevel) >= chunkInterval
		if report {
			ah.lastLevel = time.Now()
		}
		ah.mu.Unlock()

		if report {
			onLevel(speech.Analyze(data).RMS)
		}
	})
	if err := ah.capture.Start(); err != nil {
		ah.capture.ClearCallback()
		return err
	}
	return nil
}

func (d *AudioDevice) Stop(_ context.Context, h Handle) ([]byte, error) {
	ah := h.(*audioHandle)
	ah.capture.Stop()
	ah.capture.ClearCallback()

	ah.mu.Lock()
	defer ah.mu.Unlock()
	ah.stopped = true
	pcm := ah.pcm
	ah.pcm = nil
	return pcm, nil
}

func (d *AudioDevice) Release(h Handle) {
	ah := h.(*audioHandle)
	ah.releaseOnce.Do(ah.capture.Close)
}

func (d *AudioDevice) IsTypeSupported(mime string) bool {
	return encoder.IsTypeSupported(mime)
}
