// Package recording owns the microphone for one dictation at a time:
// acquire, capture, stop and release, including stops that arrive before the
// device is ready and focus changes while the permission prompt is up.
package recording

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dubtap/encoder"
	"dubtap/focus"
	"dubtap/settings"
)

const (
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultMaxRetries    = 30
	DefaultChunkInterval = 100 * time.Millisecond
)

// Handle is an acquired capture stream. Exactly one Release call is made
// for every handle a Device hands out.
type Handle interface {
	DeviceName() string
}

// Device is the platform capture backend.
type Device interface {
	// Acquire opens a stream. An empty id means the system default.
	Acquire(ctx context.Context, id string) (Handle, error)
	Start(h Handle, chunkInterval time.Duration) error
	// Stop ends capture and returns everything captured since Start.
	Stop(ctx context.Context, h Handle) ([]byte, error)
	// Release frees the stream. Must be safe to call more than once.
	Release(h Handle)
	IsTypeSupported(mime string) bool
}

type Config struct {
	PollInterval  time.Duration
	MaxRetries    int
	ChunkInterval time.Duration
	// Encodings in order of preference. Defaults to encoder.Preferred.
	Encodings []string
}

type Deps struct {
	Device   Device
	Settings settings.Provider
	// Precondition runs before the device is touched. Optional.
	Precondition func(settings.Provider) error
	Focus        focus.Signal
	// Sleep waits between polls while a stop is pending. Tests replace it.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger zerolog.Logger
}

// Clip is the captured audio of one session.
type Clip struct {
	PCM        []byte
	MIMEType   string
	SampleRate int
	Device     string
}

func (c Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	samples := len(c.PCM) / (encoder.BitsPerSample / 8)
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// Outcome is what End delivers once the session has settled.
type Outcome struct {
	Status Status
	Clip   Clip
	Err    error
}

type session struct {
	id            uint64
	status        Status
	handle        Handle
	focusLost     bool
	stopRequested bool
	mime          string
}

type Controller struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	mu      sync.Mutex
	current *session
	seq     uint64
}

func New(cfg Config, deps Deps) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = DefaultChunkInterval
	}
	if len(cfg.Encodings) == 0 {
		cfg.Encodings = encoder.Preferred
	}
	if deps.Settings == nil {
		deps.Settings = settings.Map{}
	}
	if deps.Focus == nil {
		deps.Focus = focus.NewBroadcaster()
	}
	if deps.Sleep == nil {
		deps.Sleep = sleep
	}
	return &Controller{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger.With().Str("component", "recording").Logger(),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports the status of the most recent session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return NotStarted
	}
	return c.current.status
}

// Active reports whether a session currently holds the single-flight slot.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy()
}

// busy also counts a session still in its precondition check, so two
// overlapping Begins cannot both get past it. Caller holds mu.
func (c *Controller) busy() bool {
	if c.current == nil {
		return false
	}
	st := c.current.status
	return st.Active() || st == NotStarted
}

// Begin acquires the microphone and starts capturing. It returns once
// capture is running or the attempt has ended; in the latter case the
// session is terminal and no handle is held.
func (c *Controller) Begin(ctx context.Context) error {
	s, err := c.claim()
	if err != nil {
		return err
	}
	return c.run(ctx, s)
}

// Start is Begin for callers that must not block on a permission prompt.
// The session is claimed before Start returns, so an End issued right after
// applies to it. The channel receives Begin's result.
func (c *Controller) Start(ctx context.Context) <-chan error {
	errc := make(chan error, 1)
	s, err := c.claim()
	if err != nil {
		errc <- err
		return errc
	}
	go func() { errc <- c.run(ctx, s) }()
	return errc
}

func (c *Controller) claim() (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy() {
		c.log.Info().Stringer("status", c.current.status).Msg("begin_rejected_busy")
		return nil, ErrBusy
	}
	c.seq++
	s := &session{id: c.seq, status: NotStarted}
	c.current = s
	return s, nil
}

func (c *Controller) run(ctx context.Context, s *session) error {
	log := c.log.With().Uint64("session", s.id).Logger()

	if c.deps.Precondition != nil {
		if err := c.deps.Precondition(c.deps.Settings); err != nil {
			c.fail(s)
			log.Warn().Err(err).Msg("precondition_failed")
			return fmt.Errorf("%w: %w", ErrPreconditionFailed, err)
		}
	}

	mime := c.pickEncoding()
	if mime == "" {
		c.fail(s)
		return &AcquisitionError{Kind: TypeError, Err: ErrNoEncoding}
	}

	c.mu.Lock()
	if s.status != NotStarted {
		// End already gave up on this session.
		c.mu.Unlock()
		return ErrStoppedBeforeStart
	}
	s.status = AcquiringPermission
	s.mime = mime
	c.mu.Unlock()
	log.Debug().Str("mime", mime).Msg("acquiring")

	unsubscribe := c.deps.Focus.OnBlur(func() {
		c.mu.Lock()
		if s.status == AcquiringPermission {
			s.focusLost = true
		}
		c.mu.Unlock()
	})
	h, device, err := c.acquire(ctx, log)
	unsubscribe()

	c.mu.Lock()
	if err != nil {
		if s.stopRequested {
			s.status = Stopped
		} else {
			s.status = Failed
		}
		c.mu.Unlock()
		log.Warn().Err(err).Str("device", device).Msg("acquire_failed")
		return acquisitionError(device, err)
	}

	switch {
	case s.status != AcquiringPermission:
		// End gave up waiting and already settled the session.
		c.mu.Unlock()
		c.deps.Device.Release(h)
		log.Info().Msg("late_acquire_released")
		return ErrStoppedBeforeStart
	case s.focusLost:
		s.status = Stopped
		c.mu.Unlock()
		c.deps.Device.Release(h)
		log.Info().Msg("focus_lost_during_acquire")
		return ErrFocusLost
	}

	if err := c.deps.Device.Start(h, c.cfg.ChunkInterval); err != nil {
		if s.stopRequested {
			s.status = Stopped
		} else {
			s.status = Failed
		}
		c.mu.Unlock()
		c.deps.Device.Release(h)
		log.Warn().Err(err).Msg("start_failed")
		return acquisitionError(h.DeviceName(), fmt.Errorf("start capture: %w", err))
	}
	s.handle = h
	s.status = Recording
	c.mu.Unlock()

	log.Info().Str("device", h.DeviceName()).Msg("recording_start")
	return nil
}

// fail ends a session that never reached the device.
func (c *Controller) fail(s *session) {
	c.mu.Lock()
	s.status = Failed
	if s.stopRequested {
		s.status = Stopped
	}
	c.mu.Unlock()
}

func (c *Controller) pickEncoding() string {
	for _, mime := range c.cfg.Encodings {
		if c.deps.Device.IsTypeSupported(mime) {
			return mime
		}
	}
	return ""
}

// acquire tries the preferred device first and falls back to the system
// default. It returns the device id of the last attempt for error reporting.
func (c *Controller) acquire(ctx context.Context, log zerolog.Logger) (Handle, string, error) {
	preferred := c.deps.Settings.Value(settings.KeyPreferredDevice)
	if preferred != "" {
		h, err := c.deps.Device.Acquire(ctx, preferred)
		if err == nil {
			return h, preferred, nil
		}
		log.Warn().Err(err).Str("device", preferred).Msg("preferred_device_failed")
		if ctx.Err() != nil {
			return nil, preferred, err
		}
	}
	h, err := c.deps.Device.Acquire(ctx, "")
	return h, "", err
}

// End requests the session to stop. It never blocks; the returned channel
// receives exactly one Outcome once the session has settled.
func (c *Controller) End(ctx context.Context) <-chan Outcome {
	out := make(chan Outcome, 1)

	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		out <- Outcome{Status: NotStarted, Err: ErrNotRecording}
		return out
	}

	switch {
	case (s.status == NotStarted || s.status == AcquiringPermission) && !s.stopRequested:
		s.stopRequested = true
		c.mu.Unlock()
		c.log.Debug().Uint64("session", s.id).Msg("stop_pending_acquire")
		go func() { out <- c.awaitAndStop(ctx, s) }()
	case s.status == Recording:
		s.status = Stopping
		h := s.handle
		c.mu.Unlock()
		go func() { out <- c.stop(ctx, s, h) }()
	default:
		st := s.status
		c.mu.Unlock()
		out <- Outcome{Status: st, Err: ErrNotRecording}
	}
	return out
}

// awaitAndStop polls until Begin has either started capture or given up,
// then stops. If neither happens within MaxRetries polls the session is
// settled here and Begin releases the handle if it ever arrives.
func (c *Controller) awaitAndStop(ctx context.Context, s *session) Outcome {
	log := c.log.With().Uint64("session", s.id).Logger()

	for i := 1; i <= c.cfg.MaxRetries; i++ {
		if err := c.deps.Sleep(ctx, c.cfg.PollInterval); err != nil {
			log.Debug().Err(err).Msg("stop_poll_cancelled")
			break
		}
		c.mu.Lock()
		switch s.status {
		case NotStarted, AcquiringPermission:
			c.mu.Unlock()
			continue
		case Recording:
			s.status = Stopping
			h := s.handle
			c.mu.Unlock()
			log.Debug().Int("poll", i).Msg("stop_after_acquire")
			return c.stop(ctx, s, h)
		default:
			st := s.status
			c.mu.Unlock()
			return Outcome{Status: st, Err: ErrNotRecording}
		}
	}

	c.mu.Lock()
	if s.status == Recording {
		s.status = Stopping
		h := s.handle
		c.mu.Unlock()
		return c.stop(ctx, s, h)
	}
	if s.status != NotStarted && s.status != AcquiringPermission {
		st := s.status
		c.mu.Unlock()
		return Outcome{Status: st, Err: ErrNotRecording}
	}
	h := s.handle
	s.handle = nil
	s.status = Stopped
	c.mu.Unlock()

	if h != nil {
		c.deps.Device.Release(h)
	}
	log.Warn().Int("retries", c.cfg.MaxRetries).Msg("stop_timeout")
	return Outcome{Status: Stopped, Err: ErrStopTimeout}
}

func (c *Controller) stop(ctx context.Context, s *session, h Handle) Outcome {
	pcm, err := c.deps.Device.Stop(ctx, h)
	c.deps.Device.Release(h)

	st := Stopped
	if err != nil {
		st = Failed
	}
	c.mu.Lock()
	s.handle = nil
	s.status = st
	mime := s.mime
	c.mu.Unlock()

	log := c.log.With().Uint64("session", s.id).Logger()
	if err != nil {
		log.Error().Err(err).Msg("stop_failed")
		return Outcome{Status: st, Err: fmt.Errorf("stop capture: %w", err)}
	}

	clip := Clip{
		PCM:        pcm,
		MIMEType:   mime,
		SampleRate: encoder.SampleRate,
		Device:     h.DeviceName(),
	}
	log.Info().Int("bytes", len(pcm)).Dur("duration", clip.Duration()).Msg("recording_stop")
	return Outcome{Status: st, Clip: clip}
}
