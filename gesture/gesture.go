// Package gesture turns raw key events into dictation intents using a
// double-press-and-hold of one target modifier.
package gesture

import (
	"context"
	"slices"
	"time"

	"dubtap/hotkey"
)

// DefaultThreshold is the longest gap between the first release and the
// second press that still counts as a double press.
const DefaultThreshold = 300 * time.Millisecond

type State int

const (
	Idle State = iota
	Pressed
	Released
	Held
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	case Held:
		return "held"
	}
	return "unknown"
}

// Intent is what a key event asks the recorder to do.
type Intent int

const (
	None Intent = iota
	Begin
	End
)

func (i Intent) String() string {
	switch i {
	case Begin:
		return "begin"
	case End:
		return "end"
	}
	return "none"
}

// Target is the set of physical keys that act as the gesture key.
type Target []hotkey.Key

func (t Target) Contains(k hotkey.Key) bool {
	return slices.Contains(t, k)
}

// TargetFor resolves the gesture key for a platform: Cmd on macOS, Ctrl
// everywhere else. KeyCombo is included for sources that only report the
// registered shortcut.
func TargetFor(goos string) Target {
	if goos == "darwin" {
		return Target{hotkey.KeyLeftMeta, hotkey.KeyRightMeta, hotkey.KeyCombo}
	}
	return Target{hotkey.KeyLeftCtrl, hotkey.KeyRightCtrl, hotkey.KeyCombo}
}

// Machine is not safe for concurrent use. After Run is called only the Run
// goroutine may touch it.
type Machine struct {
	target    Target
	threshold time.Duration

	state       State
	currentKey  hotkey.Key
	lastPress   time.Duration
	lastRelease time.Duration
}

func New(target Target, threshold time.Duration) *Machine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Machine{target: target, threshold: threshold}
}

func (m *Machine) State() State { return m.state }

func (m *Machine) Handle(ev hotkey.Event) Intent {
	if ev.Down {
		return m.KeyDown(ev.Key, ev.At)
	}
	return m.KeyUp(ev.Key, ev.At)
}

func (m *Machine) KeyDown(k hotkey.Key, at time.Duration) Intent {
	if !m.target.Contains(k) {
		return m.interrupt()
	}

	switch m.state {
	case Idle:
		m.press(k, at)
	case Released:
		if at-m.lastRelease <= m.threshold {
			m.state = Held
			m.currentKey = k
			m.lastPress = at
			return Begin
		}
		// Too slow: this press starts a new gesture.
		m.press(k, at)
	}
	// Pressed and Held ignore repeated presses.
	return None
}

func (m *Machine) KeyUp(k hotkey.Key, at time.Duration) Intent {
	if !m.target.Contains(k) {
		return m.interrupt()
	}
	if k != m.currentKey {
		return None
	}

	switch m.state {
	case Pressed:
		m.state = Released
		m.lastRelease = at
	case Held:
		m.reset()
		return End
	}
	return None
}

// Reset forces the machine back to Idle. It returns End when a capture was
// in progress.
func (m *Machine) Reset() Intent {
	return m.interrupt()
}

func (m *Machine) press(k hotkey.Key, at time.Duration) {
	m.state = Pressed
	m.currentKey = k
	m.lastPress = at
}

// interrupt handles any non-target key. End must be reported before the
// state is cleared so a running capture is always terminated.
func (m *Machine) interrupt() Intent {
	if m.state == Idle {
		return None
	}
	intent := None
	if m.state == Held {
		intent = End
	}
	m.reset()
	return intent
}

func (m *Machine) reset() {
	m.state = Idle
	m.currentKey = ""
}

// Run feeds events into the machine and publishes every non-None intent in
// order. The returned channel is closed when ctx is done or events is
// closed.
func (m *Machine) Run(ctx context.Context, events <-chan hotkey.Event) <-chan Intent {
	out := make(chan Intent, 8)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				intent := m.Handle(ev)
				if intent == None {
					continue
				}
				select {
				case out <- intent:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
