package hotkey

import (
	"strconv"
	"time"
)

// Key names a physical key. Left and right variants of a modifier are
// distinct keys.
type Key string

const (
	KeyLeftCtrl   Key = "leftctrl"
	KeyRightCtrl  Key = "rightctrl"
	KeyLeftMeta   Key = "leftmeta"
	KeyRightMeta  Key = "rightmeta"
	KeyLeftShift  Key = "leftshift"
	KeyRightShift Key = "rightshift"
	KeyLeftAlt    Key = "leftalt"
	KeyRightAlt   Key = "rightalt"
	KeySpace      Key = "space"

	// KeyCombo is emitted by sources that can only observe a registered
	// shortcut (Ctrl+Shift+Space) instead of individual keys.
	KeyCombo Key = "combo"
)

// CodeKey names a key that has no symbolic name.
func CodeKey(code uint16) Key {
	return Key("code" + strconv.Itoa(int(code)))
}

// Event is a single key transition. At is a monotonic offset from process
// start, see Now.
type Event struct {
	Key  Key
	Down bool
	At   time.Duration
}

// Source delivers raw key events in arrival order.
type Source interface {
	Register() error
	Unregister()
	Events() <-chan Event
}

var epoch = time.Now()

// Now returns the monotonic time since process start.
func Now() time.Duration {
	return time.Since(epoch)
}
