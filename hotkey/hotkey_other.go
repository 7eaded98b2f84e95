//go:build !linux

package hotkey

import (
	"sync"

	"golang.design/x/hotkey"
)

// comboSource cannot see bare modifier presses through the OS hotkey APIs,
// so it reports the registered Ctrl+Shift+Space shortcut as KeyCombo.
type comboSource struct {
	hk     *hotkey.Hotkey
	events chan Event
	stop   chan struct{}
	once   sync.Once
}

// New creates a key source using golang.design/x/hotkey (X11/Cocoa/Win32).
func New() Source {
	return &comboSource{
		hk:     hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeySpace),
		events: make(chan Event, 64),
		stop:   make(chan struct{}),
	}
}

func (s *comboSource) Register() error {
	if err := s.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-s.hk.Keydown():
				s.emit(true)
			case <-s.hk.Keyup():
				s.emit(false)
			case <-s.stop:
				return
			}
		}
	}()
	return nil
}

func (s *comboSource) emit(down bool) {
	select {
	case s.events <- Event{Key: KeyCombo, Down: down, At: Now()}:
	case <-s.stop:
	}
}

func (s *comboSource) Unregister() {
	s.once.Do(func() {
		close(s.stop)
		s.hk.Unregister()
	})
}

func (s *comboSource) Events() <-chan Event {
	return s.events
}

func Diagnose() (string, error) {
	return "hotkey support available (double-press Ctrl+Shift+Space and hold)", nil
}
