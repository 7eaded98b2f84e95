package hotkey

import "time"

type Fake struct {
	events chan Event
}

func NewFake() *Fake {
	return &Fake{events: make(chan Event, 64)}
}

func (f *Fake) Register() error      { return nil }
func (f *Fake) Unregister()          {}
func (f *Fake) Events() <-chan Event { return f.events }

func (f *Fake) SimKeydown(k Key) { f.events <- Event{Key: k, Down: true, At: Now()} }
func (f *Fake) SimKeyup(k Key)   { f.events <- Event{Key: k, At: Now()} }

// SimAt injects an event with an explicit timestamp.
func (f *Fake) SimAt(k Key, down bool, at time.Duration) {
	f.events <- Event{Key: k, Down: down, At: at}
}
