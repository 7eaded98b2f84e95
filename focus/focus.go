// Package focus reports when the user moves away from the desktop session
// the dictation was started in.
package focus

import "sync"

// Signal lets a caller observe focus loss for a limited time.
type Signal interface {
	OnBlur(fn func()) (unsubscribe func())
}

// Broadcaster is a Signal fired by hand. System signals embed it.
type Broadcaster struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func()
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{handlers: make(map[int]func())}
}

func (b *Broadcaster) OnBlur(fn func()) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Blur calls every registered handler. Handlers run outside the lock so they
// may unsubscribe themselves.
func (b *Broadcaster) Blur() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.handlers))
	for _, fn := range b.handlers {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len reports how many handlers are registered.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}
