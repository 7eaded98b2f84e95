// Package shutdown routes termination signals to a single handler.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
)

// OnSignal calls fn from a new goroutine when the first termination signal
// arrives. The returned stop function detaches the watcher; fn is not called
// after stop returns unless it was already running.
func OnSignal(fn func(os.Signal)) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	done := make(chan struct{})

	go func() {
		select {
		case s := <-ch:
			fn(s)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
