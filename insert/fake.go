package insert

import (
	"context"
	"sync"
)

// MemoryClipboard is an in-process Clipboard.
type MemoryClipboard struct {
	mu       sync.Mutex
	text     string
	ReadErr  error
	WriteErr error
	writes   int
}

func (m *MemoryClipboard) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return "", m.ReadErr
	}
	return m.text, nil
}

func (m *MemoryClipboard) Write(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.text = text
	m.writes++
	return nil
}

func (m *MemoryClipboard) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Fake records inserted text instead of touching the desktop.
type Fake struct {
	mu    sync.Mutex
	texts []string
	// Notify, if set, receives each inserted text.
	Notify chan string
}

func (f *Fake) Insert(_ context.Context, text string) bool {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	ch := f.Notify
	f.mu.Unlock()
	if ch != nil {
		ch <- text
	}
	return true
}

func (f *Fake) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}
