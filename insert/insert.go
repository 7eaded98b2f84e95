// Package insert places transcribed text at the caret of the focused
// application: copy to the clipboard, send the paste keystroke, then put the
// previous clipboard contents back.
package insert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const DefaultRestoreDelay = 250 * time.Millisecond

type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

type Options struct {
	// AutoPaste sends the paste keystroke. When off, text is only copied.
	AutoPaste bool
	// RestoreDelay is how long to wait after pasting before restoring the
	// previous clipboard. The target application reads the clipboard
	// asynchronously.
	RestoreDelay time.Duration
	Logger       zerolog.Logger
}

type Inserter struct {
	clip  Clipboard
	paste func() error
	opts  Options
	log   zerolog.Logger

	mu sync.Mutex
}

// New uses the system clipboard and keyboard.
func New(opts Options) *Inserter {
	return NewWith(SystemClipboard{}, SendPaste, opts)
}

func NewWith(clip Clipboard, paste func() error, opts Options) *Inserter {
	if opts.RestoreDelay <= 0 {
		opts.RestoreDelay = DefaultRestoreDelay
	}
	return &Inserter{
		clip:  clip,
		paste: paste,
		opts:  opts,
		log:   opts.Logger.With().Str("component", "insert").Logger(),
	}
}

// Insert reports whether text ended up at the caret or, failing that, on the
// clipboard. It never returns an error: every failure is logged.
func (i *Inserter) Insert(ctx context.Context, text string) (ok bool) {
	if text == "" {
		return false
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			i.log.Error().Str("panic", fmt.Sprint(r)).Msg("insert_panic")
			ok = false
		}
	}()

	prev, readErr := i.clip.Read()
	if err := i.clip.Write(text); err != nil {
		i.log.Error().Err(err).Msg("clipboard_write_failed")
		return false
	}
	if !i.opts.AutoPaste {
		i.log.Debug().Int("chars", len(text)).Msg("copied")
		return true
	}

	if err := i.paste(); err != nil {
		// The text stays on the clipboard for a manual paste.
		i.log.Warn().Err(err).Msg("paste_failed_clipboard_fallback")
		return true
	}
	i.log.Debug().Int("chars", len(text)).Msg("pasted")

	if readErr != nil || prev == "" || prev == text {
		return true
	}
	t := time.NewTimer(i.opts.RestoreDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	// Leave the clipboard alone if something else wrote to it meanwhile.
	if cur, err := i.clip.Read(); err != nil || cur != text {
		return true
	}
	if err := i.clip.Write(prev); err != nil {
		i.log.Warn().Err(err).Msg("clipboard_restore_failed")
	}
	return true
}
