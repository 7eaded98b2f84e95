package insert

import cb "github.com/atotto/clipboard"

// SystemClipboard is the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) Read() (string, error) { return cb.ReadAll() }

func (SystemClipboard) Write(text string) error { return cb.WriteAll(text) }

// Unsupported reports whether no clipboard utility is available (xclip,
// xsel or wl-clipboard on Linux).
func Unsupported() bool { return cb.Unsupported }
