//go:build darwin

package insert

import "github.com/micmonay/keybd_event"

func setPasteModifier(kb *keybd_event.KeyBonding) {
	kb.HasSuper(true) // Cmd+V
}

func PasteShortcut() string { return "Cmd+V" }
