//go:build !darwin

package insert

import "github.com/micmonay/keybd_event"

func setPasteModifier(kb *keybd_event.KeyBonding) {
	kb.HasCTRL(true)
}

func PasteShortcut() string { return "Ctrl+V" }
