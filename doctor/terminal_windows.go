//go:build windows

package doctor

// Console mode is restored by the OS when the process exits.
func resetTerminal() {}
