//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// The OS hotkey APIs on macOS and Windows must run on the main thread.
func main() {
	mainthread.Init(run)
}
