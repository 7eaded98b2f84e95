//go:build !windows

package shutdown

import (
	"os"
	"syscall"
)

// SIGHUP is included so closing the launching terminal stops a foreground
// session cleanly.
var signals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
