//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals are the signals that cancel a running batch or watch.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
