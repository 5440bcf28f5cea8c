//go:build windows

package main

import "os"

// shutdownSignals are the signals that cancel a running batch or watch.
// Only os.Interrupt (Ctrl+C) is delivered on Windows.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
