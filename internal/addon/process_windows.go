//go:build windows

package addon

import (
	"os"
	"os/exec"
	"os/signal"
)

// setProcessGroup is a no-op on Windows
func setProcessGroup(cmd *exec.Cmd) {}

// registerSignals only sees Ctrl+C on Windows
func registerSignals(sigChan chan os.Signal) {
	signal.Notify(sigChan, os.Interrupt)
}
