//go:build !windows

package addon

import (
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

// setProcessGroup runs the build in its own process group
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

func registerSignals(sigChan chan os.Signal) {
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
}
