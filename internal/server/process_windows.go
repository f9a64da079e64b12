//go:build windows

package server

import (
	"os/exec"
)

// setSysProcAttr is a no-op on Windows
func setSysProcAttr(cmd *exec.Cmd) {}

// terminateProcess kills the process; Windows has no SIGTERM
func terminateProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// forceKillProcess kills the process
func forceKillProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
