//go:build !windows

package platform

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ProcessAlive reports whether pid currently denotes a live process.
// Signal 0 performs the permission and existence checks without delivering anything.
func ProcessAlive(pid int) bool {
	if ValidatePID(pid) != nil {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	// EPERM: the process exists but belongs to someone else
	return errors.Is(err, unix.EPERM)
}
