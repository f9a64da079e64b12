//go:build windows

package platform

import (
	"golang.org/x/sys/windows"
)

// STILL_ACTIVE exit code reported by GetExitCodeProcess
const stillActive = 259

// ProcessAlive reports whether pid currently denotes a live process
func ProcessAlive(pid int) bool {
	if ValidatePID(pid) != nil {
		return false
	}

	//nolint:gosec // G115: pid is validated above
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var code uint32
	if err := windows.GetExitCodeProcess(handle, &code); err != nil {
		return false
	}
	return code == stillActive
}
