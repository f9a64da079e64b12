// Package platform wraps the filesystem and process queries phpsrv makes
// against the host OS.
package platform

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
)

// ErrInvalidPID is returned for pids the OS can never hand out
var ErrInvalidPID = errors.New("invalid pid")

// IsMacOS reports whether phpsrv runs on macOS
func IsMacOS() bool {
	return runtime.GOOS == "darwin"
}

// FileExists reports whether path exists, file or directory
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists reports whether path exists and is a directory
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ValidateDir returns the absolute form of dir after checking that it names
// an existing directory
func ValidateDir(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("empty directory path")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}

	info, err := os.Stat(abs)
	switch {
	case err != nil:
		return "", fmt.Errorf("project directory %s: %w", abs, err)
	case !info.IsDir():
		return "", fmt.Errorf("project path %s is not a directory", abs)
	}
	return abs, nil
}

// ValidatePID rejects pids outside 1..MaxInt32
func ValidatePID(pid int) error {
	if pid <= 0 || pid > math.MaxInt32 {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	return nil
}
