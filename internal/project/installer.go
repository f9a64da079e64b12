package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrInstallerUnavailable is returned when composer is not on PATH
var ErrInstallerUnavailable = errors.New("composer not found on PATH")

// Installer installs a project's dependencies
type Installer interface {
	Install(ctx context.Context, dir string) error
}

// ComposerInstaller runs `composer install --no-dev`
type ComposerInstaller struct {
	// Binary overrides the composer executable looked up on PATH
	Binary string
}

// Install runs composer in dir
func (c ComposerInstaller) Install(ctx context.Context, dir string) error {
	name := c.Binary
	if name == "" {
		name = "composer"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstallerUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, bin, "install", "--no-dev", "--no-interaction")
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("composer install: %w", err)
		}
		return fmt.Errorf("composer install: %w: %s", err, lastLine(msg))
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
