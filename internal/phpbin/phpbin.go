// Package phpbin locates PHP executables installed under a runtime root.
package phpbin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// SystemVersion selects the php found on PATH
const SystemVersion = "system"

var (
	// ErrNoMatch is returned when no installed version satisfies a constraint
	ErrNoMatch = errors.New("no installed php version satisfies constraint")
	// ErrNotInstalled is returned when a version has no executable
	ErrNotInstalled = errors.New("php version not installed")
)

// Binary is one version directory under the runtime root
type Binary struct {
	Version    string
	Path       string
	Downloaded bool
}

// Resolver maps version names to executables under a root directory
type Resolver struct {
	root     string
	lookPath func(string) (string, error)
	goos     string
}

// NewResolver creates a Resolver rooted at root
func NewResolver(root string) *Resolver {
	return &Resolver{
		root:     root,
		lookPath: exec.LookPath,
		goos:     runtime.GOOS,
	}
}

// Root returns the runtime root directory
func (r *Resolver) Root() string {
	return r.root
}

// ExecutablePath returns the php executable for version. The system version
// resolves via PATH and is empty when php is not found there.
func (r *Resolver) ExecutablePath(version string) string {
	if version == "" || version == SystemVersion {
		path, err := r.lookPath(executableName(r.goos))
		if err != nil {
			return ""
		}
		return path
	}
	if r.goos == "windows" {
		return filepath.Join(r.root, version, executableName(r.goos))
	}
	return filepath.Join(r.root, version, "bin", executableName(r.goos))
}

func executableName(goos string) string {
	if goos == "windows" {
		return "php.exe"
	}
	return "php"
}

// Installed lists every version directory, newest first
func (r *Resolver) Installed() ([]Binary, error) {
	entries, err := os.ReadDir(r.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading runtime dir %s: %w", r.root, err)
	}

	var bins []Binary
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := r.ExecutablePath(e.Name())
		_, statErr := os.Stat(path)
		bins = append(bins, Binary{
			Version:    e.Name(),
			Path:       path,
			Downloaded: statErr == nil,
		})
	}

	sort.SliceStable(bins, func(i, j int) bool {
		return newer(bins[i].Version, bins[j].Version)
	})
	return bins, nil
}

// newer orders parseable versions descending, unparseable names last by name
func newer(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.GreaterThan(vb)
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

// Match returns the highest downloaded version satisfying a Composer
// version constraint such as "^8.1" or ">=7.4 <8.3"
func (r *Resolver) Match(constraint string) (string, error) {
	c, err := semver.NewConstraint(normalizeConstraint(constraint))
	if err != nil {
		return "", fmt.Errorf("parsing constraint %q: %w", constraint, err)
	}

	bins, err := r.Installed()
	if err != nil {
		return "", err
	}
	for _, b := range bins {
		if !b.Downloaded {
			continue
		}
		v, err := semver.NewVersion(b.Version)
		if err != nil {
			continue
		}
		if c.Check(v) {
			return b.Version, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoMatch, constraint)
}

// normalizeConstraint rewrites Composer-only syntax into what semver accepts
func normalizeConstraint(c string) string {
	c = strings.TrimSpace(c)
	if c == "" || c == "*" {
		return "*"
	}
	// Composer allows a single pipe for OR
	c = strings.ReplaceAll(c, "||", "|")
	c = strings.ReplaceAll(c, "|", "||")
	// stability flags such as @dev do not apply to php itself
	if i := strings.Index(c, "@"); i >= 0 {
		c = c[:i]
	}
	return c
}

// Version returns the first line of `php --version` for version
func (r *Resolver) Version(ctx context.Context, version string) (string, error) {
	path := r.ExecutablePath(version)
	if path == "" {
		return "", fmt.Errorf("%w: %s", ErrNotInstalled, version)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNotInstalled, version, err)
	}

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("running %s --version: %w", path, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", fmt.Errorf("%s --version printed nothing", path)
}

// EnsureExecutable sets the executable bits on version's php binary
func (r *Resolver) EnsureExecutable(version string) error {
	if r.goos == "windows" {
		return nil
	}
	path := r.ExecutablePath(version)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotInstalled, version, err)
	}
	if info.Mode().Perm()&0o111 == 0o111 {
		return nil
	}
	return os.Chmod(path, 0o755)
}
