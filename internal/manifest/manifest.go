// Package manifest reads a project's composer.json.
//
// Reading is best-effort: callers that only want extra signals treat
// ErrNotFound and ErrMalformed as "nothing to add".
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// FileName is the manifest file looked up in the project root
const FileName = "composer.json"

var (
	// ErrNotFound is returned when the project has no manifest
	ErrNotFound = errors.New("manifest not found")
	// ErrMalformed is returned when the manifest is not valid JSON
	ErrMalformed = errors.New("manifest is not valid JSON")
)

// Manifest is a parsed composer.json
type Manifest struct {
	Path     string
	packages []string
	php      string
}

// Read loads the manifest from projectPath
func Read(projectPath string) (*Manifest, error) {
	path := filepath.Join(projectPath, FileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse builds a Manifest from raw composer.json bytes
func Parse(path string, data []byte) (*Manifest, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, path)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: %s: top level is not an object", ErrMalformed, path)
	}

	m := &Manifest{Path: path}
	seen := map[string]struct{}{}
	for _, section := range []string{"require", "require-dev"} {
		root.Get(section).ForEach(func(key, _ gjson.Result) bool {
			name := strings.ToLower(key.String())
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				m.packages = append(m.packages, name)
			}
			return true
		})
	}
	sort.Strings(m.packages)

	m.php = strings.TrimSpace(root.Get("require.php").String())
	return m, nil
}

// Requires reports whether any required package name contains substr
func (m *Manifest) Requires(substr string) bool {
	if m == nil {
		return false
	}
	substr = strings.ToLower(substr)
	for _, p := range m.packages {
		if strings.Contains(p, substr) {
			return true
		}
	}
	return false
}

// Packages returns the sorted package names from require and require-dev
func (m *Manifest) Packages() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.packages...)
}

// PHPConstraint returns the require.php version constraint, or ""
func (m *Manifest) PHPConstraint() string {
	if m == nil {
		return ""
	}
	return m.php
}
