package phpbin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// install creates root/<version>/bin/php for each version
func install(t *testing.T, root string, script string, versions ...string) {
	t.Helper()
	for _, v := range versions {
		dir := filepath.Join(root, v, "bin")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "php"), []byte(script), 0o755))
	}
}

func newUnixResolver(root string) *Resolver {
	r := NewResolver(root)
	r.goos = "linux"
	return r
}

func TestExecutablePath(t *testing.T) {
	r := newUnixResolver("/opt/php")
	assert.Equal(t, filepath.Join("/opt/php", "8.3.1", "bin", "php"), r.ExecutablePath("8.3.1"))

	r.goos = "windows"
	assert.Equal(t, filepath.Join("/opt/php", "8.3.1", "php.exe"), r.ExecutablePath("8.3.1"))
}

func TestExecutablePathSystem(t *testing.T) {
	r := newUnixResolver(t.TempDir())
	r.lookPath = func(name string) (string, error) {
		assert.Equal(t, "php", name)
		return "/usr/bin/php", nil
	}
	assert.Equal(t, "/usr/bin/php", r.ExecutablePath(SystemVersion))
	assert.Equal(t, "/usr/bin/php", r.ExecutablePath(""))

	r.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	assert.Empty(t, r.ExecutablePath(SystemVersion))
}

func TestInstalled(t *testing.T) {
	root := t.TempDir()
	install(t, root, "", "7.4.33", "8.3.1", "8.1.27")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "8.2.0"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nightly"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache"), 0o755))

	bins, err := newUnixResolver(root).Installed()
	require.NoError(t, err)

	var versions []string
	for _, b := range bins {
		versions = append(versions, b.Version)
	}
	assert.Equal(t, []string{"8.3.1", "8.2.0", "8.1.27", "7.4.33", "nightly"}, versions)
	assert.True(t, bins[0].Downloaded)
	assert.False(t, bins[1].Downloaded)
}

func TestInstalledMissingRoot(t *testing.T) {
	bins, err := newUnixResolver(filepath.Join(t.TempDir(), "none")).Installed()
	require.NoError(t, err)
	assert.Empty(t, bins)
}

func TestMatch(t *testing.T) {
	root := t.TempDir()
	install(t, root, "", "7.4.33", "8.1.27", "8.2.15", "8.3.1")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "8.4.0"), 0o755))
	r := newUnixResolver(root)

	tests := []struct {
		constraint string
		want       string
	}{
		{"^8.1", "8.3.1"},
		{">=7.4 <8.3", "8.2.15"},
		{"~8.1.0", "8.1.27"},
		{"^7.4|^8.0", "8.3.1"},
		{"7.4.*", "7.4.33"},
		{"*", "8.3.1"},
		{"", "8.3.1"},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			got, err := r.Match(tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := r.Match("^9.0")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = r.Match("not a constraint!!")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}
	root := t.TempDir()
	install(t, root, "#!/bin/sh\necho 'PHP 8.3.1 (cli) (built: Dec 21 2023)'\necho 'Copyright (c) The PHP Group'\n", "8.3.1")
	r := newUnixResolver(root)

	v, err := r.Version(context.Background(), "8.3.1")
	require.NoError(t, err)
	assert.Equal(t, "PHP 8.3.1 (cli) (built: Dec 21 2023)", v)

	_, err = r.Version(context.Background(), "5.6.40")
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestEnsureExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no exec bits")
	}
	root := t.TempDir()
	install(t, root, "", "8.2.0")
	path := filepath.Join(root, "8.2.0", "bin", "php")
	require.NoError(t, os.Chmod(path, 0o644))

	r := newUnixResolver(root)
	require.NoError(t, r.EnsureExecutable("8.2.0"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	assert.ErrorIs(t, r.EnsureExecutable("5.6.0"), ErrNotInstalled)
}
