package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, contents string) {
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(contents), 0600))
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{
		"name": "acme/site",
		"description": "mentions laravel/lumen but does not require it",
		"require": {"php": "^8.2", "laravel/framework": "^10.0"},
		"require-dev": {"phpunit/phpunit": "^10.0", "Laminas/laminas-mvc": "^3.0"}
	}`)

	m, err := Read(dir)
	require.NoError(t, err)

	assert.True(t, m.Requires("laravel/framework"))
	assert.True(t, m.Requires("laminas/"))
	assert.False(t, m.Requires("laravel/lumen"))
	assert.Equal(t, "^8.2", m.PHPConstraint())
	assert.Equal(t, []string{"laminas/laminas-mvc", "laravel/framework", "php", "phpunit/phpunit"}, m.Packages())
}

func TestReadMissing(t *testing.T) {
	m, err := Read(t.TempDir())
	require.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, m)

	// nil manifests answer every query with "no signal"
	assert.False(t, m.Requires("anything"))
	assert.Empty(t, m.PHPConstraint())
	assert.Nil(t, m.Packages())
}

func TestReadMalformed(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"require": {"slim/slim": `)

	_, err := Read(dir)
	assert.ErrorIs(t, err, ErrMalformed)

	writeManifest(t, dir, `["slim/slim"]`)
	_, err = Read(dir)
	assert.ErrorIs(t, err, ErrMalformed)
}
