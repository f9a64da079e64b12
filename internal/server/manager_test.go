//go:build !windows

package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bassemshaker/phpsrv/internal/platform"
	"github.com/bassemshaker/phpsrv/internal/types"
)

const (
	sleepingPHP = "#!/bin/sh\necho \"PHP Development Server started\"\nexec sleep 30\n"
	failingPHP  = "#!/bin/sh\necho \"Failed to listen on $2 (reason: Address already in use)\" >&2\nexit 1\n"
)

// fakePHP writes an executable shell script standing in for php
func fakePHP(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "php")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// freePort returns a port that was bindable a moment ago
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{
		WithGracePeriod(100 * time.Millisecond),
		WithStopTimeout(2 * time.Second),
	}, opts...)
	m := NewManager(opts...)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestStartStatusStop(t *testing.T) {
	php := fakePHP(t, sleepingPHP)
	project := t.TempDir()
	port := freePort(t)
	m := newTestManager(t)

	id, err := m.Start(context.Background(), types.StartRequest{ProjectPath: project, Port: port}, php)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st := m.Status(id)
	assert.True(t, st.IsRunning)
	assert.Equal(t, port, st.Port)
	assert.Equal(t, DefaultHost, st.Host)
	assert.Equal(t, project, st.DocumentRoot)
	assert.Positive(t, st.PID)
	assert.False(t, st.StartedAt.IsZero())
	assert.Equal(t, "unknown", st.PHPVersion)
	assert.True(t, m.PortInUse(port))

	pid := st.PID
	require.NoError(t, m.Stop(id))
	assert.Equal(t, types.ServerStatus{}, m.Status(id))
	assert.False(t, m.PortInUse(port))
	assert.False(t, platform.ProcessAlive(pid))

	assert.ErrorIs(t, m.Stop(id), ErrNotFound)
}

func TestStartRecordsPHPVersion(t *testing.T) {
	php := fakePHP(t, sleepingPHP)
	m := newTestManager(t)

	id, err := m.Start(context.Background(), types.StartRequest{
		ProjectPath: t.TempDir(),
		Port:        freePort(t),
		PHPVersion:  "8.3.1",
	}, php)
	require.NoError(t, err)
	assert.Equal(t, "8.3.1", m.Status(id).PHPVersion)

	entries := m.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "8.3.1", entries[0].Status.PHPVersion)
}

func TestStartRelativeDocumentRoot(t *testing.T) {
	php := fakePHP(t, sleepingPHP)
	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, "public"), 0o755))
	m := newTestManager(t)

	id, err := m.Start(context.Background(), types.StartRequest{
		ProjectPath:  project,
		Port:         freePort(t),
		DocumentRoot: "public",
	}, php)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(project, "public"), m.Status(id).DocumentRoot)

	_, err = m.Start(context.Background(), types.StartRequest{
		ProjectPath:  project,
		Port:         freePort(t),
		DocumentRoot: "web",
	}, php)
	assert.ErrorIs(t, err, ErrMissingDocumentRoot)
}

func TestStatusUnknown(t *testing.T) {
	m := newTestManager(t)
	assert.Equal(t, types.ServerStatus{}, m.Status("nope"))
	assert.ErrorIs(t, m.Stop("nope"), ErrNotFound)
	_, err := m.Logs("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartMissingRuntime(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir()}, filepath.Join(t.TempDir(), "php"))
	assert.ErrorIs(t, err, ErrMissingRuntime)

	_, err = m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir()}, "")
	assert.ErrorIs(t, err, ErrMissingRuntime)
	assert.Empty(t, m.List())
}

func TestStartMissingDocumentRoot(t *testing.T) {
	php := fakePHP(t, sleepingPHP)
	m := newTestManager(t)

	req := types.StartRequest{
		ProjectPath:  t.TempDir(),
		Port:         freePort(t),
		DocumentRoot: filepath.Join(t.TempDir(), "public"),
	}
	_, err := m.Start(context.Background(), req, php)
	assert.ErrorIs(t, err, ErrMissingDocumentRoot)
	assert.Empty(t, m.List())
}

func TestStartPortBound(t *testing.T) {
	php := fakePHP(t, sleepingPHP)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	m := newTestManager(t)
	_, err = m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir(), Port: port}, php)
	assert.ErrorIs(t, err, ErrPortUnavailable)
}

func TestStartPortTracked(t *testing.T) {
	php := fakePHP(t, sleepingPHP)
	port := freePort(t)
	m := newTestManager(t)

	_, err := m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir(), Port: port}, php)
	require.NoError(t, err)

	_, err = m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir(), Port: port}, php)
	assert.ErrorIs(t, err, ErrPortUnavailable)
	assert.Len(t, m.List(), 1)
}

func TestStartDiedEarly(t *testing.T) {
	php := fakePHP(t, failingPHP)
	m := newTestManager(t, WithGracePeriod(time.Second))

	_, err := m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir(), Port: freePort(t)}, php)
	require.ErrorIs(t, err, ErrProcessDiedEarly)
	assert.Contains(t, err.Error(), "Address already in use")
	assert.Empty(t, m.List())
}

func TestStartConcurrent(t *testing.T) {
	php := fakePHP(t, sleepingPHP)
	m := newTestManager(t)

	ports := []int{freePort(t), freePort(t), freePort(t)}
	ids := make([]string, len(ports))
	errs := make([]error, len(ports))

	var wg sync.WaitGroup
	for i, port := range ports {
		wg.Add(1)
		go func(i, port int) {
			defer wg.Done()
			ids[i], errs[i] = m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir(), Port: port}, php)
		}(i, port)
	}
	wg.Wait()

	seen := map[string]bool{}
	bound := map[int]bool{}
	for i := range ports {
		require.NoError(t, errs[i])
		assert.False(t, seen[ids[i]], "duplicate id %s", ids[i])
		seen[ids[i]] = true

		port := m.Status(ids[i]).Port
		assert.False(t, bound[port], "duplicate port %d", port)
		bound[port] = true
	}
	assert.Len(t, m.List(), 3)

	for _, id := range ids {
		require.NoError(t, m.Stop(id))
	}
	assert.Empty(t, m.List())
}

func TestStopAllAndClose(t *testing.T) {
	php := fakePHP(t, sleepingPHP)
	m := newTestManager(t)

	var pids []int
	for i := 0; i < 2; i++ {
		id, err := m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir(), Port: freePort(t)}, php)
		require.NoError(t, err)
		pids = append(pids, m.Status(id).PID)
	}

	m.StopAll()
	assert.Empty(t, m.List())
	for _, pid := range pids {
		pid := pid
		assert.Eventually(t, func() bool { return !platform.ProcessAlive(pid) }, 5*time.Second, 20*time.Millisecond)
	}

	// still usable after StopAll
	id, err := m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir(), Port: freePort(t)}, php)
	require.NoError(t, err)
	assert.True(t, m.Status(id).IsRunning)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Empty(t, m.List())

	_, err = m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir(), Port: freePort(t)}, php)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStartUsesRouterScript(t *testing.T) {
	// the fake records its arguments so the command line can be checked
	script := "#!/bin/sh\necho \"$@\"\nexec sleep 30\n"
	php := fakePHP(t, script)
	project := t.TempDir()
	docroot := filepath.Join(project, "public")
	require.NoError(t, os.MkdirAll(docroot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docroot, "server.php"), []byte("<?php"), 0o644))

	port := freePort(t)
	m := newTestManager(t)
	id, err := m.Start(context.Background(), types.StartRequest{
		ProjectPath:  project,
		Host:         "127.0.0.1",
		Port:         port,
		DocumentRoot: docroot,
	}, php)
	require.NoError(t, err)

	want := fmt.Sprintf("-S 127.0.0.1:%d -t %s %s", port, docroot, filepath.Join(docroot, "server.php"))
	assert.Eventually(t, func() bool {
		lines, err := m.Logs(id)
		return err == nil && len(lines) > 0 && lines[0] == want
	}, 2*time.Second, 20*time.Millisecond)
}

func TestBuildArgs(t *testing.T) {
	docroot := t.TempDir()
	m := NewManager(WithRouterScripts("router.php", "server.php"))

	assert.Equal(t, []string{"-S", "0.0.0.0:9000", "-t", docroot}, m.buildArgs("0.0.0.0", 9000, docroot))

	require.NoError(t, os.WriteFile(filepath.Join(docroot, "server.php"), []byte("<?php"), 0o644))
	args := m.buildArgs("0.0.0.0", 9000, docroot)
	assert.Equal(t, filepath.Join(docroot, "server.php"), args[len(args)-1])

	require.NoError(t, os.WriteFile(filepath.Join(docroot, "router.php"), []byte("<?php"), 0o644))
	args = m.buildArgs("::1", 9000, docroot)
	assert.Equal(t, "[::1]:9000", args[1])
	assert.Equal(t, filepath.Join(docroot, "router.php"), args[len(args)-1])
}

func TestStartIDGenerator(t *testing.T) {
	php := fakePHP(t, sleepingPHP)
	n := 0
	m := newTestManager(t, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("srv-%d", n)
	}))

	id, err := m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir(), Port: freePort(t)}, php)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", id)
}

func TestStartContextCutsGraceShort(t *testing.T) {
	php := fakePHP(t, sleepingPHP)
	m := newTestManager(t, WithGracePeriod(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	id, err := m.Start(ctx, types.StartRequest{ProjectPath: t.TempDir(), Port: freePort(t)}, php)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.NotEmpty(t, id)
}

func TestFindAvailablePortSkipsTracked(t *testing.T) {
	php := fakePHP(t, sleepingPHP)
	port := freePort(t)
	m := newTestManager(t)
	m.probe = func(string, int) bool { return true }

	_, err := m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir(), Port: port}, php)
	require.NoError(t, err)

	found, err := m.FindAvailablePort(port)
	require.NoError(t, err)
	assert.Equal(t, port+1, found)
}

func TestLineBuffer(t *testing.T) {
	b := newLineBuffer(3, zap.NewNop())
	_, _ = b.Write([]byte("one\ntwo\r\nthr"))
	_, _ = b.Write([]byte("ee\nfour\nfive"))

	assert.Equal(t, []string{"four", "five"}, b.Lines()[1:])
	assert.Len(t, b.Lines(), 3)
	assert.Equal(t, "five", b.Last())
	assert.False(t, strings.Contains(strings.Join(b.Lines(), ""), "\r"))
}

func TestLineBufferSplitsLongLines(t *testing.T) {
	b := newLineBuffer(maxOutputLines, zap.NewNop())
	_, _ = b.Write([]byte(strings.Repeat("x", maxLineBytes*2+10)))

	lines := b.Lines()
	require.Len(t, lines, 3)
	assert.Len(t, lines[0], maxLineBytes)
	assert.Len(t, lines[1], maxLineBytes)
	assert.Equal(t, strings.Repeat("x", 10), lines[2])
	assert.Len(t, b.partial, 10)
}

func TestManagerRecordsMetrics(t *testing.T) {
	php := fakePHP(t, sleepingPHP)
	pmc := NewPrometheusMetricsCollector("test")
	m := newTestManager(t, WithMetricsCollector(pmc))

	_, err := m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir()}, "")
	require.ErrorIs(t, err, ErrMissingRuntime)
	assert.Equal(t, 1.0, testutil.ToFloat64(pmc.failures.WithLabelValues(ReasonMissingRuntime)))

	id, err := m.Start(context.Background(), types.StartRequest{ProjectPath: t.TempDir(), Port: freePort(t)}, php)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(pmc.starts))
	assert.Equal(t, 1.0, testutil.ToFloat64(pmc.active))

	require.NoError(t, m.Stop(id))
	assert.Equal(t, 1.0, testutil.ToFloat64(pmc.stops))
	assert.Equal(t, 0.0, testutil.ToFloat64(pmc.active))
}
