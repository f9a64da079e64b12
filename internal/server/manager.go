// Package server launches and tracks PHP built-in development servers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/bassemshaker/phpsrv/internal/platform"
	"github.com/bassemshaker/phpsrv/internal/portalloc"
	"github.com/bassemshaker/phpsrv/internal/types"
)

// waitDelay bounds how long Wait blocks on output pipes after the child exits
const waitDelay = 2 * time.Second

// unknownVersion tags servers started without a runtime version
const unknownVersion = "unknown"

// instance is one tracked server process
type instance struct {
	id         string
	cmd        *exec.Cmd
	pid        int
	host       string
	port       int
	docroot    string
	phpVersion string
	startedAt  time.Time
	output     *lineBuffer
	exited     chan struct{}
}

func (i *instance) alive() bool {
	select {
	case <-i.exited:
		return false
	default:
	}
	return platform.ProcessAlive(i.pid)
}

func (i *instance) status() types.ServerStatus {
	return types.ServerStatus{
		IsRunning:    i.alive(),
		PID:          i.pid,
		Port:         i.port,
		Host:         i.host,
		DocumentRoot: i.docroot,
		PHPVersion:   i.phpVersion,
		StartedAt:    i.startedAt,
	}
}

// Entry pairs a server id with its status
type Entry struct {
	ID     string
	Status types.ServerStatus
}

// Manager starts, tracks and stops development servers.
// All methods are safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	servers map[string]*instance
	closed  bool

	logger        *zap.Logger
	metrics       MetricsCollector
	gracePeriod   time.Duration
	stopTimeout   time.Duration
	defaultHost   string
	defaultPort   int
	routerScripts []string
	newID         func() string
	probe         func(host string, port int) bool
}

// NewManager creates a Manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		servers:       make(map[string]*instance),
		logger:        zap.NewNop(),
		metrics:       NewNoopMetricsCollector(),
		gracePeriod:   DefaultGracePeriod,
		stopTimeout:   DefaultStopTimeout,
		defaultHost:   DefaultHost,
		defaultPort:   DefaultPort,
		routerScripts: []string{DefaultRouterScript},
		newID:         uuid.NewString,
		probe:         portalloc.CanBind,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches `php -S host:port -t docroot [router]` for req and returns
// the new server's id once it has survived the grace period. ctx only bounds
// the grace wait.
func (m *Manager) Start(ctx context.Context, req types.StartRequest, executable string) (string, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return "", ErrClosed
	}

	if executable == "" || !platform.FileExists(executable) {
		m.metrics.ServerStartFailed(ReasonMissingRuntime)
		return "", fmt.Errorf("%w: %q", ErrMissingRuntime, executable)
	}

	host := req.Host
	if host == "" {
		host = m.defaultHost
	}
	port := req.Port
	if port == 0 {
		port = m.defaultPort
	}
	docroot := req.DocumentRoot
	if docroot == "" {
		docroot = req.ProjectPath
	} else if !filepath.IsAbs(docroot) && req.ProjectPath != "" {
		// php resolves -t against its working directory
		docroot = filepath.Join(req.ProjectPath, docroot)
	}
	if docroot != "" && !filepath.IsAbs(docroot) {
		if abs, err := filepath.Abs(docroot); err == nil {
			docroot = abs
		}
	}
	workdir := req.ProjectPath
	if workdir == "" {
		workdir = docroot
	}
	version := req.PHPVersion
	if version == "" {
		version = unknownVersion
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	if m.portTrackedLocked(port) || !m.probe(host, port) {
		m.mu.Unlock()
		m.metrics.ServerStartFailed(ReasonPortUnavailable)
		return "", fmt.Errorf("%w: %s", ErrPortUnavailable, net.JoinHostPort(host, strconv.Itoa(port)))
	}
	if docroot == "" || !platform.DirExists(docroot) {
		m.mu.Unlock()
		m.metrics.ServerStartFailed(ReasonMissingDocumentRoot)
		return "", fmt.Errorf("%w: %q", ErrMissingDocumentRoot, docroot)
	}

	id := m.newID()
	logger := m.logger.With(zap.String("id", id), zap.Int("port", port))
	args := m.buildArgs(host, port, docroot)

	cmd := exec.Command(executable, args...)
	cmd.Dir = workdir
	out := newLineBuffer(maxOutputLines, logger)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = waitDelay
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		m.mu.Unlock()
		m.metrics.ServerStartFailed(ReasonSpawn)
		return "", fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	inst := &instance{
		id:         id,
		cmd:        cmd,
		pid:        cmd.Process.Pid,
		host:       host,
		port:       port,
		docroot:    docroot,
		phpVersion: version,
		startedAt:  time.Now(),
		output:     out,
		exited:     make(chan struct{}),
	}
	m.servers[id] = inst
	active := len(m.servers)
	m.mu.Unlock()

	m.metrics.ActiveServers(active)
	go m.reap(inst, logger)

	logger.Info("server spawned",
		zap.Int("pid", inst.pid),
		zap.String("host", host),
		zap.String("docroot", docroot),
		zap.String("php_version", version),
		zap.Strings("args", args),
	)

	if m.gracePeriod > 0 {
		timer := time.NewTimer(m.gracePeriod)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	if !inst.alive() {
		m.forget(inst)
		m.metrics.ServerStartFailed(ReasonDiedEarly)
		last := out.Last()
		logger.Warn("server exited during startup", zap.String("output", last))
		if last == "" {
			return "", fmt.Errorf("%w: port %d", ErrProcessDiedEarly, port)
		}
		return "", fmt.Errorf("%w: port %d: %s", ErrProcessDiedEarly, port, last)
	}

	m.metrics.ServerStarted()
	return id, nil
}

// buildArgs returns the php -S arguments, appending the first router script
// found in docroot
func (m *Manager) buildArgs(host string, port int, docroot string) []string {
	args := []string{"-S", net.JoinHostPort(host, strconv.Itoa(port)), "-t", docroot}
	for _, name := range m.routerScripts {
		router := filepath.Join(docroot, name)
		if platform.FileExists(router) {
			args = append(args, router)
			break
		}
	}
	return args
}

// reap waits for the child and signals its exit
func (m *Manager) reap(inst *instance, logger *zap.Logger) {
	err := inst.cmd.Wait()
	close(inst.exited)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		logger.Debug("server exited")
	case errors.As(err, &exitErr):
		logger.Debug("server exited", zap.Int("code", exitErr.ExitCode()))
	default:
		logger.Debug("server wait failed", zap.Error(err))
	}
}

// forget removes inst from the registry if it is still tracked
func (m *Manager) forget(inst *instance) {
	m.mu.Lock()
	if cur, ok := m.servers[inst.id]; ok && cur == inst {
		delete(m.servers, inst.id)
	}
	active := len(m.servers)
	m.mu.Unlock()
	m.metrics.ActiveServers(active)
}

// Stop terminates the server with id. Termination problems are logged,
// not returned.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	inst, ok := m.servers[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.servers, id)
	active := len(m.servers)
	m.mu.Unlock()

	m.metrics.ActiveServers(active)
	m.shutdown(inst)
	m.metrics.ServerStopped(time.Since(inst.startedAt))
	return nil
}

func (m *Manager) shutdown(inst *instance) {
	logger := m.logger.With(zap.String("id", inst.id), zap.Int("pid", inst.pid))

	select {
	case <-inst.exited:
		logger.Debug("server already exited")
		return
	default:
	}

	if err := terminateProcess(inst.cmd); err != nil {
		logger.Warn("failed to signal server", zap.Error(err))
	}

	timer := time.NewTimer(m.stopTimeout)
	defer timer.Stop()
	select {
	case <-inst.exited:
		logger.Info("server stopped")
		return
	case <-timer.C:
	}

	logger.Warn("server did not exit, killing", zap.Duration("timeout", m.stopTimeout))
	if err := forceKillProcess(inst.cmd); err != nil {
		logger.Warn("failed to kill server", zap.Error(err))
	}

	timer.Reset(m.stopTimeout)
	select {
	case <-inst.exited:
		logger.Info("server killed")
	case <-timer.C:
		logger.Warn("server still running after kill")
	}
}

// StopAll force-kills every tracked server without waiting for exit
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := m.servers
	m.servers = make(map[string]*instance)
	m.mu.Unlock()

	if len(all) == 0 {
		return
	}
	m.metrics.ActiveServers(0)

	var errs error
	for id, inst := range all {
		select {
		case <-inst.exited:
		default:
			if err := forceKillProcess(inst.cmd); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("server %s (pid %d): %w", id, inst.pid, err))
			}
		}
		m.metrics.ServerStopped(time.Since(inst.startedAt))
	}

	if errs != nil {
		m.logger.Warn("failed to kill some servers", zap.Error(errs))
	}
	m.logger.Info("all servers stopped", zap.Int("count", len(all)))
}

// Close stops every server. Start fails with ErrClosed afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.StopAll()
	return nil
}

// Status returns the state of the server with id, or the zero value for an
// unknown id
func (m *Manager) Status(id string) types.ServerStatus {
	m.mu.Lock()
	inst, ok := m.servers[id]
	m.mu.Unlock()
	if !ok {
		return types.ServerStatus{}
	}
	return inst.status()
}

// List returns every tracked server in unspecified order
func (m *Manager) List() []Entry {
	m.mu.Lock()
	insts := make([]*instance, 0, len(m.servers))
	for _, inst := range m.servers {
		insts = append(insts, inst)
	}
	m.mu.Unlock()

	entries := make([]Entry, len(insts))
	for i, inst := range insts {
		entries[i] = Entry{ID: inst.id, Status: inst.status()}
	}
	return entries
}

// Logs returns the last captured output lines of the server with id
func (m *Manager) Logs(id string) ([]string, error) {
	m.mu.Lock()
	inst, ok := m.servers[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inst.output.Lines(), nil
}

// PortInUse reports whether a tracked server owns port
func (m *Manager) PortInUse(port int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portTrackedLocked(port)
}

func (m *Manager) portTrackedLocked(port int) bool {
	for _, inst := range m.servers {
		if inst.port == port {
			return true
		}
	}
	return false
}

// FindAvailablePort returns a port that is neither tracked nor bound
func (m *Manager) FindAvailablePort(start int) (int, error) {
	alloc := portalloc.New(
		portalloc.WithRegistry(m),
		portalloc.WithProbeHost(m.defaultHost),
		portalloc.WithProbe(m.probe),
	)
	return alloc.FindAvailable(start)
}
