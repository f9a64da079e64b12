package server

import (
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultHost is used when a request leaves Host empty
	DefaultHost = "127.0.0.1"
	// DefaultPort is used when a request leaves Port at zero
	DefaultPort = 8000
	// DefaultGracePeriod is how long Start waits before checking the child is alive
	DefaultGracePeriod = 500 * time.Millisecond
	// DefaultStopTimeout bounds the wait after a graceful signal
	DefaultStopTimeout = 10 * time.Second
	// DefaultRouterScript is appended to the command line when present in the docroot
	DefaultRouterScript = "server.php"
)

// Option configures the Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithGracePeriod sets the post-spawn liveness delay
func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.gracePeriod = d
		}
	}
}

// WithStopTimeout sets how long Stop waits before force killing
func WithStopTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.stopTimeout = d
		}
	}
}

// WithDefaults sets the host and port used when a request omits them
func WithDefaults(host string, port int) Option {
	return func(m *Manager) {
		if host != "" {
			m.defaultHost = host
		}
		if port > 0 {
			m.defaultPort = port
		}
	}
}

// WithMetricsCollector sets the metrics collector
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(m *Manager) {
		if mc != nil {
			m.metrics = mc
		}
	}
}

// WithRouterScripts sets the router script names looked up in the docroot.
// The first one found is used.
func WithRouterScripts(names ...string) Option {
	return func(m *Manager) {
		m.routerScripts = append([]string(nil), names...)
	}
}

// WithIDGenerator sets the instance id source
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}
