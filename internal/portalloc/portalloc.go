// Package portalloc finds free TCP ports for development servers.
package portalloc

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

const (
	// MaxPort is the highest valid TCP port
	MaxPort = 65535
	// DefaultFloor is where the search wraps to after reaching MaxPort
	DefaultFloor = 8000
	// DefaultProbeHost is the address probed when none is configured
	DefaultProbeHost = "127.0.0.1"
)

var (
	// ErrInvalidPort is returned for a start port outside 1..65535
	ErrInvalidPort = errors.New("invalid port")
	// ErrExhausted is returned when no candidate port is free
	ErrExhausted = errors.New("no available port")
)

// Registry reports ports already claimed by tracked servers
type Registry interface {
	PortInUse(port int) bool
}

// Allocator searches for ports that are neither tracked nor bound.
// It does not reserve what it returns.
type Allocator struct {
	registry  Registry
	floor     int
	probeHost string
	probe     func(host string, port int) bool
}

// Option configures an Allocator
type Option func(*Allocator)

// WithRegistry excludes ports tracked by r
func WithRegistry(r Registry) Option {
	return func(a *Allocator) {
		a.registry = r
	}
}

// WithFloor sets the port the search wraps around to
func WithFloor(floor int) Option {
	return func(a *Allocator) {
		if floor > 0 && floor <= MaxPort {
			a.floor = floor
		}
	}
}

// WithProbeHost sets the address bind probes use
func WithProbeHost(host string) Option {
	return func(a *Allocator) {
		if host != "" {
			a.probeHost = host
		}
	}
}

// WithProbe replaces the bind probe
func WithProbe(probe func(host string, port int) bool) Option {
	return func(a *Allocator) {
		if probe != nil {
			a.probe = probe
		}
	}
}

// New creates an Allocator
func New(opts ...Option) *Allocator {
	a := &Allocator{
		floor:     DefaultFloor,
		probeHost: DefaultProbeHost,
		probe:     CanBind,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FindAvailable returns the first free port at or above start, wrapping once
// to the floor when the top of the range is reached
func (a *Allocator) FindAvailable(start int) (int, error) {
	if start < 1 || start > MaxPort {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPort, start)
	}

	for port := start; port <= MaxPort; port++ {
		if a.free(port) {
			return port, nil
		}
	}

	for port := a.floor; port < start; port++ {
		if a.free(port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("%w: searched from %d", ErrExhausted, start)
}

// Available reports whether port is untracked and host:port can be bound
func (a *Allocator) Available(host string, port int) bool {
	if port < 1 || port > MaxPort {
		return false
	}
	if host == "" {
		host = a.probeHost
	}
	if a.registry != nil && a.registry.PortInUse(port) {
		return false
	}
	return a.probe(host, port)
}

func (a *Allocator) free(port int) bool {
	return a.Available(a.probeHost, port)
}

// CanBind binds host:port and releases it immediately
func CanBind(host string, port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
