package server

import (
	"time"
)

// MetricsCollector defines the interface for collecting server manager metrics
type MetricsCollector interface {
	// ServerStarted records a server that survived its grace period
	ServerStarted()

	// ServerStartFailed records a failed start by reason
	ServerStartFailed(reason string)

	// ServerStopped records a stopped server and how long it ran
	ServerStopped(uptime time.Duration)

	// ActiveServers records the number of tracked servers
	ActiveServers(n int)
}

// Start failure reasons
const (
	ReasonMissingRuntime      = "missing_runtime"
	ReasonPortUnavailable     = "port_unavailable"
	ReasonMissingDocumentRoot = "missing_document_root"
	ReasonSpawn               = "spawn"
	ReasonDiedEarly           = "died_early"
)

type noopMetricsCollector struct{}

func (n *noopMetricsCollector) ServerStarted()                  {}
func (n *noopMetricsCollector) ServerStartFailed(reason string) {}
func (n *noopMetricsCollector) ServerStopped(time.Duration)     {}
func (n *noopMetricsCollector) ActiveServers(int)               {}

// NewNoopMetricsCollector creates a no-op metrics collector
func NewNoopMetricsCollector() MetricsCollector {
	return &noopMetricsCollector{}
}
