package server

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetricsCollector_Starts(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("test")

	pmc.ServerStarted()
	pmc.ServerStarted()
	pmc.ServerStartFailed(ReasonPortUnavailable)
	pmc.ServerStartFailed(ReasonDiedEarly)
	pmc.ServerStartFailed(ReasonPortUnavailable)

	assert.Equal(t, 2.0, testutil.ToFloat64(pmc.starts))

	expected := `
		# HELP test_server_start_failures_total Total number of failed server starts
		# TYPE test_server_start_failures_total counter
		test_server_start_failures_total{reason="died_early"} 1
		test_server_start_failures_total{reason="port_unavailable"} 2
	`
	err := testutil.GatherAndCompare(pmc.Registry(), strings.NewReader(expected), "test_server_start_failures_total")
	assert.NoError(t, err)
}

func TestPrometheusMetricsCollector_Stops(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("test")

	pmc.ActiveServers(3)
	pmc.ServerStopped(5 * time.Second)
	pmc.ActiveServers(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(pmc.stops))
	assert.Equal(t, 2.0, testutil.ToFloat64(pmc.active))

	count, err := testutil.GatherAndCount(pmc.Registry(), "test_server_uptime_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheusMetricsCollector_DefaultNamespace(t *testing.T) {
	pmc := NewPrometheusMetricsCollector("")
	pmc.ServerStarted()

	count, err := testutil.GatherAndCount(pmc.Registry(), "phpsrv_server_starts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNoopMetricsCollector(t *testing.T) {
	mc := NewNoopMetricsCollector()
	assert.NotPanics(t, func() {
		mc.ServerStarted()
		mc.ServerStartFailed(ReasonSpawn)
		mc.ServerStopped(time.Second)
		mc.ActiveServers(1)
	})
}
