package kvstore

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestInMemoryMetrics(t *testing.T) {
	m := NewInMemoryMetrics()

	m.Increment(MetricTxnCommit)
	m.Increment(MetricTxnCommit)
	m.Gauge("g", 1.5)
	m.Histogram("h", 0.25)
	m.Timing(MetricCommandDuration, 10*time.Millisecond)

	if m.Counter(MetricTxnCommit) != 2 {
		t.Errorf("Counter = %d, want 2", m.Counter(MetricTxnCommit))
	}
	if m.Gauges["g"] != 1.5 {
		t.Errorf("Gauge = %v", m.Gauges["g"])
	}
	if len(m.Histograms["h"]) != 1 {
		t.Errorf("Histogram samples = %d", len(m.Histograms["h"]))
	}
	if len(m.Timings[MetricCommandDuration]) != 1 {
		t.Errorf("Timing samples = %d", len(m.Timings[MetricCommandDuration]))
	}
}

func TestPrometheusMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPrometheusMetrics(registry)

	m.Increment(MetricCommandOps, "verb", "SET")
	m.Increment(MetricCommandErrors, "verb", "SET")
	m.Timing(MetricCommandDuration, 5*time.Millisecond, "verb", "SET")
	m.Increment(MetricTxnBegin)
	m.Timing(MetricLockWaitTime, time.Millisecond)

	// Dynamic metric not registered up front
	m.Increment("adhoc_counter")
	m.Gauge("adhoc_gauge", 3)
	m.Histogram("adhoc_histogram", 0.5)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("Expected gathered metric families")
	}

	found := false
	for _, fam := range families {
		if fam.GetName() == "kvstore_command_operations_total" {
			found = true
		}
	}
	if !found {
		t.Error("kvstore_command_operations_total not gathered")
	}
}
