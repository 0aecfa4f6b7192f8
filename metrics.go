package jobsched

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// managerMetrics holds lightweight atomic counters, enabled via
// WithMetrics. Each counter lives on its own cache line to avoid false
// sharing between workers incrementing "completed" and submitters
// incrementing "submitted"/"poolWaits" concurrently.
type managerMetrics struct {
	submitted atomic.Uint64
	_         cpu.CacheLinePad
	completed atomic.Uint64
	_         cpu.CacheLinePad
	poolWaits atomic.Uint64
}

// Metrics is a point-in-time snapshot of a Manager's counters. Zero-valued
// unless the Manager was constructed with WithMetrics(true).
type Metrics struct {
	Submitted uint64
	Completed uint64
	PoolWaits uint64
}

// Metrics returns a snapshot of the Manager's counters. Always safe to
// call; returns a zero Metrics if WithMetrics was never set.
func (m *Manager) Metrics() Metrics {
	if !m.metricsEnabled {
		return Metrics{}
	}
	return Metrics{
		Submitted: m.metrics.submitted.Load(),
		Completed: m.metrics.completed.Load(),
		PoolWaits: m.metrics.poolWaits.Load(),
	}
}
