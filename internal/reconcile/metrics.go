package reconcile

import (
	"sync"
	"time"
)

// MovingAverage folds value v into an average that has seen n samples,
// v included: ((avg*(n-1))+v)/n.
func MovingAverage(avg, v float64, n int64) float64 {
	if n <= 1 {
		return v
	}
	return ((avg * float64(n-1)) + v) / float64(n)
}

// MetricsSnapshot is the point-in-time view served by the control surface.
type MetricsSnapshot struct {
	TotalRuns             int64     `json:"total_runs"`
	DiscrepanciesFound    int64     `json:"discrepancies_found"`
	DiscrepanciesResolved int64     `json:"discrepancies_resolved"`
	AvgRunSeconds         float64   `json:"avg_run_seconds"`
	AvgOrdersChecked      float64   `json:"avg_orders_checked"`
	LastRunAt             time.Time `json:"last_run_at"`
	LastRunErrors         int       `json:"last_run_errors"`
}

type engineMetrics struct {
	mu   sync.Mutex
	snap MetricsSnapshot
}

func (m *engineMetrics) record(duration time.Duration, ordersChecked, found, resolved, errCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.TotalRuns++
	n := m.snap.TotalRuns
	m.snap.DiscrepanciesFound += int64(found)
	m.snap.DiscrepanciesResolved += int64(resolved)
	m.snap.AvgRunSeconds = MovingAverage(m.snap.AvgRunSeconds, duration.Seconds(), n)
	m.snap.AvgOrdersChecked = MovingAverage(m.snap.AvgOrdersChecked, float64(ordersChecked), n)
	m.snap.LastRunAt = time.Now().UTC()
	m.snap.LastRunErrors = errCount
}

func (m *engineMetrics) snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}
