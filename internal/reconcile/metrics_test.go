package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMovingAverage(t *testing.T) {
	assert.Equal(t, 120.0, MovingAverage(100, 200, 5))
	assert.Equal(t, 200.0, MovingAverage(0, 200, 1))
	assert.Equal(t, 150.0, MovingAverage(100, 200, 2))
	// n<=0 degrades to the sample itself.
	assert.Equal(t, 42.0, MovingAverage(10, 42, 0))
}

func TestEngineMetricsAccumulate(t *testing.T) {
	var m engineMetrics
	m.record(2*time.Second, 10, 3, 2, 0)
	m.record(4*time.Second, 30, 1, 1, 2)

	snap := m.snapshot()
	assert.Equal(t, int64(2), snap.TotalRuns)
	assert.Equal(t, int64(4), snap.DiscrepanciesFound)
	assert.Equal(t, int64(3), snap.DiscrepanciesResolved)
	assert.Equal(t, 3.0, snap.AvgRunSeconds)
	assert.Equal(t, 20.0, snap.AvgOrdersChecked)
	assert.Equal(t, 2, snap.LastRunErrors)
	assert.False(t, snap.LastRunAt.IsZero())
}
