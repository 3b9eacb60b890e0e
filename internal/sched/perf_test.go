package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newIdleScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	s := New(1, opts...)
	t.Cleanup(s.Close)
	return s
}

func TestPerfTrackerRollingAverage(t *testing.T) {
	s := newIdleScheduler(t)
	s.perf[1] = newPerfTracker()

	// 1000 units in 2ms -> ~2us per unit (the seed unit nudges the
	// denominator by one)
	s.trackOp(1, 2*time.Millisecond, 1000)
	pt := s.perf[1]
	assert.InDelta(t, 2.0, pt.usPerUnit, 0.01)

	est := s.estimateTime(1, 500)
	assert.InDelta(t, float64(time.Millisecond), float64(est), float64(20*time.Microsecond))

	units := s.estimateUnits(1, time.Millisecond)
	assert.InDelta(t, 500, float64(units), 10)
}

func TestPerfTrackerSeedEstimates(t *testing.T) {
	s := newIdleScheduler(t)
	s.perf[2] = newPerfTracker()

	// before any measurement: 1 us per unit
	assert.Equal(t, 100*time.Microsecond, s.estimateTime(2, 100))
	assert.Equal(t, int64(100), s.estimateUnits(2, 100*time.Microsecond))
}

func TestEstimateUnitsNeverZero(t *testing.T) {
	s := newIdleScheduler(t)
	s.perf[3] = newPerfTracker()
	assert.Equal(t, int64(1), s.estimateUnits(3, time.Nanosecond))
}

func TestDeterministicModeDisablesTracking(t *testing.T) {
	s := newIdleScheduler(t)
	s.SetDeterministic()
	s.perf[4] = newPerfTracker()

	s.trackOp(4, time.Hour, 1) // must be ignored
	assert.Equal(t, 10*time.Microsecond, s.estimateTime(4, 10))
	assert.Equal(t, int64(25), s.estimateUnits(4, 25*time.Microsecond))
}
