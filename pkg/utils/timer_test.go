package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerPhases(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	timer := NewTimer("test", WithClock(clock))

	phase := timer.Start("build")
	clock.Advance(5 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, phase.Stop())
	// stopping twice keeps the first duration
	clock.Advance(time.Second)
	assert.Equal(t, 5*time.Millisecond, phase.Stop())

	assert.Equal(t, 5*time.Millisecond, timer.GetDuration("build"))
	assert.Equal(t, time.Duration(0), timer.GetDuration("missing"))

	summary := timer.Summary()
	assert.Contains(t, summary, "test:")
	assert.Contains(t, summary, "build")
}

func TestDisabledTimerIsNoop(t *testing.T) {
	timer := NewTimer("off", WithEnabled(false))
	phase := timer.Start("anything")
	assert.Equal(t, time.Duration(0), phase.Stop())
	assert.Empty(t, timer.Summary())
}

func TestFakeClock(t *testing.T) {
	clock := NewFakeClock(time.Unix(100, 0))
	start := clock.Now()
	clock.Advance(2 * time.Second)
	assert.Equal(t, 2*time.Second, clock.Since(start))
}
