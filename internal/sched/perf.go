package sched

import "time"

// perfTracker accumulates how much time has been spent on a
// particular type of operation and how many units (usually edges)
// were executed, giving a rolling microseconds-per-unit estimate.
type perfTracker struct {
	totTime   time.Duration
	totOps    int64
	usPerUnit float64
}

func newPerfTracker() *perfTracker {
	// Seeded at 1 unit / 1 us so estimates are sane before the first
	// real measurement.
	return &perfTracker{totOps: 1, usPerUnit: 1}
}

// trackOp records the measured duration of a chunk. Disabled in
// deterministic mode so planning stays a pure function of the
// submitted jobs.
func (s *Scheduler) trackOp(opType uint64, dur time.Duration, units int64) {
	if s.deterministic {
		return
	}
	pt, ok := s.perf[opType]
	if !ok {
		panic("sched: trackOp for unknown op type")
	}
	pt.totTime += dur
	pt.totOps += units
	if pt.totOps > 0 {
		pt.usPerUnit = float64(pt.totTime) / float64(time.Microsecond) / float64(pt.totOps)
	}
}

// estimateTime estimates how long a chunk of the given size will take.
func (s *Scheduler) estimateTime(opType uint64, units int64) time.Duration {
	if s.deterministic {
		return time.Duration(units) * time.Microsecond
	}
	pt, ok := s.perf[opType]
	if !ok {
		panic("sched: estimateTime for unknown op type")
	}
	return time.Duration(pt.usPerUnit * float64(units) * float64(time.Microsecond))
}

// estimateUnits estimates how many units fit in the given duration.
// Never returns less than 1 so planning always makes progress.
func (s *Scheduler) estimateUnits(opType uint64, d time.Duration) int64 {
	us := float64(d) / float64(time.Microsecond)
	var est float64
	if s.deterministic {
		est = us
	} else {
		pt, ok := s.perf[opType]
		if !ok {
			panic("sched: estimateUnits for unknown op type")
		}
		est = us / pt.usPerUnit
	}
	units := int64(est)
	if units < 1 {
		units = 1
	}
	return units
}
