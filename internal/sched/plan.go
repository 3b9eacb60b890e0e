package sched

import (
	"time"

	apperrors "github.com/llrt/pkg/errors"
)

// planAllStages assigns every job of a client batch to workers,
// creating as many barriers as the near-component exclusion demands.
func (s *Scheduler) planAllStages(jobs []*job) {
	for _, j := range jobs {
		if _, ok := s.perf[j.spec.OpType]; !ok {
			s.perf[j.spec.OpType] = newPerfTracker()
		}
	}

	remaining := jobs
	for len(remaining) > 0 {
		var water []*job
		var totWater time.Duration
		water, remaining, totWater = s.selectWater(remaining)
		if totWater < s.singleThreadThreshold {
			// The time lost to cross-worker communication would
			// exceed the gain, so one worker takes the whole barrier.
			s.singleThreadedSchedule(water)
		} else {
			s.pourWater(water, totWater)
		}
	}
}

// selectWater picks a maximal subset of the remaining jobs with
// pairwise distinct near components: the next barrier. Returns the
// selection, the jobs left over, and the estimated total duration of
// the selection.
func (s *Scheduler) selectWater(buckets []*job) (water, rest []*job, totWater time.Duration) {
	s.cmpSeen.ClearAll()
	for _, j := range buckets {
		if j.spec.CmpID >= 0 && s.cmpSeen.Test(j.spec.CmpID) {
			rest = append(rest, j)
			continue
		}
		if j.spec.CmpID >= 0 {
			s.cmpSeen.Set(j.spec.CmpID)
		}
		water = append(water, j)
		totWater += s.estimateTime(j.spec.OpType, j.spec.MaxProgress)
	}
	return water, rest, totWater
}

// newBarrier appends a fresh barrier to the list.
func (s *Scheduler) newBarrier() *barrier {
	s.sequence++
	b := newBarrierNode(s.nWorkers, s.sequence)
	s.lastBarrier.next = b
	s.lastBarrier = b
	return b
}

// pourWater distributes the barrier's jobs over the workers. Jobs are
// divisible, so metaphorically this is pouring water: the target
// water level is the total estimated time divided by the number of
// workers, and each worker's column is filled up to it.
func (s *Scheduler) pourWater(buckets []*job, totWater time.Duration) {
	b := s.newBarrier()
	waterLevel := totWater / time.Duration(s.nWorkers)

	bi := 0
	for i := 0; i < s.nWorkers; i++ {
		batch := &b.workerBatches[i]
		var column time.Duration
		for bi < len(buckets) {
			bucket := buckets[bi]
			est := s.estimateTime(bucket.spec.OpType, bucket.remaining())
			newHeight := column + est
			if newHeight < waterLevel || i == s.nWorkers-1 {
				// Pour the whole bucket; the last worker takes
				// everything that is left.
				column = newHeight
				s.assignJob(bucket, batch, 0)
				b.jobs = append(b.jobs, bucket)
				bi++
			} else {
				// Pour as much of the bucket as fits.
				available := waterLevel - column
				column += s.assignJob(bucket, batch, available)
				if bucket.progress == bucket.spec.MaxProgress {
					// the slice turned out to be the whole remainder
					b.jobs = append(b.jobs, bucket)
					bi++
				}
				break
			}
		}
	}
	s.broadcastLatest(s.lastBarrier.sequence)
}

// singleThreadedSchedule puts the whole barrier on whichever worker
// claims it first.
func (s *Scheduler) singleThreadedSchedule(jobs []*job) {
	b := s.newBarrier()
	b.jobs = append(b.jobs, jobs...)
	b.singleThreaded = true
	for _, j := range jobs {
		// The elected worker runs each job 0..MaxProgress itself;
		// mark the full range as assigned.
		j.progress = j.spec.MaxProgress
	}
	s.broadcastLatest(s.lastBarrier.sequence)
}

// assignJob cuts a chunk of the job sized for desiredDuration and
// appends it to the worker's batch. desiredDuration 0 means the whole
// remainder. Returns the estimated duration of the cut chunk.
func (s *Scheduler) assignJob(j *job, batch *chunkBatch, desiredDuration time.Duration) time.Duration {
	var assigned int64
	if j.spec.Indivisible || desiredDuration == 0 {
		assigned = j.remaining()
	} else {
		units := s.estimateUnits(j.spec.OpType, desiredDuration)
		assigned = j.spec.NextProgressPoint(j.progress+units) - j.progress
		if assigned+j.progress > j.spec.MaxProgress {
			assigned = j.remaining()
		}
		if assigned <= 0 {
			panic(apperrors.Newf(apperrors.CodeInternal,
				"nextProgressPoint for %q moved backwards at progress %d", j.spec.KernelName, j.progress))
		}
	}

	batch.chunks = append(batch.chunks, workChunk{
		task:  j.spec.Copier(),
		start: j.progress,
		end:   j.progress + assigned,
		job:   j,
	})
	j.progress += assigned
	if j.progress > j.spec.MaxProgress {
		panic(apperrors.Newf(apperrors.CodeInternal,
			"job %q overassigned: %d of %d units", j.spec.KernelName, j.progress, j.spec.MaxProgress))
	}
	return s.estimateTime(j.spec.OpType, assigned)
}
