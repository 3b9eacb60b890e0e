package sched

import (
	"github.com/llrt/internal/perflog"
	apperrors "github.com/llrt/pkg/errors"
)

// schedLoop is the body of the scheduler goroutine. It waits for a
// ready client batch, a finished barrier, or shutdown, and handles
// whichever arrived.
func (s *Scheduler) schedLoop() {
	defer close(s.done)

	for i := 0; i < s.nWorkers; i++ {
		s.workerWG.Add(1)
		go func(workerIx int, first *barrier) {
			defer s.workerWG.Done()
			s.workLoop(workerIx, first)
		}(i, s.firstBarrier)
	}

	s.schedMtx.Lock()
	for {
		var batch *clientBatch
		for {
			if s.shutdown {
				break
			}
			for _, b := range s.batches {
				if b.readyToSchedule && !b.scheduled {
					batch = b
					break
				}
			}
			if batch != nil {
				break
			}
			if !s.schedBarrier.finalized && s.schedBarrier.finished(s.nWorkers) {
				// doneWorkers stays at its terminal value, so it is
				// safe to act on this outside the lock below.
				break
			}
			s.schedCv.Wait()
		}

		if !s.schedBarrier.finalized && s.schedBarrier.finished(s.nWorkers) {
			s.schedMtx.Unlock()
			s.recordFinishedJobs()
			s.schedBarrier.finalized = true
			if s.schedBarrier.next != nil {
				s.schedBarrier = s.schedBarrier.next
			}
			s.schedMtx.Lock()
		}

		if s.shutdown {
			break
		}
		if batch == nil {
			continue
		}

		// The batch is sealed: no submitter will append to it again,
		// so planning can proceed without the lock.
		jobs := append([]*job(nil), batch.jobs...)
		s.schedMtx.Unlock()

		s.planAllStages(jobs)

		for _, j := range jobs {
			if j.progress != j.spec.MaxProgress {
				panic(apperrors.Newf(apperrors.CodeInternal,
					"job %q planned to %d of %d units", j.spec.KernelName, j.progress, j.spec.MaxProgress))
			}
		}

		if s.schedBarrier.finalized && s.schedBarrier.next != nil {
			s.schedBarrier = s.schedBarrier.next
		}

		s.schedMtx.Lock()
		// sequence is now the number of the batch's last barrier.
		s.sequenceClientMap[s.sequence] = batch.number
		batch.scheduled = true
	}
	s.schedMtx.Unlock()

	s.broadcastTerminate()
	s.workerWG.Wait()

	s.completedMtx.Lock()
	s.closed = true
	s.completedMtx.Unlock()
	s.completedCv.Broadcast()
}

// recordFinishedJobs runs after the workers have finished schedBarrier,
// combiners included. It collects timing statistics, publishes a
// completed client batch if this barrier ends one, and cleans up.
func (s *Scheduler) recordFinishedJobs() {
	b := s.schedBarrier

	// The lock covers recOp, which submitters also write through
	// ProcessOp.
	s.schedMtx.Lock()
	for w := 0; w < s.nWorkers; w++ {
		s.collectStats(&b.workerBatches[w], w)
	}
	s.schedMtx.Unlock()

	if batchNum, ok := s.sequenceClientMap[b.sequence]; ok {
		s.completedMtx.Lock()
		s.completedClientBatchNum = batchNum
		s.completedMtx.Unlock()
		delete(s.sequenceClientMap, b.sequence)
		s.completedCv.Broadcast()
	}

	s.cleanupBarrier()
}

// collectStats feeds one worker's chunk timings into the perf
// trackers and the op recorder. Call with schedMtx held.
func (s *Scheduler) collectStats(batch *chunkBatch, worker int) {
	for i := range batch.chunks {
		chunk := &batch.chunks[i]
		units := chunk.end - chunk.start
		s.trackOp(chunk.job.spec.OpType, chunk.endTime.Sub(chunk.startTime), units)
		s.recOp.Chunk(chunk.job.perfID, units, chunk.startTime, chunk.endTime, perflog.WorkerThreadBase+worker)
	}
}

// cleanupBarrier reclaims barriers every worker has released and
// erases client batches whose completion has been published.
func (s *Scheduler) cleanupBarrier() {
	for b := s.firstBarrier; b != nil && b != s.schedBarrier; {
		needed := false
		for w := range b.workerBatches {
			// No lock: neededByWorker changes true->false once, so a
			// stale read only delays cleanup until the next cycle.
			if b.workerBatches[w].neededByWorker.Load() {
				needed = true
				break
			}
		}
		if needed {
			break
		}
		next := b.next
		s.firstBarrier = next
		b = next
	}

	s.completedMtx.Lock()
	completed := s.completedClientBatchNum
	s.completedMtx.Unlock()

	s.schedMtx.Lock()
	kept := s.batches[:0]
	for _, batch := range s.batches {
		if batch.number > completed {
			kept = append(kept, batch)
		}
	}
	for i := len(kept); i < len(s.batches); i++ {
		s.batches[i] = nil
	}
	s.batches = kept
	s.schedMtx.Unlock()
}
