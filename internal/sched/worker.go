package sched

// broadcastLatest tells every worker that a new barrier has been
// planned. Writing latestSequence under each worker's lock and having
// the worker read it under the same lock is the release/acquire
// handshake that publishes the barrier list's next pointers.
func (s *Scheduler) broadcastLatest(latest uint64) {
	for w := 0; w < s.nWorkers; w++ {
		ch := s.workChans[w]
		ch.mtx.Lock()
		if latest > ch.latestSequence {
			ch.latestSequence = latest
		}
		ch.mtx.Unlock()
		ch.cv.Broadcast()
	}
}

// broadcastCompleted tells every worker that a barrier has finished.
// Returns true if the notifying worker can see another barrier is
// already planned, so it can advance without going back to sleep.
func (s *Scheduler) broadcastCompleted(completed uint64, notifier int) bool {
	ready := false
	for w := 0; w < s.nWorkers; w++ {
		ch := s.workChans[w]
		ch.mtx.Lock()
		if completed > ch.completedSequence {
			ch.completedSequence = completed
		}
		if w == notifier {
			ready = ch.latestSequence > completed
		}
		ch.mtx.Unlock()
		ch.cv.Broadcast()
	}
	return ready
}

// broadcastTerminate shuts the workers down.
func (s *Scheduler) broadcastTerminate() {
	for w := 0; w < s.nWorkers; w++ {
		ch := s.workChans[w]
		ch.mtx.Lock()
		ch.terminate = true
		ch.mtx.Unlock()
		ch.cv.Broadcast()
	}
}

// waitForNextBarrier parks the worker until the barrier it just
// finished is finished by everyone and a successor exists. Returns
// nil on terminate. Releases the finished barrier's slot so the
// scheduler can reclaim it.
func (s *Scheduler) waitForNextBarrier(workerIx int, b *barrier) *barrier {
	ch := s.workChans[workerIx]
	ch.mtx.Lock()
	defer ch.mtx.Unlock()
	for {
		if ch.terminate {
			return nil
		}
		if ch.completedSequence >= b.sequence && ch.latestSequence > b.sequence {
			b.workerBatches[workerIx].neededByWorker.Store(false)
			return b.next
		}
		ch.cv.Wait()
	}
}

// workLoop is the body of one worker goroutine. b is the initial
// barrier, handed over at launch so the worker never reads the list
// head the scheduler's cleanup advances.
func (s *Scheduler) workLoop(workerIx int, b *barrier) {
	pinWorker(workerIx)

	ready := false
	for {
		if ready {
			// shortcut: this worker just notified completion and saw
			// the next barrier is already planned
			b.workerBatches[workerIx].neededByWorker.Store(false)
			b = b.next
			ready = false
		} else {
			b = s.waitForNextBarrier(workerIx, b)
		}
		if b == nil {
			return
		}

		if !b.singleThreaded {
			batch := &b.workerBatches[workerIx]
			for i := range batch.chunks {
				chunk := &batch.chunks[i]
				chunk.startTime = s.clock.Now()
				chunk.task(chunk.start, chunk.end)
				chunk.endTime = s.clock.Now()
			}

			s.schedMtx.Lock()
			b.doneWorkers++
			last := b.doneWorkers == s.nWorkers
			if last {
				// The last worker to arrive merges every job's kernel
				// clones back into the original.
				runCombiners(b.jobs)
			}
			s.schedMtx.Unlock()
			if last {
				ready = s.broadcastCompleted(b.sequence, workerIx)
				s.schedCv.Broadcast()
			}
			continue
		}

		// Single-threaded barrier: elect one worker under the
		// scheduler lock; everyone else waits for its broadcast.
		s.schedMtx.Lock()
		mine := !b.singleThreadedStarted
		if mine {
			b.singleThreadedStarted = true
		}
		s.schedMtx.Unlock()
		if !mine {
			continue
		}

		batch := &b.workerBatches[workerIx]
		for _, j := range b.jobs {
			task := j.spec.Copier()
			chunk := workChunk{task: task, start: 0, end: j.spec.MaxProgress, job: j}
			chunk.startTime = s.clock.Now()
			task(0, j.spec.MaxProgress)
			if j.spec.CombineAll != nil {
				j.spec.CombineAll()
			}
			chunk.endTime = s.clock.Now()
			batch.chunks = append(batch.chunks, chunk)
		}
		ready = s.broadcastCompleted(b.sequence, workerIx)
		s.schedMtx.Lock()
		b.doneWorkers = 1
		s.schedMtx.Unlock()
		s.schedCv.Broadcast()
	}
}

func runCombiners(jobs []*job) {
	for _, j := range jobs {
		if j.spec.CombineAll != nil {
			j.spec.CombineAll()
		}
	}
}
