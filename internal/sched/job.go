// Package sched implements the scheduling and execution engine.
//
// One client goroutine (or several) submits operations grouped into
// client batches. A batch is a set of jobs that may run in any order
// or simultaneously, except that two jobs with the same near
// component cannot run at the same time: they could update the same
// node data, and the near-node guarantee promises user kernels they
// never race.
//
// The scheduler goroutine plans each ready batch into one or more
// barriers. Within a barrier every job has a distinct near component;
// the barrier's work is chopped into chunks of estimated equal
// duration, one chunk list per worker. Workers drain their lists,
// synchronize, run combiners, and move straight on to the next
// barrier when one is already published. The scheduler collects chunk
// timings afterwards to sharpen its duration estimates, records
// finished client batches for waiting clients, and reclaims barriers
// no worker needs anymore.
package sched

import (
	"sync/atomic"
	"time"
)

// RangeFn executes one contiguous chunk [start, stop) of a job.
type RangeFn func(start, stop int64)

// OpSpec describes one operation submitted through ProcessOp.
type OpSpec struct {
	// OpType is a stable key identifying the (kernel, link iterator)
	// combination for duration tracking.
	OpType uint64

	// CmpID is the near component id. Jobs sharing a CmpID are never
	// live in the same barrier.
	CmpID int

	// LinkName and KernelName label the operation in performance
	// reports.
	LinkName   string
	KernelName string

	// MaxProgress is the total units of work (typically edges).
	MaxProgress int64

	// Indivisible forces the whole operation into a single chunk.
	Indivisible bool

	// Copier produces a fresh per-chunk invocable bound to a new
	// kernel clone. Called once per chunk, only by the scheduler
	// goroutine during planning or by the single elected worker of a
	// single-threaded barrier.
	Copier func() RangeFn

	// NextProgressPoint returns the smallest legal split point >= the
	// requested progress, so chunks always end on whole near-nodes.
	NextProgressPoint func(requested int64) int64

	// CombineAll merges all kernel clones back into the original
	// kernel. May be nil. Runs exactly once, after every chunk of the
	// job has finished.
	CombineAll func()

	// EndOfBatch marks the enclosing client batch ready to schedule.
	EndOfBatch bool

	// Blocking makes ProcessOp wait for the batch to finish. Implies
	// EndOfBatch.
	Blocking bool
}

// job is one operation being executed. progress counts units already
// assigned to workers; the job is consumed when progress reaches
// MaxProgress.
type job struct {
	spec     OpSpec
	progress int64
	perfID   int
}

func (j *job) remaining() int64 {
	return j.spec.MaxProgress - j.progress
}

// workChunk is a near-node-aligned sub-range of a job assigned to a
// single worker.
type workChunk struct {
	task       RangeFn
	start, end int64
	startTime  time.Time
	endTime    time.Time
	job        *job
}

// chunkBatch is the chunk list one worker executes for one barrier.
type chunkBatch struct {
	chunks []workChunk

	// neededByWorker flips true->false exactly once, when the worker
	// leaves the barrier. The scheduler reads it during cleanup; a
	// stale read only postpones reclamation one cycle.
	neededByWorker atomic.Bool
}

// barrier is a synchronization unit: a set of jobs with pairwise
// distinct near components, one chunk list per worker, and a
// completion counter. Barriers form a singly linked list; workers
// follow next pointers published by broadcastLatest.
type barrier struct {
	sequence uint64

	// doneWorkers is guarded by the scheduler mutex.
	doneWorkers int

	jobs []*job

	singleThreaded        bool
	singleThreadedStarted bool
	finalized             bool

	workerBatches []chunkBatch

	next *barrier
}

func newBarrierNode(nWorkers int, sequence uint64) *barrier {
	b := &barrier{
		sequence:      sequence,
		workerBatches: make([]chunkBatch, nWorkers),
	}
	for i := range b.workerBatches {
		b.workerBatches[i].neededByWorker.Store(true)
	}
	return b
}

// finished reports whether every worker is done with this barrier.
// Call with the scheduler mutex held.
func (b *barrier) finished(nWorkers int) bool {
	if b.singleThreaded {
		return b.doneWorkers >= 1
	}
	return b.doneWorkers == nWorkers
}

// clientBatch is a group of jobs submitted together, externally
// observable as a single completion number.
type clientBatch struct {
	number          uint64
	jobs            []*job
	readyToSchedule bool
	scheduled       bool
}
