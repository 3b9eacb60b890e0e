// Package perflog records per-operation and per-chunk timing for
// performance reports.
//
// Each thread of control owns its own Recorder (the client has one,
// the scheduler has two: one for its own events and one for job
// chunks) and they are merged when a report is requested, so no
// synchronization is needed on the recording hot path. A Recorder
// created disabled turns every call into a cheap no-op except for
// the kernel counter, which is always maintained.
package perflog

import (
	"fmt"
	"io"
	"time"
)

// Thread identifiers used in dumped traces. Workers are numbered
// WorkerThreadBase + workerIndex.
const (
	ClientThread     = 0
	SchedulerThread  = 1
	WorkerThreadBase = 2
)

// ChunkRecord is one timed execution of a contiguous range of an
// operation by a single thread.
type ChunkRecord struct {
	Progress int64
	Start    time.Time
	End      time.Time
	Finished bool
	Thread   int
}

// OpRecord groups the chunks of one dispatched operation.
type OpRecord struct {
	LinkName    string
	KernelName  string
	MaxProgress int64
	// IsKernelOp is true when the record times a kernel applied to a
	// link, false for internal scheduler events.
	IsKernelOp bool
	Chunks     []ChunkRecord
}

// InstantEvent marks a point in time on a thread.
type InstantEvent struct {
	Name   string
	Time   time.Time
	Thread int
}

// Recorder accumulates operation, chunk and instant records.
// It is not safe for concurrent use; callers serialize access or
// keep one Recorder per thread and Merge at the end.
type Recorder struct {
	enabled    bool
	startTime  time.Time
	operations []OpRecord
	instants   []InstantEvent
	totKernels int64
}

// New creates a Recorder. When enabled is false only the kernel
// counter is maintained.
func New(enabled bool) *Recorder {
	return &Recorder{
		enabled:   enabled,
		startTime: time.Now(),
	}
}

// Enabled reports whether full recording is on.
func (r *Recorder) Enabled() bool {
	return r.enabled
}

// AddKernels counts numKernels kernel applications toward the
// summary report. Maintained even when recording is disabled.
func (r *Recorder) AddKernels(numKernels int64) {
	r.totKernels += numKernels
}

// OpStart registers an operation and returns its index for chunk
// logging. Returns -1 when recording is disabled.
func (r *Recorder) OpStart(linkName, kernelName string, maxProgress int64, isKernelOp bool) int {
	if !r.enabled {
		return -1
	}
	r.operations = append(r.operations, OpRecord{
		LinkName:    linkName,
		KernelName:  kernelName,
		MaxProgress: maxProgress,
		IsKernelOp:  isKernelOp,
	})
	return len(r.operations) - 1
}

// Chunk logs a chunk whose start and end times are already known.
func (r *Recorder) Chunk(opIx int, progress int64, start, end time.Time, thread int) {
	if !r.enabled || opIx < 0 {
		return
	}
	op := &r.operations[opIx]
	op.Chunks = append(op.Chunks, ChunkRecord{
		Progress: progress,
		Start:    start,
		End:      end,
		Finished: true,
		Thread:   thread,
	})
}

// ChunkStart logs a chunk starting now and returns its index.
func (r *Recorder) ChunkStart(opIx int, progress int64, thread int) int {
	if !r.enabled || opIx < 0 {
		return -1
	}
	op := &r.operations[opIx]
	op.Chunks = append(op.Chunks, ChunkRecord{
		Progress: progress,
		Start:    time.Now(),
		Thread:   thread,
	})
	return len(op.Chunks) - 1
}

// ChunkEnd logs the end of a chunk started with ChunkStart.
func (r *Recorder) ChunkEnd(opIx, chunkIx int) {
	if !r.enabled || opIx < 0 || chunkIx < 0 {
		return
	}
	chunk := &r.operations[opIx].Chunks[chunkIx]
	chunk.End = time.Now()
	chunk.Finished = true
}

// Instant logs an instant event.
func (r *Recorder) Instant(when time.Time, name string, thread int) {
	if !r.enabled {
		return
	}
	r.instants = append(r.instants, InstantEvent{Name: name, Time: when, Thread: thread})
}

// Merge moves the other recorder's records into this one. The other
// recorder must no longer be written to.
func (r *Recorder) Merge(other *Recorder) {
	if other == nil {
		return
	}
	r.operations = append(r.operations, other.operations...)
	r.instants = append(r.instants, other.instants...)
	r.totKernels += other.totKernels
	if other.startTime.Before(r.startTime) {
		r.startTime = other.startTime
	}
}

// Report writes a short human-readable summary.
func (r *Recorder) Report(w io.Writer) {
	elapsed := time.Since(r.startTime)
	ms := float64(elapsed) / float64(time.Millisecond)
	fmt.Fprintf(w, "Executed %d kernels in %.4f ms\n", r.totKernels, ms)
	if ms > 0 {
		fmt.Fprintf(w, "(%.4f kernels per second)\n", float64(r.totKernels)/ms*1000.0)
	}
}
