package sched

import (
	"runtime"
	"sync"
	"time"

	"github.com/llrt/internal/perflog"
	"github.com/llrt/pkg/collections"
	"github.com/llrt/pkg/utils"
)

// DefaultSingleThreadThreshold is the estimated barrier duration
// below which the whole barrier is handed to a single worker, since
// the communication overhead of fanning out would exceed the gain.
const DefaultSingleThreadThreshold = 30 * time.Microsecond

// workerChannel carries everything the scheduler uses to communicate
// with one worker, and everything the worker uses to decide when to
// wake up.
type workerChannel struct {
	mtx               sync.Mutex
	cv                *sync.Cond
	terminate         bool
	latestSequence    uint64
	completedSequence uint64
}

func newWorkerChannel() *workerChannel {
	ch := &workerChannel{}
	ch.cv = sync.NewCond(&ch.mtx)
	return ch
}

// Scheduler owns the scheduler goroutine and N worker goroutines.
type Scheduler struct {
	nWorkers              int
	deterministic         bool
	singleThreadThreshold time.Duration
	clock                 utils.Clock
	logger                utils.Logger

	// rec records scheduler-internal events; recOp records job chunk
	// timings. Both are guarded by schedMtx.
	rec   *perflog.Recorder
	recOp *perflog.Recorder

	schedMtx sync.Mutex
	schedCv  *sync.Cond
	batches  []*clientBatch
	shutdown bool

	// clientBatchNumber is the number of the most recently created
	// client batch. Guarded by schedMtx. Starts at 1, so the first
	// real batch is 2 and 0 stays free as the "trivially complete"
	// sentinel.
	clientBatchNumber uint64

	// sequence numbers barriers; equal to the most recently planned
	// barrier. Accessed only by the scheduler goroutine.
	sequence uint64

	// sequenceClientMap maps the sequence of a batch's last barrier
	// to the batch number. Accessed only by the scheduler goroutine.
	sequenceClientMap map[uint64]uint64

	completedMtx            sync.Mutex
	completedCv             *sync.Cond
	completedClientBatchNum uint64
	closed                  bool

	firstBarrier *barrier
	lastBarrier  *barrier

	// schedBarrier is the barrier the scheduler will finalize next.
	// Accessed only by the scheduler goroutine.
	schedBarrier *barrier

	workChans []*workerChannel

	// perf tracks time-per-unit by op type. Accessed only by the
	// scheduler goroutine.
	perf map[uint64]*perfTracker

	// cmpSeen is the planner's scratch set of near components already
	// placed in the barrier being built.
	cmpSeen *collections.Bitset

	workerWG  sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(logger utils.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithClock sets the clock used to stamp chunk times.
func WithClock(clock utils.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithProfiling enables full performance recording.
func WithProfiling(enabled bool) Option {
	return func(s *Scheduler) {
		s.rec = perflog.New(enabled)
		s.recOp = perflog.New(enabled)
	}
}

// WithSingleThreadThreshold overrides the estimated duration below
// which a barrier runs on a single worker.
func WithSingleThreadThreshold(d time.Duration) Option {
	return func(s *Scheduler) { s.singleThreadThreshold = d }
}

// New launches the scheduler with nWorkers worker goroutines.
// nWorkers <= 0 selects the hardware concurrency.
func New(nWorkers int, opts ...Option) *Scheduler {
	if nWorkers <= 0 {
		nWorkers = runtime.NumCPU()
	}
	s := &Scheduler{
		nWorkers:              nWorkers,
		singleThreadThreshold: DefaultSingleThreadThreshold,
		clock:                 utils.NewRealClock(),
		logger:                &utils.NullLogger{},
		rec:                   perflog.New(false),
		recOp:                 perflog.New(false),
		clientBatchNumber:     1,
		sequenceClientMap:     make(map[uint64]uint64),
		perf:                  make(map[uint64]*perfTracker),
		cmpSeen:               collections.NewBitset(64),
		done:                  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.schedCv = sync.NewCond(&s.schedMtx)
	s.completedCv = sync.NewCond(&s.completedMtx)
	s.workChans = make([]*workerChannel, nWorkers)
	for i := range s.workChans {
		s.workChans[i] = newWorkerChannel()
	}

	// The initial barrier is already "finished": it exists so workers
	// have a node to wait on before the first real barrier is planned.
	s.firstBarrier = newBarrierNode(nWorkers, 0)
	s.firstBarrier.doneWorkers = nWorkers
	s.lastBarrier = s.firstBarrier
	s.schedBarrier = s.firstBarrier

	go s.schedLoop()
	return s
}

// Workers returns the number of worker goroutines.
func (s *Scheduler) Workers() int {
	return s.nWorkers
}

// SetDeterministic disables adaptive timing so planning becomes a
// pure function of the submitted jobs. Call before submitting work.
func (s *Scheduler) SetDeterministic() {
	s.schedMtx.Lock()
	s.deterministic = true
	s.schedMtx.Unlock()
}

// ProcessOp submits one operation. It appends a job to the open
// client batch (creating one if the previous batch was sealed),
// optionally seals the batch, and optionally blocks until the batch
// completes. Returns the client batch number, or 0 after shutdown.
func (s *Scheduler) ProcessOp(op OpSpec) uint64 {
	if op.Blocking {
		// Otherwise the wait below would never end.
		op.EndOfBatch = true
	}

	s.schedMtx.Lock()
	if s.shutdown {
		s.schedMtx.Unlock()
		return 0
	}
	perfID := s.recOp.OpStart(op.LinkName, op.KernelName, op.MaxProgress, true)
	s.recOp.AddKernels(op.MaxProgress)

	var batch *clientBatch
	if len(s.batches) == 0 || s.batches[len(s.batches)-1].readyToSchedule {
		s.clientBatchNumber++
		batch = &clientBatch{number: s.clientBatchNumber}
		s.batches = append(s.batches, batch)
	} else {
		batch = s.batches[len(s.batches)-1]
	}
	batchNum := batch.number
	batch.jobs = append(batch.jobs, &job{spec: op, perfID: perfID})
	if op.EndOfBatch {
		batch.readyToSchedule = true
	}
	s.schedMtx.Unlock()

	if op.EndOfBatch {
		s.schedCv.Broadcast()
	}
	if op.Blocking {
		s.FinishBatches()
	}
	return batchNum
}

// EndOfBatch seals the open client batch so the scheduler can begin
// executing it. Returns false if there was no batch to seal.
func (s *Scheduler) EndOfBatch() bool {
	s.schedMtx.Lock()
	sealed := len(s.batches) > 0 && !s.batches[len(s.batches)-1].readyToSchedule
	if sealed {
		s.batches[len(s.batches)-1].readyToSchedule = true
	}
	s.schedMtx.Unlock()
	if sealed {
		s.schedCv.Broadcast()
	}
	return sealed
}

// FinishBatch waits until the batch with the given number has
// completed, including combiners. Batch number 0 means "trivially
// complete" and never blocks. Returns immediately once the scheduler
// has shut down.
func (s *Scheduler) FinishBatch(batchNumber uint64) {
	s.completedMtx.Lock()
	for s.completedClientBatchNum < batchNumber && !s.closed {
		s.completedCv.Wait()
	}
	s.completedMtx.Unlock()
}

// FinishBatches waits until every submitted batch has completed.
func (s *Scheduler) FinishBatches() {
	s.schedMtx.Lock()
	num := s.clientBatchNumber
	s.schedMtx.Unlock()
	if num <= 1 {
		// nothing was ever submitted
		return
	}
	s.FinishBatch(num)
}

// MergeRecorders finishes all batches and merges the scheduler's
// performance records into dst.
func (s *Scheduler) MergeRecorders(dst *perflog.Recorder) {
	s.FinishBatches()
	s.schedMtx.Lock()
	dst.Merge(s.rec)
	dst.Merge(s.recOp)
	s.schedMtx.Unlock()
}

// Close shuts the scheduler down: in-flight barriers run to
// completion, workers terminate, and any blocked FinishBatch callers
// return. Safe to call more than once.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.schedMtx.Lock()
		s.shutdown = true
		s.schedMtx.Unlock()
		s.schedCv.Broadcast()
		<-s.done
	})
}
