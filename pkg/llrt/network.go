package llrt

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/llrt/internal/perflog"
	"github.com/llrt/internal/sched"
	"github.com/llrt/pkg/utils"
)

// Network is a collection of components and links, plus the scheduler
// that runs parallel operations on them. The structure is expected to
// remain unchanged after construction.
type Network struct {
	Components []*Component

	sched  *sched.Scheduler
	rng    *RNG
	rec    *perflog.Recorder
	logger utils.Logger

	cmpSeq  int
	linkSeq uint64
	merged  bool
}

// NetworkOption configures a Network.
type NetworkOption func(*networkConfig)

type networkConfig struct {
	logger                utils.Logger
	clock                 utils.Clock
	profiling             bool
	singleThreadThreshold time.Duration
}

// WithLogger sets the network's logger.
func WithLogger(logger utils.Logger) NetworkOption {
	return func(cfg *networkConfig) { cfg.logger = logger }
}

// WithClock sets the clock the scheduler stamps chunk times with.
func WithClock(clock utils.Clock) NetworkOption {
	return func(cfg *networkConfig) { cfg.clock = clock }
}

// WithProfiling enables performance recording, so PerfReport can
// summarize and DumpTrace can write a trace of every executed chunk.
func WithProfiling() NetworkOption {
	return func(cfg *networkConfig) { cfg.profiling = true }
}

// WithSingleThreadThreshold overrides the estimated barrier duration
// below which a barrier runs on one worker.
func WithSingleThreadThreshold(d time.Duration) NetworkOption {
	return func(cfg *networkConfig) { cfg.singleThreadThreshold = d }
}

// New creates a Network. nWorkers > 0 launches a scheduler with that
// many workers; nWorkers <= 0 runs every operation inline on the
// calling goroutine.
func New(nWorkers int, opts ...NetworkOption) *Network {
	cfg := networkConfig{
		logger: &utils.NullLogger{},
		clock:  utils.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	n := &Network{
		rng:    newTimeSeededRNG(),
		rec:    perflog.New(cfg.profiling),
		logger: cfg.logger,
	}
	if nWorkers > 0 {
		schedOpts := []sched.Option{
			sched.WithLogger(cfg.logger),
			sched.WithClock(cfg.clock),
			sched.WithProfiling(cfg.profiling),
		}
		if cfg.singleThreadThreshold > 0 {
			schedOpts = append(schedOpts, sched.WithSingleThreadThreshold(cfg.singleThreadThreshold))
		}
		n.sched = sched.New(nWorkers, schedOpts...)
		cfg.logger.Debug("created scheduler with %d workers (NumCPU = %d)", nWorkers, runtime.NumCPU())
	}
	return n
}

// Close shuts the scheduler down. In-flight barriers run to
// completion first.
func (n *Network) Close() {
	if n.sched != nil {
		n.sched.Close()
	}
}

// Workers returns the worker count, or 0 in single-threaded mode.
func (n *Network) Workers() int {
	if n.sched == nil {
		return 0
	}
	return n.sched.Workers()
}

// Seed seeds the network's random number generator.
func (n *Network) Seed(seed uint64) {
	n.rng.Seed(seed)
}

// RNG returns the network's base random number generator. Kernels
// that draw random numbers hold a Split of it per clone.
func (n *Network) RNG() *RNG {
	return n.rng
}

// SetDeterminism disables adaptive scheduling so that repeated runs
// with the same seed produce bit-identical results.
func (n *Network) SetDeterminism() {
	if n.sched != nil {
		n.sched.SetDeterministic()
	}
}

// FinishBatch waits until the batch with the given number has
// finished. Batch number 0 never blocks.
func (n *Network) FinishBatch(batchNumber uint64) {
	if n.sched != nil {
		n.sched.FinishBatch(batchNumber)
	}
}

// FinishBatches waits until the scheduler has finished every batch
// submitted so far.
func (n *Network) FinishBatches() {
	if n.sched != nil {
		n.sched.FinishBatches()
	}
}

func (n *Network) mergeRecorders() {
	if n.merged {
		return
	}
	n.merged = true
	if n.sched != nil {
		n.sched.MergeRecorders(n.rec)
	}
}

// PerfReport finishes all batches and writes a summary of how many
// kernels ran and how fast. Call once, after the workload.
func (n *Network) PerfReport(w io.Writer) {
	n.FinishBatches()
	n.mergeRecorders()
	if n.sched != nil {
		fmt.Fprintf(w, "%d workers (NumCPU = %d)\n", n.sched.Workers(), runtime.NumCPU())
	} else {
		fmt.Fprintln(w, "Single threaded")
	}
	n.rec.Report(w)
}

// DumpTrace writes the recorded chunk timings as chrome://tracing
// JSON. Only meaningful with WithProfiling.
func (n *Network) DumpTrace(w io.Writer) error {
	n.FinishBatches()
	n.mergeRecorders()
	return n.rec.DumpTrace(w)
}

// ExportSpans replays the recorded chunks as OpenTelemetry spans
// through the global TracerProvider. Only meaningful with
// WithProfiling and an initialized telemetry pipeline.
func (n *Network) ExportSpans(ctx context.Context) {
	n.FinishBatches()
	n.mergeRecorders()
	n.rec.ExportSpans(ctx)
}

// Display writes a short text summary of the network structure.
func (n *Network) Display(w io.Writer) {
	seen := make(map[*Link]bool)
	for _, c := range n.Components {
		for end := 0; end < 2; end++ {
			for _, l := range c.Links[end] {
				if seen[l] {
					continue
				}
				seen[l] = true
				fmt.Fprint(w, c.DisplayName())
				n.displayChain(w, l, end, seen)
				fmt.Fprintln(w)
			}
		}
	}
}

func (n *Network) displayChain(w io.Writer, l *Link, end int, seen map[*Link]bool) {
	endNames := [2]string{"NoData", "NoData"}
	for i := 0; i < 2; i++ {
		if l.Ends[i].Data != nil {
			endNames[i] = l.Ends[i].Data.ValueTypeName()
		}
	}
	if end == 0 {
		fmt.Fprintf(w, " --%s-(%s)-%s--> ", endNames[0], l.Name, endNames[1])
	} else {
		fmt.Fprintf(w, " <--%s-(%s)-%s-- ", endNames[0], l.Name, endNames[1])
	}
	far := l.Ends[1-end].Cmp
	fmt.Fprint(w, far.DisplayName())
	for i := 0; i < 2; i++ {
		for _, l2 := range far.Links[i] {
			if !seen[l2] {
				seen[l2] = true
				n.displayChain(w, l2, i, seen)
			}
		}
	}
}
