package llrt

import (
	"github.com/llrt/internal/perflog"
	"github.com/llrt/internal/sched"
)

// ProcessLink executes a kernel across every edge of a link from the
// given end. Without a Parallel* option, or on a single-threaded
// network, the iteration runs inline and the sentinel batch number 0
// is returned. Otherwise the operation is submitted to the scheduler
// and the client batch number is returned; pass it to FinishBatch to
// wait for completion.
func ProcessLink(l *Link, end int, k Kernel, opts ...Option) uint64 {
	o := buildOptions(opts)
	return processWithOptions(l, end, k, &o)
}

// ProcessCmp executes a kernel at every node of a component, via its
// self link.
func ProcessCmp(c *Component, k Kernel, opts ...Option) uint64 {
	o := buildOptions(opts)
	return processWithOptions(c.SelfLink, 0, k, &o)
}

// KernelFactory binds a kernel to one link end of a network-wide
// sweep. The factory runs once per selected end, right before that
// end's operation is dispatched, so it typically captures that end's
// typed data slices.
// Returning the same kernel instance for every end (with a Cloner
// and Merger) accumulates one result across the whole sweep.
type KernelFactory func(e *LinkEnd) Kernel

// ProcessLinkEnds executes a kernel on each of the given link ends.
// All the operations go into one client batch: only the last carries
// the options' end-of-batch and blocking behavior.
func ProcessLinkEnds(ends []*LinkEnd, mk KernelFactory, opts ...Option) uint64 {
	o := buildOptions(opts)
	return processLinkEnds(ends, mk, &o)
}

func processLinkEnds(ends []*LinkEnd, mk KernelFactory, o *dispatchOptions) uint64 {
	endOfBatch, blocking := o.endOfBatch, o.blocking
	o.endOfBatch, o.blocking = false, false

	var batchNum uint64
	for i, e := range ends {
		if i == len(ends)-1 {
			o.endOfBatch, o.blocking = endOfBatch, blocking
		}
		if num := processWithOptions(e.Link, e.WhichEnd, mk(e), o); num > batchNum {
			batchNum = num
		}
	}
	return batchNum
}

// ProcessNetCmps executes a kernel at every node of every component
// whose near filter matches, as one client batch.
func ProcessNetCmps(n *Network, mk KernelFactory, opts ...Option) uint64 {
	o := buildOptions(opts)
	var ends []*LinkEnd
	for _, c := range n.Components {
		if o.nearFilter != nil && !o.nearFilter(c) {
			continue
		}
		ends = append(ends, &c.SelfLink.Ends[0])
	}
	return processLinkEnds(ends, mk, &o)
}

// ProcessNetLinks executes a kernel across every link of the network,
// once per end whose component passes the near filter, subject to the
// axon/dendrite selector and the far filter. The whole sweep forms
// one client batch.
func ProcessNetLinks(n *Network, mk KernelFactory, opts ...Option) uint64 {
	o := buildOptions(opts)
	var ends []*LinkEnd
	for _, c := range n.Components {
		if o.nearFilter != nil && !o.nearFilter(c) {
			continue
		}
		for end := 0; end < 2; end++ {
			for _, l := range c.Links[end] {
				near := &l.Ends[end]
				if (o.onlyAxons || o.onlyDendrites) &&
					!(o.onlyAxons && near.IsAxon() || o.onlyDendrites && near.IsDendrite()) {
					continue
				}
				if o.farFilter != nil && !o.farFilter(l.Ends[1-end].Cmp) {
					continue
				}
				ends = append(ends, near)
			}
		}
	}
	return processLinkEnds(ends, mk, &o)
}

// EndOfBatch seals the open client batch, as an alternative to
// passing end-of-batch options on the last operation. Returns false
// if there was no batch to seal.
func (n *Network) EndOfBatch() bool {
	if n.sched == nil {
		return false
	}
	return n.sched.EndOfBatch()
}

// processWithOptions is the funnel every dispatch goes through.
func processWithOptions(l *Link, end int, k Kernel, o *dispatchOptions) uint64 {
	c := l.Ends[end].Cmp
	net := c.net
	maxProgress := l.MaxProgress(end)
	name := o.kernelName
	if name == "" {
		name = kernelName(k)
	}
	linkName := l.EndName(end)

	if net.sched == nil || !o.parallel {
		opIx := net.rec.OpStart(linkName, name, maxProgress, true)
		chunkIx := net.rec.ChunkStart(opIx, maxProgress, perflog.ClientThread)
		net.rec.AddKernels(maxProgress)
		l.Iter.Iterate(end, 0, maxProgress, k.Visit)
		net.rec.ChunkEnd(opIx, chunkIx)
		return 0
	}

	merge := o.combiner
	if merge == nil {
		if _, ok := k.(Merger); ok {
			merge = func(orig, clone Kernel) { orig.(Merger).MergeKernel(clone) }
		}
	}

	// Per-chunk kernel clones live here so the references handed to
	// worker tasks stay valid for the combiner pass. Only the
	// scheduler goroutine (or the single elected worker of a
	// single-threaded barrier) calls the copier, so no lock is
	// needed.
	type clone struct {
		k     Kernel
		owned bool
	}
	var clones []clone

	iter := l.Iter
	copier := func() sched.RangeFn {
		kc, owned := k, false
		if cl, ok := k.(Cloner); ok {
			kc, owned = cl.CloneKernel(), true
		}
		clones = append(clones, clone{k: kc, owned: owned})
		visit := kc.Visit
		return func(start, stop int64) {
			iter.Iterate(end, start, stop, visit)
		}
	}

	var combineAll func()
	if merge != nil {
		combineAll = func() {
			for _, cl := range clones {
				if cl.owned {
					merge(k, cl.k)
				}
			}
			clones = clones[:0]
		}
	}

	return net.sched.ProcessOp(sched.OpSpec{
		OpType:      opTypeIndex(k, l, end),
		CmpID:       c.ID,
		LinkName:    linkName,
		KernelName:  name,
		MaxProgress: maxProgress,
		Indivisible: o.indivisible,
		Copier:      copier,
		NextProgressPoint: func(requested int64) int64 {
			return iter.RequestPartialProgress(end, requested)
		},
		CombineAll: combineAll,
		EndOfBatch: o.endOfBatch,
		Blocking:   o.blocking,
	})
}
