package llrt

// Option adjusts how an operation is dispatched. Options compose:
//
//	ProcessLink(l, 1, k, llrt.Parallel, llrt.WithKernelName("step"))
//
// The axon/dendrite selectors and the near/far component filters
// combine by logical AND with each other and by logical OR within
// themselves (Axons with Dendrites, near filter with near filter, far
// filter with far filter).
type Option func(*dispatchOptions)

type dispatchOptions struct {
	parallel      bool
	blocking      bool
	endOfBatch    bool
	indivisible   bool
	kernelName    string
	onlyAxons     bool
	onlyDendrites bool
	combiner      func(orig, clone Kernel)
	nearFilter    func(*Component) bool
	farFilter     func(*Component) bool
}

func buildOptions(opts []Option) dispatchOptions {
	o := dispatchOptions{blocking: true, endOfBatch: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Parallel submits the operation to the scheduler and waits for it to
// finish before returning.
func Parallel(o *dispatchOptions) {
	o.parallel = true
}

// ParallelNonBlocking submits the operation to the scheduler and
// returns the batch number immediately.
func ParallelNonBlocking(o *dispatchOptions) {
	o.parallel = true
	o.blocking = false
}

// ParallelPart submits the operation as part of a batch with more to
// follow: the batch is sealed by the next non-Part submission or an
// explicit EndOfBatch.
func ParallelPart(o *dispatchOptions) {
	o.parallel = true
	o.blocking = false
	o.endOfBatch = false
}

// Indivisible forbids splitting the operation into chunks; the whole
// iteration runs on one worker.
func Indivisible(o *dispatchOptions) {
	o.indivisible = true
}

// Axons restricts a network-wide sweep to axon link ends.
func Axons(o *dispatchOptions) {
	o.onlyAxons = true
}

// Dendrites restricts a network-wide sweep to dendrite link ends.
func Dendrites(o *dispatchOptions) {
	o.onlyDendrites = true
}

// WithKernelName labels the kernel in performance reports.
func WithKernelName(name string) Option {
	return func(o *dispatchOptions) { o.kernelName = name }
}

// WithCombiner registers a reduction merging each per-chunk kernel
// clone back into the original kernel. The kernel must implement
// Cloner. Kernels that implement Merger themselves don't need this.
func WithCombiner(fn func(orig, clone Kernel)) Option {
	return func(o *dispatchOptions) { o.combiner = fn }
}

// WithNearFilter restricts a network-wide sweep to operations whose
// near component matches the predicate.
func WithNearFilter(pred func(*Component) bool) Option {
	return func(o *dispatchOptions) {
		if prev := o.nearFilter; prev != nil {
			o.nearFilter = func(c *Component) bool { return prev(c) || pred(c) }
			return
		}
		o.nearFilter = pred
	}
}

// WithFarFilter restricts a network-wide sweep to operations whose
// far component matches the predicate.
func WithFarFilter(pred func(*Component) bool) Option {
	return func(o *dispatchOptions) {
		if prev := o.farFilter; prev != nil {
			o.farFilter = func(c *Component) bool { return prev(c) || pred(c) }
			return
		}
		o.farFilter = pred
	}
}

// WithNearName restricts a network-wide sweep to the near component
// with this exact name.
func WithNearName(name string) Option {
	return WithNearFilter(func(c *Component) bool { return c.Name == name })
}

// WithFarName restricts a network-wide sweep to operations whose far
// component has this exact name.
func WithFarName(name string) Option {
	return WithFarFilter(func(c *Component) bool { return c.Name == name })
}
