// Package links implements the built-in link types: the connectivity
// patterns relating node indices of two components.
//
// Every link type satisfies Iterator, the protocol the scheduler
// relies on. The central obligation is the near-node guarantee: when
// an iteration is split at points returned by RequestPartialProgress,
// no near node's edges may straddle a split, so concurrent kernel
// invocations on disjoint ranges can update near-node data without
// synchronization.
package links

import "github.com/llrt/pkg/tensor"

// Visitor is invoked once per edge. nearNode and farNode index the
// two components' node data; nearEdge and farEdge index the two link
// ends' edge data. edgeInfo is a pattern-specific small integer: the
// far node index for a dense link, the filter position for a local 2D
// link, the neighbor position for an adjacency list.
type Visitor func(nearNode, nearEdge, farNode, farEdge, edgeInfo int64)

// Iterator is the protocol every link type implements.
type Iterator interface {
	// Identifier names the link type.
	Identifier() string

	// CanConnectDimensions reports whether a component of dimensions
	// dim0 at end 0 can connect to a component of dimensions dim1 at
	// end 1.
	CanConnectDimensions(dim0, dim1 []int64) bool

	// DeduceComponentDimensions deduces the near component's
	// dimensions at the given end from the far component's
	// dimensions. Returns false if they cannot be deduced.
	DeduceComponentDimensions(dimF []int64, end int) ([]int64, bool)

	// SetDimensions informs the link about the dimensions of the two
	// components it connects.
	SetDimensions(dim0, dim1 []int64)

	// LinkEndSize returns the dimensions of the link-end data at the
	// given end, where dimN are the dimensions of that end's
	// component and dimF the other component's.
	LinkEndSize(dimN, dimF []int64, end int) []int64

	// MaxProgress returns the progress at which an iteration from the
	// given end is complete, typically the number of edges.
	MaxProgress(end int) int64

	// RequestPartialProgress returns the smallest progress level the
	// iterator can stop at that is >= requested. A link that cannot
	// split returns MaxProgress. Splitting happens only on whole
	// near-node boundaries.
	RequestPartialProgress(end int, requested int64) int64

	// Iterate invokes visit for every edge with progress in
	// [start, stop), from the perspective of the given end.
	Iterate(end int, start, stop int64, visit Visitor)
}

// EdgeStorageUser is the optional capability of link types that
// manage the data stored on their link ends, such as resizing it as
// edges are added or compacting it after removals. The network grants
// the two stores when the link is created.
type EdgeStorageUser interface {
	SetLinkData(end0, end1 tensor.Store)
}

func dimProduct(dims []int64) int64 {
	n := int64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

func copyDims(dims []int64) []int64 {
	return append([]int64(nil), dims...)
}

// lowerBound returns the index of the first element of arr >= target,
// or len(arr) if there is none.
func lowerBound(arr []int64, target int64) int {
	lo, hi := 0, len(arr)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if arr[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
