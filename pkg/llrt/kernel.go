// Package llrt is the user-facing surface of the framework: networks
// of components joined by links, and kernels dispatched across them.
//
// A kernel is applied at every edge visited by a link iteration. A
// kernel with mutable state of its own implements Cloner so every
// work chunk gets a private clone, and Merger so the clones can be
// reduced back into the original after the barrier. Kernels that only
// write near-node data need neither: the near-node guarantee makes
// those writes safe without synchronization.
package llrt

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"strings"
)

// Kernel is a user-supplied operation applied at every visited edge.
// Visit receives the near and far node indices into the component
// data, the near and far edge indices into the link-end data, and the
// pattern-specific edgeInfo.
type Kernel interface {
	Visit(nearNode, nearEdge, farNode, farEdge, edgeInfo int64)
}

// Cloner is implemented by kernels with per-chunk mutable state.
// CloneKernel returns a fresh kernel whose state accumulates
// independently; each work chunk gets its own clone.
type Cloner interface {
	CloneKernel() Kernel
}

// Merger is implemented by kernels whose per-chunk state is reduced
// after a barrier: MergeKernel folds one clone's state into the
// original. Merging order is unspecified, so the reduction should be
// associative and commutative.
type Merger interface {
	MergeKernel(clone Kernel)
}

// VisitorFunc adapts a bare function to a stateless Kernel.
type VisitorFunc func(nearNode, nearEdge, farNode, farEdge, edgeInfo int64)

// Visit implements Kernel.
func (f VisitorFunc) Visit(nearNode, nearEdge, farNode, farEdge, edgeInfo int64) {
	f(nearNode, nearEdge, farNode, farEdge, edgeInfo)
}

// kernelName derives a short display name from the kernel's type.
func kernelName(k Kernel) string {
	name := reflect.TypeOf(k).String()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if len(name) < 20 {
		return name
	}
	// probably an anonymous type: long and garbled, so just number it
	h := fnv.New64a()
	h.Write([]byte(name))
	return fmt.Sprintf("kernel_%d", h.Sum64()%100000)
}

// opTypeIndex derives the stable performance-tracking key for a
// (kernel type, link iterator type, end) combination.
func opTypeIndex(k Kernel, l *Link, end int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(reflect.TypeOf(k).String()))
	h.Write([]byte{'|'})
	h.Write([]byte(reflect.TypeOf(l.Iter).String()))
	h.Write([]byte{'|', byte('0' + end)})
	return h.Sum64()
}
