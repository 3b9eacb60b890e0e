// Package tensor provides typed node and edge storage for network
// components and link ends.
//
// A Tensor is a dense, fixed-shape, row-major array of values. The
// scheduler and the link types never need to know the element type;
// they manipulate storage through the narrow Store interface, which
// supports exactly the operations a link needs to manage edge data it
// owns (resizing, compacting, destructing in place).
package tensor

import (
	"fmt"
	"strings"
)

// Store is the type-erased view of a Tensor. Link types that manage
// their own edge storage (adjacency lists) borrow a Store per link
// end and use it to resize, move and reset entries without knowing
// the element type.
type Store interface {
	// Resize grows or shrinks the value array to n elements.
	// New elements are zero values.
	Resize(n int64)

	// Len returns the current number of elements.
	Len() int64

	// Move overwrites the element at to with the element at from.
	Move(from, to int64)

	// Refresh resets the element at i to the zero value.
	Refresh(i int64)

	// Dimensions returns the shape. A Store managed entirely through
	// Resize reports a single dimension.
	Dimensions() []int64

	// ValueTypeName names the element type, for display.
	ValueTypeName() string
}

// Tensor is a dense array of T with a row-major shape.
type Tensor[T any] struct {
	Values []T
	dims   []int64
}

// New creates a Tensor with the given dimensions, filled with zero
// values.
func New[T any](dims []int64) *Tensor[T] {
	t := &Tensor[T]{dims: append([]int64(nil), dims...)}
	t.Values = make([]T, NumValues(dims))
	return t
}

// NumValues returns the number of elements implied by dims.
func NumValues(dims []int64) int64 {
	n := int64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

// Dimensions returns the shape.
func (t *Tensor[T]) Dimensions() []int64 {
	return t.dims
}

// Len returns the number of elements.
func (t *Tensor[T]) Len() int64 {
	return int64(len(t.Values))
}

// Resize grows or shrinks the value array to n elements. The shape
// collapses to a single dimension of length n.
func (t *Tensor[T]) Resize(n int64) {
	switch {
	case n <= int64(len(t.Values)):
		t.Values = t.Values[:n]
	case n <= int64(cap(t.Values)):
		old := int64(len(t.Values))
		t.Values = t.Values[:n]
		var zero T
		for i := old; i < n; i++ {
			t.Values[i] = zero
		}
	default:
		grown := make([]T, n)
		copy(grown, t.Values)
		t.Values = grown
	}
	t.dims = []int64{n}
}

// Move overwrites the element at to with the element at from.
func (t *Tensor[T]) Move(from, to int64) {
	t.Values[to] = t.Values[from]
}

// Refresh resets the element at i to the zero value.
func (t *Tensor[T]) Refresh(i int64) {
	var zero T
	t.Values[i] = zero
}

// ValueTypeName names the element type.
func (t *Tensor[T]) ValueTypeName() string {
	var zero T
	name := fmt.Sprintf("%T", zero)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Fill sets every element to v.
func (t *Tensor[T]) Fill(v T) {
	for i := range t.Values {
		t.Values[i] = v
	}
}

// FlatIndex flattens a multi-dimensional index into an index into
// Values. Indices are row-major: an increment in the last index
// advances the flat index by 1. This is the specification of what
// the indices mean; iteration hot paths do their own arithmetic.
func (t *Tensor[T]) FlatIndex(indices ...int64) (int64, error) {
	if len(indices) != len(t.dims) {
		return 0, fmt.Errorf("tensor: got %d indices for %d dimensions", len(indices), len(t.dims))
	}
	flat := int64(0)
	mult := int64(1)
	for i := len(indices) - 1; i >= 0; i-- {
		ix := indices[i]
		if ix < 0 || ix >= t.dims[i] {
			return 0, fmt.Errorf("tensor: index %d out of range for dimension %d (size %d)", ix, i, t.dims[i])
		}
		flat += ix * mult
		mult *= t.dims[i]
	}
	return flat, nil
}
