package llrt

import (
	"fmt"
	"reflect"
	"strings"

	apperrors "github.com/llrt/pkg/errors"
	"github.com/llrt/pkg/links"
	"github.com/llrt/pkg/tensor"
)

// Component owns a fixed-size typed array of node data and the links
// it participates in. Its id is the mutual-exclusion key the
// scheduler uses: two operations with the same near component never
// run in the same barrier.
type Component struct {
	// Links[0] are links where this component is at position 0,
	// Links[1] where it is at position 1.
	Links [2][]*Link

	// SelfLink is a Same link looping back to this component; node
	// operations iterate over it.
	SelfLink *Link

	// Data is the node data; nil for data-less components.
	Data tensor.Store

	Name string
	ID   int

	net  *Network
	dims []int64
}

// Dimensions returns the component's shape.
func (c *Component) Dimensions() []int64 {
	return c.dims
}

// DataSize returns the node count.
func (c *Component) DataSize() int64 {
	return tensor.NumValues(c.dims)
}

// DisplayName shows the name and dimensions, e.g. "float32_1(3x3)".
func (c *Component) DisplayName() string {
	parts := make([]string, len(c.dims))
	for i, d := range c.dims {
		parts[i] = fmt.Sprint(d)
	}
	return c.Name + "(" + strings.Join(parts, "x") + ")"
}

// Network returns the owning network.
func (c *Component) Network() *Network {
	return c.net
}

func (n *Network) addComponent(data tensor.Store, typeName string, dims []int64) *Component {
	n.cmpSeq++
	c := &Component{
		Data: data,
		ID:   n.cmpSeq,
		net:  n,
		dims: append([]int64(nil), dims...),
	}
	c.Name = fmt.Sprintf("%s_%d", typeName, len(n.Components)+1)
	n.linkSeq++
	c.SelfLink = newLink(c, links.NewSame(), c, false, n.linkSeq, nil, nil)
	n.Components = append(n.Components, c)
	return c
}

// AddComponent creates a component whose nodes are values of type N.
func AddComponent[N any](n *Network, dims ...int64) *Component {
	var zero N
	return n.addComponent(tensor.New[N](dims), shortTypeName(reflect.TypeOf(zero)), dims)
}

// AddComponentNoData creates a component that carries no node data,
// only shape and links.
func AddComponentNoData(n *Network, dims ...int64) *Component {
	return n.addComponent(nil, "NoData", dims)
}

func shortTypeName(t reflect.Type) string {
	if t == nil {
		return "NoData"
	}
	name := t.String()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// LinkOption adjusts how Connect wires a new link.
type LinkOption func(*linkConfig)

type linkConfig struct {
	swapEnds bool
	swapAxon bool
}

// SwapEnds puts the receiving component at end 1 of the new link
// instead of end 0.
func SwapEnds() LinkOption {
	return func(cfg *linkConfig) { cfg.swapEnds = true }
}

// SwapAxon makes end 0 the dendrite and end 1 the axon.
func SwapAxon() LinkOption {
	return func(cfg *linkConfig) { cfg.swapAxon = true }
}

// Connect joins c to other with the given link type. c sits at end 0
// and other at end 1 unless SwapEnds is given. E0 and E1 are the edge
// data types of the two ends; use struct{} for a data-less end.
// Returns an INVALID_TOPOLOGY error if the link type rejects the
// component dimensions.
func Connect[E0, E1 any](c *Component, other *Component, it links.Iterator, opts ...LinkOption) (*Link, error) {
	var cfg linkConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	c0, c1 := c, other
	if cfg.swapEnds {
		c0, c1 = other, c
	}
	if !it.CanConnectDimensions(c0.dims, c1.dims) {
		return nil, apperrors.Newf(apperrors.CodeInvalidTopology,
			"link type %s can't connect %v to %v", it.Identifier(), c0.dims, c1.dims)
	}

	n := c.net
	end0Data := tensor.New[E0](it.LinkEndSize(c0.dims, c1.dims, 0))
	end1Data := tensor.New[E1](it.LinkEndSize(c1.dims, c0.dims, 1))
	n.linkSeq++
	l := newLink(c0, it, c1, cfg.swapAxon, n.linkSeq, end0Data, end1Data)
	c0.Links[0] = append(c0.Links[0], l)
	c1.Links[1] = append(c1.Links[1], l)
	return l, nil
}

// ConnectNew creates a new component of node type N with the given
// dimensions, linked to c by the given link type, and adds it to the
// network.
func ConnectNew[E0, E1, N any](c *Component, it links.Iterator, dims []int64, opts ...LinkOption) (*Component, error) {
	var cfg linkConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	d0, d1 := c.dims, dims
	if cfg.swapEnds {
		d0, d1 = dims, c.dims
	}
	if !it.CanConnectDimensions(d0, d1) {
		return nil, apperrors.Newf(apperrors.CodeInvalidTopology,
			"link type %s can't connect %v to %v", it.Identifier(), d0, d1)
	}

	other := AddComponent[N](c.net, dims...)
	if _, err := Connect[E0, E1](c, other, it, opts...); err != nil {
		return nil, err
	}
	return other, nil
}

// ConnectDeduce is ConnectNew with the new component's dimensions
// deduced from the link type and c's dimensions.
func ConnectDeduce[E0, E1, N any](c *Component, it links.Iterator, opts ...LinkOption) (*Component, error) {
	var cfg linkConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	newEnd := 1
	if cfg.swapEnds {
		newEnd = 0
	}
	dims, ok := it.DeduceComponentDimensions(c.dims, newEnd)
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeInvalidTopology,
			"link type %s couldn't deduce dimensions of end %d when the far component has dimensions %v",
			it.Identifier(), newEnd, c.dims)
	}
	return ConnectNew[E0, E1, N](c, it, dims, opts...)
}

// Data returns the node values of a component as a typed slice.
// Panics if T does not match the component's node type.
func Data[T any](c *Component) []T {
	t, ok := c.Data.(*tensor.Tensor[T])
	if !ok {
		panic(apperrors.Newf(apperrors.CodeInvalidInput,
			"component %s does not hold %T node data", c.Name, *new(T)))
	}
	return t.Values
}

// EndData returns the edge values of a LinkEnd as a typed slice.
func EndData[T any](e *LinkEnd) []T {
	return EdgeData[T](e.Link, e.WhichEnd)
}

// EdgeData returns the edge values of a link end as a typed slice.
// Fetch the slice after the topology has settled: edge edits on an
// adjacency list may reallocate the underlying storage.
func EdgeData[T any](l *Link, end int) []T {
	t, ok := l.Ends[end].Data.(*tensor.Tensor[T])
	if !ok {
		panic(apperrors.Newf(apperrors.CodeInvalidInput,
			"link %s end %d does not hold %T edge data", l.Name, end, *new(T)))
	}
	return t.Values
}
