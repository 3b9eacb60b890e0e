package llrt

import (
	"fmt"

	"github.com/llrt/pkg/links"
	"github.com/llrt/pkg/tensor"
)

// LinkEnd is one end of a Link: a component reference plus the edge
// data owned by that component's side. Edge data is often several
// times larger than the component's node data.
type LinkEnd struct {
	// Data holds the per-edge values on this end; nil if the end
	// carries no data.
	Data tensor.Store

	// Cmp is the component on this end.
	Cmp *Component

	// Link is the owning link.
	Link *Link

	// WhichEnd is 0 or 1.
	WhichEnd int

	axon bool
}

// IsAxon reports whether this end is the axon. By default end 0 is
// the axon and end 1 the dendrite; swapAxon at connect time flips
// that. Whether a link operation cares is entirely optional.
func (e *LinkEnd) IsAxon() bool {
	return e.axon
}

// IsDendrite reports whether this end is the dendrite.
func (e *LinkEnd) IsDendrite() bool {
	return !e.axon
}

// Link joins two components with a connectivity pattern. The pattern
// lives in the Iter; the Link adds the two ends' edge data and
// identity. Connectivity is immutable after construction (an
// adjacency list's content may be edited, but only while no kernel
// is running on the link).
type Link struct {
	Ends [2]LinkEnd
	Iter links.Iterator
	Name string
	ID   uint64
}

// MaxProgress returns the total iteration work from the given end.
func (l *Link) MaxProgress(end int) int64 {
	return l.Iter.MaxProgress(end)
}

// EndName names one end of the link for performance reports.
func (l *Link) EndName(end int) string {
	return fmt.Sprintf("%s_%d", l.Name, end)
}

func newLink(c0 *Component, it links.Iterator, c1 *Component, swapAxon bool, id uint64, end0Data, end1Data tensor.Store) *Link {
	l := &Link{
		Iter: it,
		ID:   id,
		Name: fmt.Sprintf("%s_%d", it.Identifier(), id),
	}
	l.Ends[0] = LinkEnd{Data: end0Data, Cmp: c0, Link: l, WhichEnd: 0, axon: !swapAxon}
	l.Ends[1] = LinkEnd{Data: end1Data, Cmp: c1, Link: l, WhichEnd: 1, axon: swapAxon}

	if user, ok := it.(links.EdgeStorageUser); ok {
		user.SetLinkData(end0Data, end1Data)
	}
	it.SetDimensions(c0.dims, c1.dims)
	return l
}
