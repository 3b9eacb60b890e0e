package links

import (
	"github.com/llrt/pkg/collections"
	"github.com/llrt/pkg/tensor"
)

// AdjList connects nodes according to explicit adjacency lists.
//
// Populate it after connecting:
//
//	adj := links.NewAdjList()
//	llrt.Connect[float32, float32](c1, c2, adj)
//	adj.InsertEdges([][2]int64{{10, 12}, {13, 3}, {5, 3}})
//
// RemoveEdges destructs edges in place without moving the survivors;
// DefragmentEdges optionally compacts the edge data afterwards, which
// renumbers the remaining edges. Do not change the edges while a
// kernel is running on the link; that is not threadsafe.
type AdjList struct {
	dim0, dim1 []int64

	end0Adjacency [][]neighbor
	end1Adjacency [][]neighbor

	end0Data, end1Data tensor.Store

	// edgeIxBound is the size of the edge data arrays. Larger than
	// the live edge count if edges were removed since the last
	// defragment.
	edgeIxBound int64

	// cumulative count of edges incident to nodes with index <= i
	end0CumEdgeCounts []int64
	end1CumEdgeCounts []int64

	// destructed marks edge indices whose data has been destructed
	destructed *collections.Bitset

	dirty bool
}

// neighbor records one incident edge: the shared edge index and the
// node at the other end.
type neighbor struct {
	edgeIx  int64
	farNode int64
}

// NewAdjList creates an empty adjacency-list link type.
func NewAdjList() *AdjList {
	return &AdjList{destructed: collections.NewBitset(64)}
}

// Identifier names the link type.
func (l *AdjList) Identifier() string {
	return "AdjList"
}

// CanConnectDimensions accepts any pair of dimensions.
func (l *AdjList) CanConnectDimensions(dim0, dim1 []int64) bool {
	return true
}

// DeduceComponentDimensions cannot deduce anything.
func (l *AdjList) DeduceComponentDimensions(dimF []int64, end int) ([]int64, bool) {
	return nil, false
}

// SetDimensions sizes the adjacency tables to the node counts.
func (l *AdjList) SetDimensions(dim0, dim1 []int64) {
	l.dim0 = copyDims(dim0)
	l.dim1 = copyDims(dim1)
	l.end0Adjacency = make([][]neighbor, dimProduct(dim0))
	l.end1Adjacency = make([][]neighbor, dimProduct(dim1))
}

// SetLinkData grants the link its two edge stores. Edge inserts and
// removals go through them.
func (l *AdjList) SetLinkData(end0, end1 tensor.Store) {
	l.end0Data = end0
	l.end1Data = end1
}

// LinkEndSize starts empty; InsertEdges grows the edge data.
func (l *AdjList) LinkEndSize(dimN, dimF []int64, end int) []int64 {
	return []int64{0}
}

// InsertEdges adds edges given as {end-0 node, end-1 node} pairs.
// Edge data may be reallocated, but existing edge indices are stable.
func (l *AdjList) InsertEdges(nodePairs [][2]int64) {
	for _, pair := range nodePairs {
		end0Ix, end1Ix := pair[0], pair[1]
		l.end0Adjacency[end0Ix] = append(l.end0Adjacency[end0Ix], neighbor{edgeIx: l.edgeIxBound, farNode: end1Ix})
		l.end1Adjacency[end1Ix] = append(l.end1Adjacency[end1Ix], neighbor{edgeIx: l.edgeIxBound, farNode: end0Ix})
		l.edgeIxBound++
	}
	if l.end0Data != nil {
		l.end0Data.Resize(l.edgeIxBound)
	}
	if l.end1Data != nil {
		l.end1Data.Resize(l.edgeIxBound)
	}
	l.dirty = true
}

func (l *AdjList) destructEdgeData(edgeIx int64) {
	if l.end0Data != nil {
		l.end0Data.Refresh(edgeIx)
	}
	if l.end1Data != nil {
		l.end1Data.Refresh(edgeIx)
	}
	l.destructed.Set(int(edgeIx))
}

// RemoveEdges removes edges given as {end-0 node, end-1 node} pairs.
// Removed edges are destructed in place; indices of the remaining
// edges stay valid.
func (l *AdjList) RemoveEdges(nodePairs [][2]int64) {
	for _, pair := range nodePairs {
		end0Ix, end1Ix := pair[0], pair[1]
		adj0 := l.end0Adjacency[end0Ix]
		for i := range adj0 {
			if adj0[i].farNode == end1Ix {
				l.destructEdgeData(adj0[i].edgeIx)
				l.end0Adjacency[end0Ix] = append(adj0[:i], adj0[i+1:]...)
				break
			}
		}
		adj1 := l.end1Adjacency[end1Ix]
		for i := range adj1 {
			if adj1[i].farNode == end0Ix {
				l.end1Adjacency[end1Ix] = append(adj1[:i], adj1[i+1:]...)
				break
			}
		}
	}
	l.dirty = true
}

// scratch for defragment passes; the partial sums are only needed
// within one call
var partialSumsPool = collections.NewSlicePool[int64](1024)

// DefragmentEdges compacts the edge data by copying live edges over
// removed ones, reducing the memory footprint. This renumbers the
// remaining edges.
func (l *AdjList) DefragmentEdges() {
	scratch := partialSumsPool.Get()
	defer partialSumsPool.Put(scratch)

	partialSums := *scratch
	edgeCount := int64(0)
	for i := int64(0); i < l.edgeIxBound; i++ {
		if !l.destructed.Test(int(i)) {
			edgeCount++
		}
		partialSums = append(partialSums, edgeCount)
	}
	*scratch = partialSums
	// partialSums[i] is the number of live edges at indices 0..i, so
	// a live edge i gets new index partialSums[i]-1.
	for _, adj := range l.end0Adjacency {
		for i := range adj {
			adj[i].edgeIx = partialSums[adj[i].edgeIx] - 1
		}
	}
	for _, adj := range l.end1Adjacency {
		for i := range adj {
			adj[i].edgeIx = partialSums[adj[i].edgeIx] - 1
		}
	}

	moveLive := func(store tensor.Store) {
		if store == nil {
			return
		}
		j := int64(0)
		for i := int64(0); i < store.Len(); i++ {
			if partialSums[i] > j {
				j = partialSums[i]
				store.Move(i, partialSums[i]-1)
			}
		}
		store.Resize(edgeCount)
	}
	moveLive(l.end0Data)
	moveLive(l.end1Data)

	l.edgeIxBound = edgeCount
	l.destructed.ClearAll()
	l.dirty = true
}

// resetCumulativeEdgeCounts rebuilds the cumulative edge counts after
// edge edits.
func (l *AdjList) resetCumulativeEdgeCounts() {
	if !l.dirty {
		return
	}
	rebuild := func(adjacency [][]neighbor) []int64 {
		counts := make([]int64, len(adjacency))
		count := int64(0)
		for i := range adjacency {
			count += int64(len(adjacency[i]))
			counts[i] = count
		}
		return counts
	}
	l.end0CumEdgeCounts = rebuild(l.end0Adjacency)
	l.end1CumEdgeCounts = rebuild(l.end1Adjacency)
	l.dirty = false
}

// MaxProgress is the live edge count.
func (l *AdjList) MaxProgress(end int) int64 {
	l.resetCumulativeEdgeCounts()
	if len(l.end0CumEdgeCounts) == 0 {
		return 0
	}
	return l.end0CumEdgeCounts[len(l.end0CumEdgeCounts)-1]
}

// RequestPartialProgress rounds requested up to the end of the
// enclosing near node's edge run.
func (l *AdjList) RequestPartialProgress(end int, requested int64) int64 {
	l.resetCumulativeEdgeCounts()
	arr := l.end0CumEdgeCounts
	if end == 1 {
		arr = l.end1CumEdgeCounts
	}
	if len(arr) == 0 {
		return 0
	}
	ix := lowerBound(arr, requested)
	if ix == len(arr) {
		return arr[len(arr)-1]
	}
	return arr[ix]
}

// Iterate visits every edge with progress in [start, stop), from the
// given end. Bounds must be near-node aligned. edgeInfo is the
// position of the edge within the near node's adjacency list.
func (l *AdjList) Iterate(end int, start, stop int64, visit Visitor) {
	l.resetCumulativeEdgeCounts()
	adj := l.end0Adjacency
	arr := l.end0CumEdgeCounts
	if end == 1 {
		adj = l.end1Adjacency
		arr = l.end1CumEdgeCounts
	}

	progress := start
	ix := lowerBound(arr, start+1)
	for ix < len(adj) {
		progress += int64(len(adj[ix]))
		if progress > stop {
			break
		}
		for f, n := range adj[ix] {
			visit(int64(ix), n.edgeIx, n.farNode, n.edgeIx, int64(f))
		}
		ix++
	}
}
