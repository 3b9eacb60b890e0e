package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llrt/pkg/tensor"
)

func newTestAdjList(dim0, dim1 int64) (*AdjList, *tensor.Tensor[float32], *tensor.Tensor[float32]) {
	l := NewAdjList()
	end0 := tensor.New[float32]([]int64{0})
	end1 := tensor.New[float32]([]int64{0})
	l.SetLinkData(end0, end1)
	l.SetDimensions([]int64{dim0}, []int64{dim1})
	return l, end0, end1
}

func TestAdjListInsertAndIterate(t *testing.T) {
	l, end0, end1 := newTestAdjList(4, 4)
	l.InsertEdges([][2]int64{{0, 1}, {0, 2}, {2, 3}})

	assert.Equal(t, int64(3), l.MaxProgress(0))
	assert.Equal(t, int64(3), end0.Len())
	assert.Equal(t, int64(3), end1.Len())

	type visit struct{ nearNode, nearEdge, farNode, info int64 }
	var visits []visit
	l.Iterate(0, 0, 3, func(nearNode, nearEdge, farNode, farEdge, info int64) {
		assert.Equal(t, nearEdge, farEdge, "adjacency edges share one index per edge")
		visits = append(visits, visit{nearNode, nearEdge, farNode, info})
	})
	assert.Equal(t, []visit{
		{0, 0, 1, 0},
		{0, 1, 2, 1},
		{2, 2, 3, 0},
	}, visits)

	// from end 1 the same edges appear with ends swapped
	count := 0
	l.Iterate(1, 0, l.MaxProgress(1), func(nearNode, _, farNode, _, _ int64) {
		count++
		assert.Contains(t, [][2]int64{{1, 0}, {2, 0}, {3, 2}}, [2]int64{nearNode, farNode})
	})
	assert.Equal(t, 3, count)
}

func TestAdjListPartialProgressAlignsToNodes(t *testing.T) {
	l, _, _ := newTestAdjList(3, 3)
	// node 0 has two edges, node 1 has one, node 2 has two
	l.InsertEdges([][2]int64{{0, 0}, {0, 1}, {1, 1}, {2, 0}, {2, 2}})

	assert.Equal(t, int64(2), l.RequestPartialProgress(0, 1))
	assert.Equal(t, int64(2), l.RequestPartialProgress(0, 2))
	assert.Equal(t, int64(3), l.RequestPartialProgress(0, 3))
	assert.Equal(t, int64(5), l.RequestPartialProgress(0, 4))
	assert.Equal(t, int64(5), l.RequestPartialProgress(0, 99))

	// split iteration at an aligned point visits disjoint near nodes
	lowNodes := make(map[int64]bool)
	l.Iterate(0, 0, 2, func(nearNode, _, _, _, _ int64) { lowNodes[nearNode] = true })
	l.Iterate(0, 2, 5, func(nearNode, _, _, _, _ int64) {
		assert.False(t, lowNodes[nearNode])
	})
}

func TestAdjListRemoveDestructsInPlace(t *testing.T) {
	l, end0, _ := newTestAdjList(4, 4)
	l.InsertEdges([][2]int64{{0, 1}, {1, 2}, {2, 3}})
	end0.Values[0] = 10
	end0.Values[1] = 20
	end0.Values[2] = 30

	l.RemoveEdges([][2]int64{{1, 2}})

	assert.Equal(t, int64(2), l.MaxProgress(0))
	// the survivors keep their indices and values
	assert.Equal(t, float32(10), end0.Values[0])
	assert.Equal(t, float32(0), end0.Values[1])
	assert.Equal(t, float32(30), end0.Values[2])

	var seen [][2]int64
	l.Iterate(0, 0, l.MaxProgress(0), func(nearNode, nearEdge, farNode, _, _ int64) {
		seen = append(seen, [2]int64{nearNode, farNode})
	})
	assert.Equal(t, [][2]int64{{0, 1}, {2, 3}}, seen)
}

func TestAdjListDefragmentRenumbers(t *testing.T) {
	l, end0, end1 := newTestAdjList(4, 4)
	l.InsertEdges([][2]int64{{0, 1}, {1, 2}, {2, 3}, {3, 0}})
	for i := range end0.Values {
		end0.Values[i] = float32(100 + i)
		end1.Values[i] = float32(200 + i)
	}

	l.RemoveEdges([][2]int64{{0, 1}, {2, 3}})
	l.DefragmentEdges()

	require.Equal(t, int64(2), end0.Len())
	assert.Equal(t, []float32{101, 103}, end0.Values)
	assert.Equal(t, []float32{201, 203}, end1.Values)

	// edge indices are renumbered consistently
	l.Iterate(0, 0, l.MaxProgress(0), func(nearNode, nearEdge, farNode, _, _ int64) {
		assert.Less(t, nearEdge, int64(2))
	})
}

func TestAdjListCapabilities(t *testing.T) {
	l := NewAdjList()
	assert.True(t, l.CanConnectDimensions([]int64{3}, []int64{9, 9}))
	_, ok := l.DeduceComponentDimensions([]int64{3}, 0)
	assert.False(t, ok)
	assert.Equal(t, []int64{0}, l.LinkEndSize([]int64{3}, []int64{4}, 0))
	assert.Zero(t, l.MaxProgress(0))
	assert.Zero(t, l.RequestPartialProgress(0, 5))
}
