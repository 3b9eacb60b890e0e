package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDenseMatVec(t *testing.T) {
	l := NewDense()
	l.SetDimensions([]int64{3}, []int64{2})

	weights := []float32{1, 2, 3, 4, 5, 6}
	inputs := []float32{7, 8, 9}
	out := make([]float32, 2)

	require.Equal(t, int64(6), l.MaxProgress(1))
	l.Iterate(1, 0, 6, func(nearNode, nearEdge, farNode, _, _ int64) {
		out[nearNode] += weights[nearEdge] * inputs[farNode]
	})
	assert.Equal(t, []float32{50, 122}, out)
}

func TestDenseMatVecTransposed(t *testing.T) {
	l := NewDense()
	l.SetDimensions([]int64{3}, []int64{2})

	weights := []float32{1, 2, 3, 4, 5, 6}
	inputs := []float32{7, 8}
	out := make([]float32, 3)

	require.Equal(t, int64(6), l.MaxProgress(0))
	l.Iterate(0, 0, 6, func(nearNode, nearEdge, farNode, _, _ int64) {
		out[nearNode] += weights[nearEdge] * inputs[farNode]
	})
	assert.Equal(t, []float32{23, 53, 83}, out)
}

func TestDensePartialProgressAlignsToNearNodes(t *testing.T) {
	l := NewDense()
	l.SetDimensions([]int64{5}, []int64{3})

	// from end 0 the far node count is 3, so splits land on
	// multiples of 3
	assert.Equal(t, int64(3), l.RequestPartialProgress(0, 1))
	assert.Equal(t, int64(3), l.RequestPartialProgress(0, 3))
	assert.Equal(t, int64(6), l.RequestPartialProgress(0, 4))
	assert.Equal(t, int64(15), l.RequestPartialProgress(0, 14))

	// from end 1 the far node count is 5
	assert.Equal(t, int64(5), l.RequestPartialProgress(1, 2))
	assert.Equal(t, int64(10), l.RequestPartialProgress(1, 6))
}

func TestDenseSplitRoundTrip(t *testing.T) {
	l := NewDense()
	l.SetDimensions([]int64{4}, []int64{3})

	type edge struct{ nearNode, nearEdge, farNode, farEdge, info int64 }
	collect := func(ranges [][2]int64, end int) map[edge]int {
		seen := make(map[edge]int)
		for _, r := range ranges {
			l.Iterate(end, r[0], r[1], func(nearNode, nearEdge, farNode, farEdge, info int64) {
				seen[edge{nearNode, nearEdge, farNode, farEdge, info}]++
			})
		}
		return seen
	}

	for end := 0; end < 2; end++ {
		max := l.MaxProgress(end)
		whole := collect([][2]int64{{0, max}}, end)

		mid := l.RequestPartialProgress(end, max/2)
		split := collect([][2]int64{{0, mid}, {mid, max}}, end)
		assert.Equal(t, whole, split, "end %d: split iteration must visit the same multiset", end)

		// split bounds separate near-node sets
		nearLow := make(map[int64]bool)
		l.Iterate(end, 0, mid, func(nearNode, _, _, _, _ int64) { nearLow[nearNode] = true })
		l.Iterate(end, mid, max, func(nearNode, _, _, _, _ int64) {
			assert.False(t, nearLow[nearNode], "near node %d visited on both sides of the split", nearNode)
		})
	}
}

func TestDenseCapabilities(t *testing.T) {
	l := NewDense()
	assert.True(t, l.CanConnectDimensions([]int64{3}, []int64{7, 7}))
	_, ok := l.DeduceComponentDimensions([]int64{3}, 1)
	assert.False(t, ok)
	assert.Equal(t, []int64{4, 6}, l.LinkEndSize([]int64{4}, []int64{2, 3}, 0))
}
