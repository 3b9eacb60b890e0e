package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSizesFromDimensions(t *testing.T) {
	tn := New[float32]([]int64{3, 4})
	assert.Equal(t, int64(12), tn.Len())
	assert.Equal(t, []int64{3, 4}, tn.Dimensions())
	assert.Equal(t, "float32", tn.ValueTypeName())
}

func TestResizePreservesPrefixAndZeroesGrowth(t *testing.T) {
	tn := New[int]([]int64{4})
	for i := range tn.Values {
		tn.Values[i] = i + 1
	}

	tn.Resize(2)
	assert.Equal(t, []int{1, 2}, tn.Values)

	// growing within capacity must zero the revived tail
	tn.Resize(4)
	assert.Equal(t, []int{1, 2, 0, 0}, tn.Values)

	tn.Resize(6)
	assert.Equal(t, []int{1, 2, 0, 0, 0, 0}, tn.Values)
	assert.Equal(t, []int64{6}, tn.Dimensions())
}

func TestMoveAndRefresh(t *testing.T) {
	tn := New[string]([]int64{3})
	tn.Values[0] = "a"
	tn.Values[2] = "c"

	tn.Move(2, 1)
	assert.Equal(t, "c", tn.Values[1])

	tn.Refresh(0)
	assert.Equal(t, "", tn.Values[0])
}

func TestFlatIndexRowMajor(t *testing.T) {
	tn := New[int]([]int64{2, 3})

	ix, err := tn.FlatIndex(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ix)

	// incrementing the last index advances the flat index by 1
	ix, err = tn.FlatIndex(0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ix)

	ix, err = tn.FlatIndex(1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), ix)

	_, err = tn.FlatIndex(2, 0)
	assert.Error(t, err)
	_, err = tn.FlatIndex(1)
	assert.Error(t, err)
}

func TestStoreInterface(t *testing.T) {
	var s Store = New[float64]([]int64{5})
	s.Resize(8)
	assert.Equal(t, int64(8), s.Len())
}
