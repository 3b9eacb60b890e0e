package llrt

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llrt/pkg/links"
)

func denseFixture(t *testing.T, workers int) (*Network, *Component, *Component, *Link) {
	t.Helper()
	net := New(workers)
	t.Cleanup(net.Close)

	a := AddComponent[float32](net, 3)
	b, err := ConnectNew[float32, float32, float32](a, links.NewDense(), []int64{2})
	require.NoError(t, err)
	link := b.Links[1][0]

	copy(Data[float32](a), []float32{7, 8, 9})
	copy(EdgeData[float32](link, 1), []float32{1, 2, 3, 4, 5, 6})
	return net, a, b, link
}

func TestProcessLinkInline(t *testing.T) {
	_, a, b, link := denseFixture(t, 0)

	in := Data[float32](a)
	out := Data[float32](b)
	wts := EdgeData[float32](link, 1)

	batchNum := ProcessLink(link, 1, VisitorFunc(func(nearNode, nearEdge, farNode, _, _ int64) {
		out[nearNode] += wts[nearEdge] * in[farNode]
	}))
	assert.Equal(t, uint64(0), batchNum, "inline execution returns the sentinel batch")
	assert.Equal(t, []float32{50, 122}, out)
}

func TestProcessLinkParallel(t *testing.T) {
	net, a, b, link := denseFixture(t, 8)

	in := Data[float32](a)
	out := Data[float32](b)
	wts := EdgeData[float32](link, 1)

	batchNum := ProcessLink(link, 1, VisitorFunc(func(nearNode, nearEdge, farNode, _, _ int64) {
		out[nearNode] += wts[nearEdge] * in[farNode]
	}), Parallel)
	assert.Greater(t, batchNum, uint64(0))
	assert.Equal(t, []float32{50, 122}, out)

	// transposed direction: accumulate into the 3-node side
	copy(Data[float32](a), []float32{0, 0, 0})
	copy(Data[float32](b), []float32{7, 8})
	wts0 := EdgeData[float32](link, 0)
	copy(wts0, []float32{1, 2, 3, 4, 5, 6})
	bData := Data[float32](b)

	ProcessLink(link, 0, VisitorFunc(func(nearNode, nearEdge, farNode, _, _ int64) {
		in[nearNode] += wts0[nearEdge] * bData[farNode]
	}), Parallel)
	net.FinishBatches()
	assert.Equal(t, []float32{23, 53, 83}, Data[float32](a))
}

func TestProcessLinkNonBlockingAndFinishBatch(t *testing.T) {
	net, a, b, link := denseFixture(t, 4)

	in := Data[float32](a)
	out := Data[float32](b)
	wts := EdgeData[float32](link, 1)

	batchNum := ProcessLink(link, 1, VisitorFunc(func(nearNode, nearEdge, farNode, _, _ int64) {
		out[nearNode] += wts[nearEdge] * in[farNode]
	}), ParallelNonBlocking)
	require.Greater(t, batchNum, uint64(0))

	net.FinishBatch(batchNum)
	assert.Equal(t, []float32{50, 122}, out)
}

func TestParallelPartSealsOnNextSubmission(t *testing.T) {
	net, a, b, link := denseFixture(t, 4)

	in := Data[float32](a)
	out := Data[float32](b)
	wts := EdgeData[float32](link, 1)

	accumulate := VisitorFunc(func(nearNode, nearEdge, farNode, _, _ int64) {
		out[nearNode] += wts[nearEdge] * in[farNode]
	})
	partNum := ProcessLink(link, 1, accumulate, ParallelPart)
	// the part and the sealing submission share one batch
	sealNum := ProcessLink(link.Ends[0].Cmp.SelfLink, 0, VisitorFunc(func(_, _, _, _, _ int64) {}), Parallel)
	assert.Equal(t, partNum, sealNum)

	net.FinishBatches()
	assert.Equal(t, []float32{50, 122}, out)
}

// countKernel counts visited edges across chunk clones.
type countKernel struct {
	total *int64
	local int64
}

func (k *countKernel) Visit(_, _, _, _, _ int64) { k.local++ }
func (k *countKernel) CloneKernel() Kernel       { return &countKernel{total: k.total} }
func (k *countKernel) MergeKernel(clone Kernel)  { *k.total += clone.(*countKernel).local }

func TestMergerKernelReduction(t *testing.T) {
	_, _, _, link := denseFixture(t, 4)

	var total int64
	ProcessLink(link, 1, &countKernel{total: &total}, Parallel)
	assert.Equal(t, int64(6), total, "every edge counted exactly once across clones")
}

// plainCountKernel relies on WithCombiner instead of Merger.
type plainCountKernel struct {
	local int64
}

func (k *plainCountKernel) Visit(_, _, _, _, _ int64) { k.local++ }
func (k *plainCountKernel) CloneKernel() Kernel       { return &plainCountKernel{} }

func TestCombinerOption(t *testing.T) {
	_, _, _, link := denseFixture(t, 4)

	var total int64
	k := &plainCountKernel{}
	ProcessLink(link, 1, k, Parallel, WithCombiner(func(orig, clone Kernel) {
		total += clone.(*plainCountKernel).local
	}))
	assert.Equal(t, int64(6), total)
}

func TestProcessCmp(t *testing.T) {
	net := New(4)
	defer net.Close()

	c := AddComponent[float32](net, 1000)
	data := Data[float32](c)
	ProcessCmp(c, VisitorFunc(func(nearNode, _, _, _, _ int64) {
		data[nearNode] = float32(nearNode)
	}), Parallel)

	assert.Equal(t, float32(0), data[0])
	assert.Equal(t, float32(999), data[999])
}

func TestProcessNetLinksSelectors(t *testing.T) {
	net := New(0)
	defer net.Close()

	a := AddComponent[float32](net, 3)
	b, err := ConnectNew[float32, float32, float32](a, links.NewDense(), []int64{2})
	require.NoError(t, err)

	countEnds := func(opts ...Option) (int32, map[*Component]bool) {
		var factoryCalls atomic.Int32
		nearCmps := make(map[*Component]bool)
		ProcessNetLinks(net, func(e *LinkEnd) Kernel {
			factoryCalls.Add(1)
			nearCmps[e.Cmp] = true
			return VisitorFunc(func(_, _, _, _, _ int64) {})
		}, opts...)
		return factoryCalls.Load(), nearCmps
	}

	// an unfiltered sweep runs the link once per end
	n, cmps := countEnds()
	assert.Equal(t, int32(2), n)
	assert.True(t, cmps[a] && cmps[b])

	// end 0 is the axon by default
	n, cmps = countEnds(Axons)
	assert.Equal(t, int32(1), n)
	assert.True(t, cmps[a])

	n, cmps = countEnds(Dendrites)
	assert.Equal(t, int32(1), n)
	assert.True(t, cmps[b])

	// near filter picks the near component, far filter the opposite end
	n, cmps = countEnds(WithNearName(a.Name))
	assert.Equal(t, int32(1), n)
	assert.True(t, cmps[a])

	n, cmps = countEnds(WithFarName(a.Name))
	assert.Equal(t, int32(1), n)
	assert.True(t, cmps[b])

	// selectors AND together
	n, _ = countEnds(Axons, WithFarName(a.Name))
	assert.Equal(t, int32(0), n)
}

func TestSwapAxonFlipsSelectors(t *testing.T) {
	net := New(0)
	defer net.Close()

	a := AddComponent[float32](net, 3)
	_, err := ConnectNew[float32, float32, float32](a, links.NewDense(), []int64{2}, SwapAxon())
	require.NoError(t, err)

	link := a.Links[0][0]
	assert.True(t, link.Ends[1].IsAxon())
	assert.True(t, link.Ends[0].IsDendrite())
}
