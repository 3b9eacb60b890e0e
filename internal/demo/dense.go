package demo

import (
	"github.com/llrt/pkg/links"
	"github.com/llrt/pkg/llrt"
)

// RunDense wires two components with a dense link, loads the given
// weights and inputs, and accumulates weighted inputs into the
// outputs from end 1: the matrix-vector example.
func RunDense(net *llrt.Network, inputs, weights []float32, outSize int64) ([]float32, error) {
	a := llrt.AddComponent[float32](net, int64(len(inputs)))
	b, err := llrt.ConnectNew[float32, float32, float32](a, links.NewDense(), []int64{outSize})
	if err != nil {
		return nil, err
	}
	link := b.Links[1][0]

	copy(llrt.Data[float32](a), inputs)
	copy(llrt.EdgeData[float32](link, 1), weights)

	in := llrt.Data[float32](a)
	out := llrt.Data[float32](b)
	wts := llrt.EdgeData[float32](link, 1)
	llrt.ProcessLink(link, 1, llrt.VisitorFunc(func(nearNode, nearEdge, farNode, _, _ int64) {
		out[nearNode] += wts[nearEdge] * in[farNode]
	}), llrt.Parallel, llrt.WithKernelName("dense-accumulate"))

	result := make([]float32, outSize)
	copy(result, out)
	return result, nil
}
