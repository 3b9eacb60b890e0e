// Package demo builds small example networks for the CLI and the
// end-to-end tests: a five-component sigmoid feedback network and a
// dense matrix example.
package demo

import (
	"math"

	"github.com/llrt/pkg/links"
	"github.com/llrt/pkg/llrt"
)

// SNode is the node state of the sigmoid network: activations for
// the current and next timestep.
type SNode struct {
	X [2]float32
}

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

// SigmoidNet is a feedback network of five components joined by a
// Same link, a Dense link and two Local2D links. Every link is
// traversed in both directions each step, so activation echoes
// through the whole graph.
type SigmoidNet struct {
	Net *llrt.Network
}

// BuildSigmoidNet constructs the network on top of net.
func BuildSigmoidNet(net *llrt.Network) (*SigmoidNet, error) {
	one := llrt.AddComponent[SNode](net, 100)
	two, err := llrt.ConnectNew[float32, float32, SNode](one, links.NewSame(), []int64{100})
	if err != nil {
		return nil, err
	}
	three, err := llrt.ConnectNew[float32, float32, SNode](two, links.NewDense(), []int64{10, 7})
	if err != nil {
		return nil, err
	}
	four, err := llrt.ConnectDeduce[float32, float32, SNode](three, links.NewLocal2D(1, 1, 1, links.PaddingSame))
	if err != nil {
		return nil, err
	}
	if _, err := llrt.ConnectDeduce[float32, float32, SNode](four, links.NewLocal2D(2, 3, 2, links.PaddingSame)); err != nil {
		return nil, err
	}
	return &SigmoidNet{Net: net}, nil
}

// initNodeKernel seeds next-step activations with unit normal noise.
type initNodeKernel struct {
	data []SNode
	rng  *llrt.RNG
}

func (k *initNodeKernel) Visit(nearNode, _, _, _, _ int64) {
	k.data[nearNode].X[1] = k.rng.NormFloat32(0, 1)
}

func (k *initNodeKernel) CloneKernel() llrt.Kernel {
	return &initNodeKernel{data: k.data, rng: k.rng.Split()}
}

// initEdgeKernel seeds edge weights with unit normal noise.
type initEdgeKernel struct {
	edges []float32
	rng   *llrt.RNG
}

func (k *initEdgeKernel) Visit(_, nearEdge, _, _, _ int64) {
	k.edges[nearEdge] = k.rng.NormFloat32(0, 1)
}

func (k *initEdgeKernel) CloneKernel() llrt.Kernel {
	return &initEdgeKernel{edges: k.edges, rng: k.rng.Split()}
}

// Initialize randomizes node activations and edge weights.
func (s *SigmoidNet) Initialize() {
	rng := s.Net.RNG()
	llrt.ProcessNetCmps(s.Net, func(e *llrt.LinkEnd) llrt.Kernel {
		return &initNodeKernel{data: llrt.Data[SNode](e.Cmp), rng: rng.Split()}
	}, llrt.ParallelPart)

	llrt.ProcessNetLinks(s.Net, func(e *llrt.LinkEnd) llrt.Kernel {
		return &initEdgeKernel{edges: llrt.EndData[float32](e), rng: rng.Split()}
	}, llrt.ParallelNonBlocking)
}

// sumWeightsKernel accumulates weighted far activations into the
// near nodes' next-step slot. It needs no clone: it writes only
// near-node data, which the near-node guarantee protects.
type sumWeightsKernel struct {
	near    []SNode
	far     []SNode
	weights []float32
	cur     int
	next    int
}

func (k *sumWeightsKernel) Visit(nearNode, nearEdge, farNode, _, _ int64) {
	k.near[nearNode].X[k.next] += k.far[farNode].X[k.cur] * k.weights[nearEdge]
}

// activateKernel applies the sigmoid with a little noise (the noise
// stresses determinism) and resets the finished timestep.
type activateKernel struct {
	data []SNode
	rng  *llrt.RNG
	cur  int
	next int
}

func (k *activateKernel) Visit(nearNode, _, _, _, _ int64) {
	node := &k.data[nearNode]
	node.X[k.next] = sigmoid(node.X[k.next]) + 0.1*k.rng.NormFloat32(0, 1)
	node.X[k.cur] = 0
}

func (k *activateKernel) CloneKernel() llrt.Kernel {
	return &activateKernel{data: k.data, rng: k.rng.Split(), cur: k.cur, next: k.next}
}

// Advance runs one timestep: propagate weighted activations along
// every link in both directions, then activate every node.
func (s *SigmoidNet) Advance(step int) {
	cur := step % 2
	next := 1 - cur

	llrt.ProcessNetLinks(s.Net, func(e *llrt.LinkEnd) llrt.Kernel {
		return &sumWeightsKernel{
			near:    llrt.Data[SNode](e.Cmp),
			far:     llrt.Data[SNode](e.Link.Ends[1-e.WhichEnd].Cmp),
			weights: llrt.EndData[float32](e),
			cur:     cur,
			next:    next,
		}
	}, llrt.ParallelNonBlocking)

	rng := s.Net.RNG()
	llrt.ProcessNetCmps(s.Net, func(e *llrt.LinkEnd) llrt.Kernel {
		return &activateKernel{data: llrt.Data[SNode](e.Cmp), rng: rng.Split(), cur: cur, next: next}
	}, llrt.ParallelNonBlocking)
}

// sumKernel totals next-step activations. Clones accumulate
// privately and merge into the shared total.
type sumKernel struct {
	data  []SNode
	next  int
	total *float64
	local float64
}

func (k *sumKernel) Visit(nearNode, _, _, _, _ int64) {
	k.local += float64(k.data[nearNode].X[k.next])
}

func (k *sumKernel) CloneKernel() llrt.Kernel {
	return &sumKernel{data: k.data, next: k.next}
}

func (k *sumKernel) MergeKernel(clone llrt.Kernel) {
	*k.total += clone.(*sumKernel).local
}

// Sum returns the single-threaded total of next-step activations and
// the total computed in parallel with a combiner. The two agree
// within floating point reassociation.
func (s *SigmoidNet) Sum(step int) (single, combined float64) {
	next := 1 - step%2

	s.Net.FinishBatches()
	llrt.ProcessNetCmps(s.Net, func(e *llrt.LinkEnd) llrt.Kernel {
		data := llrt.Data[SNode](e.Cmp)
		return llrt.VisitorFunc(func(nearNode, _, _, _, _ int64) {
			single += float64(data[nearNode].X[next])
		})
	})

	if s.Net.Workers() == 0 {
		// inline execution has no clones to combine
		return single, single
	}

	llrt.ProcessNetCmps(s.Net, func(e *llrt.LinkEnd) llrt.Kernel {
		return &sumKernel{data: llrt.Data[SNode](e.Cmp), next: next, total: &combined}
	}, llrt.Parallel)

	return single, combined
}

// RunSigmoid builds a sigmoid network, runs it the given number of
// timesteps, and returns the final activation total.
func RunSigmoid(net *llrt.Network, steps int) (float64, error) {
	s, err := BuildSigmoidNet(net)
	if err != nil {
		return 0, err
	}
	s.Initialize()
	var total float64
	for step := 0; step < steps; step++ {
		s.Advance(step)
		total, _ = s.Sum(step)
	}
	return total, nil
}
