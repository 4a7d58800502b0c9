package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Network is a fully connected classifier.
//
// Architecture, for a descriptor {in, out, [h0, h1, ...]}:
//
//	in -> Linear(in, h0) -> ReLU -> Dropout -> ... -> Linear(hk, out) -> logits
//
// A Network never changes after construction: training produces new Params
// and WithParams produces a new Network. Dropout is only applied by
// Gradients, never by Forward.
type Network struct {
	desc    Descriptor
	params  Params
	dropout float64
}

type options struct {
	rng     *rand.Rand
	dropout float64
}

// Option configures NewNetwork.
type Option func(*options)

// WithSeed makes initialization deterministic.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithRand sets the random source used for initialization.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithDropout sets the dropout probability used for hidden layers during training.
func WithDropout(p float64) Option {
	return func(o *options) {
		o.dropout = p
	}
}

// NewNetwork builds a freshly initialized network for desc.
//
// Example:
//
//	net, err := nn.NewNetwork(nn.Descriptor{
//	    InputSize:   784,
//	    OutputSize:  10,
//	    HiddenSizes: []int{512, 256, 128},
//	}, nn.WithDropout(0.2))
func NewNetwork(desc Descriptor, opts ...Option) (*Network, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dropout < 0 || o.dropout >= 1 {
		return nil, fmt.Errorf("dropout probability must be in [0, 1), got %g", o.dropout)
	}
	if o.rng == nil {
		//nolint:gosec // G404: weight initialization is not security-critical
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	desc = desc.Clone()
	return &Network{
		desc:    desc,
		params:  NewParams(desc, o.rng),
		dropout: o.dropout,
	}, nil
}

// Descriptor returns a copy of the network's architecture.
func (n *Network) Descriptor() Descriptor {
	return n.desc.Clone()
}

// Params returns a deep copy of the current parameters.
func (n *Network) Params() Params {
	return n.params.Clone()
}

// Dropout returns the training-time dropout probability.
func (n *Network) Dropout() float64 {
	return n.dropout
}

// WithParams returns a new Network with the same architecture holding a copy of p.
//
// Fails with a *ShapeMismatchError when p does not fit the descriptor.
func (n *Network) WithParams(p Params) (*Network, error) {
	if err := p.Check(n.desc); err != nil {
		return nil, err
	}
	return &Network{
		desc:    n.desc.Clone(),
		params:  p.Clone(),
		dropout: n.dropout,
	}, nil
}

// Forward computes logits for a batch.
//
// Input shape: [batch_size, input_size]
// Output shape: [batch_size, output_size]
func (n *Network) Forward(x mat.Matrix) *mat.Dense {
	_, c := x.Dims()
	if c != n.desc.InputSize {
		panic(fmt.Sprintf("Network.Forward: expected input with %d features, got %d", n.desc.InputSize, c))
	}
	a := x
	last := len(n.params) - 1
	for i, l := range n.params {
		z := affine(a, l)
		if i < last {
			reluInPlace(z)
		}
		a = z
	}
	return a.(*mat.Dense)
}

// Predict returns the most likely class for every row of x.
func (n *Network) Predict(x mat.Matrix) []int {
	return Argmax(n.Forward(x))
}

// Probabilities returns softmax class probabilities for every row of x.
func (n *Network) Probabilities(x mat.Matrix) *mat.Dense {
	return Softmax(n.Forward(x))
}

// affine computes x @ W.T + b.
func affine(x mat.Matrix, l LayerParams) *mat.Dense {
	var z mat.Dense
	z.Mul(x, l.Weight.T())
	bias := l.BiasData()
	r, _ := z.Dims()
	for i := 0; i < r; i++ {
		floats.Add(z.RawRowView(i), bias)
	}
	return &z
}
