// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/tensor"
)

// Descriptor is the architecture of a fully-connected network.
type Descriptor = nn.Descriptor

// LayerShape holds the weight and bias shapes of one layer.
type LayerShape = nn.LayerShape

// LayerParams holds the weight matrix and bias vector of one layer.
type LayerParams = nn.LayerParams

// Params is the ordered list of layer parameters, input layer first.
type Params = nn.Params

// Network is a fully-connected classifier.
type Network = nn.Network

// Option configures NewNetwork.
type Option = nn.Option

// ShapeMismatchError reports parameters that do not fit a descriptor.
type ShapeMismatchError = nn.ShapeMismatchError

// Errors.
var (
	ErrShapeMismatch     = nn.ErrShapeMismatch
	ErrInvalidDescriptor = nn.ErrInvalidDescriptor
)

// NewNetwork creates a network with Xavier-initialized weights and zero biases.
//
// Example:
//
//	net, err := nn.NewNetwork(nn.Descriptor{
//	    InputSize:   784,
//	    OutputSize:  10,
//	    HiddenSizes: []int{512, 256, 128},
//	}, nn.WithSeed(1))
func NewNetwork(desc Descriptor, opts ...Option) (*Network, error) {
	return nn.NewNetwork(desc, opts...)
}

// WithSeed makes initialization deterministic.
func WithSeed(seed uint64) Option { return nn.WithSeed(seed) }

// WithRand uses rng for initialization.
func WithRand(rng *rand.Rand) Option { return nn.WithRand(rng) }

// WithDropout sets the training-time dropout probability of hidden layers.
func WithDropout(p float64) Option { return nn.WithDropout(p) }

// NewParams returns freshly initialized parameters for desc.
func NewParams(desc Descriptor, rng *rand.Rand) Params { return nn.NewParams(desc, rng) }

// Gradients returns the loss gradients for a batch and the batch loss.
// dropoutP > 0 enables inverted dropout and requires rng.
func Gradients(desc Descriptor, params Params, x mat.Matrix, labels []int, dropoutP float64, rng *rand.Rand) (Params, float64, error) {
	return nn.Gradients(desc, params, x, labels, dropoutP, rng)
}

// CrossEntropy returns the mean negative log-likelihood of labels under softmax(logits).
func CrossEntropy(logits mat.Matrix, labels []int) (float64, error) {
	return nn.CrossEntropy(logits, labels)
}

// Accuracy returns the fraction of rows whose argmax equals the label.
func Accuracy(logits mat.Matrix, labels []int) float64 { return nn.Accuracy(logits, labels) }

// Softmax returns row-wise probabilities.
func Softmax(logits mat.Matrix) *mat.Dense { return nn.Softmax(logits) }

// LogSoftmax returns row-wise log probabilities.
func LogSoftmax(logits mat.Matrix) *mat.Dense { return nn.LogSoftmax(logits) }

// Argmax returns the column index of each row's maximum.
func Argmax(m mat.Matrix) []int { return nn.Argmax(m) }

// StateDict flattens params into named tensors ("hidden_layers.0.weight", ...).
func StateDict(desc Descriptor, params Params) ([]tensor.Named, error) {
	return nn.StateDict(desc, params)
}

// LoadStateDict rebuilds params for desc from named tensors.
func LoadStateDict(desc Descriptor, stateDict []tensor.Named) (Params, error) {
	return nn.LoadStateDict(desc, stateDict)
}
