package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/fcnet/internal/tensor"
)

// LayerParams holds one fully connected layer's parameters.
//
// Weight has shape [out_features, in_features] and Bias has length
// out_features. Both are always backed by contiguous storage (stride equals
// column count), which the optimizers rely on.
type LayerParams struct {
	Weight *mat.Dense
	Bias   *mat.VecDense
}

// Params is the ordered list of layer parameters; index i is layer i of the descriptor.
type Params []LayerParams

// Clone returns a deep copy of the layer.
func (l LayerParams) Clone() LayerParams {
	return LayerParams{
		Weight: mat.DenseCopyOf(l.Weight),
		Bias:   mat.VecDenseCopyOf(l.Bias),
	}
}

// Shape returns the layer's current shapes.
func (l LayerParams) Shape() LayerShape {
	r, c := l.Weight.Dims()
	return LayerShape{
		Weight: tensor.Shape{r, c},
		Bias:   tensor.Shape{l.Bias.Len()},
	}
}

// WeightData returns the weight's backing slice in row-major order.
func (l LayerParams) WeightData() []float64 {
	return l.Weight.RawMatrix().Data
}

// BiasData returns the bias's backing slice.
func (l LayerParams) BiasData() []float64 {
	return l.Bias.RawVector().Data
}

// Clone returns a deep copy of every layer.
//
// The copy shares no memory with p, so later mutation of either side is
// never visible through the other.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for i, l := range p {
		out[i] = l.Clone()
	}
	return out
}

// ZerosLike returns parameters of the same shapes filled with zeros.
func (p Params) ZerosLike() Params {
	out := make(Params, len(p))
	for i, l := range p {
		r, c := l.Weight.Dims()
		out[i] = LayerParams{
			Weight: mat.NewDense(r, c, nil),
			Bias:   mat.NewVecDense(l.Bias.Len(), nil),
		}
	}
	return out
}

// Equal reports whether p and other hold exactly the same values.
func (p Params) Equal(other Params) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if !mat.Equal(p[i].Weight, other[i].Weight) || !mat.Equal(p[i].Bias, other[i].Bias) {
			return false
		}
	}
	return true
}

// Check verifies that p has exactly the shapes implied by desc.
func (p Params) Check(desc Descriptor) error {
	want := desc.LayerShapes()
	if len(p) != len(want) {
		return &ShapeMismatchError{
			Name:    "layers",
			Details: fmt.Sprintf("descriptor %s implies %d layers, parameters have %d", desc, len(want), len(p)),
		}
	}
	for i, l := range p {
		if l.Weight == nil || l.Bias == nil {
			return &ShapeMismatchError{Name: desc.LayerName(i), Details: "layer has nil weight or bias"}
		}
		got := l.Shape()
		if !got.Weight.Equal(want[i].Weight) {
			return &ShapeMismatchError{Name: desc.LayerName(i) + ".weight", Expected: want[i].Weight, Got: got.Weight}
		}
		if !got.Bias.Equal(want[i].Bias) {
			return &ShapeMismatchError{Name: desc.LayerName(i) + ".bias", Expected: want[i].Bias, Got: got.Bias}
		}
	}
	return nil
}
