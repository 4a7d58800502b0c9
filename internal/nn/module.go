// Package nn implements the fully connected classifier and its parameter layout.
//
// This package provides:
//   - Descriptor: the architecture record (input width, hidden widths, output width)
//   - LayerParams / Params: the ordered, typed list of per-layer weights and biases
//   - Network: forward pass, prediction, and training-mode gradients
//   - StateDict / LoadStateDict: the string-keyed view used at the persistence boundary
//
// The descriptor is the single source of truth for every shape. Parameters are
// validated against it whenever they enter a Network, so a model can never hold
// arrays that disagree with its declared architecture.
package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/fcnet/internal/tensor"
)

// ErrInvalidDescriptor is returned when a descriptor has a width out of range.
var ErrInvalidDescriptor = errors.New("invalid architecture descriptor")

// MaxWidth bounds every layer width. A weight matrix of MaxWidth x MaxWidth
// float64 values still has a byte size that fits in an int64.
const MaxWidth = 1 << 24

// Descriptor records the sizes needed to reconstruct a network.
//
// Layer i maps Widths()[i] inputs to Widths()[i+1] outputs. Hidden layers use
// ReLU; the output layer produces raw logits.
type Descriptor struct {
	InputSize   int   `json:"input_size" yaml:"input_size"`
	OutputSize  int   `json:"output_size" yaml:"output_size"`
	HiddenSizes []int `json:"hidden_sizes" yaml:"hidden_sizes"`
}

// LayerShape is the pair of shapes a single layer's parameters must have.
type LayerShape struct {
	Weight tensor.Shape // [out_features, in_features]
	Bias   tensor.Shape // [out_features]
}

// Validate checks that every width is positive and at most MaxWidth.
func (d Descriptor) Validate() error {
	if err := checkWidth("input_size", d.InputSize); err != nil {
		return err
	}
	if err := checkWidth("output_size", d.OutputSize); err != nil {
		return err
	}
	for i, h := range d.HiddenSizes {
		if err := checkWidth(fmt.Sprintf("hidden_sizes[%d]", i), h); err != nil {
			return err
		}
	}
	return nil
}

func checkWidth(name string, w int) error {
	if w <= 0 {
		return fmt.Errorf("%w: %s must be > 0, got %d", ErrInvalidDescriptor, name, w)
	}
	if w > MaxWidth {
		return fmt.Errorf("%w: %s must be <= %d, got %d", ErrInvalidDescriptor, name, MaxWidth, w)
	}
	return nil
}

// Widths returns [input, hidden..., output].
func (d Descriptor) Widths() []int {
	widths := make([]int, 0, len(d.HiddenSizes)+2)
	widths = append(widths, d.InputSize)
	widths = append(widths, d.HiddenSizes...)
	return append(widths, d.OutputSize)
}

// NumLayers returns the number of linear layers, including the output layer.
func (d Descriptor) NumLayers() int {
	return len(d.HiddenSizes) + 1
}

// LayerShapes returns the parameter shapes implied by the descriptor, in layer order.
func (d Descriptor) LayerShapes() []LayerShape {
	widths := d.Widths()
	shapes := make([]LayerShape, d.NumLayers())
	for i := range shapes {
		shapes[i] = LayerShape{
			Weight: tensor.Shape{widths[i+1], widths[i]},
			Bias:   tensor.Shape{widths[i+1]},
		}
	}
	return shapes
}

// LayerName returns the key prefix of layer i ("hidden_layers.<i>" or "output").
func (d Descriptor) LayerName(i int) string {
	if i < len(d.HiddenSizes) {
		return fmt.Sprintf("hidden_layers.%d", i)
	}
	return "output"
}

// NumParameters returns the total number of scalar parameters.
func (d Descriptor) NumParameters() int {
	n := 0
	for _, s := range d.LayerShapes() {
		n += s.Weight.NumElements() + s.Bias.NumElements()
	}
	return n
}

// Equal reports whether two descriptors describe the same architecture.
func (d Descriptor) Equal(other Descriptor) bool {
	if d.InputSize != other.InputSize || d.OutputSize != other.OutputSize {
		return false
	}
	if len(d.HiddenSizes) != len(other.HiddenSizes) {
		return false
	}
	for i := range d.HiddenSizes {
		if d.HiddenSizes[i] != other.HiddenSizes[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (d Descriptor) Clone() Descriptor {
	d.HiddenSizes = append([]int(nil), d.HiddenSizes...)
	return d
}

// String formats the descriptor as "784 -> [512 256 128] -> 10".
func (d Descriptor) String() string {
	return fmt.Sprintf("%d -> %v -> %d", d.InputSize, d.HiddenSizes, d.OutputSize)
}
