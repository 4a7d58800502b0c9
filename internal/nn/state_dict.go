package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/fcnet/internal/tensor"
)

// StateDict flattens params into the string-keyed view used by checkpoint files.
//
// Keys follow layer construction order:
//
//	hidden_layers.0.weight, hidden_layers.0.bias, ..., output.weight, output.bias
//
// Values are copied into float64 tensors.
func StateDict(desc Descriptor, params Params) ([]tensor.Named, error) {
	if err := params.Check(desc); err != nil {
		return nil, err
	}
	out := make([]tensor.Named, 0, 2*len(params))
	for i, l := range params {
		name := desc.LayerName(i)
		shape := l.Shape()
		w, err := tensor.FromFloat64(shape.Weight, l.WeightData())
		if err != nil {
			return nil, fmt.Errorf("encode %s.weight: %w", name, err)
		}
		b, err := tensor.FromFloat64(shape.Bias, l.BiasData())
		if err != nil {
			return nil, fmt.Errorf("encode %s.bias: %w", name, err)
		}
		out = append(out,
			tensor.Named{Name: name + ".weight", Tensor: w},
			tensor.Named{Name: name + ".bias", Tensor: b},
		)
	}
	return out, nil
}

// LoadStateDict rebuilds typed params for desc from a string-keyed state dict.
//
// Every key implied by desc must be present with exactly the implied shape,
// and no other key may appear. Any violation is reported as a
// *ShapeMismatchError; arrays are never truncated or padded. float32 data is
// widened to float64.
func LoadStateDict(desc Descriptor, stateDict []tensor.Named) (Params, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	byName := make(map[string]*tensor.RawTensor, len(stateDict))
	for _, nt := range stateDict {
		if _, dup := byName[nt.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter %q in state dict", nt.Name)
		}
		byName[nt.Name] = nt.Tensor
	}

	shapes := desc.LayerShapes()
	params := make(Params, len(shapes))
	for i, s := range shapes {
		name := desc.LayerName(i)
		w, err := take(byName, name+".weight", s.Weight)
		if err != nil {
			return nil, err
		}
		b, err := take(byName, name+".bias", s.Bias)
		if err != nil {
			return nil, err
		}
		params[i] = LayerParams{
			Weight: mat.NewDense(s.Weight[0], s.Weight[1], w),
			Bias:   mat.NewVecDense(s.Bias[0], b),
		}
	}

	// Leftovers mean the stored network had layers this descriptor does not.
	for _, nt := range stateDict {
		if _, left := byName[nt.Name]; left {
			return nil, &ShapeMismatchError{Name: nt.Name, Got: nt.Tensor.Shape()}
		}
	}
	return params, nil
}

// take removes key from byName after checking its shape and dtype.
func take(byName map[string]*tensor.RawTensor, key string, want tensor.Shape) ([]float64, error) {
	raw, ok := byName[key]
	if !ok {
		return nil, &ShapeMismatchError{Name: key, Expected: want}
	}
	if !raw.Shape().Equal(want) {
		return nil, &ShapeMismatchError{Name: key, Expected: want, Got: raw.Shape()}
	}
	if raw.DType() != tensor.Float64 && raw.DType() != tensor.Float32 {
		return nil, fmt.Errorf("%s dtype mismatch: expected float64 or float32, got %v", key, raw.DType())
	}
	delete(byName, key)
	return raw.Float64s(), nil
}
