package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
func Xavier(fanIn, fanOut int, rng *rand.Rand) *mat.Dense {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	data := make([]float64, fanIn*fanOut)
	for i := range data {
		data[i] = (rng.Float64()*2.0 - 1.0) * bound
	}
	return mat.NewDense(fanOut, fanIn, data)
}

// NewParams creates freshly initialized parameters for desc.
//
// Weights use Xavier/Glorot uniform initialization and biases start at zero.
// The descriptor must already be valid.
func NewParams(desc Descriptor, rng *rand.Rand) Params {
	shapes := desc.LayerShapes()
	params := make(Params, len(shapes))
	for i, s := range shapes {
		out, in := s.Weight[0], s.Weight[1]
		params[i] = LayerParams{
			Weight: Xavier(in, out, rng),
			Bias:   mat.NewVecDense(out, nil),
		}
	}
	return params
}
