package nn

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Gradients computes the mean cross-entropy loss of one batch and its gradient
// with respect to every parameter.
//
// The returned Params has the same layout as params and holds dLoss/dParam.
// params is never modified. When dropoutP > 0, inverted dropout is applied to
// every hidden activation using rng (which must then be non-nil).
//
// Backward pass, per layer l (from the output down):
//
//	dW_l = dZ_l.T @ A_{l-1}
//	db_l = sum over batch of dZ_l
//	dZ_{l-1} = (dZ_l @ W_l) * gate_{l-1}
//
// where gate is the ReLU derivative multiplied by the dropout mask.
func Gradients(desc Descriptor, params Params, x mat.Matrix, labels []int, dropoutP float64, rng *rand.Rand) (Params, float64, error) {
	if err := params.Check(desc); err != nil {
		return nil, 0, err
	}
	batch, c := x.Dims()
	if c != desc.InputSize {
		return nil, 0, fmt.Errorf("expected input with %d features, got %d", desc.InputSize, c)
	}
	if dropoutP > 0 && rng == nil {
		return nil, 0, fmt.Errorf("dropout %g requires a random source", dropoutP)
	}

	numLayers := len(params)
	acts := make([]mat.Matrix, numLayers) // input to layer l
	gates := make([]*mat.Dense, numLayers-1)

	a := x
	var logits *mat.Dense
	for l, lp := range params {
		acts[l] = a
		z := affine(a, lp)
		if l == numLayers-1 {
			logits = z
			break
		}
		gates[l] = hiddenGate(z, dropoutP, rng)
		z.MulElem(z, gates[l])
		a = z
	}

	logProbs := LogSoftmax(logits)
	loss, err := nllLoss(logProbs, labels)
	if err != nil {
		return nil, 0, err
	}

	// dZ_L = (softmax - one_hot) / batch
	dZ := Softmax(logits)
	for i, y := range labels {
		dZ.Set(i, y, dZ.At(i, y)-1)
	}
	dZ.Scale(1/float64(batch), dZ)

	grads := make(Params, numLayers)
	for l := numLayers - 1; l >= 0; l-- {
		var gw mat.Dense
		gw.Mul(dZ.T(), acts[l])

		out := params[l].Bias.Len()
		gb := mat.NewVecDense(out, nil)
		for i := 0; i < batch; i++ {
			gb.AddVec(gb, dZ.RowView(i))
		}
		grads[l] = LayerParams{Weight: &gw, Bias: gb}

		if l > 0 {
			var dA mat.Dense
			dA.Mul(dZ, params[l].Weight)
			dA.MulElem(&dA, gates[l-1])
			dZ = &dA
		}
	}

	return grads, loss, nil
}

// Gradients computes the batch loss and the gradients of n's parameters,
// applying the network's dropout probability to hidden activations.
func (n *Network) Gradients(x mat.Matrix, labels []int, rng *rand.Rand) (Params, float64, error) {
	return Gradients(n.desc, n.params, x, labels, n.dropout, rng)
}

// hiddenGate returns the elementwise factor applied after ReLU: 0 where the
// unit is inactive or dropped, 1/(1-p) where it is kept.
func hiddenGate(z *mat.Dense, p float64, rng *rand.Rand) *mat.Dense {
	r, c := z.Dims()
	gate := mat.NewDense(r, c, nil)
	keep := 1.0
	if p > 0 {
		keep = 1 / (1 - p)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if z.At(i, j) <= 0 {
				continue
			}
			if p > 0 && rng.Float64() < p {
				continue
			}
			gate.Set(i, j, keep)
		}
	}
	return gate
}
