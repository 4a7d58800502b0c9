package optim_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/optim"
)

// scalarParams builds a single 1x1 layer holding w and b.
func scalarParams(w, b float64) nn.Params {
	return nn.Params{{
		Weight: mat.NewDense(1, 1, []float64{w}),
		Bias:   mat.NewVecDense(1, []float64{b}),
	}}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1})
	params := scalarParams(2.0, 0.5)
	state := opt.Init(params)

	next, state, err := opt.Step(params, scalarParams(1.0, -1.0), state)
	require.NoError(t, err)

	// x_new = x_old - lr * grad
	assert.InDelta(t, 1.9, next[0].Weight.At(0, 0), 1e-12)
	assert.InDelta(t, 0.6, next[0].Bias.AtVec(0), 1e-12)
	assert.Equal(t, int64(1), state.Step)
	assert.Empty(t, state.Slots)

	// Inputs are untouched.
	assert.Equal(t, 2.0, params[0].Weight.At(0, 0))
}

func TestSGD_WithMomentum(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	params := scalarParams(1.0, 0)
	state := opt.Init(params)
	grad := scalarParams(1.0, 0)

	// Step 1: v = 1, x = 1 - 0.1*1 = 0.9
	params, state, err := opt.Step(params, grad, state)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, params[0].Weight.At(0, 0), 1e-12)

	// Step 2: v = 0.9*1 + 1 = 1.9, x = 0.9 - 0.19 = 0.71
	params, state, err = opt.Step(params, grad, state)
	require.NoError(t, err)
	assert.InDelta(t, 0.71, params[0].Weight.At(0, 0), 1e-12)
	assert.InDelta(t, 1.9, state.Slot("velocity")[0].Weight.At(0, 0), 1e-12)
}

func TestSGD_StateIsNotShared(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.5})
	params := scalarParams(1, 1)
	state := opt.Init(params)

	_, next, err := opt.Step(params, scalarParams(1, 1), state)
	require.NoError(t, err)
	assert.Equal(t, 0.0, state.Slot("velocity")[0].Weight.At(0, 0))
	assert.Equal(t, 1.0, next.Slot("velocity")[0].Weight.At(0, 0))
	assert.Equal(t, int64(0), state.Step)
}

func TestAdam_FirstStep(t *testing.T) {
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.01})
	params := scalarParams(1.0, 1.0)
	state := opt.Init(params)

	// With bias correction the first step moves each parameter by ~lr * sign(grad).
	next, state, err := opt.Step(params, scalarParams(0.5, -3.0), state)
	require.NoError(t, err)
	assert.InDelta(t, 0.99, next[0].Weight.At(0, 0), 1e-6)
	assert.InDelta(t, 1.01, next[0].Bias.AtVec(0), 1e-6)
	assert.Equal(t, int64(1), state.Step)
	assert.InDelta(t, 0.05, state.Slot("m")[0].Weight.At(0, 0), 1e-12)
}

func TestAdam_Defaults(t *testing.T) {
	cfg := optim.NewAdam(optim.AdamConfig{}).Config()
	assert.Equal(t, 0.001, cfg["lr"])
	assert.Equal(t, 0.9, cfg["beta1"])
	assert.Equal(t, 0.999, cfg["beta2"])
	assert.Equal(t, 1e-8, cfg["eps"])
}

func TestStepLayoutMismatch(t *testing.T) {
	desc := nn.Descriptor{InputSize: 3, OutputSize: 2, HiddenSizes: []int{4}}
	params := nn.NewParams(desc, rand.New(rand.NewPCG(1, 2)))
	for _, opt := range []optim.Optimizer{optim.NewSGD(optim.SGDConfig{}), optim.NewAdam(optim.AdamConfig{})} {
		_, _, err := opt.Step(params, params[:1], opt.Init(params))
		assert.Error(t, err, opt.Name())
	}
}

func TestNewFromConfig(t *testing.T) {
	opt, err := optim.New(optim.Config{Name: "SGD", LR: 0.5, Momentum: 0.1})
	require.NoError(t, err)
	assert.Equal(t, "sgd", opt.Name())
	assert.Equal(t, 0.5, opt.LR())
	assert.Equal(t, []string{"velocity"}, opt.SlotNames())

	opt, err = optim.New(optim.Config{})
	require.NoError(t, err)
	assert.Equal(t, "adam", opt.Name())

	_, err = optim.New(optim.Config{Name: "rmsprop"})
	assert.Error(t, err)
}

func TestStateDictRoundTrip(t *testing.T) {
	desc := nn.Descriptor{InputSize: 3, OutputSize: 2, HiddenSizes: []int{4}}
	rng := rand.New(rand.NewPCG(3, 4))
	params := nn.NewParams(desc, rng)
	grads := nn.NewParams(desc, rng)

	opt := optim.NewAdam(optim.AdamConfig{})
	_, state, err := opt.Step(params, grads, opt.Init(params))
	require.NoError(t, err)

	sd, err := optim.StateDict(desc, state)
	require.NoError(t, err)
	assert.Len(t, sd, 8)
	assert.Equal(t, "m.hidden_layers.0.weight", sd[0].Name)
	assert.Equal(t, "v.output.bias", sd[7].Name)

	restored, err := optim.LoadStateDict(desc, opt, sd, state.Step)
	require.NoError(t, err)
	assert.Equal(t, state.Step, restored.Step)
	assert.True(t, state.Slot("m").Equal(restored.Slot("m")))
	assert.True(t, state.Slot("v").Equal(restored.Slot("v")))

	// Missing slot.
	_, err = optim.LoadStateDict(desc, opt, sd[:4], state.Step)
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)
}

// TestTrainingReducesLoss runs a few full steps on a tiny separable problem.
func TestTrainingReducesLoss(t *testing.T) {
	desc := nn.Descriptor{InputSize: 2, OutputSize: 2, HiddenSizes: []int{8}}
	rng := rand.New(rand.NewPCG(5, 6))
	params := nn.NewParams(desc, rng)

	x := mat.NewDense(4, 2, []float64{0, 1, 0, 2, 1, 0, 2, 0})
	labels := []int{0, 0, 1, 1}

	for _, opt := range []optim.Optimizer{
		optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.9}),
		optim.NewAdam(optim.AdamConfig{LR: 0.05}),
	} {
		p := params.Clone()
		state := opt.Init(p)
		_, first, err := nn.Gradients(desc, p, x, labels, 0, nil)
		require.NoError(t, err)

		var last float64
		for i := 0; i < 50; i++ {
			var grads nn.Params
			grads, last, err = nn.Gradients(desc, p, x, labels, 0, nil)
			require.NoError(t, err)
			p, state, err = opt.Step(p, grads, state)
			require.NoError(t, err)
		}
		assert.Less(t, last, first/2, opt.Name())
	}
}
