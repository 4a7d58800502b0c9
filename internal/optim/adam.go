package optim

import (
	"math"

	"github.com/born-ml/fcnet/internal/nn"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer, filling unset hyperparameters with defaults.
func NewAdam(config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		lr:    config.LR,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
	}
}

// Name implements Optimizer.
func (a *Adam) Name() string { return "adam" }

// LR returns the learning rate.
func (a *Adam) LR() float64 { return a.lr }

// Config implements Optimizer.
func (a *Adam) Config() map[string]any {
	return map[string]any{"lr": a.lr, "beta1": a.beta1, "beta2": a.beta2, "eps": a.eps}
}

// SlotNames implements Optimizer.
func (a *Adam) SlotNames() []string {
	return []string{"m", "v"}
}

// Init implements Optimizer.
func (a *Adam) Init(params nn.Params) State {
	return initSlots(params, a.SlotNames()...)
}

// Step implements Optimizer.
func (a *Adam) Step(params, grads nn.Params, state State) (nn.Params, State, error) {
	if err := checkLayout(params, grads); err != nil {
		return nil, State{}, err
	}
	next := params.Clone()
	st := state.Clone()
	st.Step++

	m, v := st.Slot("m"), st.Slot("v")
	if m == nil || v == nil {
		st = a.Init(params)
		st.Step = state.Step + 1
		m, v = st.Slot("m"), st.Slot("v")
	}
	if err := checkLayout(params, m, v); err != nil {
		return nil, State{}, err
	}

	biasCorrection1 := 1.0 - math.Pow(a.beta1, float64(st.Step))
	biasCorrection2 := 1.0 - math.Pow(a.beta2, float64(st.Step))

	pBufs, gBufs, mBufs, vBufs := buffers(next), buffers(grads), buffers(m), buffers(v)
	for b := range pBufs {
		p, g, mb, vb := pBufs[b], gBufs[b], mBufs[b], vBufs[b]
		for i := range p {
			mb[i] = a.beta1*mb[i] + (1.0-a.beta1)*g[i]
			vb[i] = a.beta2*vb[i] + (1.0-a.beta2)*g[i]*g[i]
			mHat := mb[i] / biasCorrection1
			vHat := vb[i] / biasCorrection2
			p[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
	return next, st, nil
}
