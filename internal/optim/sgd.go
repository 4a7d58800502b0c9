package optim

import (
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/fcnet/internal/nn"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	lr       float64
	momentum float64
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{lr: config.LR, momentum: config.Momentum}
}

// Name implements Optimizer.
func (s *SGD) Name() string { return "sgd" }

// LR returns the learning rate.
func (s *SGD) LR() float64 { return s.lr }

// Config implements Optimizer.
func (s *SGD) Config() map[string]any {
	return map[string]any{"lr": s.lr, "momentum": s.momentum}
}

// SlotNames implements Optimizer. Plain SGD keeps no buffers.
func (s *SGD) SlotNames() []string {
	if s.momentum == 0 {
		return nil
	}
	return []string{"velocity"}
}

// Init implements Optimizer.
func (s *SGD) Init(params nn.Params) State {
	return initSlots(params, s.SlotNames()...)
}

// Step implements Optimizer.
func (s *SGD) Step(params, grads nn.Params, state State) (nn.Params, State, error) {
	if err := checkLayout(params, grads); err != nil {
		return nil, State{}, err
	}
	next := params.Clone()
	st := state.Clone()
	st.Step++

	pBufs := buffers(next)
	gBufs := buffers(grads)

	if s.momentum == 0 {
		for i := range pBufs {
			floats.AddScaled(pBufs[i], -s.lr, gBufs[i])
		}
		return next, st, nil
	}

	velocity := st.Slot("velocity")
	if velocity == nil {
		velocity = params.ZerosLike()
		st.Slots = append(st.Slots, Slot{Name: "velocity", Values: velocity})
	}
	if err := checkLayout(params, velocity); err != nil {
		return nil, State{}, err
	}
	vBufs := buffers(velocity)
	for i := range pBufs {
		floats.Scale(s.momentum, vBufs[i])
		floats.Add(vBufs[i], gBufs[i])
		floats.AddScaled(pBufs[i], -s.lr, vBufs[i])
	}
	return next, st, nil
}
