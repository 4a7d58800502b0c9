// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: a pure update rule over nn.Params
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Optimizers hold only hyperparameters. Everything that changes during
// training (the step counter and per-parameter buffers) lives in State and is
// threaded through Step explicitly:
//
//	state := opt.Init(params)
//	for _, batch := range batches {
//	    grads, loss, _ := nn.Gradients(desc, params, batch.X, batch.Labels, 0, nil)
//	    params, state, _ = opt.Step(params, grads, state)
//	}
package optim

import (
	"fmt"
	"strings"

	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Name identifies the algorithm ("sgd", "adam").
	Name() string

	// LR returns the learning rate.
	LR() float64

	// Config returns the hyperparameters for checkpoint headers.
	Config() map[string]any

	// SlotNames lists the per-parameter buffers kept in State, in order.
	SlotNames() []string

	// Init returns the zero state for params.
	Init(params nn.Params) State

	// Step applies one update and returns new parameters and state.
	//
	// Neither params, grads, nor state is modified.
	Step(params, grads nn.Params, state State) (nn.Params, State, error)
}

// Slot is a named per-parameter buffer (momentum velocity, Adam moments).
type Slot struct {
	Name   string
	Values nn.Params
}

// State is the mutable part of an optimizer, carried between steps.
type State struct {
	Step  int64
	Slots []Slot
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{Step: s.Step, Slots: make([]Slot, len(s.Slots))}
	for i, slot := range s.Slots {
		out.Slots[i] = Slot{Name: slot.Name, Values: slot.Values.Clone()}
	}
	return out
}

// Slot returns the buffer with the given name, or nil.
func (s State) Slot(name string) nn.Params {
	for _, slot := range s.Slots {
		if slot.Name == name {
			return slot.Values
		}
	}
	return nil
}

// Config selects and parameterizes an optimizer.
type Config struct {
	Name     string  `yaml:"name"`
	LR       float64 `yaml:"lr"`
	Momentum float64 `yaml:"momentum"`
	Beta1    float64 `yaml:"beta1"`
	Beta2    float64 `yaml:"beta2"`
	Eps      float64 `yaml:"eps"`
}

// New creates the optimizer described by cfg. Zero fields take defaults.
func New(cfg Config) (Optimizer, error) {
	switch strings.ToLower(cfg.Name) {
	case "", "adam":
		return NewAdam(AdamConfig{LR: cfg.LR, Betas: [2]float64{cfg.Beta1, cfg.Beta2}, Eps: cfg.Eps}), nil
	case "sgd":
		return NewSGD(SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q (want sgd or adam)", cfg.Name)
	}
}

// StateDict flattens state into "<slot>.<param key>" tensors.
func StateDict(desc nn.Descriptor, state State) ([]tensor.Named, error) {
	var out []tensor.Named
	for _, slot := range state.Slots {
		sd, err := nn.StateDict(desc, slot.Values)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", slot.Name, err)
		}
		for _, nt := range sd {
			out = append(out, tensor.Named{Name: slot.Name + "." + nt.Name, Tensor: nt.Tensor})
		}
	}
	return out, nil
}

// LoadStateDict restores the state of opt from a flattened state dict.
//
// Every slot opt declares must be present with shapes matching desc.
func LoadStateDict(desc nn.Descriptor, opt Optimizer, stateDict []tensor.Named, step int64) (State, error) {
	state := State{Step: step}
	for _, name := range opt.SlotNames() {
		prefix := name + "."
		var slotDict []tensor.Named
		for _, nt := range stateDict {
			if strings.HasPrefix(nt.Name, prefix) {
				slotDict = append(slotDict, tensor.Named{Name: nt.Name[len(prefix):], Tensor: nt.Tensor})
			}
		}
		values, err := nn.LoadStateDict(desc, slotDict)
		if err != nil {
			return State{}, fmt.Errorf("slot %s: %w", name, err)
		}
		state.Slots = append(state.Slots, Slot{Name: name, Values: values})
	}
	return state, nil
}

// initSlots builds zero-filled slots for params.
func initSlots(params nn.Params, names ...string) State {
	state := State{}
	for _, name := range names {
		state.Slots = append(state.Slots, Slot{Name: name, Values: params.ZerosLike()})
	}
	return state
}

// buffers returns the flat weight and bias slices of every layer, in order.
func buffers(p nn.Params) [][]float64 {
	out := make([][]float64, 0, 2*len(p))
	for _, l := range p {
		out = append(out, l.WeightData(), l.BiasData())
	}
	return out
}

// checkLayout verifies that every params-like argument has the same layout as params.
func checkLayout(params nn.Params, others ...nn.Params) error {
	ref := buffers(params)
	for _, other := range others {
		bufs := buffers(other)
		if len(bufs) != len(ref) {
			return fmt.Errorf("layout mismatch: expected %d buffers, got %d", len(ref), len(bufs))
		}
		for i := range ref {
			if len(bufs[i]) != len(ref[i]) {
				return fmt.Errorf("layout mismatch at buffer %d: expected %d values, got %d", i, len(ref[i]), len(bufs[i]))
			}
		}
	}
	return nil
}
