// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides functional optimizers for nn.Params.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with optional momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//
// Optimizers hold only hyperparameters. Step takes parameters, gradients, and
// optimizer state and returns new parameters and new state; its inputs are
// never modified.
//
// # Basic Usage
//
//	opt := optim.NewAdam(optim.AdamConfig{LR: 0.001})
//	params := net.Params()
//	state := opt.Init(params)
//	for _, b := range batches {
//	    grads, _, err := nn.Gradients(desc, params, b.X, b.Labels, 0, nil)
//	    if err != nil {
//	        return err
//	    }
//	    params, state, err = opt.Step(params, grads, state)
//	    if err != nil {
//	        return err
//	    }
//	}
//	net, err = net.WithParams(params)
package optim
