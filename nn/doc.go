// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides fully-connected classifiers.
//
// # Overview
//
// A network is fully described by a Descriptor: input width, output width,
// and an ordered list of hidden widths. Hidden layers use ReLU and the output
// layer produces raw logits. Parameters live in a typed, ordered Params value
// with one LayerParams record per layer.
//
// # Basic Usage
//
//	desc := nn.Descriptor{InputSize: 784, OutputSize: 10, HiddenSizes: []int{512, 256, 128}}
//	net, err := nn.NewNetwork(desc, nn.WithSeed(42), nn.WithDropout(0.2))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	labels := net.Predict(batch) // batch is a *mat.Dense of shape [n, 784]
//
// # Training
//
// Gradients computes analytic gradients of the mean cross-entropy loss for
// a batch; it never modifies the parameters it is given. Pair it with an
// optimizer from the optim package and swap in the result with
// Network.WithParams.
//
// # Shapes
//
// Parameters that do not fit a descriptor are rejected with a
// *ShapeMismatchError, which matches errors.Is(err, nn.ErrShapeMismatch).
package nn
