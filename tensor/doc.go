// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the named, typed byte buffers that parameters are
// stored as in checkpoint files.
//
// # Overview
//
// Network math runs on gonum matrices. A state dict is the flat view of a
// network's parameters: an ordered []Named where each entry pairs a
// layer-qualified key ("hidden_layers.0.weight", "output.bias", ...) with a
// little-endian RawTensor.
//
// # Basic Usage
//
//	sd, err := nn.StateDict(desc, net.Params())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, nt := range sd {
//	    fmt.Println(nt.Name, nt.Tensor.Shape(), nt.Tensor.DType())
//	}
//
// # Supported Data Types
//
// Float64 is written by this module. Float32 tensors are accepted on load and
// widened to float64.
package tensor
