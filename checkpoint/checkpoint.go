// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package checkpoint saves trained networks to .born files and rebuilds them.
//
// A checkpoint stores the architecture descriptor next to every parameter
// tensor. Loading constructs the network from the descriptor first and only
// then copies parameters in, so a file can never silently produce a network
// of a different shape.
//
// Example:
//
//	ckpt := checkpoint.Assemble(net, checkpoint.Meta{Epoch: 10})
//	if err := checkpoint.Save("mnist.born", ckpt); err != nil {
//	    return err
//	}
//
//	loaded, err := checkpoint.Load("mnist.born")
//	if err != nil {
//	    return err
//	}
//	net, err := checkpoint.Rebuild(loaded)
package checkpoint

import (
	"io"

	"github.com/born-ml/fcnet/internal/checkpoint"
	"github.com/born-ml/fcnet/internal/nn"
	"github.com/born-ml/fcnet/internal/optim"
)

// Checkpoint is an architecture descriptor plus a snapshot of its parameters.
type Checkpoint = checkpoint.Checkpoint

// Meta describes the training run a checkpoint came from.
type Meta = checkpoint.Meta

// Normalization is the input transform recorded in Meta.Extra, if any.
type Normalization = checkpoint.Normalization

// Meta.Extra keys describing how the training data was prepared.
const (
	MetaDataset   = checkpoint.MetaDataset
	MetaSynthetic = checkpoint.MetaSynthetic
	MetaMean      = checkpoint.MetaMean
	MetaStd       = checkpoint.MetaStd
	MetaSeed      = checkpoint.MetaSeed
)

// Summary describes a checkpoint file without rebuilding it.
type Summary = checkpoint.Summary

// Errors.
var (
	ErrUnsupportedModel = checkpoint.ErrUnsupportedModel
	ErrNoArchitecture   = checkpoint.ErrNoArchitecture
	ErrNotTraining      = checkpoint.ErrNotTraining
)

// Assemble snapshots net. Later changes to net never affect the result.
func Assemble(net *nn.Network, meta Meta) *Checkpoint { return checkpoint.Assemble(net, meta) }

// Save writes ckpt to path.
func Save(path string, ckpt *Checkpoint) error { return checkpoint.Save(path, ckpt) }

// Write encodes ckpt to w.
func Write(w io.Writer, ckpt *Checkpoint) error { return checkpoint.Write(w, ckpt) }

// Load reads a checkpoint from path.
func Load(path string) (*Checkpoint, error) { return checkpoint.Load(path) }

// Read decodes a checkpoint from r.
func Read(r io.Reader) (*Checkpoint, error) { return checkpoint.Read(r) }

// Rebuild reconstructs the stored network.
func Rebuild(ckpt *Checkpoint, opts ...nn.Option) (*nn.Network, error) {
	return checkpoint.Rebuild(ckpt, opts...)
}

// RebuildAs reconstructs ckpt under desc, failing with a shape mismatch when
// the stored parameters do not fit.
func RebuildAs(desc nn.Descriptor, ckpt *Checkpoint, opts ...nn.Option) (*nn.Network, error) {
	return checkpoint.RebuildAs(desc, ckpt, opts...)
}

// LoadAs reads the parameters in path into a network built from desc.
func LoadAs(path string, desc nn.Descriptor, opts ...nn.Option) (*nn.Network, error) {
	return checkpoint.LoadAs(path, desc, opts...)
}

// SaveTraining writes ckpt together with optimizer state.
func SaveTraining(path string, ckpt *Checkpoint, opt optim.Optimizer, state optim.State) error {
	return checkpoint.SaveTraining(path, ckpt, opt, state)
}

// LoadTraining reads a training checkpoint and its optimizer.
func LoadTraining(path string) (*Checkpoint, optim.Optimizer, optim.State, error) {
	return checkpoint.LoadTraining(path)
}

// Inspect describes the checkpoint at path.
func Inspect(path string) (Summary, error) { return checkpoint.Inspect(path) }
