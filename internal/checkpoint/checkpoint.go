// Package checkpoint persists trained networks as a single .born file holding
// the architecture descriptor and every parameter tensor.
//
// Loading always builds structure first: the descriptor (stored, or supplied by
// the caller) fixes every shape, and parameters are then copied in. Arrays that
// do not fit are reported as *nn.ShapeMismatchError and never truncated or padded.
package checkpoint

import (
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/fcnet/internal/nn"
)

// ModelType is the model_type recorded in every checkpoint header.
const ModelType = "MLP"

// optimizerPrefix namespaces optimizer tensors in training checkpoints.
const optimizerPrefix = "optimizer."

var (
	// ErrUnsupportedModel is returned for .born files that do not hold an MLP.
	ErrUnsupportedModel = errors.New("unsupported model type")
	// ErrNoArchitecture is returned when the header carries no descriptor.
	ErrNoArchitecture = errors.New("checkpoint has no architecture record")
	// ErrNotTraining is returned by LoadTraining for inference-only checkpoints.
	ErrNotTraining = errors.New("checkpoint has no optimizer state")
)

// Meta describes the training run a checkpoint came from.
type Meta struct {
	RunID     string
	Epoch     int
	Step      int64
	Loss      float64
	Accuracy  float64
	CreatedAt time.Time
	Extra     map[string]string
}

// Checkpoint is an architecture descriptor plus a snapshot of its parameters.
type Checkpoint struct {
	Descriptor nn.Descriptor
	Params     nn.Params
	Meta       Meta
}

// Assemble snapshots net into a Checkpoint.
//
// The result shares no memory with net. An empty RunID is replaced with a
// fresh UUID and a zero CreatedAt with the current time.
func Assemble(net *nn.Network, meta Meta) *Checkpoint {
	meta.Extra = maps.Clone(meta.Extra)
	if meta.RunID == "" {
		meta.RunID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	return &Checkpoint{
		Descriptor: net.Descriptor(),
		Params:     net.Params(),
		Meta:       meta,
	}
}

// Rebuild reconstructs the network recorded in ckpt.
func Rebuild(ckpt *Checkpoint, opts ...nn.Option) (*nn.Network, error) {
	return RebuildAs(ckpt.Descriptor, ckpt, opts...)
}

// RebuildAs builds a network for desc and then fills it with ckpt's
// parameters. It fails with a *nn.ShapeMismatchError when they disagree.
func RebuildAs(desc nn.Descriptor, ckpt *Checkpoint, opts ...nn.Option) (*nn.Network, error) {
	net, err := nn.NewNetwork(desc, opts...)
	if err != nil {
		return nil, err
	}
	return net.WithParams(ckpt.Params)
}
