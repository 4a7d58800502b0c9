// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/fcnet/nn"
	"github.com/born-ml/fcnet/tensor"
)

func TestStateDictThroughPublicTypes(t *testing.T) {
	desc := nn.Descriptor{InputSize: 3, OutputSize: 2, HiddenSizes: []int{4}}
	net, err := nn.NewNetwork(desc, nn.WithSeed(1))
	require.NoError(t, err)

	var sd []tensor.Named
	sd, err = nn.StateDict(desc, net.Params())
	require.NoError(t, err)
	require.Len(t, sd, 4)
	assert.Equal(t, "hidden_layers.0.weight", sd[0].Name)
	assert.Equal(t, tensor.Shape{4, 3}, sd[0].Tensor.Shape())
	assert.Equal(t, tensor.Float64, sd[0].Tensor.DType())

	// Replace the output bias with a caller-built tensor.
	bias, err := tensor.FromFloat64(tensor.Shape{2}, []float64{0.25, -0.5})
	require.NoError(t, err)
	sd[3] = tensor.Named{Name: "output.bias", Tensor: bias}
	params, err := nn.LoadStateDict(desc, sd)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, -0.5}, params[1].BiasData())

	wrong, err := tensor.FromFloat64(tensor.Shape{3}, []float64{1, 2, 3})
	require.NoError(t, err)
	sd[3] = tensor.Named{Name: "output.bias", Tensor: wrong}
	_, err = nn.LoadStateDict(desc, sd)
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)
}

func TestFromBytesRejectsOverflow(t *testing.T) {
	_, err := tensor.FromBytes(tensor.Shape{1<<61 + 1}, tensor.Float64, make([]byte, 8))
	assert.ErrorIs(t, err, tensor.ErrTooLarge)

	dt, ok := tensor.ParseDataType("float32")
	require.True(t, ok)
	assert.Equal(t, tensor.Float32, dt)
}
