// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/fcnet/internal/tensor"

// Shape is the list of a tensor's dimensions.
type Shape = tensor.Shape

// DataType identifies the element type of a RawTensor.
type DataType = tensor.DataType

// RawTensor is a flat, row-major, little-endian buffer with a shape and dtype.
type RawTensor = tensor.RawTensor

// Named pairs a tensor with its state-dict key.
type Named = tensor.Named

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
)

// ErrTooLarge is returned when a shape's byte size does not fit in an int.
var ErrTooLarge = tensor.ErrTooLarge

// FromFloat64 encodes values as a Float64 tensor of the given shape.
func FromFloat64(shape Shape, values []float64) (*RawTensor, error) {
	return tensor.FromFloat64(shape, values)
}

// FromBytes wraps data, which must be exactly as long as shape and dtype imply.
func FromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	return tensor.FromBytes(shape, dtype, data)
}

// ParseDataType converts "float32" or "float64" to a DataType.
func ParseDataType(s string) (DataType, bool) {
	return tensor.ParseDataType(s)
}
