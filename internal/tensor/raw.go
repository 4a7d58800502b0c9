package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RawTensor is a flat, row-major, little-endian buffer with a shape and dtype.
type RawTensor struct {
	data  []byte
	shape Shape
	dtype DataType
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	size, err := shape.ByteSize(dtype.Size())
	if err != nil {
		return nil, err
	}
	return &RawTensor{
		data:  make([]byte, size),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// FromBytes wraps an existing byte slice. The slice length must match shape and dtype.
func FromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	want, err := shape.ByteSize(dtype.Size())
	if err != nil {
		return nil, err
	}
	if len(data) != want {
		return nil, fmt.Errorf("data size mismatch for shape %v %s: expected %d bytes, got %d",
			shape, dtype, want, len(data))
	}
	return &RawTensor{data: data, shape: shape.Clone(), dtype: dtype}, nil
}

// FromFloat64 encodes values as a Float64 tensor. The values are copied.
func FromFloat64(shape Shape, values []float64) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float64)
	if err != nil {
		return nil, err
	}
	if len(values) != shape.NumElements() {
		return nil, fmt.Errorf("value count mismatch for shape %v: expected %d, got %d",
			shape, shape.NumElements(), len(values))
	}
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw.data[i*8:], math.Float64bits(v))
	}
	return raw, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
func (r *RawTensor) Data() []byte {
	return r.data
}

// Float64s decodes the buffer into a new []float64, widening float32 data.
func (r *RawTensor) Float64s() []float64 {
	n := r.NumElements()
	out := make([]float64, n)
	switch r.dtype {
	case Float64:
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(r.data[i*8:]))
		}
	case Float32:
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(r.data[i*4:])))
		}
	default:
		panic(fmt.Sprintf("tensor dtype is %s, not a float type", r.dtype))
	}
	return out
}

// Named pairs a tensor with its state-dict key.
type Named struct {
	Name   string
	Tensor *RawTensor
}
