package tensor

import (
	"errors"
	"fmt"
	"math"
)

// ErrTooLarge is returned when a shape's byte size does not fit in an int.
var ErrTooLarge = errors.New("tensor too large")

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// ByteSize returns NumElements()*elemSize, failing with ErrTooLarge instead
// of overflowing. Dimensions must already be positive.
func (s Shape) ByteSize(elemSize int) (int, error) {
	if elemSize <= 0 {
		return 0, fmt.Errorf("invalid element size %d", elemSize)
	}
	n := elemSize
	for _, dim := range s {
		if dim > math.MaxInt/n {
			return 0, fmt.Errorf("%w: shape %v of %d-byte elements", ErrTooLarge, s, elemSize)
		}
		n *= dim
	}
	return n, nil
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// String formats the shape as [d0 d1 ...].
func (s Shape) String() string {
	return fmt.Sprint([]int(s))
}
