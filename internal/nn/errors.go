package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/fcnet/internal/tensor"
)

// ErrShapeMismatch is matched (via errors.Is) by every ShapeMismatchError.
var ErrShapeMismatch = errors.New("shape mismatch")

// ShapeMismatchError reports parameters that do not fit a descriptor.
//
// Name is the offending parameter key. Expected or Got is nil when the
// parameter is missing from one side entirely.
type ShapeMismatchError struct {
	Name     string
	Expected tensor.Shape
	Got      tensor.Shape
	Details  string
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	switch {
	case e.Details != "":
		return fmt.Sprintf("shape mismatch: %s: %s", e.Name, e.Details)
	case e.Got == nil:
		return fmt.Sprintf("shape mismatch: %s: missing, expected %v", e.Name, e.Expected)
	case e.Expected == nil:
		return fmt.Sprintf("shape mismatch: %s: unexpected parameter with shape %v", e.Name, e.Got)
	default:
		return fmt.Sprintf("shape mismatch: %s: expected %v, got %v", e.Name, e.Expected, e.Got)
	}
}

// Is makes errors.Is(err, ErrShapeMismatch) true.
func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}
