package memory

import (
	"fmt"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// InstanceNotFoundError reports an instance-scoped access with no live buffer.
type InstanceNotFoundError struct {
	Params ir.Parameters
}

func (e *InstanceNotFoundError) Error() string {
	if e.Params == nil {
		return "stream is not alive"
	}
	return fmt.Sprintf("no live instance for parameters (%s)", e.Params)
}

// OutOfBoundsError reports a read beyond the retained history depth.
type OutOfBoundsError struct {
	Offset   int
	Capacity int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("offset %d exceeds retained history of %d values", e.Offset, e.Capacity)
}
