package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/memory"
)

func TestRuntimeError_Message(t *testing.T) {
	err := &RuntimeError{Code: ErrCodeType, Message: "bad", Stream: "c", Params: ir.Parameters{ir.Int(5)}}
	assert.Equal(t, "TYPE_ERROR: bad (stream=c, instance=(5))", err.Error())

	err = &RuntimeError{Code: ErrCodeConfiguration, Message: "bad"}
	assert.Equal(t, "CONFIGURATION_ERROR: bad", err.Error())
}

func TestWrapMemoryError(t *testing.T) {
	nf := wrapMemoryError(&memory.InstanceNotFoundError{Params: ir.Parameters{ir.Int(1)}}, "c")
	assert.True(t, IsInstanceNotFound(nf))
	var mem *memory.InstanceNotFoundError
	assert.True(t, errors.As(nf, &mem), "memory error stays reachable")

	oob := wrapMemoryError(&memory.OutOfBoundsError{Offset: 4, Capacity: 2}, "a")
	require.True(t, IsOutOfBounds(oob))
	var re *RuntimeError
	require.True(t, errors.As(oob, &re))
	assert.Equal(t, "4", re.Details["accessed_offset"])
	assert.Equal(t, "2", re.Details["buffer_size"])

	other := errors.New("boom")
	assert.Same(t, other, wrapMemoryError(other, "a"))
}

func TestErrorHelpers_Wrapped(t *testing.T) {
	err := fmt.Errorf("driving monitor: %w", NewTypeError("x"))
	assert.True(t, IsTypeError(err))
	assert.False(t, IsConfigurationError(err))
	assert.False(t, IsInstanceNotFound(err))
	assert.True(t, IsOutOfBounds(&memory.OutOfBoundsError{}))
}
