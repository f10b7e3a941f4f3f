package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("commit: %w", ErrInvalidAssignment)

	assert.True(t, errors.Is(wrapped, ErrInvalidAssignment))
	assert.True(t, errors.Is(wrapped, ErrValidation))
	assert.False(t, errors.Is(wrapped, ErrPassedDate))
	assert.True(t, IsValidation(wrapped))
	assert.False(t, IsNotFound(wrapped))
}

func TestWrapError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError("store", "Dump", ErrInvalidState, "persist failed", cause)

	assert.Equal(t, "store.Dump: persist failed: connection refused", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrInvalidState))

	var de *DomainError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &de))
	assert.Equal(t, "Dump", de.Op)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrKeyNotFound))
	assert.False(t, IsNotFound(ErrLimitReached))
}

func TestWrapError_KindChain(t *testing.T) {
	err := WrapError("assignment", "Add", ErrLimitReached, "Assignments limit has been reached. (24)", nil)

	assert.True(t, errors.Is(err, ErrLimitReached))
	assert.True(t, IsValidation(err))

	var de *DomainError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, "Assignments limit has been reached. (24)", de.Message)
}
