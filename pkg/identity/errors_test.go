package identity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	err := NewError(CodeConflict, "A group with this name already exists")
	assert.Equal(t, CodeConflict, CodeOf(err))
	assert.Equal(t, "A group with this name already exists", err.Error())

	// classification survives wrapping
	wrapped := fmt.Errorf("creating group: %w", err)
	assert.Equal(t, CodeConflict, CodeOf(wrapped))
	assert.True(t, IsConflict(wrapped))

	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain error")))
	assert.Equal(t, CodeInternal, CodeOf(nil))
}

func TestIsNotFound(t *testing.T) {
	err := Errorf(CodeNotFound, "User with ID %d not found", 9)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "User with ID 9 not found", err.Error())
	assert.False(t, IsNotFound(errors.New("nope")))
}
