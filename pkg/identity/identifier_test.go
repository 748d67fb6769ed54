package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIdentifier(t *testing.T) {
	ident := ParseIdentifier("42")
	assert.True(t, ident.IsID())
	assert.Equal(t, int64(42), ident.ID())
	assert.Equal(t, "42", ident.String())

	ident = ParseIdentifier("alice@example.com")
	assert.False(t, ident.IsID())
	assert.Equal(t, "alice@example.com", ident.Name())
	assert.Equal(t, "alice@example.com", ident.String())

	// mixed alphanumerics are names, not IDs
	ident = ParseIdentifier("42abc")
	assert.False(t, ident.IsID())
	assert.Equal(t, "42abc", ident.Name())
}

func TestIdentifierConstructors(t *testing.T) {
	assert.True(t, ByID(7).IsID())
	assert.Equal(t, int64(7), ByID(7).ID())
	assert.False(t, ByName("editors").IsID())
	assert.Equal(t, "editors", ByName("editors").Name())
}
