package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIDGenerator_Increments(t *testing.T) {
	gen := NewSequenceIDGenerator("reg")

	assert.Equal(t, "reg-0001", gen.NewID())
	assert.Equal(t, "reg-0002", gen.NewID())
	assert.Equal(t, "reg-0003", gen.NewID())
}

func TestSequenceIDGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequenceIDGenerator("")

	// Empty prefix uses default
	assert.Equal(t, "test-reg-0001", gen.NewID())
}

func TestSequenceIDGenerator_IndependentCounters(t *testing.T) {
	a := NewSequenceIDGenerator("a")
	b := NewSequenceIDGenerator("b")

	assert.Equal(t, "a-0001", a.NewID())
	assert.Equal(t, "b-0001", b.NewID())
	assert.Equal(t, "a-0002", a.NewID())
}
