package testutil

import "fmt"

// SequenceIDGenerator generates registration IDs from a fixed prefix and a
// counter.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with the same generator produces byte-identical
// registration records, where the production UUIDv7 generator would not.
//
// Thread-safety: not safe for concurrent use; tests generate IDs from one
// goroutine.
type SequenceIDGenerator struct {
	prefix string
	n      int
}

// NewSequenceIDGenerator creates a generator with the given prefix.
//
// If prefix is empty, IDs take the form "test-reg-0001".
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "test-reg"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// NewID returns the next ID in sequence.
//
// Implements runstate.IDGenerator.
func (g *SequenceIDGenerator) NewID() string {
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
