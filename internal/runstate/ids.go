package runstate

import "github.com/google/uuid"

// IDGenerator mints registration identifiers.
//
// Production uses UUIDv7Generator; tests substitute a fixed-token
// generator so registration records compare byte-identical across runs.
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates UUIDv7 registration identifiers.
//
// UUIDv7 embeds a millisecond timestamp in the high bits, so identifiers
// sort by creation time. That keeps registration listings and the
// registrations table index in enrollment order without a separate
// sequence column.
//
// Thread-safety: safe for concurrent use; the generator holds no state.
type UUIDv7Generator struct{}

// NewID returns a new hyphenated UUIDv7 string.
func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
