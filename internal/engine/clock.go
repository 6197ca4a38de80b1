package engine

import (
	"sync/atomic"
	"time"
)

// Clock abstracts wall-clock time. Attempt durations and available time
// ranges are evaluated against it, so tests and replays can substitute a
// deterministic implementation.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// eventClock is a monotonic counter stamping processed navigation requests.
//
// Every request a session processes gets a strictly increasing stamp,
// exceptions included. This orders the navigation trace without wall-clock
// race conditions and lets a replay reproduce the identical order.
//
// Thread-safety: safe for concurrent use (atomic operations). The session's
// single-writer design means only one goroutine typically calls next().
type eventClock struct {
	seq atomic.Int64
}

// next returns the next stamp and increments the clock.
func (c *eventClock) next() int64 {
	return c.seq.Add(1)
}

// current returns the latest stamp without incrementing.
func (c *eventClock) current() int64 {
	return c.seq.Load()
}
