package runstate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/artpromedia/aivo-sequencing/internal/engine"
)

// PinnedClock is an engine.Clock that returns one pinned instant until
// moved.
//
// The run path pins it to the wall clock once per orchestrator call and
// records that instant on the event; replay pins it to each recorded
// instant before re-applying the event. Every clock read inside a call
// then observes the same instant in both runs, so time-derived tracking
// values (attempt start, elapsed time) rebuild exactly.
type PinnedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewPinnedClock creates a clock pinned at the given instant.
// Instants normalize to UTC so live and replayed state encode identically.
func NewPinnedClock(at time.Time) *PinnedClock {
	return &PinnedClock{now: at.UTC()}
}

// Now returns the pinned instant. Implements engine.Clock.
func (c *PinnedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pin moves the clock to a new instant.
func (c *PinnedClock) Pin(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at.UTC()
}

// DivergenceError reports the first replayed event whose outcome differs
// from the recorded one. It means the log, the course definition and the
// seed no longer agree, usually because the course changed after the
// events were written.
type DivergenceError struct {
	Seq      int64
	Request  string
	Recorded string
	Replayed string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("replay diverged at seq %d (%s): recorded %q, replayed %q",
		e.Seq, e.Request, e.Recorded, e.Replayed)
}

// Replay feeds a registration's event log back through a fresh session in
// sequence order and verifies each recorded outcome still holds.
//
// sess must be built over the registration's course with the
// registration's seed and with clock as its engine.Clock. Replay pins the
// clock to each event's recorded instant before applying it. On the first
// outcome mismatch it stops and returns a DivergenceError; corrupt events
// surface as plain errors.
func Replay(sess *engine.Session, clock *PinnedClock, events []NavEvent) error {
	for _, ev := range events {
		clock.Pin(ev.At)
		replayed, err := replayEvent(sess, ev)
		if err != nil {
			return err
		}
		if replayed.Outcome() != ev.Outcome() {
			return &DivergenceError{
				Seq:      ev.Seq,
				Request:  ev.Describe(),
				Recorded: ev.Outcome(),
				Replayed: replayed.Outcome(),
			}
		}
	}
	return nil
}

func replayEvent(sess *engine.Session, ev NavEvent) (NavEvent, error) {
	switch ev.Kind {
	case EventNavigation:
		req, err := engine.ParseNavigationRequest(ev.Request)
		if err != nil {
			return NavEvent{}, fmt.Errorf("replay seq %d: %w", ev.Seq, err)
		}
		del, navErr := sess.ProcessNavigation(req)
		return NavigationEvent(req, del, navErr, ev.At), nil
	case EventResult:
		if ev.Result == nil {
			return NavEvent{}, fmt.Errorf("replay seq %d: result event has no payload", ev.Seq)
		}
		callErr := sess.RecordResult(ev.Result.EngineResult())
		return ResultEvent(ev.Result.EngineResult(), callErr, ev.At), nil
	}
	return NavEvent{}, fmt.Errorf("replay seq %d: unknown event kind %q", ev.Seq, ev.Kind)
}

// SameState reports whether two snapshots carry identical tracking state.
//
// Comparison goes through the JSON encoding: map keys marshal sorted and
// wall-clock monotonic readings are stripped, so two snapshots of the
// same logical state always compare equal.
func SameState(a, b *engine.SessionSnapshot) (bool, error) {
	aj, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("encode snapshot: %w", err)
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("encode snapshot: %w", err)
	}
	return bytes.Equal(aj, bj), nil
}
