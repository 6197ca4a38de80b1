package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
)

// ErrNoActiveAttempt is returned by RecordResult when no attempt is open to
// record against.
var ErrNoActiveAttempt = errors.New("no active attempt to record against")

// Session is the single-writer sequencing state machine for one
// registration.
//
// All mutations happen through ProcessNavigation and RecordResult, called
// from one goroutine at a time. A navigation request either commits
// completely or leaves every piece of tracking state untouched: the session
// snapshots the tree before working and restores it when any phase raises a
// sequencing exception.
//
// INVARIANTS:
//   - Structure (tree shape, rules, control modes) never changes after
//     construction.
//   - An exception implies no state change and carries a stable code.
//   - The event stamp increases by one per processed request, exceptions
//     included.
type Session struct {
	tree   *activity.Tree
	clock  Clock
	rng    *rand.Rand
	logger *slog.Logger
	events eventClock

	current     string
	suspendedID string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock substitutes the wall clock so time-based limit checks become
// deterministic.
func WithClock(c Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// WithRandomSeed pins child selection and randomization to a deterministic
// sequence. Two sessions over the same course with the same seed and the
// same requests draw identical child orderings.
func WithRandomSeed(seed uint64) SessionOption {
	return func(s *Session) { s.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithLogger routes the session's navigation log.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a Session over a built activity tree.
//
// Defaults are the system clock, an unpredictable randomization seed and
// slog.Default(); options override each.
func NewSession(tree *activity.Tree, opts ...SessionOption) *Session {
	s := &Session{
		tree:   tree,
		clock:  SystemClock(),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tree returns the session's activity tree.
func (s *Session) Tree() *activity.Tree { return s.tree }

// Current returns the current activity, nil when the session has none.
func (s *Session) Current() *activity.Activity { return s.currentActivity() }

// Suspended returns the suspended activity, nil when none.
func (s *Session) Suspended() *activity.Activity { return s.tree.Get(s.suspendedID) }

// EventStamp returns the stamp of the most recently processed request.
func (s *Session) EventStamp() int64 { return s.events.current() }

func (s *Session) currentActivity() *activity.Activity {
	if s.current == "" {
		return nil
	}
	return s.tree.Get(s.current)
}

// ProcessNavigation runs one navigation request through validation,
// termination, sequencing and delivery.
//
// On an exception every tracking mutation made along the way rolls back,
// so callers observe all-or-nothing behavior per request.
func (s *Session) ProcessNavigation(req NavigationRequest) (Delivery, error) {
	seq := s.events.next()
	snap := s.Snapshot()
	del, err := s.processNavigation(req)
	if err != nil {
		s.restore(snap)
		code, _ := CodeOf(err)
		s.logger.Debug("navigation rejected",
			"seq", seq,
			"request", req.String(),
			"exception", string(code),
		)
		return Delivery{}, err
	}
	s.logger.Debug("navigation processed",
		"seq", seq,
		"request", req.String(),
		"valid", del.Valid,
		"activity", del.ActivityID,
		"ended", del.Ended,
	)
	return del, nil
}

// Result is a content-reported outcome for the current attempt.
type Result struct {
	// Completion sets the attempt completion when not unknown.
	Completion activity.Completion

	// Satisfied sets primary objective satisfaction when non-nil.
	Satisfied *bool

	// Measure sets the primary objective measure when non-nil, in [-1, 1].
	Measure *float64

	// Elapsed credits experienced time to the attempt. The wall-clock
	// segment it covers restarts at the report, so reported and measured
	// time never double count.
	Elapsed time.Duration
}

// RecordResult applies a content report to the current activity and rolls
// the change up so rules elsewhere in the tree see it immediately.
// Reports against untracked activities are discarded.
func (s *Session) RecordResult(r Result) error {
	cur := s.currentActivity()
	if cur == nil || !cur.Tracking.Active {
		return ErrNoActiveAttempt
	}
	if r.Measure != nil && (*r.Measure < -1 || *r.Measure > 1) {
		return fmt.Errorf("measure %v outside [-1, 1]", *r.Measure)
	}
	if !cur.Tracked() {
		s.logger.Debug("result discarded for untracked activity", "activity", cur.ID)
		return nil
	}

	tr := &cur.Tracking
	if r.Completion != activity.CompletionUnknown {
		tr.Completion = r.Completion
	}
	p := cur.PrimaryProgress()
	if r.Satisfied != nil {
		p.SetSatisfied(*r.Satisfied)
	}
	if r.Measure != nil {
		p.SetMeasure(*r.Measure)
		if obj := cur.Sequencing.PrimaryObjective(); obj != nil && obj.SatisfiedByMeasure {
			p.SetSatisfied(*r.Measure >= obj.MinNormalizedMeasure)
		}
	}
	if r.Elapsed > 0 {
		tr.AttemptElapsed += r.Elapsed
		tr.AttemptStart = s.clock.Now()
	}
	s.rollup(cur)
	return nil
}

// SessionSnapshot is the complete mutable state of a session, exportable
// for persistence and restorable into a session over the same course.
type SessionSnapshot struct {
	Current   string             `json:"current,omitempty"`
	Suspended string             `json:"suspended,omitempty"`
	Tree      *activity.Snapshot `json:"tree"`
}

// Snapshot captures the session's mutable state.
func (s *Session) Snapshot() *SessionSnapshot {
	return &SessionSnapshot{
		Current:   s.current,
		Suspended: s.suspendedID,
		Tree:      s.tree.Snapshot(),
	}
}

// RestoreSnapshot replaces the session's mutable state. The snapshot must
// reference activities present in the session's tree.
func (s *Session) RestoreSnapshot(snap *SessionSnapshot) error {
	if snap.Current != "" && s.tree.Get(snap.Current) == nil {
		return fmt.Errorf("snapshot current activity %q not in tree", snap.Current)
	}
	if snap.Suspended != "" && s.tree.Get(snap.Suspended) == nil {
		return fmt.Errorf("snapshot suspended activity %q not in tree", snap.Suspended)
	}
	s.restore(snap)
	return nil
}

func (s *Session) restore(snap *SessionSnapshot) {
	s.current = snap.Current
	s.suspendedID = snap.Suspended
	s.tree.Restore(snap.Tree)
}
