// Package runstate defines the durable records kept per registration and
// the Store contract their backends implement.
//
// A registration ties one learner to one course. Everything the engine
// mutates while serving that learner is captured in two places:
//
//   - the latest engine.SessionSnapshot, replaced on every successful save
//   - an append-only navigation event log, one NavEvent per orchestrator
//     call (navigation request or runtime result report)
//
// The log carries enough to rebuild the snapshot from scratch: replaying
// the events through a fresh session over the same course, seed and
// recorded instants reproduces the tracking state exactly. See Replay.
package runstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
	"github.com/artpromedia/aivo-sequencing/internal/engine"
)

// ErrNotFound is returned when a registration or its saved state does not
// exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when creating a registration whose ID is already
// taken.
var ErrExists = errors.New("registration already exists")

// Registration ties a learner to a course.
//
// Seed is fixed at enrollment and never changes: child selection and
// randomization draws depend on it, so a re-materialized session over the
// same course and seed reproduces the orderings the learner saw.
type Registration struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"courseId"`
	LearnerID string    `json:"learnerId"`
	Seed      uint64    `json:"seed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EventKind distinguishes the two orchestrator entry points.
type EventKind string

const (
	// EventNavigation is a ProcessNavigation call.
	EventNavigation EventKind = "navigation"

	// EventResult is a RecordResult call.
	EventResult EventKind = "result"
)

// NavEvent is one recorded orchestrator call against a registration.
//
// Seq is the per-registration logical clock, assigned by the store on
// append. All ordering uses Seq, never At: the recorded instant exists to
// rebuild time-derived tracking values on replay, not to order events.
type NavEvent struct {
	Seq       int64           `json:"seq"`
	Kind      EventKind       `json:"kind"`
	Request   string          `json:"request,omitempty"`
	Result    *ReportedResult `json:"result,omitempty"`
	Delivered string          `json:"delivered,omitempty"`
	Ended     bool            `json:"ended,omitempty"`
	Exception string          `json:"exception,omitempty"`
	At        time.Time       `json:"at"`
}

// ReportedResult is the logged form of a runtime result report.
type ReportedResult struct {
	Completion activity.Completion `json:"completion"`
	Satisfied  *bool               `json:"satisfied,omitempty"`
	Measure    *float64            `json:"measure,omitempty"`
	Elapsed    time.Duration       `json:"elapsed,omitempty"`
}

// EngineResult converts the logged form back into the engine's call
// argument.
func (r *ReportedResult) EngineResult() engine.Result {
	return engine.Result{
		Completion: r.Completion,
		Satisfied:  r.Satisfied,
		Measure:    r.Measure,
		Elapsed:    r.Elapsed,
	}
}

// String renders the report for traces, listing only the values it sets.
func (r ReportedResult) String() string {
	parts := []string{"result"}
	if r.Completion != activity.CompletionUnknown {
		parts = append(parts, "completion="+r.Completion.String())
	}
	if r.Satisfied != nil {
		parts = append(parts, fmt.Sprintf("satisfied=%t", *r.Satisfied))
	}
	if r.Measure != nil {
		parts = append(parts, fmt.Sprintf("measure=%g", *r.Measure))
	}
	if r.Elapsed > 0 {
		parts = append(parts, "elapsed="+r.Elapsed.String())
	}
	return strings.Join(parts, " ")
}

// NavigationEvent builds the log record for one ProcessNavigation call.
//
// A sequencing exception is recorded by its code; the rare non-exception
// error is recorded by its message. Seq stays zero until the store assigns
// it on append.
func NavigationEvent(req engine.NavigationRequest, del engine.Delivery, callErr error, at time.Time) NavEvent {
	ev := NavEvent{
		Kind:    EventNavigation,
		Request: req.String(),
		At:      at,
	}
	if callErr != nil {
		if code, ok := engine.CodeOf(callErr); ok {
			ev.Exception = string(code)
		} else {
			ev.Exception = callErr.Error()
		}
		return ev
	}
	ev.Delivered = del.ActivityID
	ev.Ended = del.Ended
	return ev
}

// ResultEvent builds the log record for one RecordResult call.
func ResultEvent(r engine.Result, callErr error, at time.Time) NavEvent {
	ev := NavEvent{
		Kind: EventResult,
		Result: &ReportedResult{
			Completion: r.Completion,
			Satisfied:  r.Satisfied,
			Measure:    r.Measure,
			Elapsed:    r.Elapsed,
		},
		At: at,
	}
	if callErr != nil {
		ev.Exception = callErr.Error()
	}
	return ev
}

// Describe renders the event's input for traces: the navigation request
// wire form, or the reported result values.
func (e NavEvent) Describe() string {
	if e.Kind == EventResult && e.Result != nil {
		return e.Result.String()
	}
	return e.Request
}

// Outcome renders the event's recorded outcome for traces and replay
// comparison.
func (e NavEvent) Outcome() string {
	switch {
	case e.Exception != "":
		return e.Exception
	case e.Ended:
		return "ended"
	case e.Delivered != "":
		return "deliver " + e.Delivered
	default:
		return "ok"
	}
}

// Store is durable run state for registrations: the registration records,
// the latest session snapshot per registration, and the append-only
// navigation event log.
//
// Callers serialize writes per registration; the store guarantees that a
// save commits atomically, so a crash never leaves an event without the
// snapshot it produced.
type Store interface {
	// CreateRegistration persists a new registration.
	// Returns ErrExists when the ID is already taken.
	CreateRegistration(ctx context.Context, reg *Registration) error

	// ReadRegistration loads a registration by ID.
	// Returns ErrNotFound when absent.
	ReadRegistration(ctx context.Context, id string) (*Registration, error)

	// SaveState replaces the registration's snapshot and, when ev is
	// non-nil, appends ev to its event log, all in one transaction. The
	// store assigns the event's sequence number, writes it into ev.Seq
	// and returns it; the returned seq is 0 when ev is nil.
	SaveState(ctx context.Context, registrationID string, snap *engine.SessionSnapshot, ev *NavEvent) (int64, error)

	// ReadState loads the registration's latest snapshot.
	// Returns ErrNotFound when no state has been saved yet.
	ReadState(ctx context.Context, registrationID string) (*engine.SessionSnapshot, error)

	// ReadEvents returns the registration's events with Seq greater than
	// afterSeq, in ascending sequence order. afterSeq 0 reads the whole
	// log. A registration with no matching events yields an empty slice.
	ReadEvents(ctx context.Context, registrationID string, afterSeq int64) ([]NavEvent, error)

	// Close releases the store's resources.
	Close() error
}
