package activity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Completion is the tri-state completion status of an attempt.
// The zero value is CompletionUnknown.
type Completion int

const (
	// CompletionUnknown means no completion status has been recorded.
	CompletionUnknown Completion = iota

	// CompletionIncomplete means the attempt was reported incomplete.
	CompletionIncomplete

	// CompletionCompleted means the attempt was reported completed.
	CompletionCompleted
)

// String returns the vocabulary token for the completion status.
func (c Completion) String() string {
	switch c {
	case CompletionIncomplete:
		return "incomplete"
	case CompletionCompleted:
		return "completed"
	}
	return "unknown"
}

// ParseCompletion maps a vocabulary token to a Completion.
// The empty string defaults to "unknown".
func ParseCompletion(s string) (Completion, error) {
	switch s {
	case "unknown", "":
		return CompletionUnknown, nil
	case "incomplete":
		return CompletionIncomplete, nil
	case "completed":
		return CompletionCompleted, nil
	}
	return 0, fmt.Errorf("unknown completion status %q", s)
}

// MarshalJSON encodes the status as its vocabulary token.
func (c Completion) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a vocabulary token.
func (c *Completion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCompletion(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ObjectiveProgress is the tracked state of one objective. Satisfaction and
// measure are each tri-state: a value is meaningful only when the matching
// Known flag is set.
type ObjectiveProgress struct {
	// SatisfiedKnown records whether satisfaction has ever been set.
	SatisfiedKnown bool `json:"satisfiedKnown"`

	// Satisfied is the satisfaction status, valid only when SatisfiedKnown.
	Satisfied bool `json:"satisfied"`

	// MeasureKnown records whether a measure has ever been set.
	MeasureKnown bool `json:"measureKnown"`

	// Measure is the normalized measure in [-1, 1], valid only when MeasureKnown.
	Measure float64 `json:"measure"`
}

// SetSatisfied records a satisfaction status.
func (p *ObjectiveProgress) SetSatisfied(satisfied bool) {
	p.SatisfiedKnown = true
	p.Satisfied = satisfied
}

// SetMeasure records a normalized measure.
func (p *ObjectiveProgress) SetMeasure(measure float64) {
	p.MeasureKnown = true
	p.Measure = measure
}

// Reset clears both satisfaction and measure back to unknown.
func (p *ObjectiveProgress) Reset() {
	*p = ObjectiveProgress{}
}

// AttemptState summarizes where an activity stands in its attempt lifecycle.
type AttemptState int

const (
	// AttemptNotStarted means the activity has never been attempted.
	AttemptNotStarted AttemptState = iota

	// AttemptActive means an attempt is currently open.
	AttemptActive

	// AttemptSuspended means an attempt is paused and may be resumed.
	AttemptSuspended

	// AttemptEnded means the most recent attempt has terminated.
	AttemptEnded
)

// String returns a readable name for the attempt state.
func (s AttemptState) String() string {
	switch s {
	case AttemptNotStarted:
		return "notStarted"
	case AttemptActive:
		return "active"
	case AttemptSuspended:
		return "suspended"
	case AttemptEnded:
		return "ended"
	}
	return fmt.Sprintf("AttemptState(%d)", int(s))
}

// Tracking is the mutable per-registration state of one activity.
//
// The engine is the only writer. Structural data (children, rules, limits)
// never lives here; everything in Tracking may change as the learner moves
// through the course and is captured by tree snapshots.
type Tracking struct {
	// Active is true while an attempt is open on the activity.
	Active bool `json:"active,omitempty"`

	// Suspended is true while an attempt is paused awaiting resumption.
	Suspended bool `json:"suspended,omitempty"`

	// AttemptCount is the number of attempts ever begun. It is never reset,
	// so attempt limits hold across retries.
	AttemptCount int `json:"attemptCount,omitempty"`

	// Completion is the completion status of the current/latest attempt.
	Completion Completion `json:"completion,omitempty"`

	// AttemptStart is the wall-clock instant the open attempt began.
	// Zero when no attempt is open.
	AttemptStart time.Time `json:"attemptStart,omitzero"`

	// AttemptElapsed is the accumulated experienced duration of the
	// current/latest attempt.
	AttemptElapsed time.Duration `json:"attemptElapsed,omitempty"`

	// Objectives holds per-objective progress keyed by local objective ID.
	// The primary objective of an activity without declared objectives is
	// keyed by the empty string.
	Objectives map[string]*ObjectiveProgress `json:"objectives,omitempty"`

	// AvailableChildren is the active child ordering for a cluster after
	// selection and randomization. Nil means the static order applies.
	AvailableChildren []string `json:"availableChildren,omitempty"`

	// SelectionDrawn marks that a once-timing selection has been frozen.
	SelectionDrawn bool `json:"selectionDrawn,omitempty"`

	// SelectionAttempt is the attempt number for which children were last
	// selected. Zero means never.
	SelectionAttempt int `json:"selectionAttempt,omitempty"`

	// RandomizedAttempt is the attempt number for which the child order was
	// last shuffled. Zero means never.
	RandomizedAttempt int `json:"randomizedAttempt,omitempty"`
}

// State derives the attempt lifecycle state.
func (t *Tracking) State() AttemptState {
	switch {
	case t.Active:
		return AttemptActive
	case t.Suspended:
		return AttemptSuspended
	case t.AttemptCount > 0:
		return AttemptEnded
	}
	return AttemptNotStarted
}

// Attempted reports whether the activity has ever begun an attempt.
func (t *Tracking) Attempted() bool {
	return t.AttemptCount > 0
}

// Objective returns the progress record for the given local objective ID,
// creating it on first use.
func (t *Tracking) Objective(id string) *ObjectiveProgress {
	if t.Objectives == nil {
		t.Objectives = make(map[string]*ObjectiveProgress)
	}
	p, ok := t.Objectives[id]
	if !ok {
		p = &ObjectiveProgress{}
		t.Objectives[id] = p
	}
	return p
}

// Progress returns the progress record for the given local objective ID
// without creating one. Nil means nothing has been recorded, which readers
// treat the same as a record with both facets unknown.
func (t *Tracking) Progress(id string) *ObjectiveProgress {
	return t.Objectives[id]
}

// ResetAttempt clears attempt-scoped state ahead of a fresh attempt while
// preserving attempt counts and frozen selection/randomization outcomes.
func (t *Tracking) ResetAttempt() {
	t.Active = false
	t.Suspended = false
	t.Completion = CompletionUnknown
	t.AttemptStart = time.Time{}
	t.AttemptElapsed = 0
	t.Objectives = nil
}

// clone returns a deep copy of the tracking record.
func (t *Tracking) clone() Tracking {
	out := *t
	if t.Objectives != nil {
		out.Objectives = make(map[string]*ObjectiveProgress, len(t.Objectives))
		for id, p := range t.Objectives {
			cp := *p
			out.Objectives[id] = &cp
		}
	}
	if t.AvailableChildren != nil {
		out.AvailableChildren = make([]string, len(t.AvailableChildren))
		copy(out.AvailableChildren, t.AvailableChildren)
	}
	return out
}
