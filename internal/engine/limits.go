package engine

import "github.com/artpromedia/aivo-sequencing/internal/activity"

// limitExceeded reports whether the activity's limit conditions bar it from
// delivery.
//
// The attempt limit gates beginning a new attempt, so an activity whose
// attempt is still open or suspended is not barred by the count that
// attempt already consumed. Duration and available-time limits apply
// unconditionally.
func (s *Session) limitExceeded(a *activity.Activity) bool {
	lim := a.Sequencing.Limits
	if lim.AttemptLimit != nil && !a.Tracking.Active && !a.Tracking.Suspended &&
		a.Tracking.AttemptCount >= *lim.AttemptLimit {
		return true
	}
	if lim.AttemptDurationLimit != nil && s.attemptElapsed(a) >= *lim.AttemptDurationLimit {
		return true
	}
	return s.outsideAvailableTime(a)
}

// disabled reports whether a disabled pre-condition rule fires for a.
func (s *Session) disabled(a *activity.Activity) bool {
	return s.preActionFires(a, activity.ActionDisabled)
}

// unavailable reports whether a is barred from delivery, flow and choice:
// disabled by rule or outside its limit conditions.
func (s *Session) unavailable(a *activity.Activity) bool {
	return s.disabled(a) || s.limitExceeded(a)
}

// inEffectiveSet reports whether a sits in its parent's effective child
// set. Children removed by selection are not valid navigation targets.
func (s *Session) inEffectiveSet(a *activity.Activity) bool {
	p := s.tree.Parent(a)
	if p == nil {
		return true
	}
	for _, kid := range s.tree.AvailableChildren(p) {
		if kid.ID == a.ID {
			return true
		}
	}
	return false
}
