package engine

import (
	"time"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
)

// truth is the tri-state outcome of a condition evaluation. Conditions over
// tracking values that have never been recorded evaluate to truthUnknown.
type truth int8

const (
	truthUnknown truth = iota
	truthFalse
	truthTrue
)

// negate flips true and false; unknown stays unknown.
func (t truth) negate() truth {
	switch t {
	case truthTrue:
		return truthFalse
	case truthFalse:
		return truthTrue
	}
	return truthUnknown
}

func truthOf(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

// objectiveView is an objective's state as rule evaluation sees it.
//
// Facets come from the activity's local progress unless the objective
// declares a read map for the facet, in which case the shared objective's
// state replaces the local one wholesale: an unwritten shared objective
// reads as unknown even when local progress exists.
type objectiveView struct {
	satisfiedKnown bool
	satisfied      bool
	measureKnown   bool
	measure        float64
}

// objectiveView resolves the named local objective of a. An empty ID means
// the primary objective. Resolution never creates progress records.
func (s *Session) objectiveView(a *activity.Activity, objectiveID string) objectiveView {
	key := objectiveID
	if key == "" {
		key = a.PrimaryObjectiveKey()
	}

	var v objectiveView
	if p := a.Tracking.Progress(key); p != nil {
		v.satisfiedKnown = p.SatisfiedKnown
		v.satisfied = p.Satisfied
		v.measureKnown = p.MeasureKnown
		v.measure = p.Measure
	}

	obj := a.Sequencing.ObjectiveByID(objectiveID)
	if obj == nil {
		return v
	}
	for _, m := range obj.Maps {
		if !m.ReadSatisfied && !m.ReadMeasure {
			continue
		}
		shared := s.tree.SharedProgress(m.Target)
		if m.ReadSatisfied {
			v.satisfiedKnown = shared != nil && shared.SatisfiedKnown
			v.satisfied = shared != nil && shared.Satisfied
		}
		if m.ReadMeasure {
			v.measureKnown = shared != nil && shared.MeasureKnown
			v.measure = 0
			if shared != nil && shared.MeasureKnown {
				v.measure = shared.Measure
			}
		}
	}
	return v
}

// attemptElapsed returns the experienced duration of the current or latest
// attempt, extended to the present instant while the attempt is open.
func (s *Session) attemptElapsed(a *activity.Activity) time.Duration {
	d := a.Tracking.AttemptElapsed
	if a.Tracking.Active && !a.Tracking.AttemptStart.IsZero() {
		d += s.clock.Now().Sub(a.Tracking.AttemptStart)
	}
	return d
}

// outsideAvailableTime reports whether the present instant falls outside the
// activity's available time range. Unset bounds do not constrain.
func (s *Session) outsideAvailableTime(a *activity.Activity) bool {
	lim := a.Sequencing.Limits
	if lim.Begin == nil && lim.End == nil {
		return false
	}
	now := s.clock.Now()
	if lim.Begin != nil && now.Before(*lim.Begin) {
		return true
	}
	if lim.End != nil && now.After(*lim.End) {
		return true
	}
	return false
}

// conditionTruth evaluates one condition against a's tracking state, before
// any negation.
func (s *Session) conditionTruth(a *activity.Activity, c activity.RuleCondition) truth {
	switch c.Condition {
	case activity.ConditionAlways:
		return truthTrue

	case activity.ConditionSatisfied:
		v := s.objectiveView(a, c.Objective)
		if !v.satisfiedKnown {
			return truthUnknown
		}
		return truthOf(v.satisfied)

	case activity.ConditionObjectiveStatusKnown:
		return truthOf(s.objectiveView(a, c.Objective).satisfiedKnown)

	case activity.ConditionObjectiveMeasureKnown:
		return truthOf(s.objectiveView(a, c.Objective).measureKnown)

	case activity.ConditionObjectiveMeasureGreaterThan:
		v := s.objectiveView(a, c.Objective)
		if !v.measureKnown {
			return truthUnknown
		}
		return truthOf(v.measure > c.Threshold)

	case activity.ConditionObjectiveMeasureLessThan:
		v := s.objectiveView(a, c.Objective)
		if !v.measureKnown {
			return truthUnknown
		}
		return truthOf(v.measure < c.Threshold)

	case activity.ConditionCompleted:
		switch a.Tracking.Completion {
		case activity.CompletionCompleted:
			return truthTrue
		case activity.CompletionIncomplete:
			return truthFalse
		}
		return truthUnknown

	case activity.ConditionProgressKnown:
		return truthOf(a.Tracking.Completion != activity.CompletionUnknown)

	case activity.ConditionAttempted:
		return truthOf(a.Tracking.Attempted())

	case activity.ConditionAttemptLimitExceeded:
		lim := a.Sequencing.Limits.AttemptLimit
		if lim == nil {
			return truthFalse
		}
		return truthOf(a.Tracking.AttemptCount >= *lim)

	case activity.ConditionTimeLimitExceeded:
		lim := a.Sequencing.Limits.AttemptDurationLimit
		if lim == nil {
			return truthFalse
		}
		return truthOf(s.attemptElapsed(a) >= *lim)

	case activity.ConditionOutsideAvailableTimeRange:
		return truthOf(s.outsideAvailableTime(a))
	}
	return truthUnknown
}

// evalCondition evaluates one condition including its negation.
func (s *Session) evalCondition(a *activity.Activity, c activity.RuleCondition) truth {
	t := s.conditionTruth(a, c)
	if c.Not {
		t = t.negate()
	}
	return t
}

// combineConditions evaluates a condition set under the given combination
// using Kleene three-valued logic: "all" is true only when every condition
// is true, "any" is true when at least one is. A rule fires only on an
// exactly-true result, so a set left unknown never triggers an action.
func (s *Session) combineConditions(a *activity.Activity, comb activity.Combination, conds []activity.RuleCondition) truth {
	if len(conds) == 0 {
		return truthUnknown
	}
	if comb == activity.CombinationAny {
		out := truthFalse
		for _, c := range conds {
			switch s.evalCondition(a, c) {
			case truthTrue:
				return truthTrue
			case truthUnknown:
				out = truthUnknown
			}
		}
		return out
	}
	out := truthTrue
	for _, c := range conds {
		switch s.evalCondition(a, c) {
		case truthFalse:
			return truthFalse
		case truthUnknown:
			out = truthUnknown
		}
	}
	return out
}

// rulesCheck walks rules in author order and returns the action of the
// first rule whose conditions evaluate true, restricted to actions accepted
// by want.
func (s *Session) rulesCheck(a *activity.Activity, rules []activity.SequencingRule, want func(activity.RuleActionType) bool) (activity.RuleActionType, bool) {
	for _, r := range rules {
		if !want(r.Action) {
			continue
		}
		if s.combineConditions(a, r.Combination, r.Conditions) == truthTrue {
			return r.Action, true
		}
	}
	return 0, false
}

// preActionFires reports whether a pre-condition rule carrying exactly the
// given action fires for a.
func (s *Session) preActionFires(a *activity.Activity, action activity.RuleActionType) bool {
	_, ok := s.rulesCheck(a, a.Sequencing.Rules.Pre, func(x activity.RuleActionType) bool {
		return x == action
	})
	return ok
}

// exitRuleFires reports whether a's exit-condition rule set fires. Exit
// rules are evaluated on the ancestors of an activity whose attempt just
// ended; the firing ancestor closest to the root wins.
func (s *Session) exitRuleFires(a *activity.Activity) bool {
	_, ok := s.rulesCheck(a, a.Sequencing.Rules.Exit, activity.ValidExitAction)
	return ok
}

// postAction returns the first firing post-condition action for a.
func (s *Session) postAction(a *activity.Activity) (activity.RuleActionType, bool) {
	return s.rulesCheck(a, a.Sequencing.Rules.Post, activity.ValidPostAction)
}
