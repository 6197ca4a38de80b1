package engine

import "github.com/artpromedia/aivo-sequencing/internal/activity"

// rollup propagates tracking status from the given activity toward the
// root. At each tracked cluster the measure, objective and completion
// rollups run in that order; at every step known objective state is
// published through write maps to the shared objective table.
//
// Untracked activities neither roll up nor contribute, but the walk
// continues through them so tracked ancestors still refresh.
func (s *Session) rollup(from *activity.Activity) {
	for a := from; a != nil; a = s.tree.Parent(a) {
		if !a.IsLeaf() && a.Tracked() {
			s.measureRollup(a)
			s.objectiveRollup(a)
			s.completionRollup(a)
		}
		s.publishObjectives(a)
	}
}

// publishObjectives propagates known local objective facets through write
// maps to the shared objective table. Unknown facets are not published, so
// a reset activity never erases shared state it wrote earlier.
func (s *Session) publishObjectives(a *activity.Activity) {
	if !a.Tracked() {
		return
	}
	for i := range a.Sequencing.Objectives {
		obj := &a.Sequencing.Objectives[i]
		local := a.Tracking.Progress(obj.ID)
		if local == nil {
			continue
		}
		for _, m := range obj.Maps {
			if !m.WriteSatisfied && !m.WriteMeasure {
				continue
			}
			shared := s.tree.SharedObjective(m.Target)
			if m.WriteSatisfied && local.SatisfiedKnown {
				shared.SetSatisfied(local.Satisfied)
			}
			if m.WriteMeasure && local.MeasureKnown {
				shared.SetMeasure(local.Measure)
			}
		}
	}
}

// rollupContributors returns the available, tracked children whose rollup
// controls contribute to the given rollup kind, in effective child order.
// Children removed by selection never contribute.
func (s *Session) rollupContributors(a *activity.Activity, completion bool) []*activity.Activity {
	kids := s.tree.AvailableChildren(a)
	out := make([]*activity.Activity, 0, len(kids))
	for _, c := range kids {
		if !c.Tracked() {
			continue
		}
		if completion {
			if !c.Sequencing.Rollup.ContributeCompletion {
				continue
			}
		} else if !c.Sequencing.Rollup.ContributeSatisfied {
			continue
		}
		out = append(out, c)
	}
	return out
}

// measureRollup writes the weighted average of the children's primary
// measures to the cluster's primary objective. A child participates when it
// is tracked, carries positive weight and has a known measure; with no
// participants the cluster's measure becomes unknown.
func (s *Session) measureRollup(a *activity.Activity) {
	var sum, weights float64
	for _, c := range s.tree.AvailableChildren(a) {
		if !c.Tracked() {
			continue
		}
		w := c.Sequencing.Rollup.MeasureWeight
		if w <= 0 {
			continue
		}
		v := s.objectiveView(c, "")
		if !v.measureKnown {
			continue
		}
		sum += w * v.measure
		weights += w
	}
	p := a.PrimaryProgress()
	if weights == 0 {
		p.MeasureKnown = false
		p.Measure = 0
		return
	}
	p.SetMeasure(sum / weights)
}

// satisfactionRules returns the authored rollup rules carrying satisfaction
// actions, in author order.
func satisfactionRules(a *activity.Activity) []activity.RollupRule {
	var out []activity.RollupRule
	for _, r := range a.Sequencing.RollupRules {
		if r.Action.SatisfactionAction() {
			out = append(out, r)
		}
	}
	return out
}

// completionRules returns the authored rollup rules carrying completion
// actions, in author order.
func completionRules(a *activity.Activity) []activity.RollupRule {
	var out []activity.RollupRule
	for _, r := range a.Sequencing.RollupRules {
		if !r.Action.SatisfactionAction() {
			out = append(out, r)
		}
	}
	return out
}

// objectiveRollup derives the cluster's primary objective satisfaction.
//
// Precedence: a primary objective with satisfiedByMeasure derives from the
// measure alone. Otherwise authored satisfaction rules evaluate in order
// and the last firing rule wins; when rules are authored but none fires the
// status keeps its previous value. With no satisfaction rules at all a
// default applies: satisfied when every contributing child is known
// satisfied, not satisfied when any child is known not satisfied, unknown
// otherwise.
func (s *Session) objectiveRollup(a *activity.Activity) {
	p := a.PrimaryProgress()

	if obj := a.Sequencing.PrimaryObjective(); obj != nil && obj.SatisfiedByMeasure {
		v := s.objectiveView(a, "")
		if !v.measureKnown {
			p.SatisfiedKnown = false
			p.Satisfied = false
			return
		}
		p.SetSatisfied(v.measure >= obj.MinNormalizedMeasure)
		return
	}

	if rules := satisfactionRules(a); len(rules) > 0 {
		for _, r := range rules {
			if s.rollupRuleFires(a, r) {
				p.SetSatisfied(r.Action == activity.RollupActionSatisfied)
			}
		}
		return
	}

	kids := s.rollupContributors(a, false)
	if len(kids) == 0 {
		return
	}
	allSatisfied := true
	anyNotSatisfied := false
	for _, c := range kids {
		v := s.objectiveView(c, "")
		if !v.satisfiedKnown {
			allSatisfied = false
			continue
		}
		if !v.satisfied {
			anyNotSatisfied = true
			allSatisfied = false
		}
	}
	switch {
	case anyNotSatisfied:
		p.SetSatisfied(false)
	case allSatisfied:
		p.SetSatisfied(true)
	default:
		p.SatisfiedKnown = false
		p.Satisfied = false
	}
}

// completionRollup derives the cluster's completion status. Authored
// completion rules evaluate like satisfaction rules; with none authored the
// cluster is incomplete as soon as any contributing child is known
// incomplete and completed once every contributing child is known
// completed.
func (s *Session) completionRollup(a *activity.Activity) {
	if rules := completionRules(a); len(rules) > 0 {
		for _, r := range rules {
			if s.rollupRuleFires(a, r) {
				if r.Action == activity.RollupActionCompleted {
					a.Tracking.Completion = activity.CompletionCompleted
				} else {
					a.Tracking.Completion = activity.CompletionIncomplete
				}
			}
		}
		return
	}

	kids := s.rollupContributors(a, true)
	if len(kids) == 0 {
		return
	}
	allCompleted := true
	anyIncomplete := false
	for _, c := range kids {
		switch c.Tracking.Completion {
		case activity.CompletionCompleted:
		case activity.CompletionIncomplete:
			anyIncomplete = true
			allCompleted = false
		default:
			allCompleted = false
		}
	}
	switch {
	case anyIncomplete:
		a.Tracking.Completion = activity.CompletionIncomplete
	case allCompleted:
		a.Tracking.Completion = activity.CompletionCompleted
	default:
		a.Tracking.Completion = activity.CompletionUnknown
	}
}

// rollupRuleFires evaluates one rollup rule over the cluster's contributing
// children. Per-child conditions combine under the rule's combination into
// a tri-state; the child-set quantifier then decides firing. A rule whose
// contributing set is empty never fires.
func (s *Session) rollupRuleFires(a *activity.Activity, r activity.RollupRule) bool {
	kids := s.rollupContributors(a, !r.Action.SatisfactionAction())
	if len(kids) == 0 {
		return false
	}
	var trues, unknowns int
	for _, c := range kids {
		switch s.combineRollupConditions(c, r.Combination, r.Conditions) {
		case truthTrue:
			trues++
		case truthUnknown:
			unknowns++
		}
	}
	switch r.ChildSet {
	case activity.ChildSetAll:
		return trues == len(kids)
	case activity.ChildSetAny:
		return trues > 0
	case activity.ChildSetNone:
		return trues == 0 && unknowns == 0
	case activity.ChildSetAtLeastCount:
		return trues >= r.MinimumCount
	case activity.ChildSetAtLeastPercent:
		return float64(trues) >= r.MinimumPercent*float64(len(kids))
	}
	return false
}

// combineRollupConditions evaluates a rollup condition set against one
// child under the given combination, with the same three-valued logic as
// sequencing rule conditions.
func (s *Session) combineRollupConditions(c *activity.Activity, comb activity.Combination, conds []activity.RollupCondition) truth {
	if len(conds) == 0 {
		return truthUnknown
	}
	if comb == activity.CombinationAny {
		out := truthFalse
		for _, rc := range conds {
			switch s.evalRollupCondition(c, rc) {
			case truthTrue:
				return truthTrue
			case truthUnknown:
				out = truthUnknown
			}
		}
		return out
	}
	out := truthTrue
	for _, rc := range conds {
		switch s.evalRollupCondition(c, rc) {
		case truthFalse:
			return truthFalse
		case truthUnknown:
			out = truthUnknown
		}
	}
	return out
}

// evalRollupCondition evaluates one rollup condition against a child,
// including its negation.
func (s *Session) evalRollupCondition(c *activity.Activity, rc activity.RollupCondition) truth {
	t := s.rollupConditionTruth(c, rc.Condition)
	if rc.Not {
		t = t.negate()
	}
	return t
}

func (s *Session) rollupConditionTruth(c *activity.Activity, cond activity.RollupConditionType) truth {
	switch cond {
	case activity.RollupSatisfied:
		v := s.objectiveView(c, "")
		if !v.satisfiedKnown {
			return truthUnknown
		}
		return truthOf(v.satisfied)

	case activity.RollupObjectiveStatusKnown:
		return truthOf(s.objectiveView(c, "").satisfiedKnown)

	case activity.RollupObjectiveMeasureKnown:
		return truthOf(s.objectiveView(c, "").measureKnown)

	case activity.RollupCompleted:
		switch c.Tracking.Completion {
		case activity.CompletionCompleted:
			return truthTrue
		case activity.CompletionIncomplete:
			return truthFalse
		}
		return truthUnknown

	case activity.RollupProgressKnown:
		return truthOf(c.Tracking.Completion != activity.CompletionUnknown)

	case activity.RollupAttempted:
		return truthOf(c.Tracking.Attempted())

	case activity.RollupAttemptLimitExceeded:
		lim := c.Sequencing.Limits.AttemptLimit
		if lim == nil {
			return truthFalse
		}
		return truthOf(c.Tracking.AttemptCount >= *lim)
	}
	return truthUnknown
}
