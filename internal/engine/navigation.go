package engine

import "github.com/artpromedia/aivo-sequencing/internal/activity"

// processNavigation validates the request against the current state, runs
// the termination it implies, resolves the sequencing request and validates
// delivery. A sequencing request produced by post-condition rules during
// termination overrides the navigation-derived one.
func (s *Session) processNavigation(req NavigationRequest) (Delivery, error) {
	switch req.Type {
	case NavStart:
		if s.current != "" {
			return Delivery{}, exception(ErrCodeNavSessionStarted, s.current, "sequencing session already started")
		}
		// A fresh start while a suspension is pending discards the
		// suspended attempts.
		if s.suspendedID != "" {
			s.clearSuspendedState()
		}
		return s.resolve(sequencingRequest{typ: seqStart})

	case NavResumeAll:
		if s.current != "" {
			return Delivery{}, exception(ErrCodeNavSessionStarted, s.current, "sequencing session already started")
		}
		if s.suspendedID == "" {
			return Delivery{}, exception(ErrCodeNavNothingSuspended, "", "no suspended activity to resume")
		}
		return s.resolve(sequencingRequest{typ: seqResumeAll})

	case NavContinue:
		cur := s.currentActivity()
		if cur == nil {
			return Delivery{}, exception(ErrCodeNavSessionNotStarted, "", "no current activity")
		}
		if p := s.tree.Parent(cur); p != nil && !p.Sequencing.ControlMode.Flow {
			return Delivery{}, exception(ErrCodeNavFlowNotEnabled, p.ID, "flow is not enabled in the current cluster")
		}
		return s.terminateThen(cur, sequencingRequest{typ: seqContinue})

	case NavPrevious:
		cur := s.currentActivity()
		if cur == nil {
			return Delivery{}, exception(ErrCodeNavSessionNotStarted, "", "no current activity")
		}
		if p := s.tree.Parent(cur); p != nil {
			cm := p.Sequencing.ControlMode
			if !cm.Flow || cm.ForwardOnly {
				return Delivery{}, exception(ErrCodeNavBackwardBlocked, p.ID, "backward flow is not permitted in the current cluster")
			}
		}
		return s.terminateThen(cur, sequencingRequest{typ: seqPrevious})

	case NavChoice:
		t := s.tree.Get(req.Target)
		if t == nil {
			return Delivery{}, exception(ErrCodeNavUnknownTarget, req.Target, "choice target not in the activity tree")
		}
		if err := s.validateChoice(t); err != nil {
			return Delivery{}, err
		}
		return s.terminateThen(s.currentActivity(), sequencingRequest{typ: seqChoice, target: req.Target})

	case NavJump:
		cur := s.currentActivity()
		if cur == nil {
			return Delivery{}, exception(ErrCodeNavSessionNotStarted, "", "no current activity")
		}
		if s.tree.Get(req.Target) == nil {
			return Delivery{}, exception(ErrCodeNavUnknownTarget, req.Target, "jump target not in the activity tree")
		}
		return s.terminateThen(cur, sequencingRequest{typ: seqJump, target: req.Target})

	case NavExit:
		cur := s.currentActivity()
		if cur == nil {
			return Delivery{}, exception(ErrCodeNavSessionNotStarted, "", "no current activity")
		}
		if !cur.Tracking.Active {
			return Delivery{}, exception(ErrCodeNavNotActive, cur.ID, "current attempt is not active")
		}
		override, err := s.processTermination(termExit)
		if err != nil {
			return Delivery{}, err
		}
		if override.typ != seqNone {
			return s.resolve(override)
		}
		return Delivery{}, nil

	case NavExitAll:
		return s.terminate(termExitAll)

	case NavSuspendAll:
		return s.terminate(termSuspendAll)

	case NavAbandon:
		override, err := s.processTermination(termAbandon)
		if err != nil {
			return Delivery{}, err
		}
		if override.typ != seqNone {
			return s.resolve(override)
		}
		return Delivery{}, nil

	case NavAbandonAll:
		return s.terminate(termAbandonAll)
	}
	return Delivery{}, exception(ErrCodeNavUnsupported, "", "unsupported navigation request %q", req.Type)
}

// terminate runs a termination request and resolves whatever sequencing
// request it produced.
func (s *Session) terminate(t terminationRequestType) (Delivery, error) {
	override, err := s.processTermination(t)
	if err != nil {
		return Delivery{}, err
	}
	if override.typ == seqNone {
		return Delivery{}, nil
	}
	return s.resolve(override)
}

// terminateThen ends the current attempt if one is open and then resolves
// the given sequencing request, unless termination produced an override.
func (s *Session) terminateThen(cur *activity.Activity, next sequencingRequest) (Delivery, error) {
	if cur != nil && cur.Tracking.Active {
		override, err := s.processTermination(termExit)
		if err != nil {
			return Delivery{}, err
		}
		if override.typ != seqNone {
			next = override
		}
	}
	return s.resolve(next)
}

// resolve processes a sequencing request and validates delivery of its
// outcome.
func (s *Session) resolve(req sequencingRequest) (Delivery, error) {
	out, err := s.processSequencing(req)
	if err != nil {
		return Delivery{}, err
	}
	if out.end {
		return Delivery{Ended: true}, nil
	}
	return s.deliver(out.target, out.resume)
}

// validateChoice checks a choice target against hide rules, availability,
// control modes and choiceExit constraints. It runs before any termination
// so constraints evaluate against the state the learner currently sees.
func (s *Session) validateChoice(t *activity.Activity) error {
	for _, n := range s.tree.PathFromRoot(t) {
		if s.preActionFires(n, activity.ActionHiddenFromChoice) {
			return exception(ErrCodeSeqChoiceHidden, n.ID, "activity is hidden from choice")
		}
		if s.unavailable(n) || !s.inEffectiveSet(n) {
			return exception(ErrCodeSeqChoiceUnavailable, n.ID, "activity is not available for choice")
		}
	}
	for _, anc := range s.tree.Ancestors(t) {
		if !anc.Sequencing.ControlMode.Choice {
			return exception(ErrCodeSeqChoiceNotEnabled, anc.ID, "choice is not permitted in this cluster")
		}
	}
	// choiceExit false pins navigation inside the subtree of an activity
	// with an open attempt.
	if cur := s.currentActivity(); cur != nil {
		for n := cur; n != nil; n = s.tree.Parent(n) {
			if !n.Tracking.Active && !n.Tracking.Suspended {
				continue
			}
			if n.Sequencing.ControlMode.ChoiceExit {
				continue
			}
			if n.ID != t.ID && !s.tree.IsAncestor(n, t) {
				return exception(ErrCodeSeqChoiceExitBlocked, n.ID, "choice outside the active subtree is not permitted")
			}
		}
	}
	return nil
}
