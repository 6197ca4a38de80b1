package engine

import (
	"time"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
)

// processTermination ends attempts as the termination request demands and
// returns the sequencing request the termination itself produced, if any.
// A produced request overrides whatever request the navigation layer would
// otherwise issue.
//
// CRITICAL: callers guard the preconditions that carry navigation-family
// codes (active attempt for exit); this process raises only TB codes.
func (s *Session) processTermination(t terminationRequestType) (sequencingRequest, error) {
	cur := s.currentActivity()

	switch t {
	case termExit:
		if cur == nil {
			return sequencingRequest{}, exception(ErrCodeTermNothingToEnd, "", "no current activity to terminate")
		}
		return s.terminateExit(cur)

	case termExitAll:
		if cur == nil {
			return sequencingRequest{}, exception(ErrCodeTermNothingToEnd, "", "no current activity to terminate")
		}
		s.endOpenAttemptsOnPath(cur)
		s.current = ""
		s.suspendedID = ""
		return sequencingRequest{typ: seqExit}, nil

	case termSuspendAll:
		if cur == nil {
			return sequencingRequest{}, exception(ErrCodeTermNothingToSuspend, "", "no current activity to suspend")
		}
		s.suspendPath(cur)
		s.suspendedID = cur.ID
		s.current = ""
		return sequencingRequest{typ: seqExit}, nil

	case termAbandon:
		if cur == nil {
			return sequencingRequest{}, exception(ErrCodeTermNothingToEnd, "", "no current activity to abandon")
		}
		if !cur.Tracking.Active {
			return sequencingRequest{}, exception(ErrCodeTermAbandonInactive, cur.ID, "attempt already terminated")
		}
		s.abandonAttempt(cur)
		return sequencingRequest{}, nil

	case termAbandonAll:
		if cur == nil {
			return sequencingRequest{}, exception(ErrCodeTermNothingToAbandon, "", "no open attempts to abandon")
		}
		for _, n := range s.tree.PathFromRoot(cur) {
			s.abandonAttempt(n)
		}
		s.current = ""
		s.suspendedID = ""
		return sequencingRequest{typ: seqExit}, nil
	}
	return sequencingRequest{}, exception(ErrCodeTermUnsupported, "", "unsupported termination request %q", t)
}

// terminateExit ends the current attempt, applies exit-condition rule
// escalation and runs post-condition rules, following the attempt upward
// through any exitParent chain.
func (s *Session) terminateExit(cur *activity.Activity) (sequencingRequest, error) {
	s.endAttempt(cur)

	// Exit rules fire on the ancestors of the ended attempt; the firing
	// activity closest to the root wins and its whole subtree ends.
	for _, anc := range s.tree.PathFromRoot(cur) {
		if anc.ID == cur.ID {
			break
		}
		if s.exitRuleFires(anc) {
			s.endSubtreeAttempts(anc)
			cur = anc
			s.current = anc.ID
			break
		}
	}

	for {
		action, ok := s.postAction(cur)
		if !ok {
			break
		}
		switch action {
		case activity.ActionExitParent:
			parent := s.tree.Parent(cur)
			if parent == nil {
				return s.sessionOver(cur)
			}
			s.endAttempt(parent)
			cur = parent
			s.current = parent.ID
			continue

		case activity.ActionExitAll:
			s.endOpenAttemptsOnPath(cur)
			s.current = ""
			s.suspendedID = ""
			return sequencingRequest{typ: seqExit}, nil

		case activity.ActionRetry:
			return sequencingRequest{typ: seqRetry}, nil

		case activity.ActionRetryAll:
			return sequencingRequest{typ: seqRetryAll}, nil

		case activity.ActionContinue:
			return sequencingRequest{typ: seqContinue}, nil

		case activity.ActionPrevious:
			return sequencingRequest{typ: seqPrevious}, nil
		}
		break
	}

	// An exit that ended the root's attempt ends the sequencing session
	// unless a post rule already redirected it.
	if cur.ID == s.tree.Root().ID && !cur.Tracking.Active {
		return s.sessionOver(cur)
	}
	return sequencingRequest{}, nil
}

// sessionOver closes out the session after the root's attempt ended with no
// redirecting post rule.
func (s *Session) sessionOver(root *activity.Activity) (sequencingRequest, error) {
	s.endOpenAttemptsOnPath(root)
	s.current = ""
	s.suspendedID = ""
	return sequencingRequest{typ: seqExit}, nil
}

// endAttempt closes the open attempt on a and rolls the result up toward
// the root.
//
// For a tracked leaf whose content did not own a status, the status
// defaults at attempt end: completion to completed unless
// completionSetByContent, primary satisfaction to satisfied unless
// objectiveSetByContent. A primary objective with satisfiedByMeasure
// derives satisfaction from the measure instead and never defaults.
func (s *Session) endAttempt(a *activity.Activity) {
	tr := &a.Tracking
	if !tr.Active {
		return
	}
	if !tr.AttemptStart.IsZero() {
		tr.AttemptElapsed += s.clock.Now().Sub(tr.AttemptStart)
	}
	tr.Active = false
	tr.AttemptStart = time.Time{}

	if a.Tracked() && a.IsLeaf() {
		dc := a.Sequencing.Delivery
		if !dc.CompletionSetByContent && tr.Completion == activity.CompletionUnknown {
			tr.Completion = activity.CompletionCompleted
		}
		p := a.PrimaryProgress()
		if obj := a.Sequencing.PrimaryObjective(); obj != nil && obj.SatisfiedByMeasure {
			if p.MeasureKnown {
				p.SetSatisfied(p.Measure >= obj.MinNormalizedMeasure)
			}
		} else if !dc.ObjectiveSetByContent && !p.SatisfiedKnown {
			p.SetSatisfied(true)
		}
	}
	s.rollup(a)
}

// abandonAttempt closes the open attempt without status defaults and
// without rollup; an abandoned attempt's results are discarded.
func (s *Session) abandonAttempt(a *activity.Activity) {
	tr := &a.Tracking
	if !tr.Active {
		return
	}
	if !tr.AttemptStart.IsZero() {
		tr.AttemptElapsed += s.clock.Now().Sub(tr.AttemptStart)
	}
	tr.Active = false
	tr.AttemptStart = time.Time{}
}

// endOpenAttemptsOnPath ends every open attempt from a up to the root,
// leaf-first so each rollup sees the freshly ended child.
func (s *Session) endOpenAttemptsOnPath(a *activity.Activity) {
	for n := a; n != nil; n = s.tree.Parent(n) {
		s.endAttempt(n)
	}
}

// endSubtreeAttempts ends every open attempt within a's subtree including a
// itself, deepest-first.
func (s *Session) endSubtreeAttempts(a *activity.Activity) {
	for _, c := range s.tree.Children(a) {
		s.endSubtreeAttempts(c)
	}
	s.endAttempt(a)
}

// suspendPath pauses the attempts from a up to the root. Suspension keeps
// all in-progress tracking so a later resume continues the same attempts;
// no defaults apply and nothing rolls up.
func (s *Session) suspendPath(a *activity.Activity) {
	now := s.clock.Now()
	for n := a; n != nil; n = s.tree.Parent(n) {
		tr := &n.Tracking
		if tr.Active && !tr.AttemptStart.IsZero() {
			tr.AttemptElapsed += now.Sub(tr.AttemptStart)
		}
		tr.Active = false
		tr.AttemptStart = time.Time{}
		tr.Suspended = true
	}
}

// clearSuspendedState drops every suspension flag in the tree. A start
// issued while a suspension is pending discards the suspended attempts.
func (s *Session) clearSuspendedState() {
	for _, n := range s.tree.PreOrder() {
		n.Tracking.Suspended = false
	}
	s.suspendedID = ""
}
