package engine

import "github.com/artpromedia/aivo-sequencing/internal/activity"

// flowResult classifies a candidate during flow traversal.
type flowResult int

const (
	// flowSkip means move past the candidate and keep searching.
	flowSkip flowResult = iota

	// flowDeliver means a deliverable leaf was identified.
	flowDeliver

	// flowBlocked means traversal hit a barrier and the whole search stops.
	flowBlocked
)

// seqOutcome is the product of a processed sequencing request: the activity
// to deliver, or end=true when the sequencing session ended with nothing
// further to deliver.
type seqOutcome struct {
	target *activity.Activity
	end    bool
	resume bool
}

// admitFlow classifies one candidate activity during flow traversal.
// Skipped and unavailable activities are passed over; an activity whose
// stopForwardTraversal rule fires is a barrier in the forward direction.
func (s *Session) admitFlow(a *activity.Activity, forward bool) flowResult {
	if s.preActionFires(a, activity.ActionSkip) {
		return flowSkip
	}
	if s.unavailable(a) {
		return flowSkip
	}
	if forward && s.preActionFires(a, activity.ActionStopForwardTraversal) {
		return flowBlocked
	}
	return flowDeliver
}

// flowInto searches a and its subtree for the first deliverable leaf in the
// given direction: first available leaf forward, last available leaf
// backward.
func (s *Session) flowInto(a *activity.Activity, forward bool) (*activity.Activity, flowResult) {
	switch s.admitFlow(a, forward) {
	case flowBlocked:
		return nil, flowBlocked
	case flowSkip:
		return nil, flowSkip
	}
	if a.IsLeaf() {
		return a, flowDeliver
	}
	return s.flowIntoChildren(a, forward)
}

// flowIntoChildren descends into a cluster's effective children. Flow must
// be enabled on the cluster for traversal to enter it, and a forward-only
// cluster cannot be entered backward.
//
// Entering a cluster whose next attempt has not begun settles child
// selection and randomization first, so the leaf picked here is the first
// of the order the attempt will use.
func (s *Session) flowIntoChildren(a *activity.Activity, forward bool) (*activity.Activity, flowResult) {
	cm := a.Sequencing.ControlMode
	if !cm.Flow {
		return nil, flowSkip
	}
	if !forward && cm.ForwardOnly {
		return nil, flowBlocked
	}
	if !a.Tracking.Active && !a.Tracking.Suspended {
		s.prepareChildren(a, a.Tracking.AttemptCount+1)
	}
	kids := s.tree.AvailableChildren(a)
	if !forward {
		for i := len(kids) - 1; i >= 0; i-- {
			leaf, res := s.flowInto(kids[i], forward)
			if res == flowBlocked {
				return nil, flowBlocked
			}
			if res == flowDeliver {
				return leaf, flowDeliver
			}
		}
		return nil, flowSkip
	}
	for _, kid := range kids {
		leaf, res := s.flowInto(kid, forward)
		if res == flowBlocked {
			return nil, flowBlocked
		}
		if res == flowDeliver {
			return leaf, flowDeliver
		}
	}
	return nil, flowSkip
}

// flowSibling returns the activity adjacent to a among its parent's
// effective children, nil at the boundary.
func (s *Session) flowSibling(a *activity.Activity, forward bool) *activity.Activity {
	p := s.tree.Parent(a)
	if p == nil {
		return nil
	}
	kids := s.tree.AvailableChildren(p)
	for i, kid := range kids {
		if kid.ID != a.ID {
			continue
		}
		if forward {
			if i+1 < len(kids) {
				return kids[i+1]
			}
		} else if i > 0 {
			return kids[i-1]
		}
		return nil
	}
	return nil
}

// flowFrom steps away from a in the given direction and searches for the
// next deliverable leaf, climbing out of exhausted clusters as needed.
// Climbing past the root means the tree is exhausted in that direction.
func (s *Session) flowFrom(a *activity.Activity, forward bool) (*activity.Activity, flowResult) {
	cur := a
	for {
		p := s.tree.Parent(cur)
		if p == nil {
			return nil, flowSkip
		}
		cm := p.Sequencing.ControlMode
		if !cm.Flow {
			return nil, flowBlocked
		}
		if !forward && cm.ForwardOnly {
			return nil, flowBlocked
		}
		for sib := s.flowSibling(cur, forward); sib != nil; sib = s.flowSibling(sib, forward) {
			leaf, res := s.flowInto(sib, forward)
			if res == flowBlocked {
				return nil, flowBlocked
			}
			if res == flowDeliver {
				return leaf, flowDeliver
			}
		}
		cur = p
	}
}

// processSequencing resolves a sequencing request to the activity to
// deliver next.
func (s *Session) processSequencing(req sequencingRequest) (seqOutcome, error) {
	switch req.typ {
	case seqStart:
		root := s.tree.Root()
		leaf, res := s.flowInto(root, true)
		if res != flowDeliver {
			return seqOutcome{}, exception(ErrCodeSeqStartBlocked, root.ID, "no activity available to start")
		}
		return seqOutcome{target: leaf}, nil

	case seqResumeAll:
		sa := s.tree.Get(s.suspendedID)
		if sa == nil {
			return seqOutcome{}, exception(ErrCodeSeqResumeInvalid, s.suspendedID, "no suspended activity to resume")
		}
		if err := s.deliveryValid(sa); err != nil {
			return seqOutcome{}, exception(ErrCodeSeqResumeInvalid, sa.ID, "suspended activity is no longer deliverable: %v", err)
		}
		return seqOutcome{target: sa, resume: true}, nil

	case seqContinue:
		cur := s.currentActivity()
		if cur == nil {
			return seqOutcome{}, exception(ErrCodeNavSessionNotStarted, "", "no current activity to continue from")
		}
		leaf, res := s.flowFrom(cur, true)
		if res != flowDeliver {
			return seqOutcome{}, exception(ErrCodeNavFlowExhausted, cur.ID, "nothing further to continue to")
		}
		return seqOutcome{target: leaf}, nil

	case seqPrevious:
		cur := s.currentActivity()
		if cur == nil {
			return seqOutcome{}, exception(ErrCodeNavSessionNotStarted, "", "no current activity to move back from")
		}
		leaf, res := s.flowFrom(cur, false)
		if res == flowBlocked {
			return seqOutcome{}, exception(ErrCodeSeqPreviousBlocked, cur.ID, "backward traversal blocked by forward-only control")
		}
		if res != flowDeliver {
			return seqOutcome{}, exception(ErrCodeSeqPreviousExhausted, cur.ID, "nothing earlier to deliver")
		}
		return seqOutcome{target: leaf}, nil

	case seqChoice:
		t := s.tree.Get(req.target)
		if t == nil {
			return seqOutcome{}, exception(ErrCodeNavUnknownTarget, req.target, "choice target not in the activity tree")
		}
		if t.IsLeaf() {
			return seqOutcome{target: t}, nil
		}
		leaf, res := s.flowIntoChildren(t, true)
		if res != flowDeliver {
			return seqOutcome{}, exception(ErrCodeSeqChoiceEmpty, t.ID, "chosen cluster has no deliverable activity")
		}
		return seqOutcome{target: leaf}, nil

	case seqJump:
		t := s.tree.Get(req.target)
		if t == nil {
			return seqOutcome{}, exception(ErrCodeNavUnknownTarget, req.target, "jump target not in the activity tree")
		}
		for _, n := range s.tree.PathFromRoot(t) {
			if s.unavailable(n) || !s.inEffectiveSet(n) {
				return seqOutcome{}, exception(ErrCodeSeqJumpUnavailable, t.ID, "jump target is not available")
			}
		}
		if t.IsLeaf() {
			return seqOutcome{target: t}, nil
		}
		leaf, res := s.flowIntoChildren(t, true)
		if res != flowDeliver {
			return seqOutcome{}, exception(ErrCodeSeqJumpEmpty, t.ID, "jump target cluster has no deliverable activity")
		}
		return seqOutcome{target: leaf}, nil

	case seqRetry:
		cur := s.currentActivity()
		if cur == nil {
			return seqOutcome{}, exception(ErrCodeSeqRetryNotEnded, "", "no current activity to retry")
		}
		if cur.Tracking.Active || cur.Tracking.Suspended {
			return seqOutcome{}, exception(ErrCodeSeqRetryNotEnded, cur.ID, "attempt still open")
		}
		if s.unavailable(cur) {
			return seqOutcome{}, exception(ErrCodeSeqRetryBlocked, cur.ID, "retry barred by rules or limit conditions")
		}
		if cur.IsLeaf() {
			return seqOutcome{target: cur}, nil
		}
		leaf, res := s.flowIntoChildren(cur, true)
		if res != flowDeliver {
			return seqOutcome{}, exception(ErrCodeSeqRetryEmpty, cur.ID, "retried cluster has no deliverable activity")
		}
		return seqOutcome{target: leaf}, nil

	case seqRetryAll:
		for _, n := range s.tree.PreOrder() {
			n.Tracking.ResetAttempt()
		}
		s.suspendedID = ""
		root := s.tree.Root()
		leaf, res := s.flowInto(root, true)
		if res != flowDeliver {
			return seqOutcome{}, exception(ErrCodeSeqRetryEmpty, root.ID, "no activity available to restart")
		}
		return seqOutcome{target: leaf}, nil

	case seqExit:
		return seqOutcome{end: true}, nil
	}
	return seqOutcome{}, exception(ErrCodeNavUnsupported, "", "unsupported sequencing request %q", req.typ)
}
