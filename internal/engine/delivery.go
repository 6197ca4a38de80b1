package engine

import "github.com/artpromedia/aivo-sequencing/internal/activity"

// Delivery is the outcome of a processed navigation request.
//
// Valid with an ActivityID means that activity should be launched. Valid
// false with Ended false means the request was honored but nothing new is
// delivered (a plain exit). Ended true means the sequencing session is
// over.
type Delivery struct {
	// Valid reports whether an activity was identified for delivery.
	Valid bool `json:"valid"`

	// ActivityID is the activity to launch when Valid.
	ActivityID string `json:"activityId,omitempty"`

	// Ended reports that the sequencing session ended.
	Ended bool `json:"ended,omitempty"`
}

// deliveryValid checks that a may be delivered: a content-bearing leaf
// whose root path is neither disabled nor outside limit conditions.
func (s *Session) deliveryValid(a *activity.Activity) error {
	if a == nil || s.tree.Get(a.ID) == nil {
		return exception(ErrCodeDeliveryUnknown, "", "delivery target is not in the activity tree")
	}
	if !a.IsLeaf() || a.Resource == "" {
		return exception(ErrCodeDeliveryNotLeaf, a.ID, "activity has no launchable content")
	}
	for _, n := range s.tree.PathFromRoot(a) {
		if s.disabled(n) {
			return exception(ErrCodeDeliveryBlocked, n.ID, "activity is disabled")
		}
		if s.limitExceeded(n) {
			return exception(ErrCodeDeliveryLimited, n.ID, "limit conditions violated")
		}
	}
	return nil
}

// deliver makes a the current activity: validates the delivery, ends the
// attempts left behind on the old path, then opens attempts from the root
// down to a. With resume set, suspended attempts along the path reopen
// instead of counting new ones.
func (s *Session) deliver(a *activity.Activity, resume bool) (Delivery, error) {
	if err := s.deliveryValid(a); err != nil {
		return Delivery{}, err
	}

	onPath := make(map[string]bool)
	for _, n := range s.tree.PathFromRoot(a) {
		onPath[n.ID] = true
	}
	// Leaf-first so each cluster rollup sees its freshly ended children.
	for _, n := range s.tree.PostOrder() {
		if n.Tracking.Active && !onPath[n.ID] {
			s.endAttempt(n)
		}
	}

	for _, n := range s.tree.PathFromRoot(a) {
		s.beginAttempt(n)
	}
	s.current = a.ID
	if resume {
		s.suspendedID = ""
	}
	return Delivery{Valid: true, ActivityID: a.ID}, nil
}

// beginAttempt opens an attempt on n if none is open. A suspended attempt
// reopens without counting a new one or disturbing its tracking; otherwise
// attempt-scoped state resets, the attempt count advances and cluster child
// selection and randomization apply.
func (s *Session) beginAttempt(n *activity.Activity) {
	tr := &n.Tracking
	if tr.Active {
		return
	}
	if tr.Suspended {
		tr.Suspended = false
		tr.Active = true
		tr.AttemptStart = s.clock.Now()
		return
	}
	tr.ResetAttempt()
	tr.Active = true
	tr.AttemptCount++
	tr.AttemptStart = s.clock.Now()
	s.prepareChildren(n, tr.AttemptCount)
}
