package engine

import (
	"sort"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
)

// prepareChildren applies selection and randomization to a cluster's child
// ordering for the given attempt number, honoring each control's timing.
// It runs when traversal reaches a cluster whose next attempt has not begun
// yet, so the order is settled before any child is picked, and again from
// beginAttempt, where the per-attempt bookkeeping makes it a no-op.
//
// "once" draws on the first new attempt and freezes the outcome for the
// life of the registration; attempt resets do not thaw it.
// "onEachNewAttempt" redraws once per new attempt and never on resume.
func (s *Session) prepareChildren(a *activity.Activity, attempt int) {
	if a.IsLeaf() {
		return
	}
	rc := a.Sequencing.Randomization
	tr := &a.Tracking

	if rc.SelectCount != nil {
		switch rc.SelectionTiming {
		case activity.TimingOnce:
			if !tr.SelectionDrawn {
				s.selectChildren(a, *rc.SelectCount)
				tr.SelectionDrawn = true
				tr.SelectionAttempt = attempt
			}
		case activity.TimingOnEachNewAttempt:
			if tr.SelectionAttempt != attempt {
				s.selectChildren(a, *rc.SelectCount)
				tr.SelectionAttempt = attempt
			}
		}
	}

	if rc.RandomizeChildren {
		switch rc.RandomizationTiming {
		case activity.TimingOnce:
			if tr.RandomizedAttempt == 0 {
				s.shuffleChildren(a)
				tr.RandomizedAttempt = attempt
			}
		case activity.TimingOnEachNewAttempt:
			if tr.RandomizedAttempt != attempt {
				s.shuffleChildren(a)
				tr.RandomizedAttempt = attempt
			}
		}
	}
}

// selectChildren draws count distinct children from the static child list
// and installs them as the available set, preserving author order.
// Selection always draws from the full static list, never from a previous
// draw's survivors.
func (s *Session) selectChildren(a *activity.Activity, count int) {
	ids := a.Children
	if count >= len(ids) {
		sel := make([]string, len(ids))
		copy(sel, ids)
		a.Tracking.AvailableChildren = sel
		return
	}
	idx := s.rng.Perm(len(ids))[:count]
	sort.Ints(idx)
	sel := make([]string, 0, count)
	for _, i := range idx {
		sel = append(sel, ids[i])
	}
	a.Tracking.AvailableChildren = sel
}

// shuffleChildren reorders the effective child set in place of the static
// author order. Runs after selection so only retained children shuffle.
func (s *Session) shuffleChildren(a *activity.Activity) {
	ids := a.Children
	if a.Tracking.AvailableChildren != nil {
		ids = a.Tracking.AvailableChildren
	}
	out := make([]string, len(ids))
	copy(out, ids)
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	a.Tracking.AvailableChildren = out
}
