package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpromedia/aivo-sequencing/internal/testutil"
)

// TestLimits_AttemptLimitSparesOpenAttempt tests that the attempt limit
// only gates beginning a new attempt. The attempt currently open, or
// suspended, is never barred by the count it already consumed.
func TestLimits_AttemptLimitSparesOpenAttempt(t *testing.T) {
	a := leaf("a")
	one := 1
	a.Sequencing.Limits.AttemptLimit = &one

	s := newSession(t, cluster("root", a))
	mustNav(t, s, NavigationRequest{Type: NavStart})

	act := s.Tree().Get("a")
	require.Equal(t, 1, act.Tracking.AttemptCount)
	assert.False(t, s.limitExceeded(act), "open attempt must not be barred")

	mustNav(t, s, NavigationRequest{Type: NavSuspendAll})
	assert.False(t, s.limitExceeded(act), "suspended attempt must not be barred")

	mustNav(t, s, NavigationRequest{Type: NavResumeAll})
	mustNav(t, s, NavigationRequest{Type: NavExit})
	assert.True(t, s.limitExceeded(act), "ended attempt consumes the limit")
}

// TestLimits_AttemptLimitBlocksNavigation tests that an activity with its
// attempts used up is skipped by flow and rejected as a choice target.
func TestLimits_AttemptLimitBlocksNavigation(t *testing.T) {
	a := leaf("a")
	one := 1
	a.Sequencing.Limits.AttemptLimit = &one

	s := newSession(t, cluster("root", a, leaf("b")))
	mustNav(t, s, NavigationRequest{Type: NavStart})
	mustNav(t, s, NavigationRequest{Type: NavExit})

	del := mustNav(t, s, NavigationRequest{Type: NavContinue})
	require.Equal(t, "b", del.ActivityID)

	_, err := s.ProcessNavigation(NavigationRequest{Type: NavPrevious})
	requireCode(t, err, ErrCodeSeqPreviousExhausted)

	_, err = s.ProcessNavigation(NavigationRequest{Type: NavChoice, Target: "a"})
	requireCode(t, err, ErrCodeSeqChoiceUnavailable)
}

// TestLimits_DurationExtendsLive tests that the duration limit counts the
// open attempt's wall time as it passes, not only banked elapsed time.
func TestLimits_DurationExtendsLive(t *testing.T) {
	a := leaf("a")
	lim := 10 * time.Minute
	a.Sequencing.Limits.AttemptDurationLimit = &lim

	clk := testutil.NewFixedClock(time.Time{})
	s := newSession(t, cluster("root", a), WithClock(clk))
	mustNav(t, s, NavigationRequest{Type: NavStart})

	act := s.Tree().Get("a")
	assert.False(t, s.limitExceeded(act))

	clk.Advance(9*time.Minute + 59*time.Second)
	assert.False(t, s.limitExceeded(act))

	clk.Advance(time.Second)
	assert.True(t, s.limitExceeded(act), "the limit is inclusive at the boundary")
}

// TestLimits_AvailableTimeRange tests the available-time window directly:
// unset bounds never constrain, and the instant must fall inside [begin, end].
func TestLimits_AvailableTimeRange(t *testing.T) {
	a := leaf("a")
	begin := testutil.Epoch.Add(time.Hour)
	end := testutil.Epoch.Add(2 * time.Hour)
	a.Sequencing.Limits.Begin = &begin
	a.Sequencing.Limits.End = &end

	clk := testutil.NewFixedClock(time.Time{})
	s := newSession(t, cluster("root", a, leaf("b")), WithClock(clk))

	act := s.Tree().Get("a")
	assert.True(t, s.outsideAvailableTime(act), "before the window opens")

	clk.Set(testutil.Epoch.Add(90 * time.Minute))
	assert.False(t, s.outsideAvailableTime(act), "inside the window")

	clk.Set(testutil.Epoch.Add(3 * time.Hour))
	assert.True(t, s.outsideAvailableTime(act), "after the window closes")

	assert.False(t, s.outsideAvailableTime(s.Tree().Get("b")), "no bounds, no constraint")
}

// TestLimits_WindowExpiryMidSession tests that an activity whose window
// closes while the learner works elsewhere is no longer reachable, and
// that the failed request leaves the open attempt untouched.
func TestLimits_WindowExpiryMidSession(t *testing.T) {
	b := leaf("b")
	end := testutil.Epoch.Add(5 * time.Minute)
	b.Sequencing.Limits.End = &end

	clk := testutil.NewFixedClock(time.Time{})
	s := newSession(t, cluster("root", leaf("a"), b), WithClock(clk))
	mustNav(t, s, NavigationRequest{Type: NavStart})

	clk.Advance(10 * time.Minute)

	_, err := s.ProcessNavigation(NavigationRequest{Type: NavContinue})
	requireCode(t, err, ErrCodeNavFlowExhausted)

	act := s.Tree().Get("a")
	assert.True(t, act.Tracking.Active, "the rejected request must not end the attempt")
	assert.Equal(t, "a", s.Current().ID)
}

// TestLimits_InEffectiveSet tests effective-set membership for navigation
// targets. The root has no parent and is always a member.
func TestLimits_InEffectiveSet(t *testing.T) {
	s := newSession(t, cluster("root", cluster("m1", leaf("a"), leaf("b"))))

	assert.True(t, s.inEffectiveSet(s.Tree().Root()))
	assert.True(t, s.inEffectiveSet(s.Tree().Get("a")))

	m1 := s.Tree().Get("m1")
	m1.Tracking.AvailableChildren = []string{"b"}
	assert.False(t, s.inEffectiveSet(s.Tree().Get("a")))
	assert.True(t, s.inEffectiveSet(s.Tree().Get("b")))
}
