package activity

import (
	"fmt"
	"time"
)

// ControlMode governs which navigation requests are legal for the children
// of a cluster.
type ControlMode struct {
	// Choice permits choice requests that target this cluster's children.
	Choice bool

	// ChoiceExit permits choice requests that leave this activity's subtree
	// while it or one of its descendants is current.
	ChoiceExit bool

	// Flow permits continue/previous traversal across this cluster's children.
	Flow bool

	// ForwardOnly forbids backward traversal among this cluster's children.
	ForwardOnly bool
}

// ConditionType identifies a tracking fact tested by rule conditions.
type ConditionType int

const (
	// ConditionAlways evaluates to true unconditionally.
	ConditionAlways ConditionType = iota

	// ConditionSatisfied tests whether the referenced objective is satisfied.
	ConditionSatisfied

	// ConditionObjectiveStatusKnown tests whether satisfaction has been recorded.
	ConditionObjectiveStatusKnown

	// ConditionObjectiveMeasureKnown tests whether a measure has been recorded.
	ConditionObjectiveMeasureKnown

	// ConditionObjectiveMeasureGreaterThan compares the measure to a threshold.
	ConditionObjectiveMeasureGreaterThan

	// ConditionObjectiveMeasureLessThan compares the measure to a threshold.
	ConditionObjectiveMeasureLessThan

	// ConditionCompleted tests whether the activity's attempt is completed.
	ConditionCompleted

	// ConditionProgressKnown tests whether completion status has been recorded.
	ConditionProgressKnown

	// ConditionAttempted tests whether the activity has at least one attempt.
	ConditionAttempted

	// ConditionAttemptLimitExceeded tests attempt count against the attempt limit.
	ConditionAttemptLimitExceeded

	// ConditionTimeLimitExceeded tests attempt duration against the duration limit.
	ConditionTimeLimitExceeded

	// ConditionOutsideAvailableTimeRange tests the clock against begin/end times.
	ConditionOutsideAvailableTimeRange
)

// String returns the vocabulary token for the condition type.
func (c ConditionType) String() string {
	switch c {
	case ConditionAlways:
		return "always"
	case ConditionSatisfied:
		return "satisfied"
	case ConditionObjectiveStatusKnown:
		return "objectiveStatusKnown"
	case ConditionObjectiveMeasureKnown:
		return "objectiveMeasureKnown"
	case ConditionObjectiveMeasureGreaterThan:
		return "objectiveMeasureGreaterThan"
	case ConditionObjectiveMeasureLessThan:
		return "objectiveMeasureLessThan"
	case ConditionCompleted:
		return "completed"
	case ConditionProgressKnown:
		return "activityProgressKnown"
	case ConditionAttempted:
		return "attempted"
	case ConditionAttemptLimitExceeded:
		return "attemptLimitExceeded"
	case ConditionTimeLimitExceeded:
		return "timeLimitExceeded"
	case ConditionOutsideAvailableTimeRange:
		return "outsideAvailableTimeRange"
	}
	return fmt.Sprintf("ConditionType(%d)", int(c))
}

// ParseConditionType maps a vocabulary token to a ConditionType.
func ParseConditionType(s string) (ConditionType, error) {
	switch s {
	case "always":
		return ConditionAlways, nil
	case "satisfied":
		return ConditionSatisfied, nil
	case "objectiveStatusKnown":
		return ConditionObjectiveStatusKnown, nil
	case "objectiveMeasureKnown":
		return ConditionObjectiveMeasureKnown, nil
	case "objectiveMeasureGreaterThan":
		return ConditionObjectiveMeasureGreaterThan, nil
	case "objectiveMeasureLessThan":
		return ConditionObjectiveMeasureLessThan, nil
	case "completed":
		return ConditionCompleted, nil
	case "activityProgressKnown":
		return ConditionProgressKnown, nil
	case "attempted":
		return ConditionAttempted, nil
	case "attemptLimitExceeded":
		return ConditionAttemptLimitExceeded, nil
	case "timeLimitExceeded":
		return ConditionTimeLimitExceeded, nil
	case "outsideAvailableTimeRange":
		return ConditionOutsideAvailableTimeRange, nil
	}
	return 0, fmt.Errorf("unknown rule condition %q", s)
}

// Combination selects how multiple conditions in a rule are combined.
type Combination int

const (
	// CombinationAll requires every condition to evaluate true.
	CombinationAll Combination = iota

	// CombinationAny requires at least one condition to evaluate true.
	CombinationAny
)

// String returns the vocabulary token for the combination.
func (c Combination) String() string {
	if c == CombinationAny {
		return "any"
	}
	return "all"
}

// ParseCombination maps a vocabulary token to a Combination.
// The empty string defaults to "all".
func ParseCombination(s string) (Combination, error) {
	switch s {
	case "all", "":
		return CombinationAll, nil
	case "any":
		return CombinationAny, nil
	}
	return 0, fmt.Errorf("unknown condition combination %q", s)
}

// RuleCondition is a single tracked-state test inside a sequencing rule.
//
// Conditions evaluate tri-state: true, false, or unknown. A condition whose
// underlying tracking value has never been recorded evaluates unknown, and
// Not flips only true and false; unknown stays unknown.
type RuleCondition struct {
	// Condition names the tracking fact being tested.
	Condition ConditionType

	// Not negates a true/false outcome.
	Not bool

	// Objective optionally names a local objective to test.
	// Empty means the activity's primary objective.
	Objective string

	// Threshold is the comparison bound for measure conditions, in [-1, 1].
	Threshold float64
}

// RuleActionType identifies the behavior triggered when a sequencing rule fires.
type RuleActionType int

const (
	// ActionSkip excludes the activity from flow traversal.
	ActionSkip RuleActionType = iota

	// ActionDisabled makes the activity undeliverable and unchoosable.
	ActionDisabled

	// ActionHiddenFromChoice hides the activity from choice navigation.
	ActionHiddenFromChoice

	// ActionStopForwardTraversal halts forward flow at this activity.
	ActionStopForwardTraversal

	// ActionExit ends the activity's attempt when a descendant exits.
	ActionExit

	// ActionExitParent ends the parent's attempt after this activity exits.
	ActionExitParent

	// ActionExitAll ends every open attempt and the sequencing session.
	ActionExitAll

	// ActionRetry immediately begins a new attempt on the activity.
	ActionRetry

	// ActionRetryAll begins a new attempt after resetting the whole subtree.
	ActionRetryAll

	// ActionContinue issues a continue sequencing request after exit.
	ActionContinue

	// ActionPrevious issues a previous sequencing request after exit.
	ActionPrevious
)

// String returns the vocabulary token for the action.
func (a RuleActionType) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionDisabled:
		return "disabled"
	case ActionHiddenFromChoice:
		return "hiddenFromChoice"
	case ActionStopForwardTraversal:
		return "stopForwardTraversal"
	case ActionExit:
		return "exit"
	case ActionExitParent:
		return "exitParent"
	case ActionExitAll:
		return "exitAll"
	case ActionRetry:
		return "retry"
	case ActionRetryAll:
		return "retryAll"
	case ActionContinue:
		return "continue"
	case ActionPrevious:
		return "previous"
	}
	return fmt.Sprintf("RuleActionType(%d)", int(a))
}

// ParseRuleAction maps a vocabulary token to a RuleActionType.
func ParseRuleAction(s string) (RuleActionType, error) {
	switch s {
	case "skip":
		return ActionSkip, nil
	case "disabled":
		return ActionDisabled, nil
	case "hiddenFromChoice":
		return ActionHiddenFromChoice, nil
	case "stopForwardTraversal":
		return ActionStopForwardTraversal, nil
	case "exit":
		return ActionExit, nil
	case "exitParent":
		return ActionExitParent, nil
	case "exitAll":
		return ActionExitAll, nil
	case "retry":
		return ActionRetry, nil
	case "retryAll":
		return ActionRetryAll, nil
	case "continue":
		return ActionContinue, nil
	case "previous":
		return ActionPrevious, nil
	}
	return 0, fmt.Errorf("unknown rule action %q", s)
}

// ValidPreAction reports whether the action may appear in a pre-condition rule.
func ValidPreAction(a RuleActionType) bool {
	switch a {
	case ActionSkip, ActionDisabled, ActionHiddenFromChoice, ActionStopForwardTraversal:
		return true
	}
	return false
}

// ValidExitAction reports whether the action may appear in an exit-condition rule.
func ValidExitAction(a RuleActionType) bool {
	return a == ActionExit
}

// ValidPostAction reports whether the action may appear in a post-condition rule.
func ValidPostAction(a RuleActionType) bool {
	switch a {
	case ActionExitParent, ActionExitAll, ActionRetry, ActionRetryAll, ActionContinue, ActionPrevious:
		return true
	}
	return false
}

// SequencingRule pairs a condition set with an action. The rule fires when
// the combined conditions evaluate true; unknown never fires a rule.
type SequencingRule struct {
	Combination Combination
	Conditions  []RuleCondition
	Action      RuleActionType
}

// SequencingRules groups an activity's rules by evaluation point.
type SequencingRules struct {
	// Pre rules are evaluated before delivery and during traversal.
	Pre []SequencingRule

	// Exit rules are evaluated on ancestors when a descendant attempt ends.
	Exit []SequencingRule

	// Post rules are evaluated on the activity after its attempt ends.
	Post []SequencingRule
}

// ChildSet selects which contributing children a rollup rule quantifies over.
type ChildSet int

const (
	// ChildSetAll requires the condition to hold for every contributing child.
	ChildSetAll ChildSet = iota

	// ChildSetAny requires the condition to hold for at least one child.
	ChildSetAny

	// ChildSetNone requires the condition to hold for no child, with no
	// child unknown.
	ChildSetNone

	// ChildSetAtLeastCount requires the condition to hold for at least
	// MinimumCount children.
	ChildSetAtLeastCount

	// ChildSetAtLeastPercent requires the condition to hold for at least
	// MinimumPercent of the contributing children.
	ChildSetAtLeastPercent
)

// String returns the vocabulary token for the child set.
func (c ChildSet) String() string {
	switch c {
	case ChildSetAll:
		return "all"
	case ChildSetAny:
		return "any"
	case ChildSetNone:
		return "none"
	case ChildSetAtLeastCount:
		return "atLeastCount"
	case ChildSetAtLeastPercent:
		return "atLeastPercent"
	}
	return fmt.Sprintf("ChildSet(%d)", int(c))
}

// ParseChildSet maps a vocabulary token to a ChildSet.
func ParseChildSet(s string) (ChildSet, error) {
	switch s {
	case "all":
		return ChildSetAll, nil
	case "any":
		return ChildSetAny, nil
	case "none":
		return ChildSetNone, nil
	case "atLeastCount":
		return ChildSetAtLeastCount, nil
	case "atLeastPercent":
		return ChildSetAtLeastPercent, nil
	}
	return 0, fmt.Errorf("unknown rollup child set %q", s)
}

// RollupConditionType identifies a child tracking fact tested by rollup rules.
type RollupConditionType int

const (
	// RollupSatisfied tests the child's primary objective satisfaction.
	RollupSatisfied RollupConditionType = iota

	// RollupObjectiveStatusKnown tests whether satisfaction has been recorded.
	RollupObjectiveStatusKnown

	// RollupObjectiveMeasureKnown tests whether a measure has been recorded.
	RollupObjectiveMeasureKnown

	// RollupCompleted tests the child's attempt completion.
	RollupCompleted

	// RollupProgressKnown tests whether completion status has been recorded.
	RollupProgressKnown

	// RollupAttempted tests whether the child has at least one attempt.
	RollupAttempted

	// RollupAttemptLimitExceeded tests the child's attempt count against its limit.
	RollupAttemptLimitExceeded
)

// String returns the vocabulary token for the rollup condition.
func (c RollupConditionType) String() string {
	switch c {
	case RollupSatisfied:
		return "satisfied"
	case RollupObjectiveStatusKnown:
		return "objectiveStatusKnown"
	case RollupObjectiveMeasureKnown:
		return "objectiveMeasureKnown"
	case RollupCompleted:
		return "completed"
	case RollupProgressKnown:
		return "activityProgressKnown"
	case RollupAttempted:
		return "attempted"
	case RollupAttemptLimitExceeded:
		return "attemptLimitExceeded"
	}
	return fmt.Sprintf("RollupConditionType(%d)", int(c))
}

// ParseRollupCondition maps a vocabulary token to a RollupConditionType.
func ParseRollupCondition(s string) (RollupConditionType, error) {
	switch s {
	case "satisfied":
		return RollupSatisfied, nil
	case "objectiveStatusKnown":
		return RollupObjectiveStatusKnown, nil
	case "objectiveMeasureKnown":
		return RollupObjectiveMeasureKnown, nil
	case "completed":
		return RollupCompleted, nil
	case "activityProgressKnown":
		return RollupProgressKnown, nil
	case "attempted":
		return RollupAttempted, nil
	case "attemptLimitExceeded":
		return RollupAttemptLimitExceeded, nil
	}
	return 0, fmt.Errorf("unknown rollup condition %q", s)
}

// RollupCondition is a single per-child test inside a rollup rule.
// Like sequencing rule conditions it evaluates tri-state.
type RollupCondition struct {
	Condition RollupConditionType
	Not       bool
}

// RollupActionType identifies the parent status written when a rollup rule fires.
type RollupActionType int

const (
	// RollupActionSatisfied marks the parent's primary objective satisfied.
	RollupActionSatisfied RollupActionType = iota

	// RollupActionNotSatisfied marks the parent's primary objective not satisfied.
	RollupActionNotSatisfied

	// RollupActionCompleted marks the parent's attempt completed.
	RollupActionCompleted

	// RollupActionIncomplete marks the parent's attempt incomplete.
	RollupActionIncomplete
)

// String returns the vocabulary token for the rollup action.
func (a RollupActionType) String() string {
	switch a {
	case RollupActionSatisfied:
		return "satisfied"
	case RollupActionNotSatisfied:
		return "notSatisfied"
	case RollupActionCompleted:
		return "completed"
	case RollupActionIncomplete:
		return "incomplete"
	}
	return fmt.Sprintf("RollupActionType(%d)", int(a))
}

// ParseRollupAction maps a vocabulary token to a RollupActionType.
func ParseRollupAction(s string) (RollupActionType, error) {
	switch s {
	case "satisfied":
		return RollupActionSatisfied, nil
	case "notSatisfied":
		return RollupActionNotSatisfied, nil
	case "completed":
		return RollupActionCompleted, nil
	case "incomplete":
		return RollupActionIncomplete, nil
	}
	return 0, fmt.Errorf("unknown rollup action %q", s)
}

// SatisfactionAction reports whether the action writes objective status.
func (a RollupActionType) SatisfactionAction() bool {
	return a == RollupActionSatisfied || a == RollupActionNotSatisfied
}

// RollupRule aggregates child statuses into a parent status. The rule fires
// when the quantified child set satisfies the conditions; a rule quantifying
// an empty contributing set never fires.
type RollupRule struct {
	// ChildSet quantifies over the contributing children.
	ChildSet ChildSet

	// MinimumCount applies when ChildSet is atLeastCount.
	MinimumCount int

	// MinimumPercent applies when ChildSet is atLeastPercent, in [0, 1].
	MinimumPercent float64

	// Combination selects how multiple conditions combine per child.
	Combination Combination

	// Conditions are evaluated against each contributing child.
	Conditions []RollupCondition

	// Action is the parent status written when the rule fires.
	Action RollupActionType
}

// RollupControls describe how an activity contributes to its parent's rollup.
type RollupControls struct {
	// ContributeSatisfied includes this activity in objective rollup.
	ContributeSatisfied bool

	// ContributeCompletion includes this activity in completion rollup.
	ContributeCompletion bool

	// MeasureWeight scales this activity's measure in measure rollup, in [0, 1].
	MeasureWeight float64
}

// ObjectiveMap connects a local objective to a shared objective visible to
// every activity in the tree.
type ObjectiveMap struct {
	// Target is the shared objective identifier.
	Target string

	// ReadSatisfied reads satisfaction from the shared objective.
	ReadSatisfied bool

	// ReadMeasure reads the measure from the shared objective.
	ReadMeasure bool

	// WriteSatisfied propagates satisfaction to the shared objective.
	WriteSatisfied bool

	// WriteMeasure propagates the measure to the shared objective.
	WriteMeasure bool
}

// Objective describes one tracked objective of an activity.
//
// Exactly one objective per activity is primary; the primary objective
// contributes to rollup and receives content-reported results.
type Objective struct {
	// ID names the objective within the activity. May be empty for an
	// anonymous primary objective.
	ID string

	// Primary marks the objective that contributes to rollup.
	Primary bool

	// SatisfiedByMeasure derives satisfaction from the measure instead of
	// rollup rules.
	SatisfiedByMeasure bool

	// MinNormalizedMeasure is the satisfaction threshold used when
	// SatisfiedByMeasure is set, in [-1, 1].
	MinNormalizedMeasure float64

	// Maps connect this objective to shared objectives.
	Maps []ObjectiveMap
}

// LimitConditions restrict attempts on an activity. Nil pointers mean the
// corresponding limit is not imposed.
type LimitConditions struct {
	// AttemptLimit caps the number of attempts.
	AttemptLimit *int

	// AttemptDurationLimit caps the accumulated duration of one attempt.
	AttemptDurationLimit *time.Duration

	// Begin is the earliest instant the activity is available.
	Begin *time.Time

	// End is the latest instant the activity is available.
	End *time.Time
}

// Timing controls when selection or randomization is applied.
type Timing int

const (
	// TimingNever disables the behavior.
	TimingNever Timing = iota

	// TimingOnce applies the behavior on first use and freezes the outcome
	// for the life of the registration.
	TimingOnce

	// TimingOnEachNewAttempt reapplies the behavior whenever a new attempt
	// begins on the activity.
	TimingOnEachNewAttempt
)

// String returns the vocabulary token for the timing.
func (t Timing) String() string {
	switch t {
	case TimingOnce:
		return "once"
	case TimingOnEachNewAttempt:
		return "onEachNewAttempt"
	}
	return "never"
}

// ParseTiming maps a vocabulary token to a Timing.
// The empty string defaults to "never".
func ParseTiming(s string) (Timing, error) {
	switch s {
	case "never", "":
		return TimingNever, nil
	case "once":
		return TimingOnce, nil
	case "onEachNewAttempt":
		return TimingOnEachNewAttempt, nil
	}
	return 0, fmt.Errorf("unknown timing %q", s)
}

// RandomizationControls configure child selection and ordering for a cluster.
type RandomizationControls struct {
	// SelectionTiming controls when SelectCount children are drawn.
	SelectionTiming Timing

	// SelectCount is the number of children to keep. Nil keeps all children.
	SelectCount *int

	// RandomizationTiming controls when child order is shuffled.
	RandomizationTiming Timing

	// RandomizeChildren enables shuffling of the available children.
	RandomizeChildren bool
}

// DeliveryControls configure how content reports results for an activity.
type DeliveryControls struct {
	// Tracked enables status tracking; untracked activities never contribute
	// to rollup and record no attempt state.
	Tracked bool

	// CompletionSetByContent delegates completion status to the content.
	// When false, an ending attempt with unknown completion defaults to
	// completed.
	CompletionSetByContent bool

	// ObjectiveSetByContent delegates objective satisfaction to the content.
	// When false, an ending attempt with unknown satisfaction defaults to
	// satisfied.
	ObjectiveSetByContent bool
}

// Sequencing is the complete sequencing definition of one activity.
type Sequencing struct {
	ControlMode   ControlMode
	Rules         SequencingRules
	Limits        LimitConditions
	RollupRules   []RollupRule
	Rollup        RollupControls
	Objectives    []Objective
	Randomization RandomizationControls
	Delivery      DeliveryControls
}

// DefaultSequencing returns the definition applied when a course omits
// sequencing information: free choice, no flow, full rollup contribution,
// tracked delivery.
func DefaultSequencing() Sequencing {
	return Sequencing{
		ControlMode: ControlMode{
			Choice:     true,
			ChoiceExit: true,
		},
		Rollup: RollupControls{
			ContributeSatisfied:  true,
			ContributeCompletion: true,
			MeasureWeight:        1.0,
		},
		Delivery: DeliveryControls{
			Tracked: true,
		},
	}
}

// PrimaryObjective returns the primary objective definition, or nil when the
// activity declares none.
func (s *Sequencing) PrimaryObjective() *Objective {
	for i := range s.Objectives {
		if s.Objectives[i].Primary {
			return &s.Objectives[i]
		}
	}
	return nil
}

// ObjectiveByID returns the objective with the given local identifier.
// An empty id resolves to the primary objective.
func (s *Sequencing) ObjectiveByID(id string) *Objective {
	if id == "" {
		return s.PrimaryObjective()
	}
	for i := range s.Objectives {
		if s.Objectives[i].ID == id {
			return &s.Objectives[i]
		}
	}
	return nil
}
