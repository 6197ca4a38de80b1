package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
)

func validLeaf(id string) activity.Node {
	return activity.Node{
		ID:         id,
		Resource:   "content/" + id,
		Visible:    true,
		Sequencing: activity.DefaultSequencing(),
	}
}

func validCourse() *activity.Definition {
	return &activity.Definition{
		CourseID: "course-1",
		Title:    "Course",
		Root: activity.Node{
			ID:         "org",
			Visible:    true,
			Sequencing: activity.DefaultSequencing(),
			Children:   []activity.Node{validLeaf("a"), validLeaf("b")},
		},
	}
}

// codes extracts the error codes for compact assertions.
func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateCleanCourse(t *testing.T) {
	assert.Empty(t, Validate(validCourse()))
}

func TestValidateCourseID(t *testing.T) {
	def := validCourse()
	def.CourseID = "  "
	assert.Contains(t, codes(Validate(def)), ErrCourseIDEmpty)
}

func TestValidateRootShape(t *testing.T) {
	def := validCourse()
	def.Root.Children = nil
	errs := Validate(def)
	assert.Contains(t, codes(errs), ErrRootIsLeaf)
	// The childless root is also reported as a resourceless leaf.
	assert.Contains(t, codes(errs), ErrLeafWithoutResource)

	def = validCourse()
	def.Root = activity.Node{}
	errs = Validate(def)
	require.Len(t, errs, 1, "a missing root short-circuits the tree walk")
	assert.Equal(t, ErrRootMissing, errs[0].Code)
}

func TestValidateDuplicateActivityID(t *testing.T) {
	def := validCourse()
	def.Root.Children = append(def.Root.Children, validLeaf("a"))
	errs := Validate(def)
	assert.Contains(t, codes(errs), ErrDuplicateActivityID)
}

func TestValidateResourcePlacement(t *testing.T) {
	def := validCourse()
	def.Root.Children[0].Resource = ""
	def.Root.Resource = "content/org"
	errs := Validate(def)
	assert.Contains(t, codes(errs), ErrLeafWithoutResource)
	assert.Contains(t, codes(errs), ErrClusterWithResource)

	var activities []string
	for _, e := range errs {
		activities = append(activities, e.Activity)
	}
	assert.Contains(t, activities, "a")
	assert.Contains(t, activities, "org")
}

func TestValidateSelectCount(t *testing.T) {
	def := validCourse()
	five := 5
	def.Root.Sequencing.Randomization.SelectCount = &five
	assert.Contains(t, codes(Validate(def)), ErrSelectCountRange)

	def = validCourse()
	two := 2
	def.Root.Sequencing.Randomization.SelectCount = &two
	assert.Empty(t, Validate(def), "selectCount equal to the child count is fine")
}

func TestValidateAttemptLimit(t *testing.T) {
	def := validCourse()
	zero := 0
	def.Root.Children[0].Sequencing.Limits.AttemptLimit = &zero
	assert.Contains(t, codes(Validate(def)), ErrAttemptLimitRange)
}

func TestValidateRuleActionPosition(t *testing.T) {
	def := validCourse()
	def.Root.Children[0].Sequencing.Rules.Pre = []activity.SequencingRule{{
		Conditions: []activity.RuleCondition{{Condition: activity.ConditionAlways}},
		Action:     activity.ActionRetry,
	}}
	def.Root.Children[0].Sequencing.Rules.Exit = []activity.SequencingRule{{
		Conditions: []activity.RuleCondition{{Condition: activity.ConditionAlways}},
		Action:     activity.ActionSkip,
	}}
	errs := Validate(def)
	count := 0
	for _, e := range errs {
		if e.Code == ErrRuleActionPosition {
			count++
		}
	}
	assert.Equal(t, 2, count, "both misplaced actions are reported")
}

func TestValidateThresholdRange(t *testing.T) {
	def := validCourse()
	def.Root.Children[0].Sequencing.Rules.Pre = []activity.SequencingRule{{
		Conditions: []activity.RuleCondition{{
			Condition: activity.ConditionObjectiveMeasureGreaterThan,
			Threshold: 2.0,
		}},
		Action: activity.ActionSkip,
	}}
	assert.Contains(t, codes(Validate(def)), ErrThresholdRange)
}

func TestValidateRollupBounds(t *testing.T) {
	def := validCourse()
	def.Root.Sequencing.RollupRules = []activity.RollupRule{
		{
			ChildSet:       activity.ChildSetAtLeastPercent,
			MinimumPercent: 1.5,
			Conditions:     []activity.RollupCondition{{Condition: activity.RollupCompleted}},
			Action:         activity.RollupActionCompleted,
		},
		{
			ChildSet:     activity.ChildSetAtLeastCount,
			MinimumCount: -1,
			Conditions:   []activity.RollupCondition{{Condition: activity.RollupSatisfied}},
			Action:       activity.RollupActionSatisfied,
		},
	}
	errs := Validate(def)
	assert.Contains(t, codes(errs), ErrMinimumPercent)
	assert.Contains(t, codes(errs), ErrMinimumCount)
}

func TestValidateMeasureWeight(t *testing.T) {
	def := validCourse()
	def.Root.Children[1].Sequencing.Rollup.MeasureWeight = 1.2
	assert.Contains(t, codes(Validate(def)), ErrMeasureWeightRange)
}

func TestValidateObjectives(t *testing.T) {
	def := validCourse()
	def.Root.Children[0].Sequencing.Objectives = []activity.Objective{
		{ID: "obj-1", Primary: true},
		{ID: "obj-1", Primary: true, MinNormalizedMeasure: -2},
		{ID: "obj-2", Maps: []activity.ObjectiveMap{{Target: "global-1"}}},
	}
	errs := Validate(def)
	got := codes(errs)
	assert.Contains(t, got, ErrDuplicateObjectiveID)
	assert.Contains(t, got, ErrMultiplePrimaries)
	assert.Contains(t, got, ErrMinMeasureRange)
	assert.Contains(t, got, ErrInertObjectiveMap)
}

func TestValidateCollectsEverything(t *testing.T) {
	def := validCourse()
	def.CourseID = ""
	def.Root.Children[0].Resource = ""
	def.Root.Sequencing.Rollup.MeasureWeight = -0.5
	errs := Validate(def)
	require.GreaterOrEqual(t, len(errs), 3, "validation must not stop at the first problem")
}
