package compiler

import (
	"fmt"
	"strings"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
)

// Validation error codes (E100-E199)
const (
	// Course errors (E100-E109)
	ErrCourseIDEmpty = "E101" // course id is required
	ErrRootMissing   = "E102" // root activity missing or without ID
	ErrRootIsLeaf    = "E103" // root activity has no children

	// Activity errors (E110-E119)
	ErrDuplicateActivityID = "E110" // activity ID used twice
	ErrLeafWithoutResource = "E111" // leaf activity has no content resource
	ErrClusterWithResource = "E112" // cluster carries a content resource
	ErrSelectCountRange    = "E113" // selectCount not in 1..len(children)
	ErrAttemptLimitRange   = "E114" // attemptLimit must be positive

	// Rule errors (E120-E129)
	ErrRuleActionPosition = "E120" // action not allowed at this evaluation point
	ErrThresholdRange     = "E121" // measure threshold outside [-1, 1]
	ErrMinimumPercent     = "E122" // rollup minimumPercent outside [0, 1]
	ErrMinimumCount       = "E123" // rollup minimumCount negative

	// Objective errors (E130-E139)
	ErrDuplicateObjectiveID = "E130" // objective ID used twice in one activity
	ErrMultiplePrimaries    = "E131" // more than one primary objective
	ErrMeasureWeightRange   = "E132" // rollup measureWeight outside [0, 1]
	ErrInertObjectiveMap    = "E133" // map with no read or write flag
	ErrMinMeasureRange      = "E134" // minNormalizedMeasure outside [-1, 1]
)

// ValidationError represents a semantic problem in a compiled course.
type ValidationError struct {
	Activity string `json:"activity,omitempty"`
	Field    string `json:"field"`
	Message  string `json:"message"`
	Code     string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Activity != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Activity, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled course definition against semantic rules the
// schema cannot express. Returns all errors found (does not fail fast), so
// authors see every problem in one run.
func Validate(def *activity.Definition) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(def.CourseID) == "" {
		errs = append(errs, ValidationError{
			Field:   "id",
			Message: "course id is required and must be non-empty",
			Code:    ErrCourseIDEmpty,
		})
	}

	if def.Root.ID == "" {
		errs = append(errs, ValidationError{
			Field:   "root",
			Message: "root activity is required and must have an id",
			Code:    ErrRootMissing,
		})
		return errs
	}

	if len(def.Root.Children) == 0 {
		errs = append(errs, ValidationError{
			Activity: def.Root.ID,
			Field:    "root.children",
			Message:  "root activity must have at least one child",
			Code:     ErrRootIsLeaf,
		})
	}

	seen := make(map[string]bool)
	walkNodes(def.Root, func(n *activity.Node) {
		if seen[n.ID] {
			errs = append(errs, ValidationError{
				Activity: n.ID,
				Field:    "id",
				Message:  fmt.Sprintf("duplicate activity id %q", n.ID),
				Code:     ErrDuplicateActivityID,
			})
		}
		seen[n.ID] = true
		errs = append(errs, validateNode(n)...)
	})

	return errs
}

// walkNodes visits every node of the definition tree, parents first.
func walkNodes(n activity.Node, visit func(*activity.Node)) {
	visit(&n)
	for _, child := range n.Children {
		walkNodes(child, visit)
	}
}

// validateNode checks one activity's own definition.
func validateNode(n *activity.Node) []ValidationError {
	var errs []ValidationError
	seq := &n.Sequencing

	if len(n.Children) == 0 && n.Resource == "" {
		errs = append(errs, ValidationError{
			Activity: n.ID,
			Field:    "resource",
			Message:  "leaf activity needs a content resource to be deliverable",
			Code:     ErrLeafWithoutResource,
		})
	}
	if len(n.Children) > 0 && n.Resource != "" {
		errs = append(errs, ValidationError{
			Activity: n.ID,
			Field:    "resource",
			Message:  "cluster must not carry a content resource",
			Code:     ErrClusterWithResource,
		})
	}

	if sc := seq.Randomization.SelectCount; sc != nil {
		if *sc <= 0 || *sc > len(n.Children) {
			errs = append(errs, ValidationError{
				Activity: n.ID,
				Field:    "randomization.selectCount",
				Message:  fmt.Sprintf("selectCount %d must be between 1 and %d", *sc, len(n.Children)),
				Code:     ErrSelectCountRange,
			})
		}
	}

	if al := seq.Limits.AttemptLimit; al != nil && *al <= 0 {
		errs = append(errs, ValidationError{
			Activity: n.ID,
			Field:    "limits.attemptLimit",
			Message:  fmt.Sprintf("attemptLimit %d must be positive", *al),
			Code:     ErrAttemptLimitRange,
		})
	}

	errs = append(errs, validateRules(n.ID, "rules.pre", seq.Rules.Pre, activity.ValidPreAction)...)
	errs = append(errs, validateRules(n.ID, "rules.exit", seq.Rules.Exit, activity.ValidExitAction)...)
	errs = append(errs, validateRules(n.ID, "rules.post", seq.Rules.Post, activity.ValidPostAction)...)

	for i, rule := range seq.RollupRules {
		if rule.ChildSet == activity.ChildSetAtLeastPercent &&
			(rule.MinimumPercent < 0 || rule.MinimumPercent > 1) {
			errs = append(errs, ValidationError{
				Activity: n.ID,
				Field:    fmt.Sprintf("rollupRules[%d].minimumPercent", i),
				Message:  fmt.Sprintf("minimumPercent %v must be in [0, 1]", rule.MinimumPercent),
				Code:     ErrMinimumPercent,
			})
		}
		if rule.ChildSet == activity.ChildSetAtLeastCount && rule.MinimumCount < 0 {
			errs = append(errs, ValidationError{
				Activity: n.ID,
				Field:    fmt.Sprintf("rollupRules[%d].minimumCount", i),
				Message:  fmt.Sprintf("minimumCount %d must not be negative", rule.MinimumCount),
				Code:     ErrMinimumCount,
			})
		}
	}

	if w := seq.Rollup.MeasureWeight; w < 0 || w > 1 {
		errs = append(errs, ValidationError{
			Activity: n.ID,
			Field:    "rollup.measureWeight",
			Message:  fmt.Sprintf("measureWeight %v must be in [0, 1]", w),
			Code:     ErrMeasureWeightRange,
		})
	}

	errs = append(errs, validateObjectives(n.ID, seq.Objectives)...)

	return errs
}

// validateRules checks action placement and measure thresholds for one
// evaluation point.
func validateRules(activityID, field string, rules []activity.SequencingRule, valid func(activity.RuleActionType) bool) []ValidationError {
	var errs []ValidationError
	for i, rule := range rules {
		if !valid(rule.Action) {
			errs = append(errs, ValidationError{
				Activity: activityID,
				Field:    fmt.Sprintf("%s[%d].action", field, i),
				Message:  fmt.Sprintf("action %q is not allowed at this evaluation point", rule.Action),
				Code:     ErrRuleActionPosition,
			})
		}
		for j, cond := range rule.Conditions {
			measure := cond.Condition == activity.ConditionObjectiveMeasureGreaterThan ||
				cond.Condition == activity.ConditionObjectiveMeasureLessThan
			if measure && (cond.Threshold < -1 || cond.Threshold > 1) {
				errs = append(errs, ValidationError{
					Activity: activityID,
					Field:    fmt.Sprintf("%s[%d].conditions[%d].threshold", field, i, j),
					Message:  fmt.Sprintf("threshold %v must be in [-1, 1]", cond.Threshold),
					Code:     ErrThresholdRange,
				})
			}
		}
	}
	return errs
}

// validateObjectives checks one activity's objective declarations.
func validateObjectives(activityID string, objectives []activity.Objective) []ValidationError {
	var errs []ValidationError

	ids := make(map[string]bool)
	primaries := 0
	for i, obj := range objectives {
		if obj.ID != "" {
			if ids[obj.ID] {
				errs = append(errs, ValidationError{
					Activity: activityID,
					Field:    fmt.Sprintf("objectives[%d].id", i),
					Message:  fmt.Sprintf("duplicate objective id %q", obj.ID),
					Code:     ErrDuplicateObjectiveID,
				})
			}
			ids[obj.ID] = true
		}
		if obj.Primary {
			primaries++
		}
		if obj.MinNormalizedMeasure < -1 || obj.MinNormalizedMeasure > 1 {
			errs = append(errs, ValidationError{
				Activity: activityID,
				Field:    fmt.Sprintf("objectives[%d].minNormalizedMeasure", i),
				Message:  fmt.Sprintf("minNormalizedMeasure %v must be in [-1, 1]", obj.MinNormalizedMeasure),
				Code:     ErrMinMeasureRange,
			})
		}
		for j, m := range obj.Maps {
			if !m.ReadSatisfied && !m.ReadMeasure && !m.WriteSatisfied && !m.WriteMeasure {
				errs = append(errs, ValidationError{
					Activity: activityID,
					Field:    fmt.Sprintf("objectives[%d].maps[%d]", i, j),
					Message:  fmt.Sprintf("map to %q has no read or write flag and does nothing", m.Target),
					Code:     ErrInertObjectiveMap,
				})
			}
		}
	}
	if primaries > 1 {
		errs = append(errs, ValidationError{
			Activity: activityID,
			Field:    "objectives",
			Message:  fmt.Sprintf("%d objectives marked primary, at most one allowed", primaries),
			Code:     ErrMultiplePrimaries,
		})
	}

	return errs
}
