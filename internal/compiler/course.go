// Package compiler turns authored CUE course definitions into the compiled
// form the engine consumes.
//
// Courses are authored as a single CUE value:
//
//	course: {
//		id:    "course-101"
//		title: "Algebra I"
//		root: {
//			id: "org"
//			sequencing: controlMode: flow: true
//			children: [...]
//		}
//	}
//
// Compilation runs in two stages. Compile unifies the value against the
// embedded schema and extracts it field by field, rejecting structural
// problems and unknown vocabulary tokens with source positions. Validate
// then checks the extracted definition as a whole and reports every
// semantic problem it finds.
package compiler

import (
	"fmt"
	"os"
	"time"

	_ "embed"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
)

//go:embed schema.cue
var schemaSource string

// Compile parses a CUE course value into a compiled definition.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// The value should be the course struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`course: { ... }`)
//	def, err := compiler.Compile(v.LookupPath(cue.ParsePath("course")))
func Compile(v cue.Value) (*activity.Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	// Unify against the schema first so typos, type mismatches and missing
	// required fields are caught with positions before extraction begins.
	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	v = v.Unify(schema.LookupPath(cue.ParsePath("#Course")))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	def := &activity.Definition{}

	id, err := requireString(v, "id")
	if err != nil {
		return nil, err
	}
	def.CourseID = norm.NFC.String(id)

	if titleVal := v.LookupPath(cue.ParsePath("title")); titleVal.Exists() {
		title, err := titleVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.Title = norm.NFC.String(title)
	}

	rootVal := v.LookupPath(cue.ParsePath("root"))
	if !rootVal.Exists() {
		return nil, &CompileError{
			Field:   "root",
			Message: "root activity is required",
			Pos:     v.Pos(),
		}
	}
	def.Root, err = parseActivity(rootVal)
	if err != nil {
		return nil, err
	}

	return def, nil
}

// CompileFile compiles a single-file CUE course.
func CompileFile(path string) (*activity.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading course file: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileCourseValue(v)
}

// CompileDir compiles a course authored as a CUE package spread over a
// directory of .cue files.
func CompileDir(dir string) (*activity.Definition, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}
	ctx := cuecontext.New()
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileCourseValue(v)
}

// compileCourseValue locates the top-level course field and compiles it.
func compileCourseValue(v cue.Value) (*activity.Definition, error) {
	courseVal := v.LookupPath(cue.ParsePath("course"))
	if !courseVal.Exists() {
		return nil, &CompileError{
			Field:   "course",
			Message: "no top-level course value found",
			Pos:     v.Pos(),
		}
	}
	return Compile(courseVal)
}

// parseActivity extracts one activity node, recursing into its children.
func parseActivity(v cue.Value) (activity.Node, error) {
	var n activity.Node

	id, err := requireString(v, "id")
	if err != nil {
		return n, err
	}
	n.ID = norm.NFC.String(id)
	n.Visible = true
	n.Sequencing = activity.DefaultSequencing()

	if titleVal := v.LookupPath(cue.ParsePath("title")); titleVal.Exists() {
		title, err := titleVal.String()
		if err != nil {
			return n, formatCUEError(err)
		}
		n.Title = norm.NFC.String(title)
	}

	if resVal := v.LookupPath(cue.ParsePath("resource")); resVal.Exists() {
		if n.Resource, err = resVal.String(); err != nil {
			return n, formatCUEError(err)
		}
	}

	if visVal := v.LookupPath(cue.ParsePath("visible")); visVal.Exists() {
		if n.Visible, err = visVal.Bool(); err != nil {
			return n, formatCUEError(err)
		}
	}

	if seqVal := v.LookupPath(cue.ParsePath("sequencing")); seqVal.Exists() {
		if n.Sequencing, err = parseSequencing(seqVal); err != nil {
			return n, err
		}
	}

	if childVal := v.LookupPath(cue.ParsePath("children")); childVal.Exists() {
		iter, err := childVal.List()
		if err != nil {
			return n, formatCUEError(err)
		}
		for iter.Next() {
			child, err := parseActivity(iter.Value())
			if err != nil {
				return n, err
			}
			n.Children = append(n.Children, child)
		}
	}

	return n, nil
}

// parseSequencing overlays an authored sequencing block onto the defaults.
// Absent groups keep their default values.
func parseSequencing(v cue.Value) (activity.Sequencing, error) {
	seq := activity.DefaultSequencing()

	if cmVal := v.LookupPath(cue.ParsePath("controlMode")); cmVal.Exists() {
		for path, into := range map[string]*bool{
			"choice":      &seq.ControlMode.Choice,
			"choiceExit":  &seq.ControlMode.ChoiceExit,
			"flow":        &seq.ControlMode.Flow,
			"forwardOnly": &seq.ControlMode.ForwardOnly,
		} {
			if err := optionalBool(cmVal, path, into); err != nil {
				return seq, err
			}
		}
	}

	if rulesVal := v.LookupPath(cue.ParsePath("rules")); rulesVal.Exists() {
		var err error
		if seq.Rules.Pre, err = parseRules(rulesVal, "pre", activity.ValidPreAction); err != nil {
			return seq, err
		}
		if seq.Rules.Exit, err = parseRules(rulesVal, "exit", activity.ValidExitAction); err != nil {
			return seq, err
		}
		if seq.Rules.Post, err = parseRules(rulesVal, "post", activity.ValidPostAction); err != nil {
			return seq, err
		}
	}

	if limVal := v.LookupPath(cue.ParsePath("limits")); limVal.Exists() {
		var err error
		if seq.Limits, err = parseLimits(limVal); err != nil {
			return seq, err
		}
	}

	if rrVal := v.LookupPath(cue.ParsePath("rollupRules")); rrVal.Exists() {
		iter, err := rrVal.List()
		if err != nil {
			return seq, formatCUEError(err)
		}
		for iter.Next() {
			rule, err := parseRollupRule(iter.Value())
			if err != nil {
				return seq, err
			}
			seq.RollupRules = append(seq.RollupRules, rule)
		}
	}

	if rcVal := v.LookupPath(cue.ParsePath("rollup")); rcVal.Exists() {
		if err := optionalBool(rcVal, "contributeSatisfied", &seq.Rollup.ContributeSatisfied); err != nil {
			return seq, err
		}
		if err := optionalBool(rcVal, "contributeCompletion", &seq.Rollup.ContributeCompletion); err != nil {
			return seq, err
		}
		if wVal := rcVal.LookupPath(cue.ParsePath("measureWeight")); wVal.Exists() {
			w, err := wVal.Float64()
			if err != nil {
				return seq, formatCUEError(err)
			}
			seq.Rollup.MeasureWeight = w
		}
	}

	if objVal := v.LookupPath(cue.ParsePath("objectives")); objVal.Exists() {
		iter, err := objVal.List()
		if err != nil {
			return seq, formatCUEError(err)
		}
		for iter.Next() {
			obj, err := parseObjective(iter.Value())
			if err != nil {
				return seq, err
			}
			seq.Objectives = append(seq.Objectives, obj)
		}
	}

	if rndVal := v.LookupPath(cue.ParsePath("randomization")); rndVal.Exists() {
		var err error
		if seq.Randomization, err = parseRandomization(rndVal); err != nil {
			return seq, err
		}
	}

	if delVal := v.LookupPath(cue.ParsePath("delivery")); delVal.Exists() {
		for path, into := range map[string]*bool{
			"tracked":                &seq.Delivery.Tracked,
			"completionSetByContent": &seq.Delivery.CompletionSetByContent,
			"objectiveSetByContent":  &seq.Delivery.ObjectiveSetByContent,
		} {
			if err := optionalBool(delVal, path, into); err != nil {
				return seq, err
			}
		}
	}

	return seq, nil
}

// parseRules extracts the rule list at the named evaluation point. The
// action vocabulary differs per point; valid reports whether a parsed
// action belongs there.
func parseRules(v cue.Value, point string, valid func(activity.RuleActionType) bool) ([]activity.SequencingRule, error) {
	listVal := v.LookupPath(cue.ParsePath(point))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []activity.SequencingRule
	for iter.Next() {
		rv := iter.Value()
		var rule activity.SequencingRule

		if combVal := rv.LookupPath(cue.ParsePath("combination")); combVal.Exists() {
			tok, err := combVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if rule.Combination, err = activity.ParseCombination(tok); err != nil {
				return nil, &CompileError{Field: point + ".combination", Message: err.Error(), Pos: combVal.Pos()}
			}
		}

		if condVal := rv.LookupPath(cue.ParsePath("conditions")); condVal.Exists() {
			condIter, err := condVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for condIter.Next() {
				cond, err := parseCondition(condIter.Value(), point)
				if err != nil {
					return nil, err
				}
				rule.Conditions = append(rule.Conditions, cond)
			}
		}

		actionVal := rv.LookupPath(cue.ParsePath("action"))
		tok, err := actionVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if rule.Action, err = activity.ParseRuleAction(tok); err != nil {
			return nil, &CompileError{Field: point + ".action", Message: err.Error(), Pos: actionVal.Pos()}
		}
		if !valid(rule.Action) {
			return nil, &CompileError{
				Field:   point + ".action",
				Message: fmt.Sprintf("action %q is not allowed in %s rules", tok, point),
				Pos:     actionVal.Pos(),
			}
		}

		rules = append(rules, rule)
	}
	return rules, nil
}

// parseCondition extracts one tracked-state test.
func parseCondition(v cue.Value, point string) (activity.RuleCondition, error) {
	var cond activity.RuleCondition

	condVal := v.LookupPath(cue.ParsePath("condition"))
	tok, err := condVal.String()
	if err != nil {
		return cond, formatCUEError(err)
	}
	if cond.Condition, err = activity.ParseConditionType(tok); err != nil {
		return cond, &CompileError{Field: point + ".condition", Message: err.Error(), Pos: condVal.Pos()}
	}

	if err := optionalBool(v, "not", &cond.Not); err != nil {
		return cond, err
	}

	if objVal := v.LookupPath(cue.ParsePath("objective")); objVal.Exists() {
		obj, err := objVal.String()
		if err != nil {
			return cond, formatCUEError(err)
		}
		cond.Objective = norm.NFC.String(obj)
	}

	if thVal := v.LookupPath(cue.ParsePath("threshold")); thVal.Exists() {
		if cond.Threshold, err = thVal.Float64(); err != nil {
			return cond, formatCUEError(err)
		}
	}

	return cond, nil
}

// parseLimits extracts limit conditions. Durations use Go duration syntax
// ("30m", "1h30m"); instants use RFC 3339.
func parseLimits(v cue.Value) (activity.LimitConditions, error) {
	var lim activity.LimitConditions

	if alVal := v.LookupPath(cue.ParsePath("attemptLimit")); alVal.Exists() {
		n, err := alVal.Int64()
		if err != nil {
			return lim, formatCUEError(err)
		}
		count := int(n)
		lim.AttemptLimit = &count
	}

	if adVal := v.LookupPath(cue.ParsePath("attemptDurationLimit")); adVal.Exists() {
		s, err := adVal.String()
		if err != nil {
			return lim, formatCUEError(err)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return lim, &CompileError{
				Field:   "limits.attemptDurationLimit",
				Message: fmt.Sprintf("invalid duration %q: %v", s, err),
				Pos:     adVal.Pos(),
			}
		}
		lim.AttemptDurationLimit = &d
	}

	for path, into := range map[string]**time.Time{
		"begin": &lim.Begin,
		"end":   &lim.End,
	} {
		tVal := v.LookupPath(cue.ParsePath(path))
		if !tVal.Exists() {
			continue
		}
		s, err := tVal.String()
		if err != nil {
			return lim, formatCUEError(err)
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return lim, &CompileError{
				Field:   "limits." + path,
				Message: fmt.Sprintf("invalid RFC 3339 instant %q: %v", s, err),
				Pos:     tVal.Pos(),
			}
		}
		*into = &ts
	}

	return lim, nil
}

// parseRollupRule extracts one child-status aggregation rule.
func parseRollupRule(v cue.Value) (activity.RollupRule, error) {
	var rule activity.RollupRule

	csVal := v.LookupPath(cue.ParsePath("childSet"))
	tok, err := csVal.String()
	if err != nil {
		return rule, formatCUEError(err)
	}
	if rule.ChildSet, err = activity.ParseChildSet(tok); err != nil {
		return rule, &CompileError{Field: "rollupRules.childSet", Message: err.Error(), Pos: csVal.Pos()}
	}

	if mcVal := v.LookupPath(cue.ParsePath("minimumCount")); mcVal.Exists() {
		n, err := mcVal.Int64()
		if err != nil {
			return rule, formatCUEError(err)
		}
		rule.MinimumCount = int(n)
	}

	if mpVal := v.LookupPath(cue.ParsePath("minimumPercent")); mpVal.Exists() {
		if rule.MinimumPercent, err = mpVal.Float64(); err != nil {
			return rule, formatCUEError(err)
		}
	}

	if combVal := v.LookupPath(cue.ParsePath("combination")); combVal.Exists() {
		tok, err := combVal.String()
		if err != nil {
			return rule, formatCUEError(err)
		}
		if rule.Combination, err = activity.ParseCombination(tok); err != nil {
			return rule, &CompileError{Field: "rollupRules.combination", Message: err.Error(), Pos: combVal.Pos()}
		}
	}

	if condVal := v.LookupPath(cue.ParsePath("conditions")); condVal.Exists() {
		iter, err := condVal.List()
		if err != nil {
			return rule, formatCUEError(err)
		}
		for iter.Next() {
			cv := iter.Value()
			var cond activity.RollupCondition

			ctVal := cv.LookupPath(cue.ParsePath("condition"))
			tok, err := ctVal.String()
			if err != nil {
				return rule, formatCUEError(err)
			}
			if cond.Condition, err = activity.ParseRollupCondition(tok); err != nil {
				return rule, &CompileError{Field: "rollupRules.condition", Message: err.Error(), Pos: ctVal.Pos()}
			}
			if err := optionalBool(cv, "not", &cond.Not); err != nil {
				return rule, err
			}
			rule.Conditions = append(rule.Conditions, cond)
		}
	}

	actVal := v.LookupPath(cue.ParsePath("action"))
	tok, err = actVal.String()
	if err != nil {
		return rule, formatCUEError(err)
	}
	if rule.Action, err = activity.ParseRollupAction(tok); err != nil {
		return rule, &CompileError{Field: "rollupRules.action", Message: err.Error(), Pos: actVal.Pos()}
	}

	return rule, nil
}

// parseObjective extracts one objective declaration with its shared
// objective maps.
func parseObjective(v cue.Value) (activity.Objective, error) {
	var obj activity.Objective

	if idVal := v.LookupPath(cue.ParsePath("id")); idVal.Exists() {
		id, err := idVal.String()
		if err != nil {
			return obj, formatCUEError(err)
		}
		obj.ID = norm.NFC.String(id)
	}

	if err := optionalBool(v, "primary", &obj.Primary); err != nil {
		return obj, err
	}
	if err := optionalBool(v, "satisfiedByMeasure", &obj.SatisfiedByMeasure); err != nil {
		return obj, err
	}

	if mnVal := v.LookupPath(cue.ParsePath("minNormalizedMeasure")); mnVal.Exists() {
		var err error
		if obj.MinNormalizedMeasure, err = mnVal.Float64(); err != nil {
			return obj, formatCUEError(err)
		}
	}

	if mapsVal := v.LookupPath(cue.ParsePath("maps")); mapsVal.Exists() {
		iter, err := mapsVal.List()
		if err != nil {
			return obj, formatCUEError(err)
		}
		for iter.Next() {
			mv := iter.Value()
			var m activity.ObjectiveMap

			target, err := requireString(mv, "target")
			if err != nil {
				return obj, err
			}
			m.Target = norm.NFC.String(target)

			for path, into := range map[string]*bool{
				"readSatisfied":  &m.ReadSatisfied,
				"readMeasure":    &m.ReadMeasure,
				"writeSatisfied": &m.WriteSatisfied,
				"writeMeasure":   &m.WriteMeasure,
			} {
				if err := optionalBool(mv, path, into); err != nil {
					return obj, err
				}
			}
			obj.Maps = append(obj.Maps, m)
		}
	}

	return obj, nil
}

// parseRandomization extracts child selection and ordering controls.
func parseRandomization(v cue.Value) (activity.RandomizationControls, error) {
	var rnd activity.RandomizationControls

	for path, into := range map[string]*activity.Timing{
		"selectionTiming":     &rnd.SelectionTiming,
		"randomizationTiming": &rnd.RandomizationTiming,
	} {
		tVal := v.LookupPath(cue.ParsePath(path))
		if !tVal.Exists() {
			continue
		}
		tok, err := tVal.String()
		if err != nil {
			return rnd, formatCUEError(err)
		}
		timing, err := activity.ParseTiming(tok)
		if err != nil {
			return rnd, &CompileError{Field: "randomization." + path, Message: err.Error(), Pos: tVal.Pos()}
		}
		*into = timing
	}

	if scVal := v.LookupPath(cue.ParsePath("selectCount")); scVal.Exists() {
		n, err := scVal.Int64()
		if err != nil {
			return rnd, formatCUEError(err)
		}
		count := int(n)
		rnd.SelectCount = &count
	}

	if err := optionalBool(v, "randomizeChildren", &rnd.RandomizeChildren); err != nil {
		return rnd, err
	}

	return rnd, nil
}

// requireString extracts a required string field.
func requireString(v cue.Value, path string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(path))
	if !fieldVal.Exists() {
		return "", &CompileError{
			Field:   path,
			Message: path + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if s == "" {
		return "", &CompileError{
			Field:   path,
			Message: path + " must be non-empty",
			Pos:     fieldVal.Pos(),
		}
	}
	return s, nil
}

// optionalBool reads a bool field into its destination when present.
func optionalBool(v cue.Value, path string, into *bool) error {
	fieldVal := v.LookupPath(cue.ParsePath(path))
	if !fieldVal.Exists() {
		return nil
	}
	b, err := fieldVal.Bool()
	if err != nil {
		return formatCUEError(err)
	}
	*into = b
	return nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
