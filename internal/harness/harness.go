package harness

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
	"github.com/artpromedia/aivo-sequencing/internal/compiler"
	"github.com/artpromedia/aivo-sequencing/internal/engine"
	"github.com/artpromedia/aivo-sequencing/internal/runstate"
)

// scenarioEpoch anchors scenario time. Step i executes at the epoch plus
// i+1 minutes, so recorded instants and time-derived tracking values are
// identical on every run.
var scenarioEpoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// Result is the outcome of one executed scenario.
type Result struct {
	// Pass reports overall success: every expectation and final tracking
	// assertion held.
	Pass bool `json:"pass"`

	// Trace records one event per executed step, in order. Seq numbers
	// steps from 1.
	Trace []runstate.NavEvent `json:"trace"`

	// Errors lists every expectation and assertion failure.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []runstate.NavEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Run executes a scenario against a fresh session and returns the result.
//
// The course compiles and validates first; a session over it runs with a
// clock pinned per step and the scenario's seed, so results reproduce
// exactly. Step expectations and final tracking assertions fail the result;
// infrastructure problems (unreadable course, invalid step) return an
// error instead.
func Run(scenario *Scenario) (*Result, error) {
	def, err := compileCourse(scenario.Course)
	if err != nil {
		return nil, err
	}
	tree, err := activity.NewTree(*def)
	if err != nil {
		return nil, fmt.Errorf("failed to build activity tree: %w", err)
	}

	clock := runstate.NewPinnedClock(scenarioEpoch)
	sess := engine.NewSession(tree,
		engine.WithClock(clock),
		engine.WithRandomSeed(scenario.Seed),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // trace output is the report, keep the log quiet
	)

	result := NewResult()
	for i, step := range scenario.Steps {
		at := scenarioEpoch.Add(time.Duration(i+1) * time.Minute)
		clock.Pin(at)

		var ev runstate.NavEvent
		if step.Request != "" {
			req, err := engine.ParseNavigationRequest(step.Request)
			if err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
			del, navErr := sess.ProcessNavigation(req)
			ev = runstate.NavigationEvent(req, del, navErr, at)
		} else {
			r, err := step.Report.EngineResult()
			if err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
			callErr := sess.RecordResult(r)
			ev = runstate.ResultEvent(r, callErr, at)
		}
		ev.Seq = int64(i + 1)
		result.Trace = append(result.Trace, ev)

		if step.Expect != nil {
			if want, got := step.Expect.Outcome(), ev.Outcome(); want != got {
				result.AddError(fmt.Sprintf("steps[%d] (%s): expected %s, got %s", i, ev.Describe(), want, got))
			}
		}
	}

	for _, want := range scenario.Final {
		CheckTracking(result, sess.Tree(), want)
	}

	return result, nil
}

// compileCourse compiles and validates the course at path, a single CUE
// file or a package directory.
func compileCourse(path string) (*activity.Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read course: %w", err)
	}
	var def *activity.Definition
	if info.IsDir() {
		def, err = compiler.CompileDir(path)
	} else {
		def, err = compiler.CompileFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compile course: %w", err)
	}
	if errs := compiler.Validate(def); len(errs) > 0 {
		return nil, fmt.Errorf("course failed validation: %s", errs[0].Error())
	}
	return def, nil
}

// CheckTracking verifies one final tracking assertion against the tree,
// adding a failure to result for every mismatch.
func CheckTracking(result *Result, tree *activity.Tree, want TrackingAssertion) {
	a := tree.Get(want.Activity)
	if a == nil {
		result.AddError(fmt.Sprintf("final %s: activity not in tree", want.Activity))
		return
	}
	tr := &a.Tracking

	if want.Completion != "" {
		// Vocabulary was validated at load time.
		c, _ := activity.ParseCompletion(want.Completion)
		if tr.Completion != c {
			result.AddError(fmt.Sprintf("final %s: completion is %s, want %s", want.Activity, tr.Completion, c))
		}
	}

	p := a.PrimaryProgress()
	if want.Satisfied != nil {
		switch {
		case !p.SatisfiedKnown:
			result.AddError(fmt.Sprintf("final %s: satisfaction is unknown, want %t", want.Activity, *want.Satisfied))
		case p.Satisfied != *want.Satisfied:
			result.AddError(fmt.Sprintf("final %s: satisfied is %t, want %t", want.Activity, p.Satisfied, *want.Satisfied))
		}
	}
	if want.Measure != nil {
		switch {
		case !p.MeasureKnown:
			result.AddError(fmt.Sprintf("final %s: measure is unknown, want %g", want.Activity, *want.Measure))
		case math.Abs(p.Measure-*want.Measure) > 1e-9:
			result.AddError(fmt.Sprintf("final %s: measure is %g, want %g", want.Activity, p.Measure, *want.Measure))
		}
	}

	if want.Attempts != nil && tr.AttemptCount != *want.Attempts {
		result.AddError(fmt.Sprintf("final %s: attempt count is %d, want %d", want.Activity, tr.AttemptCount, *want.Attempts))
	}
}
