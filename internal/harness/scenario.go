package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
	"github.com/artpromedia/aivo-sequencing/internal/engine"
)

// Scenario defines a conformance test scenario: one course, one seed and a
// flow of orchestrator calls with expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Course is the path to the CUE course to compile, a single file or a
	// package directory. Relative paths resolve against the scenario file
	// location.
	Course string `yaml:"course"`

	// Seed feeds the session's random source. Selection and randomization
	// draws depend on it, so scenarios over randomized courses must pin it.
	Seed uint64 `yaml:"seed,omitempty"`

	// Steps is the flow of orchestrator calls, executed in order.
	Steps []Step `yaml:"steps"`

	// Final asserts tracking values after the flow completes.
	Final []TrackingAssertion `yaml:"final,omitempty"`
}

// Step is one orchestrator call: a navigation request in wire form, or a
// runtime result report against the current attempt. Exactly one of the two
// must be set.
type Step struct {
	// Request is a navigation request in wire form, e.g. "start",
	// "continue" or "choice:lesson-02".
	Request string `yaml:"request,omitempty"`

	// Report is a runtime result report for the current attempt.
	Report *Report `yaml:"report,omitempty"`

	// Expect asserts the step's outcome. If nil the step runs unchecked.
	Expect *Expectation `yaml:"expect,omitempty"`
}

// Report carries the tracked values a content report sets. Absent fields
// leave the corresponding tracking value untouched.
type Report struct {
	// Completion is a completion vocabulary token: "completed",
	// "incomplete" or "unknown".
	Completion string `yaml:"completion,omitempty"`

	// Satisfied sets primary objective satisfaction.
	Satisfied *bool `yaml:"satisfied,omitempty"`

	// Measure sets the primary objective measure, in [-1, 1].
	Measure *float64 `yaml:"measure,omitempty"`

	// Elapsed credits experienced time to the attempt, in Go duration
	// syntax ("90s", "1h30m").
	Elapsed string `yaml:"elapsed,omitempty"`
}

// Expectation asserts a step's outcome. Exactly one field must be set.
type Expectation struct {
	// Deliver asserts the step delivers this activity.
	Deliver string `yaml:"deliver,omitempty"`

	// End asserts the step ends the sequencing session.
	End bool `yaml:"end,omitempty"`

	// Ok asserts the step is honored with nothing new delivered.
	Ok bool `yaml:"ok,omitempty"`

	// Exception asserts the step is rejected with this exception code,
	// e.g. "NB.2.1-12".
	Exception string `yaml:"exception,omitempty"`
}

// TrackingAssertion asserts tracking values of one activity after the flow.
// Only the set fields are checked.
type TrackingAssertion struct {
	// Activity is the activity whose tracking is asserted.
	Activity string `yaml:"activity"`

	// Completion is the expected completion vocabulary token.
	Completion string `yaml:"completion,omitempty"`

	// Satisfied is the expected primary objective satisfaction; asserting
	// it requires the satisfaction to be known.
	Satisfied *bool `yaml:"satisfied,omitempty"`

	// Measure is the expected primary objective measure; asserting it
	// requires the measure to be known.
	Measure *float64 `yaml:"measure,omitempty"`

	// Attempts is the expected attempt count.
	Attempts *int `yaml:"attempts,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. The course path
// resolves relative to the scenario file location. Returns an error if the
// file doesn't exist, is malformed, contains unknown fields (typos), or
// fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the course path relative to the scenario file BEFORE
	// validation so the existence check sees the real location.
	if scenario.Course != "" && !filepath.IsAbs(scenario.Course) {
		scenario.Course = filepath.Join(filepath.Dir(path), scenario.Course)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and every step,
// expectation and final assertion uses the engine's vocabulary.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Course == "" {
		return fmt.Errorf("course is required")
	}
	if _, err := os.Stat(s.Course); err != nil {
		return fmt.Errorf("course not found: %s", s.Course)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Request == "" && step.Report == nil {
			return fmt.Errorf("steps[%d]: request or report is required", i)
		}
		if step.Request != "" && step.Report != nil {
			return fmt.Errorf("steps[%d]: request and report are mutually exclusive", i)
		}
		if step.Request != "" {
			if _, err := engine.ParseNavigationRequest(step.Request); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		}
		if step.Report != nil {
			if err := step.Report.validate(); err != nil {
				return fmt.Errorf("steps[%d].report: %w", i, err)
			}
		}
		if step.Expect != nil {
			if err := step.Expect.validate(); err != nil {
				return fmt.Errorf("steps[%d].expect: %w", i, err)
			}
		}
	}

	for i, want := range s.Final {
		if want.Activity == "" {
			return fmt.Errorf("final[%d]: activity is required", i)
		}
		if want.Completion == "" && want.Satisfied == nil && want.Measure == nil && want.Attempts == nil {
			return fmt.Errorf("final[%d]: at least one tracking value is required", i)
		}
		if want.Completion != "" {
			if _, err := activity.ParseCompletion(want.Completion); err != nil {
				return fmt.Errorf("final[%d]: %w", i, err)
			}
		}
		if want.Measure != nil && (*want.Measure < -1 || *want.Measure > 1) {
			return fmt.Errorf("final[%d]: measure %v outside [-1, 1]", i, *want.Measure)
		}
		if want.Attempts != nil && *want.Attempts < 0 {
			return fmt.Errorf("final[%d]: attempts must be non-negative", i)
		}
	}

	return nil
}

// validate checks the report's vocabulary and ranges.
func (r *Report) validate() error {
	if r.Completion == "" && r.Satisfied == nil && r.Measure == nil && r.Elapsed == "" {
		return fmt.Errorf("at least one reported value is required")
	}
	if r.Completion != "" {
		if _, err := activity.ParseCompletion(r.Completion); err != nil {
			return err
		}
	}
	if r.Measure != nil && (*r.Measure < -1 || *r.Measure > 1) {
		return fmt.Errorf("measure %v outside [-1, 1]", *r.Measure)
	}
	if r.Elapsed != "" {
		d, err := time.ParseDuration(r.Elapsed)
		if err != nil {
			return fmt.Errorf("invalid elapsed duration %q", r.Elapsed)
		}
		if d < 0 {
			return fmt.Errorf("elapsed must be non-negative")
		}
	}
	return nil
}

// EngineResult converts the report into the engine's call argument.
func (r *Report) EngineResult() (engine.Result, error) {
	var out engine.Result
	if r.Completion != "" {
		c, err := activity.ParseCompletion(r.Completion)
		if err != nil {
			return out, err
		}
		out.Completion = c
	}
	out.Satisfied = r.Satisfied
	out.Measure = r.Measure
	if r.Elapsed != "" {
		d, err := time.ParseDuration(r.Elapsed)
		if err != nil {
			return out, err
		}
		out.Elapsed = d
	}
	return out, nil
}

// validate checks that exactly one outcome form is asserted and any
// exception code belongs to a known process family.
func (e *Expectation) validate() error {
	set := 0
	if e.Deliver != "" {
		set++
	}
	if e.End {
		set++
	}
	if e.Ok {
		set++
	}
	if e.Exception != "" {
		set++
	}
	if set == 0 {
		return fmt.Errorf("deliver, end, ok or exception is required")
	}
	if set > 1 {
		return fmt.Errorf("deliver, end, ok and exception are mutually exclusive")
	}
	if e.Exception != "" {
		switch engine.Code(e.Exception).Family() {
		case "NB", "SB", "TB", "DB":
		default:
			return fmt.Errorf("unknown exception code %q", e.Exception)
		}
	}
	return nil
}

// Outcome renders the expectation in the trace outcome vocabulary, the
// same form runstate.NavEvent.Outcome produces.
func (e *Expectation) Outcome() string {
	switch {
	case e.Exception != "":
		return e.Exception
	case e.End:
		return "ended"
	case e.Deliver != "":
		return "deliver " + e.Deliver
	default:
		return "ok"
	}
}
