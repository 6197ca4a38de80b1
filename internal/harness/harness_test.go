package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpromedia/aivo-sequencing/internal/runstate"
)

func TestRun_LinearWalk(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/linear-walk.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 8)

	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, "deliver lesson-01", result.Trace[0].Outcome())
	assert.Equal(t, runstate.EventResult, result.Trace[1].Kind)
	assert.Equal(t, "ok", result.Trace[1].Outcome())
	assert.Equal(t, "NB.2.1-12", result.Trace[4].Outcome())
	assert.Equal(t, "ended", result.Trace[5].Outcome())
	assert.Equal(t, "deliver lesson-03", result.Trace[6].Outcome())
	assert.Equal(t, int64(8), result.Trace[7].Seq)
}

// TestRun_Reproducible pins the clock and seed, so two runs of the same
// scenario must produce identical traces.
func TestRun_Reproducible(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/choice-and-gates.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, RenderTrace(scenario.Name, first.Trace), RenderTrace(scenario.Name, second.Trace))
	assert.Equal(t, first.Pass, second.Pass)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	dir := t.TempDir()
	course := createTestCourse(t, dir)
	path := writeScenario(t, dir, `
name: mismatch
description: "Start delivers the first leaf, not leaf-99"
course: `+course+`
steps:
  - request: start
    expect:
      deliver: leaf-99
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "steps[0] (start): expected deliver leaf-99, got deliver leaf-01", result.Errors[0])
}

func TestRun_FinalAssertionFailures(t *testing.T) {
	dir := t.TempDir()
	course := createTestCourse(t, dir)
	path := writeScenario(t, dir, `
name: final-failures
description: "Every final mismatch is reported, not just the first"
course: `+course+`
steps:
  - request: start
    expect:
      deliver: leaf-01
  - request: exitAll
    expect:
      end: true
final:
  - activity: leaf-01
    completion: incomplete
    satisfied: false
    measure: 0.5
    attempts: 5
  - activity: ghost
    attempts: 1
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Equal(t, "final leaf-01: completion is completed, want incomplete", result.Errors[0])
	assert.Equal(t, "final leaf-01: satisfied is true, want false", result.Errors[1])
	assert.Equal(t, "final leaf-01: measure is unknown, want 0.5", result.Errors[2])
	assert.Equal(t, "final leaf-01: attempt count is 1, want 5", result.Errors[3])
	assert.Equal(t, "final ghost: activity not in tree", result.Errors[4])
}

// TestRun_ReportWithoutAttempt records the rejection in the trace instead of
// aborting the run, so a scenario can assert on it like any other outcome.
func TestRun_ReportWithoutAttempt(t *testing.T) {
	dir := t.TempDir()
	course := createTestCourse(t, dir)
	path := writeScenario(t, dir, `
name: report-first
description: "Reporting before any delivery is rejected per step"
course: `+course+`
steps:
  - report:
      completion: completed
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, runstate.EventResult, result.Trace[0].Kind)
	assert.Equal(t, "no active attempt to record against", result.Trace[0].Outcome())
}

func TestRun_CompileFailure(t *testing.T) {
	dir := t.TempDir()
	coursePath := filepath.Join(dir, "broken.cue")
	require.NoError(t, os.WriteFile(coursePath, []byte("course: {\n"), 0644))

	scenario := &Scenario{
		Name:        "broken",
		Description: "Unparsable course",
		Course:      coursePath,
		Steps:       []Step{{Request: "start"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile course")
}

func TestRun_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	coursePath := filepath.Join(dir, "leafroot.cue")
	leafRoot := `course: {
	id: "course-leafroot"
	root: {
		id: "org"
		resource: "content/org.html"
	}
}
`
	require.NoError(t, os.WriteFile(coursePath, []byte(leafRoot), 0644))

	scenario := &Scenario{
		Name:        "leafroot",
		Description: "Root without children fails semantic validation",
		Course:      coursePath,
		Steps:       []Step{{Request: "start"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "course failed validation")
	assert.Contains(t, err.Error(), "[E103]")
}

func TestRun_MissingCourse(t *testing.T) {
	scenario := &Scenario{
		Name:        "absent",
		Description: "Course path does not exist",
		Course:      filepath.Join(t.TempDir(), "absent.cue"),
		Steps:       []Step{{Request: "start"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read course")
}
