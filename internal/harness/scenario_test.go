package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const miniCourse = `course: {
	id: "course-mini"
	root: {
		id: "org"
		sequencing: controlMode: flow: true
		children: [
			{id: "leaf-01", resource: "content/leaf-01.html"},
		]
	}
}
`

// createTestCourse writes a minimal valid course under dir and returns its
// path relative to dir, as a scenario file would reference it.
func createTestCourse(t *testing.T, dir string) string {
	t.Helper()
	coursesDir := filepath.Join(dir, "courses")
	require.NoError(t, os.MkdirAll(coursesDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(coursesDir, "mini.cue"), []byte(miniCourse), 0644))
	return "courses/mini.cue"
}

func writeScenario(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	course := createTestCourse(t, dir)
	path := writeScenario(t, dir, `
name: test-scenario
description: "Scenario for loader coverage"
course: `+course+`
seed: 42
steps:
  - request: start
    expect:
      deliver: leaf-01
  - report:
      completion: completed
      measure: 0.5
  - request: exitAll
    expect:
      end: true
final:
  - activity: leaf-01
    completion: completed
    attempts: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test-scenario", scenario.Name)
	assert.Equal(t, "Scenario for loader coverage", scenario.Description)
	assert.Equal(t, filepath.Join(dir, "courses", "mini.cue"), scenario.Course)
	assert.Equal(t, uint64(42), scenario.Seed)
	require.Len(t, scenario.Steps, 3)
	assert.Equal(t, "start", scenario.Steps[0].Request)
	require.NotNil(t, scenario.Steps[0].Expect)
	assert.Equal(t, "leaf-01", scenario.Steps[0].Expect.Deliver)
	require.NotNil(t, scenario.Steps[1].Report)
	assert.Equal(t, "completed", scenario.Steps[1].Report.Completion)
	require.NotNil(t, scenario.Steps[1].Report.Measure)
	assert.Equal(t, 0.5, *scenario.Steps[1].Report.Measure)
	require.NotNil(t, scenario.Steps[2].Expect)
	assert.True(t, scenario.Steps[2].Expect.End)
	require.Len(t, scenario.Final, 1)
	assert.Equal(t, "leaf-01", scenario.Final[0].Activity)
}

func TestLoadScenario_AbsoluteCoursePath(t *testing.T) {
	dir := t.TempDir()
	rel := createTestCourse(t, dir)
	abs := filepath.Join(dir, rel)
	path := writeScenario(t, dir, `
name: test
description: "Absolute course paths stay untouched"
course: `+abs+`
steps:
  - request: start
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, abs, scenario.Course)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test
steps:
  unclosed: [bracket
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	dir := t.TempDir()
	course := createTestCourse(t, dir)

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "typo_step_singular",
			yaml: `
name: test
description: "Typo"
course: ` + course + `
step:
  - request: start
steps:
  - request: start
`,
			wantErr: "field step not found",
		},
		{
			name: "typo_in_step",
			yaml: `
name: test
description: "Typo"
course: ` + course + `
steps:
  - reqest: start
`,
			wantErr: "field reqest not found",
		},
		{
			name: "typo_in_expect",
			yaml: `
name: test
description: "Typo"
course: ` + course + `
steps:
  - request: start
    expect:
      delivered: leaf-01
`,
			wantErr: "field delivered not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, dir, tt.yaml)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_RequiredFields(t *testing.T) {
	dir := t.TempDir()
	course := createTestCourse(t, dir)

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing_name",
			yaml: `
description: "No name"
course: ` + course + `
steps:
  - request: start
`,
			wantErr: "name is required",
		},
		{
			name: "missing_description",
			yaml: `
name: test
course: ` + course + `
steps:
  - request: start
`,
			wantErr: "description is required",
		},
		{
			name: "missing_course",
			yaml: `
name: test
description: "No course"
steps:
  - request: start
`,
			wantErr: "course is required",
		},
		{
			name: "course_not_found",
			yaml: `
name: test
description: "Bad course path"
course: courses/absent.cue
steps:
  - request: start
`,
			wantErr: "course not found",
		},
		{
			name: "missing_steps",
			yaml: `
name: test
description: "No steps"
course: ` + course + `
steps: []
`,
			wantErr: "steps list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, dir, tt.yaml)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_StepValidation(t *testing.T) {
	dir := t.TempDir()
	course := createTestCourse(t, dir)

	tests := []struct {
		name     string
		stepYAML string
		wantErr  string
	}{
		{
			name:     "neither_request_nor_report",
			stepYAML: `  - expect: {ok: true}`,
			wantErr:  "steps[0]: request or report is required",
		},
		{
			name: "both_request_and_report",
			stepYAML: `  - request: start
    report: {completion: completed}`,
			wantErr: "steps[0]: request and report are mutually exclusive",
		},
		{
			name:     "unknown_request",
			stepYAML: `  - request: teleport`,
			wantErr:  `unknown navigation request "teleport"`,
		},
		{
			name:     "choice_without_target",
			stepYAML: `  - request: choice`,
			wantErr:  `navigation request "choice" requires a target`,
		},
		{
			name:     "empty_report",
			stepYAML: `  - report: {}`,
			wantErr:  "steps[0].report: at least one reported value is required",
		},
		{
			name:     "bad_completion",
			stepYAML: `  - report: {completion: finished}`,
			wantErr:  `unknown completion status "finished"`,
		},
		{
			name:     "measure_out_of_range",
			stepYAML: `  - report: {measure: 1.5}`,
			wantErr:  "measure 1.5 outside [-1, 1]",
		},
		{
			name:     "bad_elapsed",
			stepYAML: `  - report: {elapsed: soon}`,
			wantErr:  `invalid elapsed duration "soon"`,
		},
		{
			name:     "negative_elapsed",
			stepYAML: `  - report: {elapsed: -5m}`,
			wantErr:  "elapsed must be non-negative",
		},
		{
			name: "empty_expect",
			stepYAML: `  - request: start
    expect: {}`,
			wantErr: "steps[0].expect: deliver, end, ok or exception is required",
		},
		{
			name: "conflicting_expect",
			stepYAML: `  - request: start
    expect: {deliver: leaf-01, end: true}`,
			wantErr: "steps[0].expect: deliver, end, ok and exception are mutually exclusive",
		},
		{
			name: "unknown_exception_code",
			stepYAML: `  - request: start
    expect: {exception: XX.1.2-3}`,
			wantErr: `unknown exception code "XX.1.2-3"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, dir, `
name: test
description: "Step validation"
course: `+course+`
steps:
`+tt.stepYAML+"\n")
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_FinalValidation(t *testing.T) {
	dir := t.TempDir()
	course := createTestCourse(t, dir)

	tests := []struct {
		name      string
		finalYAML string
		wantErr   string
	}{
		{
			name:      "missing_activity",
			finalYAML: `  - completion: completed`,
			wantErr:   "final[0]: activity is required",
		},
		{
			name:      "no_tracking_values",
			finalYAML: `  - activity: leaf-01`,
			wantErr:   "final[0]: at least one tracking value is required",
		},
		{
			name: "bad_completion",
			finalYAML: `  - activity: leaf-01
    completion: finished`,
			wantErr: `unknown completion status "finished"`,
		},
		{
			name: "measure_out_of_range",
			finalYAML: `  - activity: leaf-01
    measure: -2`,
			wantErr: "measure -2 outside [-1, 1]",
		},
		{
			name: "negative_attempts",
			finalYAML: `  - activity: leaf-01
    attempts: -1`,
			wantErr: "attempts must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, dir, `
name: test
description: "Final validation"
course: `+course+`
steps:
  - request: start
final:
`+tt.finalYAML+"\n")
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestLoadExampleScenarios validates the example scenario files in
// testdata/scenarios. These serve as documentation and regression tests.
func TestLoadExampleScenarios(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		wantSteps int
		wantFinal int
	}{
		{
			name:      "linear-walk",
			file:      "testdata/scenarios/linear-walk.yaml",
			wantSteps: 8,
			wantFinal: 4,
		},
		{
			name:      "choice-and-gates",
			file:      "testdata/scenarios/choice-and-gates.yaml",
			wantSteps: 8,
			wantFinal: 8,
		},
		{
			name:      "mastery-check",
			file:      "testdata/scenarios/mastery-check.yaml",
			wantSteps: 9,
			wantFinal: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, err := LoadScenario(tt.file)
			require.NoError(t, err)

			assert.Equal(t, tt.name, scenario.Name)
			assert.Len(t, scenario.Steps, tt.wantSteps)
			assert.Len(t, scenario.Final, tt.wantFinal)

			_, err = os.Stat(scenario.Course)
			assert.NoError(t, err, "course path should resolve")
		})
	}
}
