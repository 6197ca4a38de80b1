package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/artpromedia/aivo-sequencing/internal/runstate"
)

// RenderTrace renders an executed trace in the stable text form stored in
// golden files: a header naming the scenario, then one numbered line per
// step showing the call and its outcome.
func RenderTrace(name string, trace []runstate.NavEvent) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n\n", name)
	for _, ev := range trace {
		fmt.Fprintf(&buf, "%d. %s -> %s\n", ev.Seq, ev.Describe(), ev.Outcome())
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares the rendered trace against
// the golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files after an intended behavior change, run:
//
//	go test ./internal/harness -update
//
// The returned result carries the trace and any expectation failures;
// trace divergence from the golden file fails the test via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, RenderTrace(scenario.Name, result.Trace))

	return result, nil
}
