// Package harness executes conformance scenarios against the sequencing
// engine.
//
// A scenario names a course, a seed and a flow of orchestrator calls:
// navigation requests and runtime result reports. The harness compiles the
// course, drives a fresh session through the flow, checks each step's
// expected outcome and the final tracking state, and records a trace for
// golden comparison.
//
// # Scenario Format
//
// Scenarios are YAML files. Unknown fields are rejected so typos fail
// loudly instead of silently validating nothing:
//
//	name: linear-walk
//	description: "Flow traversal start to finish"
//	course: ../courses/linear.cue
//	seed: 1
//	steps:
//	  - request: start
//	    expect:
//	      deliver: lesson-01
//	  - report:
//	      completion: completed
//	      measure: 0.9
//	  - request: continue
//	    expect:
//	      exception: NB.2.1-12
//	final:
//	  - activity: lesson-01
//	    completion: completed
//	    satisfied: true
//	    attempts: 1
//
// Each step is either a navigation request in wire form ("start",
// "continue", "choice:lesson-02") or a result report against the current
// attempt. A step's expect clause asserts its outcome: the delivered
// activity, session end, a plain honored request (ok), or a sequencing
// exception code. The final list asserts tracking values once the flow is
// done.
//
// # Deterministic Testing
//
// Scenarios run against a pinned clock advanced one minute per step and a
// seeded random source, so every run of a scenario produces an identical
// trace. RunWithGolden compares the rendered trace against a golden file
// under testdata/golden; regenerate with:
//
//	go test ./internal/harness -update
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/linear-walk.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
