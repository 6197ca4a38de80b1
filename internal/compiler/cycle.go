package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
)

// ObjectiveWarning flags a suspicious shared-objective wiring in a course.
//
// These are warnings, not errors, because the wiring may be intentional:
//   - a shared objective written by an external system before launch
//   - a write kept for reporting even though no activity reads it
//   - deliberately coupled branches (pretest gates that a retake rewrites)
type ObjectiveWarning struct {
	Path    []string `json:"path"`    // activities involved, e.g. ["pretest", "lesson", "pretest"]
	Message string   `json:"message"` // human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeObjectives performs static analysis of the shared-objective flow
// in a course definition.
//
// It builds a directed graph over activities: an edge A → B exists when A
// writes a shared objective that B reads, meaning A's results can change
// what B's rules see. Strongly connected components with more than one
// activity are reported as warnings, because rule outcomes inside such a
// loop depend on the order attempts happen to run in. An activity that
// reads and writes the same shared objective on its own is the normal
// pattern and is not reported.
//
// Shared objectives that are read but never written (reads stay unknown
// forever) and written but never read are reported at info level.
//
// A course whose objective flow is a DAG with matched reads and writes
// returns an empty list.
func AnalyzeObjectives(def *activity.Definition) []ObjectiveWarning {
	readers := make(map[string][]string) // shared objective → reading activities
	writers := make(map[string][]string) // shared objective → writing activities

	walkNodes(def.Root, func(n *activity.Node) {
		for _, obj := range n.Sequencing.Objectives {
			for _, m := range obj.Maps {
				if m.ReadSatisfied || m.ReadMeasure {
					readers[m.Target] = append(readers[m.Target], n.ID)
				}
				if m.WriteSatisfied || m.WriteMeasure {
					writers[m.Target] = append(writers[m.Target], n.ID)
				}
			}
		}
	})

	graph := buildObjectiveGraph(readers, writers)
	sccs := tarjanSCC(graph)

	var warnings []ObjectiveWarning
	for _, scc := range sccs {
		if len(scc) > 1 {
			warnings = append(warnings, cycleWarning(scc, graph))
		}
	}

	warnings = append(warnings, danglingWarnings(readers, writers)...)
	return warnings
}

// objectiveGraph maps activity ID → activities whose reads its writes feed.
type objectiveGraph map[string][]string

// buildObjectiveGraph connects writers to readers per shared objective.
// Self-edges are dropped: an activity reading back its own write is the
// ordinary way a shared objective is used.
func buildObjectiveGraph(readers, writers map[string][]string) objectiveGraph {
	graph := make(objectiveGraph)
	for target, ws := range writers {
		for _, w := range ws {
			if graph[w] == nil {
				graph[w] = []string{}
			}
			for _, r := range readers[target] {
				if r == w {
					continue
				}
				graph[w] = append(graph[w], r)
				if graph[r] == nil {
					graph[r] = []string{}
				}
			}
		}
	}
	return graph
}

// tarjanSCC finds strongly connected components of the objective graph.
// Single activities form their own component; only larger components
// indicate circular flow.
func tarjanSCC(graph objectiveGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	// Deterministic visit order keeps warning output stable across runs.
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleWarning renders one circular component as a warning, reconstructing
// a traversal through the component for the message.
func cycleWarning(scc []string, graph objectiveGraph) ObjectiveWarning {
	path := reconstructCyclePath(scc, graph)
	return ObjectiveWarning{
		Path: path,
		Message: fmt.Sprintf("circular objective flow: %s; rule outcomes depend on attempt order",
			strings.Join(path, " → ")),
		Level: "warning",
	}
}

// reconstructCyclePath walks edges inside the component until it returns to
// its starting activity.
func reconstructCyclePath(scc []string, graph objectiveGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}

// danglingWarnings reports shared objectives with one-sided wiring.
func danglingWarnings(readers, writers map[string][]string) []ObjectiveWarning {
	var warnings []ObjectiveWarning

	targets := make(map[string]bool)
	for t := range readers {
		targets[t] = true
	}
	for t := range writers {
		targets[t] = true
	}
	sorted := make([]string, 0, len(targets))
	for t := range targets {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	for _, t := range sorted {
		rs, ws := readers[t], writers[t]
		switch {
		case len(ws) == 0:
			warnings = append(warnings, ObjectiveWarning{
				Path: append([]string(nil), rs...),
				Message: fmt.Sprintf("shared objective %q is read by %s but never written; the reads stay unknown",
					t, strings.Join(rs, ", ")),
				Level: "info",
			})
		case len(rs) == 0:
			warnings = append(warnings, ObjectiveWarning{
				Path: append([]string(nil), ws...),
				Message: fmt.Sprintf("shared objective %q is written by %s but never read",
					t, strings.Join(ws, ", ")),
				Level: "info",
			})
		}
	}

	return warnings
}
