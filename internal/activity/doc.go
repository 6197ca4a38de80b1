// Package activity defines the activity tree: the static course structure
// and per-registration tracking state that the sequencing engine operates on.
//
// An activity tree is built once from a compiled course definition and is
// immutable for the life of a registration. All mutable learner state
// (attempt counts, objective progress, completion, selected child orderings)
// lives in per-activity Tracking records and in the tree's shared objective
// table, so the engine can snapshot and restore runtime state without
// touching the structure.
//
// Terminology follows IMS Simple Sequencing: a leaf activity references
// launchable content, a cluster is an activity with children, and the root
// cluster represents the course itself.
package activity
