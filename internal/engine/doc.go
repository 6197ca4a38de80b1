// Package engine implements the rules-driven sequencing state machine.
//
// The engine decides, for each navigation request a learner issues, which
// activity of the course to deliver next - or which stable exception code
// explains why nothing can be delivered.
//
// ARCHITECTURE:
//
// Request Pipeline:
// Every navigation request runs the same four phases in order:
//  1. Navigation validation - is the request meaningful in this state?
//  2. Termination - end the open attempt, fire exit and post rules.
//     Post rules may produce a sequencing request that overrides the one
//     the navigation request implied.
//  3. Sequencing - resolve the request to a concrete activity via flow
//     traversal, choice/jump targeting or retry.
//  4. Delivery - validate the identified activity and open attempts along
//     its path, rolling up the attempts left behind.
//
// Single-Writer Sessions:
// A Session owns all mutable tracking state for one registration and is
// driven from one goroutine. There is no internal locking; persistence and
// cross-process exclusion live in the layers above.
//
// Atomic Requests:
// Termination mutates state before sequencing can still fail. The session
// snapshots the tree before each request and restores it when any phase
// raises an exception, so an exception always means "nothing changed".
//
// Determinism:
// Time comes from an injectable Clock and randomization from a seedable
// generator, so a session replayed with the same course, seed and request
// sequence reproduces identical deliveries. Events are ordered by a
// monotonic stamp, never by wall-clock time.
package engine
