// Package transcript defines the conversation turn model and the
// append-only transcript that a session owns.
//
// Invariants:
// - Transcript length only grows; turns keep insertion order.
// - Turns are immutable once appended; accessors return copies.
// - Window(n) never splits or reorders turns.
package transcript
