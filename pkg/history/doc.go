// Package history persists conversation transcripts as JSONL files.
//
// Invariants:
// - Session IDs are validated and path-safe.
// - Writes for the same transcript are serialized.
// - Append/load/delete operations are observable via tracing and metrics.
//
// Usage:
//
//	mgr, _ := history.New("/tmp/converse/history")
//	_ = mgr.Append("session-1", transcript.NewTurn(transcript.RoleUser, "hello"))
//	turns, _ := mgr.Load("session-1")
//	_ = turns
package history
