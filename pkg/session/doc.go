// Package session implements a conversation session with in-memory
// short-term context and optional durable transcript history.
//
// Invariants:
// - Ask calls on one session are serialized; concurrent calls fail with
//   ErrSessionBusy rather than interleave.
// - The assistant turn is appended only when the collaborator call
//   succeeds; after a failure exactly the user turn remains recorded.
// - The context window sent to the collaborator is the trailing
//   MaxContextTurns turns (everything when unbounded).
//
// Usage:
//
//	sess, _ := session.New(session.Config{Completer: completer})
//	defer sess.Close()
//	reply, _ := sess.Ask(ctx, "hello")
//	_ = reply
package session
