// Package completion defines the external completion collaborator that
// produces assistant responses for a window of conversation turns.
//
// Invariants:
// - Transport and provider failures are wrapped in ErrUnavailable.
// - Completers are stateless; conversation state lives in the session.
// - Request timeouts are forwarded through Options, never imposed here.
//
// Usage:
//
//	factory := &completion.Factory{}
//	completer, _ := factory.NewCompleter(completion.Profile{Provider: "openai", APIKey: key})
//	text, _ := completer.Complete(ctx, turns, completion.Options{Model: "gpt-4o"})
//	_ = text
package completion
