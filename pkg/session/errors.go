package session

import "errors"

var (
	// ErrEmptyMessage indicates an Ask call with an empty message.
	// The transcript is left unchanged.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrSessionClosed indicates an Ask call on a closed session.
	ErrSessionClosed = errors.New("session has been closed")

	// ErrSessionBusy indicates a concurrent Ask call while another is
	// in flight. Asks on one session never queue; callers serialize.
	ErrSessionBusy = errors.New("session has an ask in flight")
)
