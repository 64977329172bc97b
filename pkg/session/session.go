package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/amirel/converse/internal/observability"
	"github.com/amirel/converse/internal/tracing"
	"github.com/amirel/converse/pkg/completion"
	"github.com/amirel/converse/pkg/transcript"
)

// HistorySink receives every durably recorded turn. *history.Manager
// satisfies it.
type HistorySink interface {
	AppendWithContext(ctx context.Context, sessionID string, turn transcript.Turn) error
}

// Config holds session configuration.
type Config struct {
	// Completer produces assistant responses. Required.
	Completer completion.Completer

	// Completion carries per-request options forwarded to the completer.
	Completion completion.Options

	// MaxContextTurns bounds the trailing window of turns sent to the
	// completer. Zero or negative means the full transcript is sent.
	MaxContextTurns int

	// History, when set, receives every recorded turn for durable storage.
	History HistorySink

	// Restore seeds the transcript, typically from a persisted history.
	Restore []transcript.Turn

	// ID overrides the generated session ID, typically when resuming.
	ID string

	Logger zerolog.Logger
}

// Session owns one conversation's transcript and mediates every request
// to the completion collaborator.
type Session struct {
	id        string
	completer completion.Completer
	cfg       Config

	// mu serializes Ask calls; the transcript is only touched while held.
	mu         sync.Mutex
	transcript *transcript.Transcript

	closed    atomic.Bool
	closeOnce sync.Once

	logger zerolog.Logger
}

// New constructs a session with an isolated transcript.
func New(cfg Config) (*Session, error) {
	observability.EnsureRegistered()

	if cfg.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}

	id := cfg.ID
	if id == "" {
		generated, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session id: %w", err)
		}
		id = generated
	}

	tr := transcript.New()
	for _, turn := range cfg.Restore {
		if err := tr.Append(turn); err != nil {
			return nil, fmt.Errorf("failed to restore transcript: %w", err)
		}
	}

	logger := cfg.Logger.With().Str("session_id", id).Logger()

	s := &Session{
		id:         id,
		completer:  cfg.Completer,
		cfg:        cfg,
		transcript: tr,
		logger:     logger,
	}

	observability.RecordSessionOpened()
	logger.Info().
		Str("provider", cfg.Completer.Provider()).
		Int("max_context_turns", cfg.MaxContextTurns).
		Int("restored_turns", tr.Len()).
		Msg("Session opened")

	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Transcript returns a copy of all recorded turns in order.
func (s *Session) Transcript() []transcript.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Turns()
}

// Len returns the number of recorded turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Len()
}

// Ask records the user message, sends the context window to the
// completion collaborator, records the returned assistant turn and
// returns it.
//
// On collaborator failure the user turn remains recorded and no
// assistant turn is recorded; retrying with a new Ask appends fresh
// turns without duplicating history.
func (s *Session) Ask(ctx context.Context, message string) (string, error) {
	if s.closed.Load() {
		return "", ErrSessionClosed
	}
	if message == "" {
		return "", ErrEmptyMessage
	}

	if !s.mu.TryLock() {
		return "", ErrSessionBusy
	}
	defer s.mu.Unlock()

	// Close may have won the race before the lock was acquired.
	if s.closed.Load() {
		return "", ErrSessionClosed
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.NewRequestContext(ctx)
	ctx = tracing.WithSessionID(ctx, s.id)
	ctx, span := tracing.StartSpan(
		ctx,
		"converse.session",
		"session.ask",
		attribute.String("session_id", s.id),
		attribute.String("provider", s.completer.Provider()),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	userTurn := transcript.NewTurn(transcript.RoleUser, message)
	if err := s.transcript.Append(userTurn); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	s.persist(ctx, logger, userTurn)

	window := s.transcript.Window(s.cfg.MaxContextTurns)

	start := time.Now()
	reply, err := s.completer.Complete(ctx, window, s.cfg.Completion)
	observability.RecordAsk(s.completer.Provider(), time.Since(start), err == nil)

	if err != nil {
		// A cancelled request surfaces as a provider transport error;
		// report the cancellation itself so callers can match it.
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, ctxErr.Error())
			logger.Warn().Err(err).Msg("Ask cancelled during completion")
			return "", fmt.Errorf("ask: %w", ctxErr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("Completion failed; user turn recorded, no assistant turn recorded")
		return "", fmt.Errorf("ask: %w", err)
	}

	// A cancelled ask must not record a partial exchange even when the
	// collaborator managed to answer.
	if ctx.Err() != nil {
		span.SetStatus(codes.Error, ctx.Err().Error())
		logger.Warn().Msg("Ask cancelled; assistant turn discarded")
		return "", fmt.Errorf("ask: %w", ctx.Err())
	}

	assistantTurn := transcript.NewTurn(transcript.RoleAssistant, reply)
	if err := s.transcript.Append(assistantTurn); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	s.persist(ctx, logger, assistantTurn)

	logger.Debug().
		Int("window_turns", len(window)).
		Int("transcript_turns", s.transcript.Len()).
		Dur("duration", time.Since(start)).
		Msg("Ask completed")

	return reply, nil
}

// persist forwards a recorded turn to the history sink. History is
// supplemental to the in-memory transcript, so failures are logged and
// do not fail the ask.
func (s *Session) persist(ctx context.Context, logger zerolog.Logger, turn transcript.Turn) {
	if s.cfg.History == nil {
		return
	}
	if err := s.cfg.History.AppendWithContext(ctx, s.id, turn); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist turn")
	}
}

// Close releases the session. Further Ask calls fail with
// ErrSessionClosed. Close is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		observability.RecordSessionClosed()
		s.logger.Info().Msg("Session closed")
	})
	return nil
}
