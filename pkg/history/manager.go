package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/amirel/converse/internal/observability"
	"github.com/amirel/converse/internal/tracing"
	"github.com/amirel/converse/pkg/transcript"
)

// Record is one persisted transcript line.
type Record struct {
	SessionID string          `json:"sessionId"`
	Turn      transcript.Turn `json:"turn"`
}

// Info describes a persisted transcript.
type Info struct {
	SessionID    string    `json:"sessionId"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	TurnCount    int       `json:"turnCount"`
}

// Manager persists transcripts as JSONL files, one per session ID.
type Manager struct {
	dir        string
	writeLocks map[string]*sync.Mutex
	locksMu    sync.RWMutex
}

// New creates a new transcript history manager rooted at dir.
func New(dir string) (*Manager, error) {
	observability.EnsureRegistered()

	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".converse", "history")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	m := &Manager{
		dir:        dir,
		writeLocks: make(map[string]*sync.Mutex),
	}

	log.Info().Str("dir", dir).Msg("History manager initialized")
	m.updateStoredTranscriptsMetric()

	return m, nil
}

// validateSessionID validates the session ID for path safety.
func (m *Manager) validateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if strings.Contains(sessionID, "..") {
		return fmt.Errorf("session id cannot contain '..'")
	}
	if strings.ContainsAny(sessionID, "/\\") {
		return fmt.Errorf("session id cannot contain path separators")
	}
	if strings.Contains(sessionID, "\x00") {
		return fmt.Errorf("session id cannot contain null bytes")
	}
	return nil
}

// transcriptPath returns the file path for a session's transcript.
func (m *Manager) transcriptPath(sessionID string) string {
	return filepath.Join(m.dir, sessionID+".jsonl")
}

func (m *Manager) updateStoredTranscriptsMetric() {
	sessions, err := m.List()
	if err != nil {
		return
	}
	observability.SetStoredTranscripts(len(sessions))
}

// getWriteLock gets or creates a write lock for a session.
func (m *Manager) getWriteLock(sessionID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	if lock, exists := m.writeLocks[sessionID]; exists {
		return lock
	}

	lock := &sync.Mutex{}
	m.writeLocks[sessionID] = lock
	return lock
}

func (m *Manager) releaseWriteLock(sessionID string) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	delete(m.writeLocks, sessionID)
}

// Append appends a turn to a session's transcript, creating it if needed.
func (m *Manager) Append(sessionID string, turn transcript.Turn) error {
	return m.AppendWithContext(context.Background(), sessionID, turn)
}

// AppendWithContext appends a turn with tracing context.
func (m *Manager) AppendWithContext(ctx context.Context, sessionID string, turn transcript.Turn) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionID(ctx, sessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		"converse.history",
		"history.append",
		attribute.String("session_id", sessionID),
		attribute.String("role", string(turn.Role)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("session_id", sessionID).Logger()
	start := time.Now()
	defer func() {
		observability.RecordHistorySave(time.Since(start))
	}()

	if err := m.validateSessionID(sessionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if !turn.Role.Valid() {
		return fmt.Errorf("turn role %q is not valid", turn.Role)
	}
	if turn.Content == "" {
		return fmt.Errorf("turn content cannot be empty")
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	lock := m.getWriteLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	path := m.transcriptPath(sessionID)

	created := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		created = true
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to open transcript file: %w", err)
	}
	defer file.Close()

	record := Record{
		SessionID: sessionID,
		Turn:      turn,
	}

	data, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to write turn: %w", err)
	}

	if err := file.Sync(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if created {
		m.updateStoredTranscriptsMetric()
	}

	logger.Debug().
		Str("role", string(turn.Role)).
		Msg("Turn appended")

	return nil
}

// Load loads all turns from a session's transcript. A missing transcript
// yields an empty slice, not an error.
func (m *Manager) Load(sessionID string) ([]transcript.Turn, error) {
	return m.LoadWithContext(context.Background(), sessionID)
}

// LoadWithContext loads all turns with tracing context.
func (m *Manager) LoadWithContext(ctx context.Context, sessionID string) ([]transcript.Turn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionID(ctx, sessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		"converse.history",
		"history.load",
		attribute.String("session_id", sessionID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("session_id", sessionID).Logger()
	start := time.Now()
	defer func() {
		observability.RecordHistoryLoad(time.Since(start))
	}()

	if err := m.validateSessionID(sessionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	path := m.transcriptPath(sessionID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Debug().Msg("Transcript does not exist")
		return []transcript.Turn{}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to open transcript file: %w", err)
	}
	defer file.Close()

	var turns []transcript.Turn
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if line == "" {
			continue
		}

		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			logger.Warn().
				Int("line", lineNum).
				Err(err).
				Msg("Failed to parse line, skipping")
			continue
		}

		if !record.Turn.Role.Valid() || record.Turn.Content == "" {
			logger.Warn().
				Int("line", lineNum).
				Msg("Invalid record, skipping")
			continue
		}

		turns = append(turns, record.Turn)
	}

	if err := scanner.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read transcript file: %w", err)
	}

	logger.Debug().
		Int("turns", len(turns)).
		Msg("Transcript loaded")

	return turns, nil
}

// Replace atomically rewrites a session's transcript with the given turns.
func (m *Manager) Replace(sessionID string, turns []transcript.Turn) error {
	if err := m.validateSessionID(sessionID); err != nil {
		return err
	}

	lock := m.getWriteLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return m.writeAll(sessionID, turns)
}

// writeAll writes turns to a temp file and atomically replaces the
// transcript. Caller must hold the session's write lock.
func (m *Manager) writeAll(sessionID string, turns []transcript.Turn) error {
	path := m.transcriptPath(sessionID)
	tempPath := path + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	for _, turn := range turns {
		data, err := json.Marshal(Record{SessionID: sessionID, Turn: turn})
		if err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to marshal turn: %w", err)
		}

		if _, err := file.Write(append(data, '\n')); err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to write turn: %w", err)
		}
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	file.Close()

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace transcript file: %w", err)
	}

	return nil
}

// Delete removes a session's transcript.
func (m *Manager) Delete(sessionID string) error {
	if err := m.validateSessionID(sessionID); err != nil {
		return err
	}

	// Wait for any in-progress writes
	lock := m.getWriteLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	path := m.transcriptPath(sessionID)

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete transcript file: %w", err)
	}

	m.releaseWriteLock(sessionID)
	m.updateStoredTranscriptsMetric()

	log.Info().Str("session_id", sessionID).Msg("Transcript deleted")

	return nil
}

// List returns the IDs of all persisted transcripts.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var sessions []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}

		sessions = append(sessions, strings.TrimSuffix(name, ".jsonl"))
	}

	return sessions, nil
}

// Repair rewrites a transcript keeping only parseable, valid lines.
func (m *Manager) Repair(sessionID string) error {
	if err := m.validateSessionID(sessionID); err != nil {
		return err
	}

	// Load skips corrupted lines
	turns, err := m.Load(sessionID)
	if err != nil {
		return err
	}

	lock := m.getWriteLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.writeAll(sessionID, turns); err != nil {
		return err
	}

	log.Info().
		Str("session_id", sessionID).
		Int("turns", len(turns)).
		Msg("Transcript repaired")

	return nil
}

// GetInfo returns metadata about a persisted transcript.
func (m *Manager) GetInfo(sessionID string) (*Info, error) {
	if err := m.validateSessionID(sessionID); err != nil {
		return nil, err
	}

	path := m.transcriptPath(sessionID)

	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("transcript does not exist")
		}
		return nil, fmt.Errorf("failed to stat transcript file: %w", err)
	}

	turns, err := m.Load(sessionID)
	if err != nil {
		return nil, err
	}

	return &Info{
		SessionID:    sessionID,
		Size:         stat.Size(),
		LastModified: stat.ModTime(),
		TurnCount:    len(turns),
	}, nil
}

// Close closes the history manager.
func (m *Manager) Close() error {
	m.locksMu.Lock()
	m.writeLocks = make(map[string]*sync.Mutex)
	m.locksMu.Unlock()

	log.Info().Msg("History manager closed")

	return nil
}
