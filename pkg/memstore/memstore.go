package memstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/amirel/converse/internal/observability"
	"github.com/amirel/converse/internal/tracing"
)

// ErrNotFound indicates a Get or Delete on a key with no stored value.
var ErrNotFound = errors.New("key not found")

// Store is a durable key-value store for remembered facts.
type Store interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Config holds store configuration.
type Config struct {
	// DBPath is the SQLite database file path. Required.
	DBPath string

	Logger zerolog.Logger
}

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New opens or creates the store at cfg.DBPath.
func New(cfg Config) (*SQLiteStore, error) {
	observability.EnsureRegistered()

	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: cfg.Logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("db_path", cfg.DBPath).Msg("Memory store opened")
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS facts (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put stores value under key, replacing any existing value.
func (s *SQLiteStore) Put(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	ctx, span := tracing.StartSpan(
		ctx,
		"converse.memstore",
		"memstore.put",
		attribute.String("key", key),
	)
	defer span.End()

	start := time.Now()
	now := start.Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facts (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now, now)
	observability.RecordStoreOp("put", time.Since(start), err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to store fact: %w", err)
	}

	log := tracing.LoggerFromContext(ctx, s.logger)
	log.Debug().Str("key", key).Msg("Fact stored")
	return nil
}

// Get returns the value stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"converse.memstore",
		"memstore.get",
		attribute.String("key", key),
	)
	defer span.End()

	start := time.Now()
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM facts WHERE key = ?", key).Scan(&value)
	observability.RecordStoreOp("get", time.Since(start), err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to read fact: %w", err)
	}

	return value, nil
}

// Delete removes the value stored under key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	ctx, span := tracing.StartSpan(
		ctx,
		"converse.memstore",
		"memstore.delete",
		attribute.String("key", key),
	)
	defer span.End()

	start := time.Now()
	res, err := s.db.ExecContext(ctx, "DELETE FROM facts WHERE key = ?", key)
	observability.RecordStoreOp("delete", time.Since(start), err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to delete fact: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete fact: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	log := tracing.LoggerFromContext(ctx, s.logger)
	log.Debug().Str("key", key).Msg("Fact deleted")
	return nil
}

// Keys returns all stored keys in lexical order.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "converse.memstore", "memstore.keys")
	defer span.End()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM facts ORDER BY key")
	observability.RecordStoreOp("keys", time.Since(start), err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to list facts: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}

	return keys, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.logger.Info().Msg("Closing memory store")
	return s.db.Close()
}
