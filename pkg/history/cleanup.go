package history

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxAge   = 7 * 24 * time.Hour // 7 days
	DefaultMaxTurns = 500

	// Runs shortly after midnight so pruning doesn't contend with
	// daytime conversations.
	cleanupSchedule = "15 0 * * *"
)

// Cleanup prunes oversized transcripts and deletes stale ones on a
// cron schedule.
type Cleanup struct {
	manager  *Manager
	maxAge   time.Duration
	maxTurns int
	cron     *cron.Cron
	entryID  cron.EntryID
	running  bool
}

// NewCleanup creates a new transcript cleanup handler.
func NewCleanup(manager *Manager, maxAge time.Duration) *Cleanup {
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}

	return &Cleanup{
		manager:  manager,
		maxAge:   maxAge,
		maxTurns: DefaultMaxTurns,
		cron:     cron.New(),
	}
}

// Start schedules the cleanup job and runs one pass immediately.
func (c *Cleanup) Start() error {
	if c.running {
		return fmt.Errorf("cleanup is already running")
	}

	entryID, err := c.cron.AddFunc(cleanupSchedule, func() {
		if err := c.CleanupNow(); err != nil {
			log.Error().Err(err).Msg("Failed to clean up transcripts")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	c.entryID = entryID
	c.cron.Start()
	c.running = true

	if err := c.CleanupNow(); err != nil {
		log.Error().Err(err).Msg("Failed to clean up transcripts")
	}

	log.Info().
		Dur("max_age", c.maxAge).
		Str("schedule", cleanupSchedule).
		Msg("Transcript cleanup started")

	return nil
}

// Stop stops the cleanup scheduler.
func (c *Cleanup) Stop() error {
	if !c.running {
		return fmt.Errorf("cleanup is not running")
	}

	c.cron.Remove(c.entryID)
	ctx := c.cron.Stop()
	<-ctx.Done()
	c.running = false

	log.Info().Msg("Transcript cleanup stopped")

	return nil
}

// IsRunning returns whether the cleanup scheduler is running.
func (c *Cleanup) IsRunning() bool {
	return c.running
}

// SetMaxTurns sets the number of turns retained per transcript after pruning.
func (c *Cleanup) SetMaxTurns(maxTurns int) {
	c.maxTurns = maxTurns
	log.Info().Int("max_turns", maxTurns).Msg("Transcript pruning max turns updated")
}

// CleanupNow immediately runs one cleanup pass.
func (c *Cleanup) CleanupNow() error {
	sessions, err := c.manager.List()
	if err != nil {
		return fmt.Errorf("failed to list transcripts: %w", err)
	}

	now := time.Now()
	deleted := 0

	for _, sessionID := range sessions {
		if err := c.prune(sessionID); err != nil {
			log.Warn().
				Str("session_id", sessionID).
				Err(err).
				Msg("Failed to prune transcript")
		}

		info, err := c.manager.GetInfo(sessionID)
		if err != nil {
			log.Warn().
				Str("session_id", sessionID).
				Err(err).
				Msg("Failed to get transcript info")
			continue
		}

		age := now.Sub(info.LastModified)
		if age >= c.maxAge {
			if err := c.manager.Delete(sessionID); err != nil {
				log.Error().
					Str("session_id", sessionID).
					Err(err).
					Msg("Failed to delete transcript")
				continue
			}
			deleted++

			log.Debug().
				Str("session_id", sessionID).
				Dur("age", age).
				Msg("Transcript deleted")
		}
	}

	if deleted > 0 {
		log.Info().
			Int("deleted", deleted).
			Msg("Cleaned up stale transcripts")
	}

	return nil
}

// prune trims a transcript down to the trailing maxTurns turns.
func (c *Cleanup) prune(sessionID string) error {
	if c.maxTurns <= 0 {
		return nil
	}

	turns, err := c.manager.Load(sessionID)
	if err != nil {
		return err
	}

	if len(turns) <= c.maxTurns {
		return nil
	}

	pruned := turns[len(turns)-c.maxTurns:]
	if err := c.manager.Replace(sessionID, pruned); err != nil {
		return err
	}

	log.Debug().
		Str("session_id", sessionID).
		Int("from_turns", len(turns)).
		Int("to_turns", len(pruned)).
		Msg("Transcript pruned")

	return nil
}
