package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirel/converse/internal/config"
	"github.com/amirel/converse/pkg/history"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage persisted session transcripts",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session's transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a persisted session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune oversized transcripts and delete stale ones now",
	RunE:  runSessionsCleanup,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsCleanupCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openHistory() (*history.Manager, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return history.New(cfg.History.Dir)
}

// newCleanup builds a transcript cleanup job from the retention config.
func newCleanup(hist *history.Manager, retention config.HistoryConfig) *history.Cleanup {
	cleanup := history.NewCleanup(hist, time.Duration(retention.MaxAge)*24*time.Hour)
	if retention.MaxTurns > 0 {
		cleanup.SetMaxTurns(retention.MaxTurns)
	}
	return cleanup
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	hist, err := openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()

	ids, err := hist.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No sessions.")
		return nil
	}

	for _, id := range ids {
		info, err := hist.GetInfo(id)
		if err != nil {
			fmt.Fprintf(out, "%s\n", id)
			continue
		}
		fmt.Fprintf(out, "%s  %d turns  last active %s\n",
			id, info.TurnCount, info.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	hist, err := openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()

	turns, err := hist.Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, turn := range turns {
		fmt.Fprintf(out, "[%s] %s\n", turn.Role, turn.Content)
	}
	return nil
}

func runSessionsCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	hist, err := history.New(cfg.History.Dir)
	if err != nil {
		return err
	}
	defer hist.Close()

	if err := newCleanup(hist, cfg.History).CleanupNow(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cleanup complete.")
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	hist, err := openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()

	if err := hist.Delete(args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}
