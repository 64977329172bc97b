package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirel/converse/internal/config"
	"github.com/amirel/converse/internal/logger"
	"github.com/amirel/converse/internal/tracing"
	"github.com/amirel/converse/pkg/completion"
	"github.com/amirel/converse/pkg/history"
	"github.com/amirel/converse/pkg/session"
)

var (
	chatSessionID string
	chatModel     string
	chatWindow    int
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session with the configured AI provider.
Each message and response is recorded to the session transcript. Use
--session to resume a previous session with its transcript restored.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "session ID to resume")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "model override")
	chatCmd.Flags().IntVar(&chatWindow, "max-context-turns", -1, "context window size (0 = unbounded)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lg, err := logger.New(logger.Config{
		Level:   logLevel,
		File:    cfg.Logging.File,
		Console: false,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()

	if err := tracing.InitOpenTelemetry("converse", version); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
			zl := lg.GetZerolog()
			zl.Warn().Err(err).Msg("Failed to shut down tracing")
		}
	}()

	profile, err := cfg.DefaultProfile()
	if err != nil {
		return err
	}

	factory := &completion.Factory{}
	completer, err := factory.NewCompleter(completion.Profile{
		Provider: profile.Provider,
		APIKey:   profile.APIKey,
	})
	if err != nil {
		return err
	}

	hist, err := history.New(cfg.History.Dir)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer hist.Close()

	cleanup := newCleanup(hist, cfg.History)
	if err := cleanup.Start(); err != nil {
		return fmt.Errorf("failed to start transcript cleanup: %w", err)
	}
	defer cleanup.Stop()

	sessionCfg := session.Config{
		Completer: completer,
		Completion: completion.Options{
			Model:        cfg.Chat.Model,
			SystemPrompt: cfg.Chat.SystemPrompt,
			Temperature:  cfg.Chat.Temperature,
			MaxTokens:    cfg.Chat.MaxTokens,
			Timeout:      time.Duration(cfg.Chat.TimeoutSeconds) * time.Second,
		},
		MaxContextTurns: cfg.Chat.MaxContextTurns,
		History:         hist,
		Logger:          lg.GetZerolog(),
	}
	if chatModel != "" {
		sessionCfg.Completion.Model = chatModel
	}
	if chatWindow >= 0 {
		sessionCfg.MaxContextTurns = chatWindow
	}

	if chatSessionID != "" {
		turns, err := hist.Load(chatSessionID)
		if err != nil {
			return fmt.Errorf("failed to resume session %s: %w", chatSessionID, err)
		}
		sessionCfg.ID = chatSessionID
		sessionCfg.Restore = turns
	}

	sess, err := session.New(sessionCfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s (provider: %s). Type /quit to exit.\n", sess.ID(), completer.Provider())
	if restored := sess.Len(); restored > 0 {
		fmt.Fprintf(out, "Resumed with %d turns.\n", restored)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" || line == "/exit" {
			break
		}
		if line == "" {
			continue
		}

		reply, err := sess.Ask(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			if completion.IsRetryable(err) {
				fmt.Fprintf(out, "error: %v (your message was recorded; try again)\n", err)
				continue
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		fmt.Fprintln(out, reply)
	}

	fmt.Fprintf(out, "Session %s saved.\n", sess.ID())
	return scanner.Err()
}
