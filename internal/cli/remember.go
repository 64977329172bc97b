package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/amirel/converse/internal/config"
	"github.com/amirel/converse/pkg/memstore"
)

var rememberCmd = &cobra.Command{
	Use:   "remember <key> <value>",
	Short: "Store a fact for use across sessions",
	Args:  cobra.ExactArgs(2),
	RunE:  runRemember,
}

var recallCmd = &cobra.Command{
	Use:   "recall [key]",
	Short: "Recall a stored fact, or list all keys",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRecall,
}

var forgetCmd = &cobra.Command{
	Use:   "forget <key>",
	Short: "Delete a stored fact",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

func init() {
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(forgetCmd)
}

func openStore() (*memstore.SQLiteStore, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return memstore.New(memstore.Config{
		DBPath: filepath.Join(cfg.DataDir, "facts.db"),
	})
}

func runRemember(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Put(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Remembered %s\n", args[0])
	return nil
}

func runRecall(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	if len(args) == 0 {
		keys, err := store.Keys(cmd.Context())
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Fprintln(out, "Nothing remembered.")
			return nil
		}
		for _, key := range keys {
			fmt.Fprintln(out, key)
		}
		return nil
	}

	value, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, value)
	return nil
}

func runForget(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", args[0])
	return nil
}
