// Command studyctl is the operator CLI for the study backend: it applies
// migrations, imports word lists from disk and adjusts characters without
// going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/studyquest/internal/config"
	"github.com/JonMunkholm/studyquest/internal/core"
	"github.com/JonMunkholm/studyquest/internal/logging"
	"github.com/JonMunkholm/studyquest/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "studyctl",
		Short:         "Operate the study backend store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load %s: %w", envFile, err)
				}
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment")

	root.AddCommand(
		newMigrateCmd(),
		newImportCmd(),
		newGrantCmd(),
		newQuizCmd(),
	)
	return root
}

// loadConfig reads the environment and configures logging to stderr so
// command output on stdout stays machine readable.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))
	return cfg, nil
}

// withService opens the configured store, builds a service on it and
// closes the store once fn returns.
func withService(cmd *cobra.Command, fn func(svc *core.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := storage.Open(cmd.Context(), cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	svc, err := core.NewService(store, core.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}
	return fn(svc)
}
