// Package main implements the cardfeed server binary: the HTTP API with its
// background wake loop, schema migrations, and a few operator commands.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/phrazzld/cardfeed/internal/config"
	"github.com/phrazzld/cardfeed/internal/platform/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "cardfeed",
		Short:         "Card feed server",
		Long:          "cardfeed serves a prioritized feed of work cards, parks cards until they are due, and streams changes to clients.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to a YAML config file (default: ./config.yaml when present)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newParkedCmd())
	root.AddCommand(newTokenCmd(opts))
	return root
}

// initializeApp loads configuration and sets up JSON logging to logOut.
func initializeApp(opts *rootOptions, logOut io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.SetupWithWriter(cfg.Server, logOut)

	log.Info("Server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("database_driver", cfg.Database.Driver),
		slog.Bool("auth_enabled", cfg.Auth.JWTSecret != ""),
		slog.Bool("slack_enabled", cfg.Slack.SigningSecret != ""),
		slog.Bool("planner_enabled", cfg.LLM.GeminiAPIKey != ""))
	return cfg, log, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := initializeApp(opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			app, err := newApplication(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return app.Run(ctx)
		},
	}
}
