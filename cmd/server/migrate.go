package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/cardfeed/internal/config"
	"github.com/phrazzld/cardfeed/internal/platform/migrations"
	"github.com/phrazzld/cardfeed/internal/platform/postgres"
	"github.com/phrazzld/cardfeed/internal/platform/sqlite"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{migrations.CommandUp, migrations.CommandDown, migrations.CommandStatus, migrations.CommandVersion},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runMigrations(ctx, cfg.Database, args[0], log)
		},
	}
}

// runMigrations opens the configured database and executes one migration
// command against it.
func runMigrations(ctx context.Context, cfg config.DatabaseConfig, command string, log *slog.Logger) error {
	var open func(context.Context, string) (*sql.DB, error)
	switch cfg.Driver {
	case "postgres":
		open = postgres.Open
	case "sqlite":
		open = sqlite.Open
	default:
		return fmt.Errorf("migrations need a database; driver is %q", cfg.Driver)
	}

	db, err := open(ctx, cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", slog.String("error", err.Error()))
		}
	}()

	if err := migrations.Run(ctx, db, cfg.Driver, command, log); err != nil {
		return err
	}

	if command == migrations.CommandUp || command == migrations.CommandDown {
		version, err := migrations.CurrentVersion(ctx, db, cfg.Driver)
		if err != nil {
			return err
		}
		log.Info("migrations complete", slog.String("command", command), slog.Int64("version", version))
	}
	return nil
}
