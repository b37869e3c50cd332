package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/cardfeed/internal/config"
	"github.com/phrazzld/cardfeed/internal/events"
	"github.com/phrazzld/cardfeed/internal/feed"
	"github.com/phrazzld/cardfeed/internal/parking"
	"github.com/phrazzld/cardfeed/internal/platform/gemini"
	"github.com/phrazzld/cardfeed/internal/platform/metrics"
	"github.com/phrazzld/cardfeed/internal/platform/migrations"
	"github.com/phrazzld/cardfeed/internal/platform/postgres"
	"github.com/phrazzld/cardfeed/internal/platform/sqlite"
	"github.com/phrazzld/cardfeed/internal/redact"
	"github.com/phrazzld/cardfeed/internal/registry"
	"github.com/phrazzld/cardfeed/internal/service"
	"github.com/phrazzld/cardfeed/internal/service/auth"
	"github.com/phrazzld/cardfeed/internal/store"
	"github.com/phrazzld/cardfeed/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Persistence, nil when the database driver is "none" or the database
	// could not be opened.
	db    *sql.DB
	store store.Store
	// degraded is set when a configured database was unavailable at startup.
	degraded bool

	taskRunner  *task.TaskRunner
	bus         *events.Bus
	cardService service.CardService

	// jwtService is nil when no secret is configured.
	jwtService auth.JWTService
}

// newApplication creates a new application instance with all dependencies
// initialized. Nothing is started; see start.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(nil, logger),
	}

	var err error
	app.db, app.store, err = openStore(ctx, cfg.Database, logger)
	switch {
	case errors.Is(err, errUnsupportedDriver):
		return nil, err
	case err != nil:
		// Cards still flow; they just do not survive a restart.
		app.degraded = true
		app.metrics.StoreUnavailable(cfg.Database.Driver)
		logger.Error("database unavailable, running without persistence",
			slog.String("driver", cfg.Database.Driver),
			redact.ErrorAttr(err))
	}

	if cfg.Auth.JWTSecret != "" {
		app.jwtService, err = auth.NewJWTService(cfg.Auth)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		logger.Info("JWT authentication enabled",
			slog.Int("token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes))
	} else {
		logger.Warn("no JWT secret configured, API is unauthenticated")
	}

	var planner service.Planner
	if cfg.LLM.GeminiAPIKey != "" {
		p, err := gemini.NewPlanner(ctx, logger, cfg.LLM)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to initialize planner: %w", err)
		}
		planner = p
		logger.Info("gemini planner enabled", slog.String("model", cfg.LLM.ModelName))
	}

	app.taskRunner = task.NewTaskRunner(task.TaskRunnerConfig{
		WorkerCount: cfg.Task.WorkerCount,
		QueueSize:   cfg.Task.QueueSize,
	}, logger)
	app.taskRunner.SetErrorHandler(func(t task.Task, err error) {
		app.metrics.PersistFailed(t.Type())
		logger.Warn("persistence task failed",
			slog.String("task_type", t.Type()),
			slog.String("task_id", t.ID().String()),
			redact.ErrorAttr(err))
	})

	app.bus = events.NewBus(cfg.Bus.BufferSize, logger, events.WithMetrics(app.metrics))
	reg := registry.New()
	scheduler := parking.New(parking.Config{TickInterval: cfg.Scheduler.TickInterval}, logger)

	deps := service.Dependencies{
		Registry:  reg,
		Scheduler: scheduler,
		Bus:       app.bus,
		Composer:  feed.New(reg, scheduler, cfg.Feed.DefaultLimit),
		Store:     app.store,
		Tasks:     app.taskRunner,
		Metrics:   app.metrics,
		Planner:   planner,
	}

	app.cardService, err = service.NewCardService(deps, service.Config{
		BreakDelay:        cfg.Actions.BreakDelay,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create card service: %w", err)
	}

	logger.Info("Application initialized successfully",
		slog.String("database_driver", cfg.Database.Driver))
	return app, nil
}

var errUnsupportedDriver = errors.New("unsupported database driver")

// openStore connects the configured database and applies pending
// migrations. Driver "none" returns nil values.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, store.Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case "", "none":
		return nil, nil, nil
	case "postgres":
		db, err = postgres.Open(ctx, cfg.URL)
	case "sqlite":
		db, err = sqlite.Open(ctx, cfg.URL)
	default:
		return nil, nil, fmt.Errorf("%w %q", errUnsupportedDriver, cfg.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	if err := migrations.Up(ctx, db, cfg.Driver, logger); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	var s store.Store
	if cfg.Driver == "postgres" {
		s = postgres.NewStore(db, logger)
	} else {
		s = sqlite.NewStore(db, logger)
	}
	logger.Info("database connected", slog.String("driver", cfg.Driver))
	return db, s, nil
}

// start launches background work: the task runner and the wake loop.
func (app *application) start() error {
	if err := app.taskRunner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	if err := app.cardService.Start(); err != nil {
		return fmt.Errorf("failed to start wake loop: %w", err)
	}
	return nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	if err := app.start(); err != nil {
		app.cleanup()
		return err
	}

	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources. Parked cards
// stay parked; queued persistence tasks drain before the store closes.
func (app *application) cleanup() {
	if app.cardService != nil {
		app.cardService.Stop()
	}
	if app.bus != nil {
		app.bus.Close()
	}
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Error("Error closing database connection", redact.ErrorAttr(err))
		}
	} else if app.db != nil {
		_ = app.db.Close()
	}
	app.logger.Info("Application shutdown completed")
}
