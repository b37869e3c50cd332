package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/cardfeed/internal/store"
)

// DriverName is the database/sql driver used for PostgreSQL.
const DriverName = "pgx"

// Open connects to PostgreSQL, configures the pool and verifies the
// connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", MapError(err))
	}
	return db, nil
}

// Store implements store.Store on PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// NewStore wraps an open connection pool. If logger is nil, a default
// logger will be used.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger.With(slog.String("component", "postgres_store")),
	}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return MapError(s.db.PingContext(ctx))
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}
