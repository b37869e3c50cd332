package testdb

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/phrazzld/cardfeed/internal/ciutil"
	"github.com/phrazzld/cardfeed/internal/platform/migrations"
	"github.com/phrazzld/cardfeed/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

// TestTimeout bounds setup against the test database.
const TestTimeout = 10 * time.Second

// IsIntegrationTestEnvironment reports whether a test database is configured.
func IsIntegrationTestEnvironment() bool {
	return ciutil.GetTestDatabaseURL(nil) != ""
}

// SkipIfNotIntegration skips t unless a test database is configured. Under
// CI the absence is a failure instead.
func SkipIfNotIntegration(t *testing.T) {
	t.Helper()
	if IsIntegrationTestEnvironment() {
		return
	}
	if ciutil.IsCI() {
		t.Fatalf("%s must be set for integration tests in CI", ciutil.EnvTestDBURL)
	}
	t.Skipf("integration test: set %s to run", ciutil.EnvTestDBURL)
}

// OpenPostgres connects to the test database, applies migrations and closes
// the pool when t ends.
func OpenPostgres(t *testing.T) *sql.DB {
	t.Helper()
	SkipIfNotIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := postgres.Open(ctx, ciutil.GetTestDatabaseURL(logger))
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(ctx, db, "postgres", logger), "failed to migrate test database")
	return db
}
