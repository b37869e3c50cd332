package ciutil

import (
	"log/slog"

	"github.com/phrazzld/cardfeed/internal/redact"
)

const (
	// EnvTestDBURL names the preferred integration database variable.
	EnvTestDBURL = "CARDFEED_TEST_DB_URL"
	// EnvDatabaseURL is the generic fallback.
	EnvDatabaseURL = "DATABASE_URL"
)

// GetTestDatabaseURL returns the PostgreSQL URL integration tests should
// use, or "" when none is configured.
func GetTestDatabaseURL(logger *slog.Logger) string {
	url := GetEnvWithFallbacks([]string{EnvTestDBURL, EnvDatabaseURL}, "", logger)
	if url != "" && logger != nil {
		logger.Info("Using test database", "url", redact.String(url))
	}
	return url
}
