// Package testdb opens the PostgreSQL database used by integration tests.
// Tests skip when no database is configured, except under CI where a
// missing database fails the run.
package testdb
