// Package postgres implements the store interfaces on PostgreSQL through the
// pgx database/sql driver. Database errors are translated into the store
// error family by MapError.
package postgres
