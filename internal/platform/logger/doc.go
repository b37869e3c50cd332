// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels. Loggers travel through request contexts via
// WithLogger and FromContext, and test helpers capture output for assertions.
package logger
