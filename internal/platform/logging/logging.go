// Package logging provides the structured logging interface used across
// Starstream's components, backed by zap with optional rotating file output.
package logging

import "go.uber.org/zap"

// Logger is the structured logging interface every component depends on.
// Concrete callers never reach for *zap.Logger directly so the engine,
// scheduler, and cache layers stay decoupled from the logging backend.
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})
	Info(msg string)
	Infof(format string, args ...interface{})
	Warn(msg string)
	Warnf(format string, args ...interface{})
	Error(msg string)
	Errorf(format string, args ...interface{})
	Fatal(msg string)
	Fatalf(format string, args ...interface{})

	// With returns a Logger carrying args as additional structured fields
	// on every subsequent entry.
	With(args ...interface{}) Logger

	// Sync flushes any buffered log entries.
	Sync() error

	// Zap exposes the underlying zap logger for components (e.g. fx's
	// WithLogger) that want to hook zap directly.
	Zap() *zap.Logger
}
