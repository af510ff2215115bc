// Package log provides the structured logging interface used by every
// pipeline stage of bikecast.
//
// Fields are slog-style key/value pairs. Stages depend on Logger only; the
// process-wide backend installed by Setup is zerolog.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("cleaner").With(
//	    log.StageKey, "clean",
//	)
//	logger.Info("daily summary written",
//	    log.FilePathKey, "2023_youbike_daily_summary.csv",
//	    log.SamplesKey, 365,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface with key/value fields.
//
// The With method returns a child logger with pre-populated fields, so
// components typically build one contextual logger and reuse it.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	//
	// Example:
	//   logger.Info("Model training completed",
	//       log.DurationMsKey, 5432,
	//       log.LossKey, 0.12,
	//   )
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If the first field is an error value it is attached as the error of
	// the record, including its stack trace when one is available.
	//
	// Example:
	//   logger.Error("page request failed",
	//       err,
	//       log.URLKey, url,
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level. Values follow slog.Level.
type Level int

// Standard logging levels.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
