package exttable

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with exttable-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithTable adds a table field to the logger.
func (l *Logger) WithTable(kind string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", kind),
	}
}

// WithSpace adds a space field to the logger.
func (l *Logger) WithSpace(space string) *Logger {
	return &Logger{
		Logger: l.Logger.With("space", space),
	}
}

// LogGrow logs a segment committed to a space.
func (l *Logger) LogGrow(ctx context.Context, space string, segment, capacity uint32) {
	l.DebugContext(ctx, "segment allocated",
		"space", space,
		"segment", segment,
		"capacity", capacity,
	)
}

// LogSweep logs the outcome of a sweep.
func (l *Logger) LogSweep(ctx context.Context, stats SweepStats) {
	l.InfoContext(ctx, "sweep completed",
		"space", stats.Space,
		"live", stats.Live,
		"reclaimed", stats.Reclaimed,
		"evacuated", stats.Evacuated,
		"segments_released", stats.SegmentsReleased,
		"compacted", stats.Compacted,
		"aborted", stats.Aborted,
		"duration", stats.Duration,
	)
}

// LogCompactionStarted logs the evacuation boundary chosen for a cycle.
func (l *Logger) LogCompactionStarted(ctx context.Context, space string, start uint32, segments int) {
	l.DebugContext(ctx, "compaction started",
		"space", space,
		"start_of_evacuation_area", start,
		"segments", segments,
	)
}

// LogCompactionAborted logs that a compaction cycle gave up.
func (l *Logger) LogCompactionAborted(ctx context.Context, space string, start uint32) {
	l.WarnContext(ctx, "compaction aborted",
		"space", space,
		"start_of_evacuation_area", start,
	)
}

// LogFatal logs an unrecoverable table error.
func (l *Logger) LogFatal(ctx context.Context, err *FatalError) {
	l.ErrorContext(ctx, "fatal table error",
		"op", err.Op,
		"space", err.Space,
		"index", err.Index,
		"error", err.Err,
	)
}
