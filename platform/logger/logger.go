// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// JobIDKey is the context key for the queue job ID
	JobIDKey contextKey = "job_id"
	// TeamIDKey is the context key for the tenant team ID
	TeamIDKey contextKey = "team_id"
	// TraceIDKey is the context key for trace ID
	TraceIDKey contextKey = "trace_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(env string, w io.Writer) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext returns a logger with context values extracted.
// Supports job_id, team_id, and trace_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if jobID, ok := ctx.Value(JobIDKey).(string); ok && jobID != "" {
		newLogger = newLogger.WithJobID(jobID)
	}

	if teamID, ok := ctx.Value(TeamIDKey).(string); ok && teamID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("team_id", teamID)),
		}
	}

	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("trace_id", traceID)),
		}
	}

	return newLogger
}

// WithJobID returns a logger with job ID
func (l *Logger) WithJobID(jobID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("job_id", jobID)),
	}
}

// JobFailed logs a job handler failure
func (l *Logger) JobFailed(taskType, taskID string, attempt, maxAttempts int, err error) {
	l.Warn("job_failed",
		slog.String("task", taskType),
		slog.String("task_id", taskID),
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", maxAttempts),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
