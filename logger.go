package ledgerq

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/ledgerq/model"
)

// Logger wraps slog.Logger with ledgerq-specific context.
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
func NewJSONLogger(level slog.Level) *Logger {
	return newLogger(os.Stderr, "json", level)
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return newLogger(os.Stderr, "text", level)
}

// NewLoggerFor creates a Logger writing to w. format is "json" or "text"
// and level one of "debug", "info", "warn" or "error".
func NewLoggerFor(w io.Writer, format, level string) *Logger {
	return newLogger(w, format, ParseLevel(level))
}

func newLogger(w io.Writer, format string, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h)}
}

// ParseLevel maps a level name to a slog.Level. Unknown names yield Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithAccount adds an account field to the logger.
func (l *Logger) WithAccount(id model.AccountID) *Logger {
	return &Logger{
		Logger: l.Logger.With("account", id.String()),
	}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogRegister logs a register operation.
func (l *Logger) LogRegister(ctx context.Context, id model.AccountID, lsn uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "register failed",
			"account", id.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "register completed",
			"account", id.String(),
			"lsn", lsn,
		)
	}
}

// LogUnregister logs an unregister operation.
func (l *Logger) LogUnregister(ctx context.Context, id model.AccountID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "unregister failed",
			"account", id.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "unregister completed",
			"account", id.String(),
		)
	}
}

// LogQuery logs a query.
func (l *Logger) LogQuery(ctx context.Context, filter string, results int, d time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "query failed",
			"filter", filter,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"filter", filter,
			"results", results,
			"duration", d,
		)
	}
}

// LogCheckpoint logs a checkpoint.
func (l *Logger) LogCheckpoint(ctx context.Context, lsn uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checkpoint failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "checkpoint saved",
			"lsn", lsn,
		)
	}
}

// LogRecovery logs the outcome of engine recovery.
func (l *Logger) LogRecovery(ctx context.Context, lsn uint64, accounts int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "recovery failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "recovery completed",
			"lsn", lsn,
			"accounts", accounts,
		)
	}
}
