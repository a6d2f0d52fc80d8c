package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options controls how a LogrusLogger renders entries.
type Options struct {
	Level  string
	Format string // "json" or "text"
	Output io.Writer
}

// LogrusLogger wraps a logrus logger to implement the Logger interface.
type LogrusLogger struct {
	logger *logrus.Logger
	entry  *logrus.Entry
}

// NewLogrusLogger creates a new LogrusLogger with JSON formatter writing to stdout.
func NewLogrusLogger(level string) *LogrusLogger {
	return NewLogrusLoggerWithOptions(Options{Level: level, Format: "json"})
}

// NewLogrusLoggerWithOptions creates a LogrusLogger from explicit options.
// The text format is meant for interactive runs of the suite.
func NewLogrusLoggerWithOptions(opts Options) *LogrusLogger {
	logger := logrus.New()

	switch opts.Format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	logLevel, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	return &LogrusLogger{
		logger: logger,
		entry:  logrus.NewEntry(logger),
	}
}

func (l *LogrusLogger) withCtx(ctx context.Context, fields Fields) *logrus.Entry {
	all := merge(ctx, fields)
	if len(all) == 0 {
		return l.entry
	}
	return l.entry.WithFields(all)
}

// Debug logs a debug-level message.
func (l *LogrusLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.withCtx(ctx, fields).Debug(msg)
}

// Info logs an info-level message.
func (l *LogrusLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.withCtx(ctx, fields).Info(msg)
}

// Warn logs a warning-level message.
func (l *LogrusLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.withCtx(ctx, fields).Warn(msg)
}

// Error logs an error-level message.
func (l *LogrusLogger) Error(ctx context.Context, msg string, fields Fields) {
	l.withCtx(ctx, fields).Error(msg)
}

// WithField returns a new logger with the given field added.
func (l *LogrusLogger) WithField(key string, value interface{}) Logger {
	return &LogrusLogger{
		logger: l.logger,
		entry:  l.entry.WithField(key, value),
	}
}

// WithFields returns a new logger with the given fields added.
func (l *LogrusLogger) WithFields(fields Fields) Logger {
	return &LogrusLogger{
		logger: l.logger,
		entry:  l.entry.WithFields(fields),
	}
}
