package logger

import (
	"context"
	"strings"
	"sync"
)

// LogEntry represents a single log entry captured by the test logger.
type LogEntry struct {
	Level   string
	Message string
	Fields  Fields
}

// journal is shared by a TestLogger and every logger derived from it.
type journal struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// TestLogger is a logger implementation for testing that captures log entries.
type TestLogger struct {
	journal *journal
	fields  Fields
}

// NewTestLogger creates a new test logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{
		journal: &journal{},
		fields:  Fields{},
	}
}

// Debug logs a debug-level message.
func (l *TestLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, "debug", msg, fields)
}

// Info logs an info-level message.
func (l *TestLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, "info", msg, fields)
}

// Warn logs a warning-level message.
func (l *TestLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, "warn", msg, fields)
}

// Error logs an error-level message.
func (l *TestLogger) Error(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, "error", msg, fields)
}

// WithField returns a derived logger; entries land in the same journal.
func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(Fields{key: value})
}

// WithFields returns a derived logger; entries land in the same journal.
func (l *TestLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &TestLogger{
		journal: l.journal,
		fields:  newFields,
	}
}

func (l *TestLogger) log(ctx context.Context, level, msg string, fields Fields) {
	allFields := make(Fields)
	for k, v := range l.fields {
		allFields[k] = v
	}
	for k, v := range merge(ctx, fields) {
		allFields[k] = v
	}

	l.journal.mu.Lock()
	defer l.journal.mu.Unlock()
	l.journal.entries = append(l.journal.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  allFields,
	})
}

// Entries returns all captured log entries.
func (l *TestLogger) Entries() []LogEntry {
	l.journal.mu.RLock()
	defer l.journal.mu.RUnlock()

	entries := make([]LogEntry, len(l.journal.entries))
	copy(entries, l.journal.entries)
	return entries
}

// EntriesAt returns the captured entries of one level.
func (l *TestLogger) EntriesAt(level string) []LogEntry {
	var out []LogEntry
	for _, e := range l.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether any entry message contains substr.
func (l *TestLogger) Contains(substr string) bool {
	for _, e := range l.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// Reset clears all captured log entries.
func (l *TestLogger) Reset() {
	l.journal.mu.Lock()
	defer l.journal.mu.Unlock()
	l.journal.entries = nil
}
