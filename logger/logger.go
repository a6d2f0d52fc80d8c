package logger

import "context"

// Fields is the set of structured key/value pairs attached to a log entry.
type Fields = map[string]interface{}

// Logger defines the interface for structured logging with context support.
type Logger interface {
	// Debug logs a debug-level message with optional fields
	Debug(ctx context.Context, msg string, fields Fields)

	// Info logs an info-level message with optional fields
	Info(ctx context.Context, msg string, fields Fields)

	// Warn logs a warning-level message with optional fields
	Warn(ctx context.Context, msg string, fields Fields)

	// Error logs an error-level message with optional fields
	Error(ctx context.Context, msg string, fields Fields)

	// WithField returns a new logger with the given field added to all subsequent log entries
	WithField(key string, value interface{}) Logger

	// WithFields returns a new logger with the given fields added to all subsequent log entries
	WithFields(fields Fields) Logger
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying fields that every logger call
// made with the returned context will include.
func NewContext(ctx context.Context, fields Fields) context.Context {
	merged := Fields{}
	for k, v := range FromContext(ctx) {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, ctxKey{}, merged)
}

// FromContext returns the fields stored by NewContext, or nil.
func FromContext(ctx context.Context) Fields {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(ctxKey{}).(Fields)
	return fields
}

// merge combines context fields with call fields; call fields win.
func merge(ctx context.Context, fields Fields) Fields {
	ctxFields := FromContext(ctx)
	if len(ctxFields) == 0 {
		return fields
	}
	all := make(Fields, len(ctxFields)+len(fields))
	for k, v := range ctxFields {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	return all
}
