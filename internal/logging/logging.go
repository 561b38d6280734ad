// Package logging provides the structured logger used across the service,
// plus the context keys that carry trace and identity information.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	// TraceIDKey carries the request trace ID.
	TraceIDKey contextKey = "trace_id"
	// UserIDKey carries the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// RoleKey carries the authenticated user's profile role.
	RoleKey contextKey = "role"
)

// Logger wraps logrus with service-scoped fields and context extraction.
type Logger struct {
	entry *logrus.Entry
}

// New creates a logger for a service. Level is one of debug/info/warn/error;
// format is "json" or "text".
func New(service, level, format string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	switch strings.ToLower(format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	return &Logger{entry: l.WithField("service", service)}
}

// WithContext returns an entry enriched with trace/user/role from ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.entry
	if id := GetTraceID(ctx); id != "" {
		entry = entry.WithField("trace_id", id)
	}
	if id := GetUserID(ctx); id != "" {
		entry = entry.WithField("user_id", id)
	}
	if role := GetRole(ctx); role != "" {
		entry = entry.WithField("role", role)
	}
	return entry
}

// WithError returns an entry with the error attached.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.entry.WithError(err)
}

// WithFields returns an entry with the given fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.entry.WithFields(fields)
}

// Debug logs at debug level.
func (l *Logger) Debug(args ...interface{}) { l.entry.Debug(args...) }

// Info logs at info level.
func (l *Logger) Info(args ...interface{}) { l.entry.Info(args...) }

// Warn logs at warn level.
func (l *Logger) Warn(args ...interface{}) { l.entry.Warn(args...) }

// Error logs at error level.
func (l *Logger) Error(args ...interface{}) { l.entry.Error(args...) }

// LogRequest logs a completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}).Info("http request")
}

// LogSecurityEvent logs an auth/abuse related event.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).WithField("event", event).WithFields(fields).Warn("security event")
}

// NewTraceID generates a fresh trace ID.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID returns a context carrying the trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// GetTraceID returns the trace ID from ctx, or "".
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID returns a context carrying the user ID.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// GetUserID returns the user ID from ctx, or "".
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRole returns a context carrying the profile role.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}

// GetRole returns the profile role from ctx, or "".
func GetRole(ctx context.Context) string {
	if v, ok := ctx.Value(RoleKey).(string); ok {
		return v
	}
	return ""
}
