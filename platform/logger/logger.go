// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// MessageIDKey is the context key for the message being processed
	MessageIDKey contextKey = "message_id"
	// SenderKeyKey is the context key for the sender key
	SenderKeyKey contextKey = "sender_key"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports message_id and sender_key from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if messageID, ok := ctx.Value(MessageIDKey).(string); ok && messageID != "" {
		newLogger = newLogger.WithMessageID(messageID)
	}

	if senderKey, ok := ctx.Value(SenderKeyKey).(string); ok && senderKey != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("sender_key", senderKey)),
		}
	}

	return newLogger
}

// WithMessageID returns a logger with the message ID attached.
func (l *Logger) WithMessageID(messageID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("message_id", messageID)),
	}
}

// MessageEvent logs a lifecycle event of a single message processing attempt.
func (l *Logger) MessageEvent(event, messageID, senderKey string) {
	l.Info("message_event",
		slog.String("event", event),
		slog.String("message_id", messageID),
		slog.String("sender_key", senderKey),
	)
}

// GenerationError logs a failed text-generation attempt. These are absorbed
// by call-site fallbacks, so they log at warn level.
func (l *Logger) GenerationError(callSite string, attempt int, err error) {
	l.Warn("generation_error",
		slog.String("call_site", callSite),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

// GenerationFallback logs that a call-site resolved to its fallback value.
func (l *Logger) GenerationFallback(callSite, messageID string) {
	l.Warn("generation_fallback",
		slog.String("call_site", callSite),
		slog.String("message_id", messageID),
	)
}

// HTTPRequest logs HTTP request details
func (l *Logger) HTTPRequest(method, path string, status int, durationMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", durationMs),
		slog.String("client_ip", clientIP),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// ClaimRejected logs a claim attempt that lost to a concurrent owner.
func (l *Logger) ClaimRejected(messageID string) {
	l.Debug("claim_rejected",
		slog.String("message_id", messageID),
	)
}
