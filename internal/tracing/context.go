package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// BatchIDKey is the context key for the tool-call batch ID
	BatchIDKey ContextKey = "batch_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID string
	BatchID string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithBatchID adds a batch ID to the context
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, BatchIDKey, batchID)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetBatchID retrieves the batch ID from the context
func GetBatchID(ctx context.Context) string {
	if batchID, ok := ctx.Value(BatchIDKey).(string); ok {
		return batchID
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID: GetTraceID(ctx),
		BatchID: GetBatchID(ctx),
	}
}

// NewRequestContext creates a new context for a request with a new trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// LoggerFromContext binds tracing fields from the context onto a logger
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.BatchID != "" {
		logger = logger.With().Str("batch_id", tc.BatchID).Logger()
	}

	return logger
}
