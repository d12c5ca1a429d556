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
	// RelayIDKey is the context key for the relay run ID
	RelayIDKey ContextKey = "relay_id"
	// AgentKey is the context key for the agent currently taking a turn
	AgentKey ContextKey = "agent"
	// RequestIDKey is the context key for the HTTP request ID
	RequestIDKey ContextKey = "request_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	RelayID   string
	Agent     string
	RequestID string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRelayID generates a new relay ID
func NewRelayID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRelayID adds a relay ID to the context
func WithRelayID(ctx context.Context, relayID string) context.Context {
	return context.WithValue(ctx, RelayIDKey, relayID)
}

// WithAgent adds the acting agent name to the context
func WithAgent(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, AgentKey, name)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string { return stringValue(ctx, TraceIDKey) }

// GetRelayID retrieves the relay ID from the context
func GetRelayID(ctx context.Context) string { return stringValue(ctx, RelayIDKey) }

// GetAgent retrieves the acting agent name from the context
func GetAgent(ctx context.Context) string { return stringValue(ctx, AgentKey) }

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string { return stringValue(ctx, RequestIDKey) }

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		RelayID:   GetRelayID(ctx),
		Agent:     GetAgent(ctx),
		RequestID: GetRequestID(ctx),
	}
}

// NewRelayContext tags ctx with a fresh relay ID, and a trace ID if none is set.
func NewRelayContext(ctx context.Context) (context.Context, string) {
	relayID := NewRelayID()
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithRelayID(ctx, relayID), relayID
}

// LoggerFromContext adds whatever tracing fields ctx carries to logger.
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.RelayID != "" {
		logger = logger.With().Str("relay_id", tc.RelayID).Logger()
	}
	if tc.Agent != "" {
		logger = logger.With().Str("agent", tc.Agent).Logger()
	}
	if tc.RequestID != "" {
		logger = logger.With().Str("request_id", tc.RequestID).Logger()
	}

	return logger
}
