// Package logger provides structured logging with automatic redaction.
package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields.
// These keys are used to store values in context.Context that will be
// automatically extracted and added to log entries.
const (
	// ContextKeySessionID identifies the capture session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyVideoID identifies the recorded video on the backend.
	ContextKeyVideoID contextKey = "video_id"

	// ContextKeyTransport identifies the channel variant carrying the
	// session (e.g., "low-latency", "fallback").
	ContextKeyTransport contextKey = "transport"

	// ContextKeyCodec identifies the negotiated codec tier.
	ContextKeyCodec contextKey = "codec"

	// ContextKeyStage identifies the capture stage (e.g., "start", "recording", "stop").
	ContextKeyStage contextKey = "stage"

	// ContextKeyRequestID identifies the individual request.
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyCorrelationID is used for distributed tracing.
	ContextKeyCorrelationID contextKey = "correlation_id"

	// ContextKeyEnvironment identifies the deployment environment.
	ContextKeyEnvironment contextKey = "environment"
)

// allContextKeys lists all context keys that should be extracted for logging.
// This is used by the handler to iterate over all possible context values.
var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyVideoID,
	ContextKeyTransport,
	ContextKeyCodec,
	ContextKeyStage,
	ContextKeyRequestID,
	ContextKeyCorrelationID,
	ContextKeyEnvironment,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithVideoID returns a new context with the video ID set.
func WithVideoID(ctx context.Context, videoID string) context.Context {
	return context.WithValue(ctx, ContextKeyVideoID, videoID)
}

// WithTransport returns a new context with the transport kind set.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, ContextKeyTransport, transport)
}

// WithCodec returns a new context with the codec tier set.
func WithCodec(ctx context.Context, codec string) context.Context {
	return context.WithValue(ctx, ContextKeyCodec, codec)
}

// WithStage returns a new context with the capture stage set.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, ContextKeyStage, stage)
}

// WithRequestID returns a new context with the request ID set.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithCorrelationID returns a new context with the correlation ID set.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, correlationID)
}

// WithEnvironment returns a new context with the environment set.
func WithEnvironment(ctx context.Context, environment string) context.Context {
	return context.WithValue(ctx, ContextKeyEnvironment, environment)
}

// WithLoggingContext returns a new context with multiple logging fields set at once.
// This is a convenience function for setting multiple fields in one call.
// Only non-empty values are set.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	if fields.SessionID != "" {
		ctx = WithSessionID(ctx, fields.SessionID)
	}
	if fields.VideoID != "" {
		ctx = WithVideoID(ctx, fields.VideoID)
	}
	if fields.Transport != "" {
		ctx = WithTransport(ctx, fields.Transport)
	}
	if fields.Codec != "" {
		ctx = WithCodec(ctx, fields.Codec)
	}
	if fields.Stage != "" {
		ctx = WithStage(ctx, fields.Stage)
	}
	if fields.RequestID != "" {
		ctx = WithRequestID(ctx, fields.RequestID)
	}
	if fields.CorrelationID != "" {
		ctx = WithCorrelationID(ctx, fields.CorrelationID)
	}
	if fields.Environment != "" {
		ctx = WithEnvironment(ctx, fields.Environment)
	}
	return ctx
}

// LoggingFields holds all standard logging context fields.
// This struct is used with WithLoggingContext for bulk field setting.
type LoggingFields struct {
	SessionID     string
	VideoID       string
	Transport     string
	Codec         string
	Stage         string
	RequestID     string
	CorrelationID string
	Environment   string
}

// ExtractLoggingFields extracts all logging fields from a context.
// Returns a LoggingFields struct with all values found in the context.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	fields := LoggingFields{}
	if v := ctx.Value(ContextKeySessionID); v != nil {
		fields.SessionID, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyVideoID); v != nil {
		fields.VideoID, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyTransport); v != nil {
		fields.Transport, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyCodec); v != nil {
		fields.Codec, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyStage); v != nil {
		fields.Stage, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyRequestID); v != nil {
		fields.RequestID, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyCorrelationID); v != nil {
		fields.CorrelationID, _ = v.(string)
	}
	if v := ctx.Value(ContextKeyEnvironment); v != nil {
		fields.Environment, _ = v.(string)
	}
	return fields
}
