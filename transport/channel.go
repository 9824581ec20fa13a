// Package transport provides a protocol-agnostic bidirectional channel for
// live chunk upload, with two concrete variants behind one contract: a
// multiplexed low-latency WebTransport variant and a message-oriented
// WebSocket fallback. A Selector constructs the best variant available for a
// session, racing the preferred variant's readiness against a timeout before
// falling back.
//
// The package separates transport-level concerns (handshake, binary send,
// control send, inbound demultiplexing) from session-level protocol details,
// which live in the session package.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/AltairaLabs/CaptureKit/types"
)

// Kind identifies which channel variant is in use.
type Kind string

// Channel kinds.
const (
	// KindLowLatency is the multiplexed WebTransport variant.
	KindLowLatency Kind = "low-latency"
	// KindFallback is the message-oriented WebSocket variant.
	KindFallback Kind = "fallback"
)

// Default readiness timeouts.
const (
	// DefaultLowLatencyReadyTimeout bounds the low-latency handshake race
	// before the selector falls back.
	DefaultLowLatencyReadyTimeout = 3 * time.Second

	// DefaultFallbackReadyTimeout bounds the fallback handshake. There is no
	// further fallback behind it.
	DefaultFallbackReadyTimeout = 5 * time.Second

	// DefaultWriteWait is the write deadline for each outbound frame.
	DefaultWriteWait = 10 * time.Second

	// DefaultMaxMessageSize is the inbound read limit.
	DefaultMaxMessageSize = 16 * 1024 * 1024 // 16MB
)

// Channel is the single contract implemented by both variants. Sends are
// best-effort: they never return errors and never block on delivery; failures
// are reported asynchronously through the error handler. Sends on a channel
// that is not open are silently dropped — callers check IsOpen before relying
// on delivery, or route through their own fallback.
type Channel interface {
	// Kind reports which variant this channel is.
	Kind() Kind

	// Ready blocks until the channel is usable, the channel fails to
	// establish, or ctx is done. It is safe to call more than once; later
	// calls observe the settled result.
	Ready(ctx context.Context) error

	// SendBinary enqueues a binary chunk payload.
	SendBinary(data []byte)

	// SendControl enqueues a small structured control message.
	SendControl(msg types.ControlMessage)

	// OnMessage registers the handler for inbound structured messages.
	// Single slot: re-registering replaces the previous handler.
	OnMessage(handler func(types.ServerEvent))

	// OnError registers the handler for transport-level errors.
	// Single slot, same semantics as OnMessage.
	OnError(handler func(error))

	// IsOpen reports current liveness.
	IsOpen() bool

	// Close tears the channel down. Idempotent; safe on an already-closed
	// channel.
	Close() error
}

// Logger is an optional interface for structured logging.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger discards all log output.
type noopLogger struct{}

// Debug implements Logger.
func (noopLogger) Debug(_ string, _ ...interface{}) {}

// Info implements Logger.
func (noopLogger) Info(_ string, _ ...interface{}) {}

// Warn implements Logger.
func (noopLogger) Warn(_ string, _ ...interface{}) {}

// Error implements Logger.
func (noopLogger) Error(_ string, _ ...interface{}) {}

// Config configures channel construction and selection. Base URLs are
// explicit configuration — the core never consults ambient environment state.
type Config struct {
	// LowLatencyBaseURL is the WebTransport endpoint base
	// (e.g. "https://ingest.example.com/wt"). The channel appends
	// "/upload/<sessionID>".
	LowLatencyBaseURL string

	// FallbackBaseURL is the WebSocket endpoint base
	// (e.g. "wss://ingest.example.com/ws"). The channel appends
	// "/upload/<sessionID>".
	FallbackBaseURL string

	// LowLatencyReadyTimeout races the low-latency handshake.
	// Defaults to DefaultLowLatencyReadyTimeout.
	LowLatencyReadyTimeout time.Duration

	// FallbackReadyTimeout bounds the fallback handshake.
	// Defaults to DefaultFallbackReadyTimeout.
	FallbackReadyTimeout time.Duration

	// WriteWait is the per-frame write deadline. Defaults to DefaultWriteWait.
	WriteWait time.Duration

	// MaxMessageSize is the inbound read limit. Defaults to DefaultMaxMessageSize.
	MaxMessageSize int64

	// Logger receives debug/warn/error log messages. Optional.
	Logger Logger
}

func (c *Config) defaults() {
	if c.LowLatencyReadyTimeout == 0 {
		c.LowLatencyReadyTimeout = DefaultLowLatencyReadyTimeout
	}
	if c.FallbackReadyTimeout == 0 {
		c.FallbackReadyTimeout = DefaultFallbackReadyTimeout
	}
	if c.WriteWait == 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// handlerSlots holds the single-slot message and error handlers shared by
// both variants. Re-registration replaces the previous handler; this core
// does not need multi-subscriber fan-out.
type handlerSlots struct {
	mu        sync.RWMutex
	onMessage func(types.ServerEvent)
	onError   func(error)
}

func (h *handlerSlots) setMessage(handler func(types.ServerEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onMessage = handler
}

func (h *handlerSlots) setError(handler func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = handler
}

func (h *handlerSlots) dispatchMessage(evt types.ServerEvent) {
	h.mu.RLock()
	handler := h.onMessage
	h.mu.RUnlock()
	if handler != nil {
		handler(evt)
	}
}

func (h *handlerSlots) dispatchError(err error) {
	h.mu.RLock()
	handler := h.onError
	h.mu.RUnlock()
	if handler != nil {
		handler(err)
	}
}
