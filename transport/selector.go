package transport

import (
	"context"
	"fmt"
)

// Probe reports whether the host platform advertises WebTransport support.
// When it returns false the low-latency variant is never attempted.
type Probe func() bool

// Selector constructs the best available channel for a session. The
// low-latency variant is attempted first when the platform supports it, its
// readiness raced against a fixed timeout; on timeout or any initialization
// error the selector falls back to the WebSocket variant, whose own readiness
// has no further fallback behind it.
type Selector struct {
	cfg   Config
	probe Probe

	// Variant factories, injectable for tests. A factory returning an error
	// models synchronous construction failure.
	newLowLatency func(cfg Config, sessionID string) (Channel, error)
	newFallback   func(cfg Config, sessionID string) (Channel, error)
}

// NewSelector creates a selector with the default probe and variant
// factories.
func NewSelector(cfg Config) *Selector {
	cfg.defaults()
	return &Selector{
		cfg:   cfg,
		probe: defaultProbe(cfg),
		newLowLatency: func(cfg Config, sessionID string) (Channel, error) {
			return NewWebTransportChannel(cfg, sessionID), nil
		},
		newFallback: func(cfg Config, sessionID string) (Channel, error) {
			return NewWebSocketChannel(cfg, sessionID), nil
		},
	}
}

// defaultProbe treats a configured low-latency endpoint as platform support.
// Hosts that cannot speak WebTransport leave LowLatencyBaseURL empty.
func defaultProbe(cfg Config) Probe {
	return func() bool { return cfg.LowLatencyBaseURL != "" }
}

// WithProbe overrides the support probe.
func (s *Selector) WithProbe(probe Probe) *Selector {
	s.probe = probe
	return s
}

// Select returns a single ready channel for the session. The caller receives
// a variant-identifying Kind and an otherwise identical contract — no
// branching required downstream.
func (s *Selector) Select(ctx context.Context, sessionID string) (Channel, error) {
	if s.probe() {
		if ch := s.tryLowLatency(ctx, sessionID); ch != nil {
			return ch, nil
		}
	} else {
		s.cfg.Logger.Debug("low-latency transport unsupported, using fallback")
	}

	fb, err := s.newFallback(s.cfg, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fallback channel construction failed: %w", err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, s.cfg.FallbackReadyTimeout)
	defer cancel()

	if err := fb.Ready(readyCtx); err != nil {
		_ = fb.Close()
		return nil, fmt.Errorf("fallback channel failed to establish: %w", err)
	}

	s.cfg.Logger.Info("transport selected", "kind", fb.Kind(), "session_id", sessionID)
	return fb, nil
}

// tryLowLatency races the low-latency variant's readiness against the
// configured timeout. Returns nil when the attempt failed and the fallback
// should be used.
func (s *Selector) tryLowLatency(ctx context.Context, sessionID string) Channel {
	ch, err := s.newLowLatency(s.cfg, sessionID)
	if err != nil {
		s.cfg.Logger.Warn("low-latency channel construction failed, falling back", "error", err)
		return nil
	}

	readyCtx, cancel := context.WithTimeout(ctx, s.cfg.LowLatencyReadyTimeout)
	defer cancel()

	if err := ch.Ready(readyCtx); err != nil {
		s.cfg.Logger.Warn("low-latency channel failed to establish, falling back", "error", err)
		_ = ch.Close()
		return nil
	}

	s.cfg.Logger.Info("transport selected", "kind", ch.Kind(), "session_id", sessionID)
	return ch
}
