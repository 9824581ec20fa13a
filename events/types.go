package events

import (
	"time"

	"github.com/AltairaLabs/CaptureKit/types"
)

// EventType identifies the type of event emitted by the capture core.
type EventType string

const (
	// EventSessionStarted marks the transition into recording.
	EventSessionStarted EventType = "session.started"
	// EventSessionCompleted marks a finalized recording.
	EventSessionCompleted EventType = "session.completed"
	// EventSessionCanceled marks a user-initiated discard.
	EventSessionCanceled EventType = "session.canceled"
	// EventSessionFailed marks a session that ended in error.
	EventSessionFailed EventType = "session.failed"

	// EventStateChanged marks every session state transition.
	EventStateChanged EventType = "session.state_changed"

	// EventTransportSelected marks the outcome of transport selection.
	EventTransportSelected EventType = "transport.selected"
	// EventTransportError marks a non-fatal transport failure.
	EventTransportError EventType = "transport.error"

	// EventChunkSent marks a chunk delivered over the live channel.
	EventChunkSent EventType = "chunk.sent"
	// EventChunkFallback marks a chunk pushed over REST because no
	// live channel was open.
	EventChunkFallback EventType = "chunk.fallback"

	// EventMarkerAdded marks an accepted scene marker.
	EventMarkerAdded EventType = "marker.added"
	// EventMarkerSuppressed marks an automatic marker dropped by the
	// debounce window.
	EventMarkerSuppressed EventType = "marker.suppressed"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event represents a capture event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Data      EventData
}

// baseEventData provides a shared marker implementation for all event payloads.
type baseEventData struct{}

func (baseEventData) eventData() {}

// SessionStartedData contains data for session start events.
type SessionStartedData struct {
	baseEventData
	Title     string
	Codec     string
	Transport string
}

// SessionCompletedData contains data for session completion events.
type SessionCompletedData struct {
	baseEventData
	Duration    time.Duration
	TrimEnd     *float64
	ChunkCount  int64
	PlaybackURL string
}

// SessionCanceledData contains data for session cancel events.
type SessionCanceledData struct {
	baseEventData
	// State the session was in when cancel was requested.
	State string
}

// SessionFailedData contains data for session failure events.
type SessionFailedData struct {
	baseEventData
	Error error
	// Stage names the operation that failed (start, upload, stop).
	Stage string
}

// StateChangedData contains data for state transition events.
type StateChangedData struct {
	baseEventData
	From string
	To   string
}

// TransportSelectedData contains data for transport selection events.
type TransportSelectedData struct {
	baseEventData
	Kind string
	// FellBack is true when the low-latency attempt was abandoned.
	FellBack bool
}

// TransportErrorData contains data for non-fatal transport failures.
type TransportErrorData struct {
	baseEventData
	Kind  string
	Error error
}

// ChunkEventData is the unified payload for chunk delivery events
// (sent, fallback).
type ChunkEventData struct {
	baseEventData
	SequenceNum int64
	Bytes       int
	Transport   string
	IsLast      bool
}

// MarkerEventData is the unified payload for marker events
// (added, suppressed).
type MarkerEventData struct {
	baseEventData
	Timestamp float64
	Label     string
	Source    types.MarkerSource
}
