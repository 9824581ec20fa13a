package events

import (
	"time"

	"github.com/AltairaLabs/CaptureKit/types"
)

// Emitter provides helpers for publishing capture events with shared
// session metadata. A nil Emitter or nil bus drops everything, so
// callers never have to guard their emit sites.
type Emitter struct {
	bus       *EventBus
	sessionID string
}

// NewEmitter creates an event emitter bound to one session.
func NewEmitter(bus *EventBus, sessionID string) *Emitter {
	return &Emitter{bus: bus, sessionID: sessionID}
}

// emit publishes an event with shared context fields.
func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}

	e.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	})
}

// SessionStarted emits the session.started event.
func (e *Emitter) SessionStarted(title, codec, transport string) {
	e.emit(EventSessionStarted, SessionStartedData{
		Title:     title,
		Codec:     codec,
		Transport: transport,
	})
}

// SessionCompleted emits the session.completed event.
func (e *Emitter) SessionCompleted(duration time.Duration, trimEnd *float64, chunkCount int64, playbackURL string) {
	e.emit(EventSessionCompleted, SessionCompletedData{
		Duration:    duration,
		TrimEnd:     trimEnd,
		ChunkCount:  chunkCount,
		PlaybackURL: playbackURL,
	})
}

// SessionCanceled emits the session.canceled event.
func (e *Emitter) SessionCanceled(state string) {
	e.emit(EventSessionCanceled, SessionCanceledData{State: state})
}

// SessionFailed emits the session.failed event.
func (e *Emitter) SessionFailed(err error, stage string) {
	e.emit(EventSessionFailed, SessionFailedData{Error: err, Stage: stage})
}

// StateChanged emits the session.state_changed event.
func (e *Emitter) StateChanged(from, to string) {
	e.emit(EventStateChanged, StateChangedData{From: from, To: to})
}

// TransportSelected emits the transport.selected event.
func (e *Emitter) TransportSelected(kind string, fellBack bool) {
	e.emit(EventTransportSelected, TransportSelectedData{Kind: kind, FellBack: fellBack})
}

// TransportError emits the transport.error event.
func (e *Emitter) TransportError(kind string, err error) {
	e.emit(EventTransportError, TransportErrorData{Kind: kind, Error: err})
}

// ChunkSent emits the chunk.sent event.
func (e *Emitter) ChunkSent(seq int64, bytes int, transport string, isLast bool) {
	e.emit(EventChunkSent, ChunkEventData{
		SequenceNum: seq,
		Bytes:       bytes,
		Transport:   transport,
		IsLast:      isLast,
	})
}

// ChunkFallback emits the chunk.fallback event.
func (e *Emitter) ChunkFallback(seq int64, bytes int, isLast bool) {
	e.emit(EventChunkFallback, ChunkEventData{
		SequenceNum: seq,
		Bytes:       bytes,
		Transport:   "rest",
		IsLast:      isLast,
	})
}

// MarkerAdded emits the marker.added event.
func (e *Emitter) MarkerAdded(m types.SceneMarker) {
	e.emit(EventMarkerAdded, MarkerEventData{
		Timestamp: m.Timestamp,
		Label:     m.Label,
		Source:    m.Source,
	})
}

// MarkerSuppressed emits the marker.suppressed event.
func (e *Emitter) MarkerSuppressed(timestamp float64, source types.MarkerSource) {
	e.emit(EventMarkerSuppressed, MarkerEventData{
		Timestamp: timestamp,
		Source:    source,
	})
}
