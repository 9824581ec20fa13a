package prometheus

import (
	"github.com/AltairaLabs/CaptureKit/events"
)

// Outcome constants for metric labels.
const (
	outcomeCompleted = "completed"
	outcomeCanceled  = "canceled"
	outcomeFailed    = "failed"
)

// MetricsListener records capture events as Prometheus metrics.
// It implements the events.Listener signature and should be registered
// with an EventBus using SubscribeAll.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
// This method is designed to be used with EventBus.SubscribeAll.
func (l *MetricsListener) Handle(event *events.Event) {
	switch event.Type {
	case events.EventSessionStarted:
		RecordSessionStart()
	case events.EventSessionCompleted:
		l.handleSessionCompleted(event)
	case events.EventSessionCanceled:
		RecordSessionEnd(outcomeCanceled, 0)
	case events.EventSessionFailed:
		RecordSessionEnd(outcomeFailed, 0)
	case events.EventTransportSelected:
		l.handleTransportSelected(event)
	case events.EventTransportError:
		l.handleTransportError(event)
	case events.EventChunkSent, events.EventChunkFallback:
		l.handleChunk(event)
	case events.EventMarkerAdded:
		l.handleMarker(event)
	case events.EventMarkerSuppressed:
		l.handleMarkerSuppressed(event)
	default:
		// Ignore events that don't have metrics
	}
}

func (l *MetricsListener) handleSessionCompleted(event *events.Event) {
	if data, ok := event.Data.(events.SessionCompletedData); ok {
		RecordSessionEnd(outcomeCompleted, data.Duration.Seconds())
	}
}

func (l *MetricsListener) handleTransportSelected(event *events.Event) {
	if data, ok := event.Data.(events.TransportSelectedData); ok {
		RecordTransportSelected(data.Kind)
	}
}

func (l *MetricsListener) handleTransportError(event *events.Event) {
	if data, ok := event.Data.(events.TransportErrorData); ok {
		RecordTransportError(data.Kind)
	}
}

func (l *MetricsListener) handleChunk(event *events.Event) {
	if data, ok := event.Data.(events.ChunkEventData); ok {
		RecordChunk(data.Transport, data.Bytes)
	}
}

func (l *MetricsListener) handleMarker(event *events.Event) {
	if data, ok := event.Data.(events.MarkerEventData); ok {
		RecordMarker(string(data.Source))
	}
}

func (l *MetricsListener) handleMarkerSuppressed(event *events.Event) {
	if data, ok := event.Data.(events.MarkerEventData); ok {
		RecordMarkerSuppressed(string(data.Source))
	}
}

// Listener returns an events.Listener function that can be registered with an EventBus.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}
