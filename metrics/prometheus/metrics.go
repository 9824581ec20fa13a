package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "capturekit"

var (
	// sessionsActive is a gauge of currently recording sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently recording sessions",
		},
	)

	// sessionsTotal is a counter of finished sessions by outcome.
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of finished capture sessions",
		},
		[]string{"outcome"}, // outcome: completed, canceled, failed
	)

	// sessionDuration is a histogram of completed recording duration.
	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Histogram of completed recording duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	// chunksSentTotal is a counter of chunks delivered, by transport.
	chunksSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_sent_total",
			Help:      "Total number of chunks delivered to the upload sink",
		},
		[]string{"transport"}, // transport: low-latency, fallback, rest
	)

	// chunkBytesTotal is a counter of chunk payload bytes, by transport.
	chunkBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_bytes_total",
			Help:      "Total chunk payload bytes delivered to the upload sink",
		},
		[]string{"transport"},
	)

	// transportSelectedTotal is a counter of transport selection outcomes.
	transportSelectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_selected_total",
			Help:      "Total number of transport selections by kind",
		},
		[]string{"kind"},
	)

	// transportErrorsTotal is a counter of non-fatal transport failures.
	transportErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Total number of non-fatal transport failures",
		},
		[]string{"kind"},
	)

	// markersTotal is a counter of accepted scene markers by source.
	markersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markers_total",
			Help:      "Total number of accepted scene markers",
		},
		[]string{"source"}, // source: focus_switch, visibility, manual
	)

	// markersSuppressedTotal is a counter of markers dropped by the debounce window.
	markersSuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markers_suppressed_total",
			Help:      "Total number of automatic markers dropped by debouncing",
		},
		[]string{"source"},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		chunksSentTotal,
		chunkBytesTotal,
		transportSelectedTotal,
		transportErrorsTotal,
		markersTotal,
		markersSuppressedTotal,
	}
)

// RecordSessionStart records a session entering recording.
func RecordSessionStart() {
	sessionsActive.Inc()
}

// RecordSessionEnd records a finished session with its outcome.
func RecordSessionEnd(outcome string, durationSeconds float64) {
	sessionsActive.Dec()
	sessionsTotal.WithLabelValues(outcome).Inc()
	if outcome == outcomeCompleted {
		sessionDuration.Observe(durationSeconds)
	}
}

// RecordChunk records one delivered chunk.
func RecordChunk(transport string, bytes int) {
	chunksSentTotal.WithLabelValues(transport).Inc()
	chunkBytesTotal.WithLabelValues(transport).Add(float64(bytes))
}

// RecordTransportSelected records the selection outcome.
func RecordTransportSelected(kind string) {
	transportSelectedTotal.WithLabelValues(kind).Inc()
}

// RecordTransportError records a non-fatal transport failure.
func RecordTransportError(kind string) {
	transportErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordMarker records an accepted scene marker.
func RecordMarker(source string) {
	markersTotal.WithLabelValues(source).Inc()
}

// RecordMarkerSuppressed records a marker dropped by debouncing.
func RecordMarkerSuppressed(source string) {
	markersSuppressedTotal.WithLabelValues(source).Inc()
}
