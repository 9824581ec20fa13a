package session

import (
	"time"

	"golang.org/x/time/rate"
)

// markerGate debounces automatic scene markers. Both auto-detected
// kinds (focus switch, visibility) share one window: a marker within
// DefaultMarkerDebounce of the last accepted auto marker is discarded.
// Manual markers never consult the gate.
type markerGate struct {
	limiter *rate.Limiter
}

func newMarkerGate(window time.Duration) *markerGate {
	return &markerGate{
		limiter: rate.NewLimiter(rate.Every(window), 1),
	}
}

// allow reports whether an automatic marker at instant t is accepted,
// consuming the window when it is.
func (g *markerGate) allow(t time.Time) bool {
	return g.limiter.AllowN(t, 1)
}
