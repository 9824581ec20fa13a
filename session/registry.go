package session

import "sync"

// resourceRegistry tracks live resources (device streams, encoder,
// transport) in session-scoped state instead of local variables, so
// Cancel can reach resources acquired by an in-flight Start regardless
// of which suspension point that Start is at.
type resourceRegistry struct {
	mu       sync.Mutex
	closers  []func()
	released bool
}

func newResourceRegistry() *resourceRegistry {
	return &resourceRegistry{}
}

// add registers a release func. If the registry was already released
// (cancel won the race against an in-flight acquisition), the resource
// is released immediately instead of leaking.
func (r *resourceRegistry) add(release func()) {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		release()
		return
	}
	r.closers = append(r.closers, release)
	r.mu.Unlock()
}

// releaseAll releases everything in reverse acquisition order.
// Idempotent; later add calls release immediately.
func (r *resourceRegistry) releaseAll() {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.released = true
	r.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
