package overlay

import "sync"

// ListSync mirrors one mounted list surface into a Registry.
//
// Render must be called on every render pass of the surface, before the rendered
// list is handed to the client. Teardown clears the registry; after it the adapter is
// dead and further Render calls are ignored, so an unmounted surface can never
// republish its identifiers into a later context.
type ListSync struct {
	registry *Registry

	mu   sync.Mutex
	dead bool
}

// NewListSync mounts a new adapter over registry.
func NewListSync(registry *Registry) *ListSync {
	return &ListSync{registry: registry}
}

// Render publishes the identifiers of the current render pass.
// It reports false when the adapter was already torn down.
func (l *ListSync) Render(ids []string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dead {
		return false
	}
	l.registry.Write(ids)
	return true
}

// Teardown clears the registry. It is idempotent.
func (l *ListSync) Teardown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dead {
		return
	}
	l.dead = true
	l.registry.Clear()
}

// Mounted reports whether Teardown has not run yet.
func (l *ListSync) Mounted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.dead
}
