package overlay

import "sync"

// Registry is the single shared cell holding the ordered identifiers visible in the
// mounted list surface. Writes notify nobody: consumers read it at the moment they
// need it (a navigation event). Read returns a snapshot that later writes never touch.
type Registry struct {
	mu  sync.RWMutex
	seq []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Write replaces the whole sequence. No validation is performed; duplicates are kept.
func (r *Registry) Write(seq []string) {
	next := make([]string, len(seq))
	copy(next, seq)

	r.mu.Lock()
	r.seq = next
	r.mu.Unlock()
}

// Read returns a copy of the current sequence (never nil).
func (r *Registry) Read() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.seq))
	copy(out, r.seq)
	return out
}

// Clear empties the sequence.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.seq = nil
	r.mu.Unlock()
}

// Len reports the number of identifiers currently published.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seq)
}
