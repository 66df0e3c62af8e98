package overlay

// Direction selects the neighbor to resolve.
type Direction int

const (
	Next Direction = iota + 1
	Prev
)

func (d Direction) String() string {
	switch d {
	case Next:
		return "next"
	case Prev:
		return "prev"
	default:
		return "unknown"
	}
}

// Resolver computes keyboard neighbors from the registry contents.
type Resolver struct {
	registry *Registry
}

func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve reads the registry once and returns the neighbor of currentID.
// ok is false when currentID is not published or the neighbor would fall off either end.
func (n *Resolver) Resolve(currentID string, dir Direction) (string, bool) {
	return ResolveIn(n.registry.Read(), currentID, dir)
}

// ResolveIn is Resolve over an explicit snapshot. It never wraps around.
func ResolveIn(seq []string, currentID string, dir Direction) (string, bool) {
	idx := -1
	for i, id := range seq {
		if id == currentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", false
	}

	switch dir {
	case Next:
		idx++
	case Prev:
		idx--
	default:
		return "", false
	}
	if idx < 0 || idx >= len(seq) {
		return "", false
	}
	return seq[idx], true
}
