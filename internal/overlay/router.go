package overlay

import "strings"

// Key is a keyboard event consumed while the overlay is open.
type Key string

const (
	KeyArrowRight Key = "ArrowRight"
	KeyArrowLeft  Key = "ArrowLeft"
	KeyEscape     Key = "Escape"
)

// ParseKey normalizes browser key names and common aliases. Unknown keys come back
// unchanged and are ignored by the router.
func ParseKey(raw string) Key {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "arrowright", "right", "l":
		return KeyArrowRight
	case "arrowleft", "left", "h":
		return KeyArrowLeft
	case "escape", "esc":
		return KeyEscape
	default:
		return Key(raw)
	}
}

// Host is the routing layer the router drives. Replace updates the addressable
// state (the URL) without a navigation, so the open overlay stays linkable.
type Host interface {
	Replace(location string)
}

// HostFunc adapts a function to Host.
type HostFunc func(location string)

func (f HostFunc) Replace(location string) { f(location) }

// RouteMatch is what the host router reports for a navigation.
type RouteMatch struct {
	// ItemID is set when the path is an item detail address.
	ItemID string
	// Interceptable is true when the item may render as an overlay (soft navigation
	// from a mounted list surface). Hard navigations render the full page instead.
	Interceptable bool
	// Origin is the address of the surface being navigated from.
	Origin string
}

// Router is the overlay state machine. It is not safe for concurrent use.
type Router struct {
	state    State
	epoch    uint64
	resolver *Resolver
	host     Host
	location func(itemID string) string
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLocation overrides how an item id becomes an address. Default: /photos/<id>.
func WithLocation(fn func(itemID string) string) RouterOption {
	return func(r *Router) { r.location = fn }
}

// NewRouter returns a Closed router.
func NewRouter(resolver *Resolver, host Host, opts ...RouterOption) *Router {
	r := &Router{
		resolver: resolver,
		host:     host,
		location: func(itemID string) string { return "/photos/" + itemID },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current overlay state.
func (r *Router) State() State { return r.state }

// Epoch changes on every transition; callers compare epochs to detect that the
// overlay they started from is gone.
func (r *Router) Epoch() uint64 { return r.epoch }

// Activate opens itemID over origin.
func (r *Router) Activate(itemID, origin string) State {
	r.transition(Open(itemID, origin))
	return r.state
}

// OnRoute interprets a host navigation: interceptable item routes open the overlay,
// everything else closes it.
func (r *Router) OnRoute(m RouteMatch) State {
	if m.ItemID != "" && m.Interceptable {
		origin := m.Origin
		if origin == "" && r.state.IsOpen() {
			origin = r.state.Origin()
		}
		return r.Activate(m.ItemID, origin)
	}
	// the host already moved to the new address
	r.transition(Closed())
	return r.state
}

// HandleKey processes a key while open. It reports whether the state changed.
// Arrow keys without a neighbor are a no-op; keys while closed are ignored.
func (r *Router) HandleKey(k Key) (State, bool) {
	if !r.state.IsOpen() {
		return r.state, false
	}

	var dir Direction
	switch k {
	case KeyArrowRight:
		dir = Next
	case KeyArrowLeft:
		dir = Prev
	case KeyEscape:
		r.Close()
		return r.state, true
	default:
		return r.state, false
	}

	nextID, ok := r.resolver.Resolve(r.state.ItemID(), dir)
	if !ok {
		return r.state, false
	}
	r.transition(Open(nextID, r.state.Origin()))
	if r.host != nil {
		r.host.Replace(r.location(nextID))
	}
	return r.state, true
}

// Close returns to Closed. The background is not touched. When the overlay was
// open the host is pointed back at the origin address.
func (r *Router) Close() State {
	if !r.state.IsOpen() {
		return r.state
	}
	origin := r.state.Origin()
	r.transition(Closed())
	if r.host != nil && origin != "" {
		r.host.Replace(origin)
	}
	return r.state
}

func (r *Router) transition(next State) {
	if next == r.state {
		return
	}
	r.state = next
	r.epoch++
}
