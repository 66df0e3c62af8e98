package overlay

import "fmt"

// State is the OverlayState sum type: Closed, or Open on an item over an origin surface.
// The zero value is Closed.
type State struct {
	open   bool
	itemID string
	origin string
}

// Closed returns the closed state.
func Closed() State { return State{} }

// Open returns the state showing itemID over the surface addressed by origin.
func Open(itemID, origin string) State {
	return State{open: true, itemID: itemID, origin: origin}
}

func (s State) IsOpen() bool { return s.open }

// ItemID is empty when closed.
func (s State) ItemID() string { return s.itemID }

// Origin is the address of the background surface; empty when closed.
func (s State) Origin() string { return s.origin }

func (s State) String() string {
	if !s.open {
		return "Closed"
	}
	return fmt.Sprintf("Open(%s, %s)", s.itemID, s.origin)
}
