package overlay

// Frame is the two-slot composite sent to the client.
type Frame[B, O any] struct {
	Background B  `json:"background"`
	Overlay    *O `json:"overlay"`
}

// Compose builds the frame for state. The overlay slot is filled only when state is
// open; the background is passed through untouched either way.
func Compose[B, O any](background B, state State, overlay O) Frame[B, O] {
	f := Frame[B, O]{Background: background}
	if state.IsOpen() {
		o := overlay
		f.Overlay = &o
	}
	return f
}
