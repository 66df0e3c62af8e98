// Package overlay implements in-place photo navigation over a preserved list background.
//
// A list surface publishes the identifiers it rendered into a Registry through a
// ListSync adapter. A Router keeps the OverlayState (closed, or open on one item over
// an origin surface) and, on arrow keys, asks a Resolver for the neighbor of the open
// item in the registry. Compose turns a background value and the current state into
// the two-slot Frame that is sent to the client.
//
// None of these types lock against concurrent events beyond what is needed to stay
// memory safe; the owning UI session processes one event at a time.
package overlay
