// Package session keeps the per-client UI state: the mounted list surface with its
// identifier registry, the overlay router and the toast side channel.
//
// All operations of one session are serialized by its mutex, so navigation,
// mount/unmount, overlay changes and mutation settlement never interleave.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bassista/go_gallery/internal/auth"
	"github.com/bassista/go_gallery/internal/gallery"
	"github.com/bassista/go_gallery/internal/invalidation"
	"github.com/bassista/go_gallery/internal/logger"
	"github.com/bassista/go_gallery/internal/mutation"
	"github.com/bassista/go_gallery/internal/overlay"
)

// Toast is a message reported outside the main response.
type Toast struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Frame is the background list plus the optional photo overlay.
type Frame = overlay.Frame[*gallery.ListView, gallery.DetailView]

// View is everything the client needs to paint the session.
type View struct {
	Location string  `json:"location"`
	Overlay  string  `json:"overlayState"`
	Revision uint64  `json:"revision"`
	Frame    Frame   `json:"frame"`
	Toasts   []Toast `json:"toasts,omitempty"`
}

// Ticket captures the overlay a mutation started from.
type Ticket struct {
	epoch  uint64
	itemID string
}

type Session struct {
	id    string
	views *gallery.Service

	mu       sync.Mutex
	registry *overlay.Registry
	list     *overlay.ListSync
	surface  *gallery.Surface
	router   *overlay.Router
	location string
	revision uint64
	toasts   []Toast
	now      func() time.Time
}

func newSession(id string, views *gallery.Service) *Session {
	s := &Session{id: id, views: views, registry: overlay.NewRegistry(), location: "/", now: time.Now}
	s.router = overlay.NewRouter(overlay.NewResolver(s.registry), overlay.HostFunc(s.replace))
	return s
}

func (s *Session) ID() string { return s.id }

// replace is the router host; it runs with s.mu held.
func (s *Session) replace(location string) {
	s.location = location
}

// Mount shows surface as the background. The previous list is torn down before
// the new one loads; the overlay closes.
func (s *Session) Mount(ctx context.Context, surface gallery.Surface) (gallery.ListView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unmountLocked()
	s.location = surface.Path()

	view, err := s.views.List(ctx, surface)
	if err != nil {
		return gallery.ListView{}, err
	}
	s.list = overlay.NewListSync(s.registry)
	s.list.Render(view.IDs())
	s.surface = &view.Surface
	logger.WithSession("session", s.id).Debugf("mounted %s with %d items", view.Surface.Path(), len(view.Items))
	return view, nil
}

// Unmount tears down the mounted list, if any, and closes the overlay.
func (s *Session) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmountLocked()
}

func (s *Session) unmountLocked() {
	if s.list != nil {
		s.list.Teardown()
		s.list = nil
	}
	s.surface = nil
	s.router.OnRoute(overlay.RouteMatch{})
}

// Mounted returns the mounted surface.
func (s *Session) Mounted() (gallery.Surface, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface == nil {
		return gallery.Surface{}, false
	}
	return *s.surface, true
}

// OpenOverlay handles a soft navigation to photoID. It only intercepts when a list is
// mounted and reports whether the overlay opened; otherwise the caller renders the
// full page through ShowPage.
func (s *Session) OpenOverlay(photoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface == nil {
		return false
	}
	s.router.OnRoute(overlay.RouteMatch{ItemID: photoID, Interceptable: true, Origin: s.surface.Path()})
	s.location = "/photos/" + photoID
	return true
}

// ShowPage handles a hard navigation to the full-page detail of photoID.
func (s *Session) ShowPage(ctx context.Context, photoID string, viewer auth.Identity) (gallery.DetailView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmountLocked()
	s.location = "/photos/" + photoID
	return s.views.Detail(ctx, photoID, viewer)
}

// HandleKey forwards a key to the overlay router.
func (s *Session) HandleKey(key overlay.Key) (overlay.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.HandleKey(key)
}

// CloseOverlay closes the overlay and returns to its origin address.
func (s *Session) CloseOverlay() overlay.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.Close()
}

func (s *Session) State() overlay.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.State()
}

// Visible returns the registry snapshot.
func (s *Session) Visible() []string {
	return s.registry.Read()
}

// Render re-renders the background through the read cache, republishes its
// identifiers and fills the overlay slot. The registry is written before Render
// returns, so navigation is consistent with what the client receives.
func (s *Session) Render(ctx context.Context, viewer auth.Identity) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var background *gallery.ListView
	if s.surface != nil {
		view, err := s.views.List(ctx, *s.surface)
		if err != nil {
			return View{}, err
		}
		s.list.Render(view.IDs())
		background = &view
	}

	var detail gallery.DetailView
	if state := s.router.State(); state.IsOpen() {
		d, err := s.views.Detail(ctx, state.ItemID(), viewer)
		switch {
		case errors.Is(err, gallery.ErrNotFound):
			s.router.Close()
			s.pushLocked("info", "that photo is no longer available")
		case err != nil:
			return View{}, err
		default:
			detail = d
		}
	}

	state := s.router.State()
	v := View{
		Location: s.location,
		Overlay:  state.String(),
		Revision: s.revision,
		Frame:    overlay.Compose(background, state, detail),
		Toasts:   s.drainLocked(),
	}
	return v, nil
}

// BeginMutation records the overlay a mutation starts from.
func (s *Session) BeginMutation() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Ticket{epoch: s.router.Epoch(), itemID: s.router.State().ItemID()}
}

// Settle applies the outcome of a mutation started with t. It reports whether the
// caller should show the result inline.
//
// A mutation submitted from an open overlay is superseded once that overlay is
// gone: a success is dropped and a failure is reported as a toast. Mutations
// submitted with no overlay open have nothing to supersede and always settle
// inline. A successful delete of the open photo closes the overlay.
// A closed overlay is never reopened.
func (s *Session) Settle(t Ticket, op invalidation.Op, res mutation.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := logger.WithSession("session", s.id)

	if t.itemID != "" && s.router.Epoch() != t.epoch {
		if res.OK() {
			log.Debugf("dropping %s result: overlay changed since submit", op)
			return false
		}
		s.pushLocked("error", toastMessage(op, res.Kind))
		return false
	}

	if res.OK() && op == invalidation.OpDelete && res.Photo != nil {
		if state := s.router.State(); state.IsOpen() && state.ItemID() == res.Photo.ID {
			s.router.Close()
		}
	}
	return true
}

// Notify bumps the revision when an invalidation touches what the session shows.
func (s *Session) Notify(ev invalidation.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ev.All && !s.affectedLocked(ev.Tags) {
		return false
	}
	s.revision++
	return true
}

func (s *Session) affectedLocked(tags []string) bool {
	var shown []invalidation.Tag
	if s.surface != nil {
		shown = append(shown, s.surface.Tag())
	}
	if state := s.router.State(); state.IsOpen() {
		id := state.ItemID()
		shown = append(shown, invalidation.PhotoDetail(id), invalidation.PhotoLikeCount(id))
	}
	for _, t := range tags {
		for _, mine := range shown {
			if invalidation.Tag(t) == mine {
				return true
			}
		}
	}
	return false
}

// Toast queues a message for the next Render or DrainToasts.
func (s *Session) Toast(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLocked(kind, message)
}

// DrainToasts returns and clears the queued toasts.
func (s *Session) DrainToasts() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drainLocked()
}

func (s *Session) pushLocked(kind, message string) {
	s.toasts = append(s.toasts, Toast{Kind: kind, Message: message, At: s.now().UTC()})
}

func (s *Session) drainLocked() []Toast {
	out := s.toasts
	s.toasts = nil
	return out
}

func toastMessage(op invalidation.Op, kind mutation.Kind) string {
	switch kind {
	case mutation.KindUnauthorized:
		return "please sign in to " + op.String() + " photos"
	case mutation.KindNotFound:
		return "that photo no longer exists"
	case mutation.KindValidationFailed:
		return "your " + op.String() + " request was not accepted"
	default:
		return "your " + op.String() + " could not be saved, please try again"
	}
}
