package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/bassista/go_gallery/internal/api/middleware"
	"github.com/bassista/go_gallery/internal/auth"
	"github.com/bassista/go_gallery/internal/cache"
	"github.com/bassista/go_gallery/internal/gallery"
	"github.com/bassista/go_gallery/internal/invalidation"
	"github.com/bassista/go_gallery/internal/media"
	"github.com/bassista/go_gallery/internal/mutation"
	"github.com/bassista/go_gallery/internal/readcache"
	"github.com/bassista/go_gallery/internal/repository"
	"github.com/bassista/go_gallery/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	store  *cache.Store
	bus    *invalidation.Bus
	media  *media.MemoryStore
	tokens *auth.Manager
	engine *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	doc := repository.DataDocument{
		Photos: []repository.Photo{
			{ID: "a", AuthorID: "O", Title: "A", CategoryID: "c1", MediaRef: "O/a.jpg", CreatedAt: base.Add(3 * time.Minute)},
			{ID: "b", AuthorID: "O", Title: "B", CategoryID: "c1", MediaRef: "O/b.jpg", CreatedAt: base.Add(2 * time.Minute)},
			{ID: "c", AuthorID: "P", Title: "C", CategoryID: "c2", MediaRef: "P/c.jpg", CreatedAt: base.Add(time.Minute)},
		},
		Categories: []repository.Category{{ID: "c1", Name: "Sea"}, {ID: "c2", Name: "Desert"}},
		Users:      []repository.User{{ID: "O", Name: "Owner"}, {ID: "P", Name: "Peer"}},
	}

	h := &harness{
		store:  cache.NewStore(doc),
		bus:    invalidation.NewBus(),
		media:  media.NewMemoryStore(1 << 20),
		tokens: auth.NewManager([]byte("test-key"), time.Hour),
	}
	rc, err := readcache.New(64)
	require.NoError(t, err)
	coord := invalidation.NewCoordinator(invalidation.Planner{FeedShared: true}, rc, h.bus)
	views := gallery.NewService(h.store, rc, 10, true)
	muts := mutation.NewService(h.store, coord, mutation.WithMediaChecker(h.media))
	sessions, err := session.NewManager(8, views)
	require.NoError(t, err)

	pc := NewPhotoController(views, muts)
	sc := NewSessionController()
	mc := NewMediaController(h.media, 1<<20)
	ic := NewInvalidationController(h.bus, "*")

	r := gin.New()
	r.GET("/ws/invalidations", ic.Stream)
	g := r.Group("", middleware.Authenticate(h.tokens), middleware.Sessions(sessions))
	g.GET("/photos", pc.Feed)
	g.GET("/users/:id/photos", pc.ByAuthor)
	g.GET("/categories/:id/photos", pc.ByCategory)
	g.GET("/photos/:id", pc.Show)
	g.POST("/photos", pc.Create)
	g.DELETE("/photos/:id", pc.Delete)
	g.POST("/photos/:id/like", pc.ToggleLike)
	g.GET("/session", sc.Current)
	g.POST("/session/keys", sc.Key)
	g.POST("/session/overlay/close", sc.CloseOverlay)
	g.POST("/media", mc.Upload)
	h.engine = r
	return h
}

// client keeps the session cookie and, once signed in, the bearer token.
type client struct {
	t       *testing.T
	h       *harness
	cookies map[string]*http.Cookie
	token   string
}

func (h *harness) client(t *testing.T, userID string) *client {
	cl := &client{t: t, h: h, cookies: map[string]*http.Cookie{}}
	if userID != "" {
		tok, _, err := h.tokens.Issue(auth.Identity{UserID: userID})
		require.NoError(t, err)
		cl.token = tok
	}
	return cl
}

func (cl *client) do(method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	cl.t.Helper()
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	for _, c := range cl.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	cl.h.engine.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		cl.cookies[c.Name] = c
	}
	return w
}

func (cl *client) get(path string) *httptest.ResponseRecorder {
	return cl.do(http.MethodGet, path, nil, nil)
}

func (cl *client) softGet(path string) *httptest.ResponseRecorder {
	return cl.do(http.MethodGet, path, nil, map[string]string{NavigationHeader: "soft"})
}

func (cl *client) postJSON(path string, payload any) *httptest.ResponseRecorder {
	cl.t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(cl.t, err)
	return cl.do(http.MethodPost, path, bytes.NewReader(b), map[string]string{"Content-Type": "application/json"})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
