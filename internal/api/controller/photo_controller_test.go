package controller

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/go_gallery/internal/gallery"
	"github.com/bassista/go_gallery/internal/repository"
	"github.com/bassista/go_gallery/internal/session"
)

func itemIDs(v session.View) []string {
	if v.Frame.Background == nil {
		return nil
	}
	return v.Frame.Background.IDs()
}

func TestPhotoController_SoftNavigationOpensOverlay(t *testing.T) {
	h := newHarness(t)
	cl := h.client(t, "")

	w := cl.get("/photos")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[session.View](t, w)
	assert.Equal(t, []string{"a", "b", "c"}, itemIDs(view))
	assert.Equal(t, "/photos", view.Location)

	w = cl.softGet("/photos/b")
	require.Equal(t, http.StatusOK, w.Code)
	view = decode[session.View](t, w)
	require.NotNil(t, view.Frame.Overlay)
	assert.Equal(t, "b", view.Frame.Overlay.Photo.ID)
	assert.Equal(t, "Sea", view.Frame.Overlay.Category.Name)
	assert.Equal(t, []string{"a", "b", "c"}, itemIDs(view), "background stays mounted")
	assert.Equal(t, "/photos/b", view.Location)
}

func TestPhotoController_HardNavigationRendersFullPage(t *testing.T) {
	h := newHarness(t)
	cl := h.client(t, "")

	require.Equal(t, http.StatusOK, cl.get("/photos").Code)

	w := cl.get("/photos/b")
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[gallery.DetailView](t, w)
	assert.Equal(t, "b", detail.Photo.ID)

	// the full page unmounted the list, so a soft navigation cannot intercept
	w = cl.softGet("/photos/a")
	require.Equal(t, http.StatusOK, w.Code)
	detail = decode[gallery.DetailView](t, w)
	assert.Equal(t, "a", detail.Photo.ID)

	assert.Equal(t, http.StatusNotFound, cl.get("/photos/missing").Code)
}

func TestPhotoController_SoftNavigationToMissingPhoto(t *testing.T) {
	h := newHarness(t)
	cl := h.client(t, "")
	require.Equal(t, http.StatusOK, cl.get("/photos").Code)

	w := cl.softGet("/photos/missing")
	require.Equal(t, http.StatusNotFound, w.Code)
	view := decode[session.View](t, w)
	assert.Nil(t, view.Frame.Overlay)
	assert.Equal(t, "Closed", view.Overlay)
	require.Len(t, view.Toasts, 1)
}

func TestPhotoController_ScopedSurfaces(t *testing.T) {
	h := newHarness(t)
	cl := h.client(t, "")

	view := decode[session.View](t, cl.get("/users/O/photos"))
	assert.Equal(t, []string{"a", "b"}, itemIDs(view))
	assert.Equal(t, "/users/O/photos", view.Location)

	view = decode[session.View](t, cl.get("/categories/c2/photos"))
	assert.Equal(t, []string{"c"}, itemIDs(view))

	assert.Equal(t, http.StatusBadRequest, cl.get("/photos?page=zero").Code)
}

func TestPhotoController_CreateRequiresSignIn(t *testing.T) {
	h := newHarness(t)
	cl := h.client(t, "")

	w := cl.postJSON("/photos", map[string]string{"title": "T", "categoryId": "c1", "mediaRef": "O/a.jpg"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "please sign in", body["error"])
	assert.Equal(t, "/login", body["signIn"])
}

func TestPhotoController_CreateJSONInvalidatesFeed(t *testing.T) {
	h := newHarness(t)
	cl := h.client(t, "O")
	require.Equal(t, []string{"a", "b", "c"}, itemIDs(decode[session.View](t, cl.get("/photos"))))

	ref, err := h.media.Put(context.Background(), "O", "image/png", strings.NewReader("png"), 3)
	require.NoError(t, err)

	w := cl.postJSON("/photos", map[string]string{"title": "Fresh", "categoryId": "c1", "mediaRef": ref})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[repository.Photo](t, w)
	assert.Equal(t, "O", created.AuthorID)
	assert.Equal(t, "/photos/"+created.ID, w.Header().Get("Location"))

	view := decode[session.View](t, cl.get("/photos"))
	require.NotEmpty(t, itemIDs(view))
	assert.Equal(t, created.ID, itemIDs(view)[0], "feed re-lists after create")
}

func TestPhotoController_CreateFormRedirects(t *testing.T) {
	h := newHarness(t)
	cl := h.client(t, "P")
	ref, err := h.media.Put(context.Background(), "P", "image/jpeg", strings.NewReader("jpg"), 3)
	require.NoError(t, err)

	form := url.Values{"title": {"From form"}, "categoryId": {"c2"}, "mediaRef": {ref}}
	w := cl.do(http.MethodPost, "/photos", strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})

	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/photos/"))
}

func TestPhotoController_CreateValidation(t *testing.T) {
	h := newHarness(t)
	cl := h.client(t, "O")

	tests := []struct {
		name    string
		payload map[string]string
		field   string
	}{
		{"missing title", map[string]string{"categoryId": "c1", "mediaRef": "O/a.jpg"}, "title"},
		{"unknown category", map[string]string{"title": "T", "categoryId": "nope", "mediaRef": "O/a.jpg"}, "categoryId"},
		{"unknown media", map[string]string{"title": "T", "categoryId": "c1", "mediaRef": "O/never-uploaded.jpg"}, "mediaRef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := cl.postJSON("/photos", tt.payload)
			require.Equal(t, http.StatusUnprocessableEntity, w.Code)
			body := decode[struct {
				Details map[string]string `json:"details"`
			}](t, w)
			assert.Contains(t, body.Details, tt.field)
		})
	}

	w := cl.do(http.MethodPost, "/photos", strings.NewReader("{"), map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPhotoController_DeleteOpenPhotoClosesOverlay(t *testing.T) {
	h := newHarness(t)
	owner := h.client(t, "O")
	peer := h.client(t, "P")

	require.Equal(t, http.StatusOK, owner.get("/photos").Code)
	require.Equal(t, http.StatusOK, owner.softGet("/photos/b").Code)

	assert.Equal(t, http.StatusUnauthorized, peer.do(http.MethodDelete, "/photos/b", nil, nil).Code)

	w := owner.do(http.MethodDelete, "/photos/b", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "b", body["deleted"])
	assert.Equal(t, "Closed", body["overlayState"])

	view := decode[session.View](t, owner.get("/session"))
	assert.Equal(t, []string{"a", "c"}, itemIDs(view))
	assert.Equal(t, "/photos", view.Location)

	assert.Equal(t, http.StatusNotFound, owner.do(http.MethodDelete, "/photos/b", nil, nil).Code)
}

func TestPhotoController_ToggleLike(t *testing.T) {
	h := newHarness(t)
	cl := h.client(t, "P")

	w := cl.do(http.MethodPost, "/photos/a/like", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, repository.LikeState{PhotoID: "a", Liked: true, Count: 1}, decode[repository.LikeState](t, w))

	w = cl.do(http.MethodPost, "/photos/a/like", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, repository.LikeState{PhotoID: "a", Liked: false, Count: 0}, decode[repository.LikeState](t, w))

	assert.Equal(t, http.StatusNotFound, cl.do(http.MethodPost, "/photos/missing/like", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.client(t, "").do(http.MethodPost, "/photos/a/like", nil, nil).Code)
}

func TestPhotoController_LikeShowsInOverlay(t *testing.T) {
	h := newHarness(t)
	cl := h.client(t, "P")
	require.Equal(t, http.StatusOK, cl.get("/photos").Code)
	require.Equal(t, http.StatusOK, cl.softGet("/photos/a").Code)

	require.Equal(t, http.StatusOK, cl.do(http.MethodPost, "/photos/a/like", nil, nil).Code)

	view := decode[session.View](t, cl.get("/session"))
	require.NotNil(t, view.Frame.Overlay)
	assert.Equal(t, repository.LikeState{PhotoID: "a", Liked: true, Count: 1}, view.Frame.Overlay.Likes)
}
