package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/bassista/go_gallery/internal/api/middleware"
	"github.com/bassista/go_gallery/internal/gallery"
	"github.com/bassista/go_gallery/internal/invalidation"
	"github.com/bassista/go_gallery/internal/logger"
	"github.com/bassista/go_gallery/internal/mutation"
)

// NavigationHeader marks a client-side (soft) navigation that may be intercepted by the overlay.
const NavigationHeader = "X-Navigation"

// PhotoController serves the list surfaces, photo details and photo mutations.
type PhotoController struct {
	views     *gallery.Service
	mutations *mutation.Service
}

func NewPhotoController(views *gallery.Service, mutations *mutation.Service) *PhotoController {
	return &PhotoController{views: views, mutations: mutations}
}

// Feed handles GET /photos - mounts the unscoped feed.
func (pc *PhotoController) Feed(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	pc.mount(c, gallery.Feed(page))
}

// ByAuthor handles GET /users/:id/photos.
func (pc *PhotoController) ByAuthor(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	pc.mount(c, gallery.ByAuthor(c.Param("id"), page))
}

// ByCategory handles GET /categories/:id/photos.
func (pc *PhotoController) ByCategory(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	pc.mount(c, gallery.ByCategory(c.Param("id"), page))
}

func (pc *PhotoController) mount(c *gin.Context, surface gallery.Surface) {
	log := logger.WithComponent("photo-controller")
	s := middleware.Session(c)
	log.Debugf("GET %s handler called", surface.Path())

	if _, err := s.Mount(c.Request.Context(), surface); err != nil {
		abortInternal(c, log, "mount "+surface.Path(), err)
		return
	}
	view, err := s.Render(c.Request.Context(), middleware.Identity(c))
	if err != nil {
		abortInternal(c, log, "render "+surface.Path(), err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Show handles GET /photos/:id. A soft navigation with a mounted list opens the
// overlay over it; anything else renders the full page.
func (pc *PhotoController) Show(c *gin.Context) {
	log := logger.WithComponent("photo-controller")
	id := c.Param("id")
	s := middleware.Session(c)
	viewer := middleware.Identity(c)

	if strings.EqualFold(c.GetHeader(NavigationHeader), "soft") && s.OpenOverlay(id) {
		view, err := s.Render(c.Request.Context(), viewer)
		if err != nil {
			abortInternal(c, log, "render overlay "+id, err)
			return
		}
		if view.Frame.Overlay == nil {
			c.JSON(http.StatusNotFound, view)
			return
		}
		c.JSON(http.StatusOK, view)
		return
	}

	detail, err := s.ShowPage(c.Request.Context(), id, viewer)
	if errors.Is(err, gallery.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}
	if err != nil {
		abortInternal(c, log, "show "+id, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Create handles POST /photos with a JSON or form payload.
func (pc *PhotoController) Create(c *gin.Context) {
	log := logger.WithComponent("photo-controller")
	isJSON := c.ContentType() == binding.MIMEJSON

	var in mutation.CreateInput
	var err error
	if isJSON {
		err = c.ShouldBindJSON(&in)
	} else {
		err = c.ShouldBind(&in)
	}
	if err != nil {
		log.Debugf("create photo: malformed payload: %v", err)
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": gin.H{"body": "malformed"}})
		return
	}

	s := middleware.Session(c)
	ticket := s.BeginMutation()
	res := pc.mutations.Gateway(middleware.Identity(c)).Create(c.Request.Context(), in)
	if !s.Settle(ticket, invalidation.OpCreate, res) {
		writeSuperseded(c, res)
		return
	}
	if !res.OK() {
		writeFailure(c, log, res)
		return
	}

	location := "/photos/" + res.Photo.ID
	if !isJSON {
		c.Redirect(http.StatusSeeOther, location)
		return
	}
	c.Header("Location", location)
	c.JSON(http.StatusCreated, res.Photo)
}

// Delete handles DELETE /photos/:id.
func (pc *PhotoController) Delete(c *gin.Context) {
	log := logger.WithComponent("photo-controller")
	id := c.Param("id")
	log.Debugf("DELETE /photos/%s handler called", id)

	s := middleware.Session(c)
	ticket := s.BeginMutation()
	res := pc.mutations.Gateway(middleware.Identity(c)).Delete(c.Request.Context(), id)
	if !s.Settle(ticket, invalidation.OpDelete, res) {
		writeSuperseded(c, res)
		return
	}
	if !res.OK() {
		writeFailure(c, log, res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id, "overlayState": s.State().String()})
}

// ToggleLike handles POST /photos/:id/like.
func (pc *PhotoController) ToggleLike(c *gin.Context) {
	log := logger.WithComponent("photo-controller")
	id := c.Param("id")

	s := middleware.Session(c)
	ticket := s.BeginMutation()
	res := pc.mutations.Gateway(middleware.Identity(c)).ToggleLike(c.Request.Context(), id)
	if !s.Settle(ticket, invalidation.OpLike, res) {
		writeSuperseded(c, res)
		return
	}
	if !res.OK() {
		writeFailure(c, log, res)
		return
	}
	c.JSON(http.StatusOK, res.Like)
}

func pageParam(c *gin.Context) (int, bool) {
	raw := c.Query("page")
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return 0, false
	}
	return page, true
}
