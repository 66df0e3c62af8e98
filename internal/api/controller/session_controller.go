package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_gallery/internal/api/middleware"
	"github.com/bassista/go_gallery/internal/logger"
	"github.com/bassista/go_gallery/internal/overlay"
)

// SessionController exposes the overlay state of the client's UI session.
type SessionController struct{}

func NewSessionController() *SessionController {
	return &SessionController{}
}

type keyRequest struct {
	Key string `json:"key" binding:"required"`
}

// Current handles GET /session - the current frame plus queued toasts.
func (sc *SessionController) Current(c *gin.Context) {
	sc.render(c, http.StatusOK, nil)
}

// Key handles POST /session/keys - a keyboard event for the open overlay.
func (sc *SessionController) Key(c *gin.Context) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing key"})
		return
	}
	_, handled := middleware.Session(c).HandleKey(overlay.ParseKey(req.Key))
	sc.render(c, http.StatusOK, gin.H{"handled": handled})
}

// CloseOverlay handles POST /session/overlay/close.
func (sc *SessionController) CloseOverlay(c *gin.Context) {
	middleware.Session(c).CloseOverlay()
	sc.render(c, http.StatusOK, nil)
}

func (sc *SessionController) render(c *gin.Context, status int, extra gin.H) {
	log := logger.WithComponent("session-controller")
	s := middleware.Session(c)
	view, err := s.Render(c.Request.Context(), middleware.Identity(c))
	if err != nil {
		abortInternal(c, log, "render session", err)
		return
	}
	if extra == nil {
		c.JSON(status, view)
		return
	}
	extra["view"] = view
	c.JSON(status, extra)
}
