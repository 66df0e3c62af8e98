package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_gallery/internal/logger"
	"github.com/bassista/go_gallery/internal/session"
)

// SessionCookie identifies the UI session of a client.
const SessionCookie = "gg_sid"

const sessionKey = "gallery.session"

// Sessions attaches the client's UI session to the request, creating one (and its
// cookie) on first contact or after the previous session was evicted.
func Sessions(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(SessionCookie)
		s, created, err := manager.Ensure(id)
		if err != nil {
			logger.WithComponent("session").Errorf("cannot create session: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
			return
		}
		if created {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, s.ID(), 0, "/", "", c.Request.TLS != nil, true)
			logger.WithSession("session", s.ID()).Debug("session created")
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// Session returns the session attached by Sessions, or nil when the middleware did not run.
func Session(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}
