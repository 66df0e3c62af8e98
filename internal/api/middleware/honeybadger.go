package middleware

import (
	"fmt"
	"net/http"
	"os"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	honeybadger "github.com/honeybadger-io/honeybadger-go"
	"github.com/sirupsen/logrus"

	"github.com/bassista/go_gallery/internal/auth"
)

// notify is swapped in tests.
var notify = honeybadger.Notify

// expectedStatus lists the 4xx answers that are ordinary mutation outcomes
// (sign in, missing photo, rejected payload or upload) and are not reported.
var expectedStatus = map[int]bool{
	http.StatusUnauthorized:          true,
	http.StatusNotFound:              true,
	http.StatusRequestEntityTooLarge: true,
	http.StatusUnsupportedMediaType:  true,
	http.StatusUnprocessableEntity:   true,
}

// ErrorReporting sends panics, 5xx responses and unexpected 4xx responses to
// Honeybadger, tagged with the acting user when one is signed in.
// On panic it notifies and re-panics so an outer gin.Recovery renders the 500.
// Without HONEYBADGER_API_KEY it is a pass-through.
func ErrorReporting(logger *logrus.Logger) gin.HandlerFunc {
	apiKey := os.Getenv("HONEYBADGER_API_KEY")
	if apiKey == "" {
		logger.Info("Honeybadger is not active. To enable error reporting, set the HONEYBADGER_API_KEY environment variable.")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	honeybadger.Configure(honeybadger.Configuration{
		APIKey: apiKey,
		Env:    os.Getenv("GO_ENV"),
	})
	logger.Info("Honeybadger error reporting is enabled.")

	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				_, _ = notify(fmt.Sprintf("Panic: %s %s", c.Request.Method, c.FullPath()),
					c.Request, reportContext(c, honeybadger.Context{"stack": string(debug.Stack())}), honeybadger.Tags{"panic", "http"})
				logger.Error("recovered from panic, notified Honeybadger: ", rec)
				panic(rec)
			}
		}()

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest || expectedStatus[status] {
			return
		}
		if status >= http.StatusInternalServerError {
			_, _ = notify(fmt.Sprintf("Error: HTTP %d: %s %s", status, c.Request.Method, c.FullPath()),
				c.Request, reportContext(c, nil), honeybadger.Tags{"5XX", "http"})
		} else {
			_, _ = notify(fmt.Sprintf("Warning: HTTP %d: %s %s", status, c.Request.Method, c.FullPath()),
				reportContext(c, nil), honeybadger.Tags{"4XX", "http"})
		}
		logger.Warnf("Honeybadger reported HTTP %d for %s %s", status, c.Request.Method, c.Request.URL.Path)
	}
}

// reportContext reads the identity after the handler chain ran, since
// Authenticate replaces the request context further down.
func reportContext(c *gin.Context, extra honeybadger.Context) honeybadger.Context {
	out := honeybadger.Context{}
	for k, v := range extra {
		out[k] = v
	}
	if id, ok := auth.IdentityFromContext(c.Request.Context()); ok {
		out["user_id"] = id.UserID
	}
	if sid, err := c.Cookie(SessionCookie); err == nil {
		out["session_id"] = sid
	}
	return out
}
