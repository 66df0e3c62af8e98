package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bassista/go_gallery/internal/mutation"
)

const (
	signInPath     = "/login"
	genericFailure = "something went wrong, please try again"
)

// abortUnauthorized tells the client to sign in.
func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "please sign in", "signIn": signInPath})
}

// abortInternal logs err and answers with a generic message; details stay server-side.
func abortInternal(c *gin.Context, log *logrus.Entry, msg string, err error) {
	log.Errorf("%s %s: %s: %v", c.Request.Method, c.Request.URL.Path, msg, err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": genericFailure})
}

// writeFailure maps a failed mutation result to its HTTP response.
func writeFailure(c *gin.Context, log *logrus.Entry, res mutation.Result) {
	switch res.Kind {
	case mutation.KindUnauthorized:
		abortUnauthorized(c)
	case mutation.KindNotFound:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "photo not found"})
	case mutation.KindValidationFailed:
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "details": res.Details})
	default:
		abortInternal(c, log, "mutation failed", res.Err)
	}
}

// writeSuperseded answers a mutation whose originating overlay is gone. The outcome,
// if it was a failure, reaches the client as a toast on its next session render.
func writeSuperseded(c *gin.Context, res mutation.Result) {
	c.JSON(http.StatusAccepted, gin.H{"result": res.Kind.String(), "superseded": true})
}
