package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_gallery/internal/auth"
	"github.com/bassista/go_gallery/internal/logger"
)

// TokenCookie carries the session token for browser clients.
const TokenCookie = "gg_token"

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(tok string) (auth.Identity, error)
}

// Authenticate resolves the acting identity from "Authorization: Bearer" or the
// token cookie and stores it in the request context. A missing or invalid token
// leaves the request anonymous; handlers decide whether that is acceptable.
func Authenticate(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c.GetHeader("Authorization"))
		if tok == "" {
			tok, _ = c.Cookie(TokenCookie)
		}
		if tok == "" {
			c.Next()
			return
		}

		id, err := tokens.Parse(tok)
		if err != nil {
			logger.WithComponent("auth").Debugf("ignoring token on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			c.Next()
			return
		}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// Identity returns the acting identity of the request; the zero Identity is anonymous.
func Identity(c *gin.Context) auth.Identity {
	id, _ := auth.IdentityFromContext(c.Request.Context())
	return id
}
