package route

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bassista/go_gallery/internal/api/middleware"
	"github.com/bassista/go_gallery/internal/app"
)

// SetupRoutes builds the main engine: error reporting, CORS, identity and session
// resolution, then the gallery, session, media and push routes.
func SetupRoutes(appCtx *app.App, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(logger.Writer()))
	r.Use(gin.Recovery())
	r.Use(middleware.ErrorReporting(logger))
	r.Use(middleware.CORSMiddleware(appCtx.Config.Server.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})

	// push stream: long-lived, so no request timeout and no UI session
	NewInvalidationRouter(r.Group(""), appCtx)

	publicRouter := r.Group("")
	publicRouter.Use(middleware.Authenticate(appCtx.Tokens))
	publicRouter.Use(middleware.Sessions(appCtx.Sessions))

	timeout := appCtx.Config.Server.RequestTimeout

	NewPhotoRouter(timeout, publicRouter.Group(""), appCtx)
	NewSessionRouter(timeout, publicRouter.Group(""))
	NewMediaRouter(publicRouter.Group(""), appCtx)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
