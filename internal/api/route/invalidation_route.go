package route

import (
	"github.com/gin-gonic/gin"

	"github.com/bassista/go_gallery/internal/api/controller"
	"github.com/bassista/go_gallery/internal/app"
)

func NewInvalidationRouter(group *gin.RouterGroup, appCtx *app.App) {
	ic := controller.NewInvalidationController(appCtx.Bus, appCtx.Config.Server.CORSAllowedOrigins)

	group.GET("ws/invalidations", ic.Stream)
}
