package route

import (
	"github.com/gin-gonic/gin"

	"github.com/bassista/go_gallery/internal/api/controller"
	"github.com/bassista/go_gallery/internal/app"
)

// NewMediaRouter registers the upload route. Uploads are bounded by size, not by
// the request timeout.
func NewMediaRouter(group *gin.RouterGroup, appCtx *app.App) {
	mc := controller.NewMediaController(appCtx.Media, appCtx.Config.Media.MaxBytes)

	group.POST("media", mc.Upload)
}
