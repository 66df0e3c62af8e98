package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_gallery/internal/api/controller"
	"github.com/bassista/go_gallery/internal/api/middleware"
	"github.com/bassista/go_gallery/internal/app"
)

func NewPhotoRouter(timeout time.Duration, group *gin.RouterGroup, appCtx *app.App) {
	group.Use(middleware.RequestTimeout(timeout))

	pc := controller.NewPhotoController(appCtx.Views, appCtx.Mutations)

	group.GET("photos", pc.Feed)
	group.GET("users/:id/photos", pc.ByAuthor)
	group.GET("categories/:id/photos", pc.ByCategory)
	group.GET("photos/:id", pc.Show)
	group.POST("photos", pc.Create)
	group.DELETE("photos/:id", pc.Delete)
	group.POST("photos/:id/like", pc.ToggleLike)
}
