package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_gallery/internal/api/controller"
	"github.com/bassista/go_gallery/internal/api/middleware"
)

func NewSessionRouter(timeout time.Duration, group *gin.RouterGroup) {
	group.Use(middleware.RequestTimeout(timeout))

	sc := controller.NewSessionController()

	group.GET("session", sc.Current)
	group.POST("session/keys", sc.Key)
	group.POST("session/overlay/close", sc.CloseOverlay)
}
