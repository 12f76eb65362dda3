package routers

import (
	"github.com/Yulian302/lfusys-client/auth"
	"github.com/Yulian302/lfusys-client/devserver"
	"github.com/gin-gonic/gin"
)

func RegisterFileRoutes(h *devserver.FileHandler, jwtSecret string, route *gin.Engine) {
	files := route.Group("/api/files")
	files.Use(auth.JWTMiddleware(jwtSecret))

	files.GET("", h.ListFiles)
	files.POST("", h.UploadFile)
	files.GET("/:id", h.GetFile)
	files.GET("/:id/download", h.DownloadFile)
	files.DELETE("/:id", h.DeleteFile)
}

func RegisterHealthRoutes(h *devserver.HealthHandler, route *gin.Engine) {
	route.GET("/health", h.Health)
}
