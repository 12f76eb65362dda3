package routers

import (
	"github.com/Yulian302/lfusys-client/auth"
	"github.com/Yulian302/lfusys-client/devserver"
	"github.com/gin-gonic/gin"
)

func RegisterMultipartRoutes(h *devserver.MultipartHandler, jwtSecret string, route *gin.Engine) {
	mp := route.Group("/api/files/multipart")
	mp.Use(auth.JWTMiddleware(jwtSecret))

	mp.POST("/initiate", h.Initiate)
	mp.POST("/:upload_id/part/:part", h.UploadPart)
	mp.POST("/:upload_id/complete", h.Complete)
	mp.DELETE("/:upload_id", h.Abort)
}
