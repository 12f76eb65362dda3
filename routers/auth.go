package routers

import (
	"github.com/Yulian302/lfusys-client/auth"
	"github.com/Yulian302/lfusys-client/devserver"
	"github.com/gin-gonic/gin"
)

func RegisterAuthRoutes(h *devserver.AuthHandler, route *gin.Engine) {
	route.POST("/api/login", h.Login)
}

func RegisterAdminRoutes(h *devserver.AdminHandler, jwtSecret string, route *gin.Engine) {
	admin := route.Group("/api/admin")
	admin.Use(auth.JWTMiddleware(jwtSecret), auth.RequireAdmin())

	admin.GET("/list_users", h.ListUsers)
	admin.POST("/create_user", h.CreateUser)
	admin.DELETE("/delete_user", h.DeleteUser)
	admin.POST("/update_user_role", h.UpdateUserRole)
}
