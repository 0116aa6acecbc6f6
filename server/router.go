package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpHandler "crosspost/interfaces/http"
	"crosspost/interfaces/middleware"
)

func InitiateRouter(
	authHandler httpHandler.IAuthHandler,
	postHandler httpHandler.IPostHandler,
	frontendURL string,
	secretKey string,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{frontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Browser-facing OAuth routes; no session required, the flows establish it.
	router.GET("/auth/x/login", authHandler.Login)
	router.GET("/auth/x/callback", authHandler.Callback)
	router.GET("/auth/x/login-media", authHandler.LoginMedia)
	router.GET("/auth/x/callback-media", authHandler.CallbackMedia)
	router.GET("/auth/x/users", authHandler.Users)
	router.GET("/auth/x/me/:userId", authHandler.Me)

	api := router.Group("api")
	api.Use(middleware.Session(secretKey))

	api.DELETE("/auth/x", authHandler.Disconnect)
	api.POST("/auth/tiktok/connect", authHandler.ConnectTikTok)
	api.POST("/auth/instagram/connect", authHandler.ConnectInstagram)
	api.POST("/posts", postHandler.CreatePost)
	api.GET("/posts/:userId", postHandler.ListPosts)

	return router
}
