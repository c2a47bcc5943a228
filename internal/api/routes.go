package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"support_chat/internal/api/handlers"
	"support_chat/internal/middleware"
	"support_chat/internal/service"
	"support_chat/pkg/utils"
)

// RouteOptions 組裝路由需要的外部依賴
type RouteOptions struct {
	JWT     *utils.JWT
	Limiter middleware.Limiter

	ReadLimit  int
	WriteLimit int
	Window     time.Duration

	Log zerolog.Logger
}

func SetupRoutes(r *gin.Engine, services *service.Services, opts RouteOptions) {
	authHandler := handlers.NewAuthHandler(services.User, opts.JWT)
	roomHandler := handlers.NewRoomHandler(services.Room, services.Message)
	messageHandler := handlers.NewMessageHandler(services.Message)
	wsHandler := handlers.NewWebSocketHandler(services.Hub, services.Room, services.Message, opts.Log)

	limiter := opts.Limiter
	if limiter == nil {
		limiter = middleware.NewMemoryLimiter()
	}
	rl := middleware.NewRateLimiter(limiter, opts.Log)
	readLimit := rl.Limit("rooms:read", opts.ReadLimit, opts.Window)
	roomWriteLimit := rl.Limit("rooms:write", opts.WriteLimit, opts.Window)
	writeLimit := rl.Limit("messages:write", opts.WriteLimit, opts.Window)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "找不到該路徑"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// 公開路由
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	// 需要驗證的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware(opts.JWT))
	{
		rooms := authorized.Group("/rooms")
		{
			rooms.GET("", readLimit, roomHandler.ListRooms)
			rooms.POST("", roomWriteLimit, roomHandler.CreateRoom)
			rooms.GET("/:id", roomHandler.GetRoom)
			rooms.PATCH("/:id/resolved", roomHandler.SetResolved)
			rooms.GET("/:id/messages", roomHandler.ListMessages)
			rooms.POST("/:id/messages", writeLimit, roomHandler.SendMessage)
			rooms.POST("/:id/typing", roomHandler.SetTyping)
			rooms.GET("/:id/ws", wsHandler.HandleWebSocket)
		}

		messages := authorized.Group("/messages")
		{
			messages.POST("", writeLimit, messageHandler.SendToOwnRoom)
			messages.GET("/:id", messageHandler.GetMessage)
			messages.DELETE("/:id", messageHandler.DeleteMessage)
		}
	}
}
