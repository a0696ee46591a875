package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scribemarket/backend/internal/attachments"
	"scribemarket/backend/internal/auth"
	jwtpkg "scribemarket/backend/internal/auth/jwt"
	"scribemarket/backend/internal/config"
	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/health"
	"scribemarket/backend/internal/linkpreview"
	"scribemarket/backend/internal/middleware"
	"scribemarket/backend/internal/moderation"
	"scribemarket/backend/internal/monitoring"
	"scribemarket/backend/internal/realtime"
	"scribemarket/backend/internal/service"
	"scribemarket/backend/internal/storage"
	"scribemarket/backend/internal/stream"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config              *config.Config
	ThreadService       *service.ThreadService
	MessageService      *service.MessageService
	ReceiptService      *service.ReceiptService
	FlaggedService      *service.FlaggedService
	NotificationService *service.NotificationService
	AuthService         *auth.Service
	JWTManager          *jwtpkg.Manager
	Fetcher             *linkpreview.Fetcher
	BanList             *moderation.BanList
	Attachments         *attachments.Store
	Streamer            *stream.Streamer
	Hub                 *realtime.Hub
	Metrics             *monitoring.Metrics
	HealthChecker       *health.Checker
	Store               storage.Store
	Audit               domain.AuditSink
	Logger              *zap.Logger
	BanListChanged      func() // 违禁词变更后的跨实例广播钩子，可为空
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	mon := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(mon.PanicRecovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(deps.Config.Messaging.MaxBodyBytes))
	router.Use(middleware.Throttle(50, 100))
	router.Use(mon.HTTPMetrics())

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := NewHandler(HandlerDeps{
		Threads:        deps.ThreadService,
		Messages:       deps.MessageService,
		Receipts:       deps.ReceiptService,
		Flagged:        deps.FlaggedService,
		Notifications:  deps.NotificationService,
		Fetcher:        deps.Fetcher,
		BanList:        deps.BanList,
		Attachments:    deps.Attachments,
		Streamer:       deps.Streamer,
		Store:          deps.Store,
		Audit:          deps.Audit,
		Log:            deps.Logger,
		BanListChanged: deps.BanListChanged,
	})

	authHandler := NewAuthHandler(deps.AuthService, deps.JWTManager)
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)

	// 健康检查与指标
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.HealthChecker != nil {
		probes := deps.HealthChecker.Handler()
		router.GET("/live", gin.WrapH(probes))
		router.GET("/ready", gin.WrapH(probes))
	}
	router.GET("/metrics", gin.WrapH(monitoring.Handler()))

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
			authRoutes.POST("/stream-token", jwtAuth.RequireAuth(), authHandler.StreamToken)
		}

		// ========== Thread Routes ==========
		threadRoutes := v1.Group("/threads")
		threadRoutes.Use(jwtAuth.RequireAuth())
		{
			threadRoutes.POST("", handler.createThread)
			threadRoutes.GET("", handler.listThreads)
			threadRoutes.GET("/:id/messages", handler.listThreadMessages)
			threadRoutes.POST("/:id/messages", handler.sendMessage)
			threadRoutes.DELETE("/:id", middleware.RequireStaff(), handler.deleteThread)
			threadRoutes.PATCH("/:id/active", middleware.RequireStaff(), handler.toggleThread)
			threadRoutes.PATCH("/:id/override", middleware.RequireAdmin(), handler.overrideThread)
		}

		// ========== Message Routes ==========
		messageRoutes := v1.Group("/messages")
		messageRoutes.Use(jwtAuth.RequireAuth())
		{
			messageRoutes.PATCH("/:messageId", middleware.RequireAdmin(), handler.editMessage)
			messageRoutes.DELETE("/:messageId", middleware.RequireStaff(), handler.deleteMessage)
			messageRoutes.POST("/:messageId/read", handler.markMessageRead)
			messageRoutes.GET("/:messageId/receipts", middleware.RequireStaff(), handler.listMessageReceipts)
			messageRoutes.POST("/:messageId/preview/reset", middleware.RequireStaff(), handler.resetPreview)
		}

		// ========== Moderation Routes ==========
		flaggedRoutes := v1.Group("/flagged")
		flaggedRoutes.Use(jwtAuth.RequireAuth(), middleware.RequireAdmin())
		{
			flaggedRoutes.GET("", handler.listFlagged)
			flaggedRoutes.POST("/:messageId/unblock", handler.unblockMessage)
			flaggedRoutes.POST("/:messageId/reflag", handler.reflagMessage)
		}

		alertRoutes := v1.Group("/alerts")
		alertRoutes.Use(jwtAuth.RequireAuth(), middleware.RequireAdmin())
		{
			alertRoutes.GET("", handler.listOpenAlerts)
			alertRoutes.POST("/:id/resolve", handler.resolveAlert)
		}

		bannedWordRoutes := v1.Group("/banned-words")
		bannedWordRoutes.Use(jwtAuth.RequireAuth(), middleware.RequireAdmin())
		{
			bannedWordRoutes.GET("", handler.listBannedWords)
			bannedWordRoutes.POST("", handler.addBannedWord)
			bannedWordRoutes.DELETE("/:word", handler.deleteBannedWord)
			bannedWordRoutes.POST("/reload", handler.reloadBannedWords)
		}

		// ========== Notification Routes ==========
		notificationRoutes := v1.Group("/notifications")
		notificationRoutes.Use(jwtAuth.RequireAuth())
		{
			notificationRoutes.GET("", handler.listNotifications)
			notificationRoutes.POST("/:id/read", handler.markNotificationRead)
		}

		// ========== Attachment Routes ==========
		attachmentRoutes := v1.Group("/attachments")
		attachmentRoutes.Use(jwtAuth.RequireAuth())
		{
			attachmentRoutes.POST("", handler.uploadAttachment)
			attachmentRoutes.GET("/:id", handler.downloadAttachment)
		}

		// ========== Stream Routes（SSE，用流式令牌认证） ==========
		streamRoutes := v1.Group("/stream")
		streamRoutes.Use(jwtAuth.RequireStreamAuth())
		{
			streamRoutes.GET("/threads", handler.streamThreads)
			streamRoutes.GET("/threads/:id/messages", handler.streamThreadMessages)
		}

		// ========== WebSocket Routes ==========
		if deps.Hub != nil {
			v1.GET("/ws", realtime.HandleWebSocket(deps.Hub))
		}
	}

	return router
}
