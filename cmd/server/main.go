package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scribemarket/backend/internal/alerting"
	"scribemarket/backend/internal/attachments"
	"scribemarket/backend/internal/audit"
	"scribemarket/backend/internal/auth"
	jwtpkg "scribemarket/backend/internal/auth/jwt"
	"scribemarket/backend/internal/config"
	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/events"
	"scribemarket/backend/internal/health"
	"scribemarket/backend/internal/linkpreview"
	"scribemarket/backend/internal/logger"
	"scribemarket/backend/internal/moderation"
	"scribemarket/backend/internal/monitoring"
	"scribemarket/backend/internal/pool"
	"scribemarket/backend/internal/realtime"
	"scribemarket/backend/internal/service"
	"scribemarket/backend/internal/storage"
	"scribemarket/backend/internal/storage/memory"
	"scribemarket/backend/internal/storage/postgres"
	redisstore "scribemarket/backend/internal/storage/redis"
	"scribemarket/backend/internal/stream"
	httptransport "scribemarket/backend/internal/transport/http"
	"scribemarket/backend/internal/units"

	accesspkg "scribemarket/backend/internal/access"
)

// main 启动消息核心服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting messaging core",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	switch cfg.Database.Type {
	case "postgres":
		store, err = postgres.NewStore(cfg.Database.DSN)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize postgres storage: %v", err))
		}
		log.Info("using postgres storage")
	case "mysql":
		store, err = postgres.NewMySQLStore(cfg.Database.DSN)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize mysql storage: %v", err))
		}
		log.Info("using mysql storage")
	default:
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// Redis：发送限流与违禁词缓存（可选）
	var (
		redisClient *redisstore.Client
		redisCache  *redisstore.Cache
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisstore.New(&cfg.Redis, log)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		store = storage.WithRateLimiter(store, redisstore.NewRateLimiter(redisClient, log))
		redisCache = redisstore.NewCache(redisClient, log)
		log.Info("redis enabled", zap.String("address", cfg.Redis.Address))
	}

	// 审计落库：配置了审计库用 SQL 追加写，否则退化为日志审计
	var auditSink interface {
		domain.AuditSink
		domain.ActivitySink
	}
	if cfg.Database.AuditDSN != "" {
		sqlSink, err := audit.NewSQLSink(cfg.Database.AuditDSN, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize audit sink: %v", err))
		}
		defer sqlSink.Close()
		auditSink = sqlSink
		log.Info("using sql audit sink")
	} else {
		auditSink = audit.NewLogSink(log)
		log.Info("using log audit sink")
	}

	// 工作单元数据源：外部交易系统或内置静态源（开发模式）
	var unitProvider domain.WorkUnitProvider
	if cfg.Units.BaseURL != "" {
		unitProvider = units.NewHTTPProvider(cfg.Units.BaseURL, cfg.Units.Token, cfg.Units.Timeout, log)
		log.Info("using http work unit provider", zap.String("base_url", cfg.Units.BaseURL))
	} else {
		unitProvider = units.NewStaticProvider()
		log.Info("using static work unit provider (development mode)")
	}

	// 审查链：违禁词表 + 掩码消毒器
	banList, err := moderation.NewBanList(store, log)
	if err != nil {
		panic(fmt.Sprintf("failed to load ban list: %v", err))
	}
	sanitizer := moderation.NewSanitizer(banList, cfg.Moderation.MaskToken)

	// 访问控制
	guard := accesspkg.NewGuard(unitProvider)
	resolver := accesspkg.NewResolver()

	// Prometheus 指标
	metrics := monitoring.NewMetrics()

	// 链接预览抓取：工作池 + 重试抓取器
	workerPool := pool.NewWorkerPool(cfg.Preview.Workers, cfg.Preview.QueueSize, log)
	fetcher := linkpreview.NewFetcher(store, workerPool,
		cfg.Preview.Timeout, cfg.Preview.MaxAttempts, cfg.Preview.BaseBackoff, metrics, log)

	// 告警邮件（可选）
	var mailer service.Mailer
	if cfg.Alerting.SMTPAddr != "" && len(cfg.Alerting.Recipients) > 0 {
		mailer = alerting.NewMailer(cfg.Alerting.SMTPAddr, cfg.Alerting.Username,
			cfg.Alerting.Password, cfg.Alerting.From, cfg.Alerting.Recipients, log)
		log.Info("alert mailer enabled", zap.String("smtp", cfg.Alerting.SMTPAddr))
	}

	// 实时推送 Hub
	hub := realtime.NewHub(cfg.CORS.AllowedOrigins, cfg.JWT.Secret,
		service.NewStreamAccess(store, guard), metrics, log)

	// 事件总线与订阅者：通知扇出、审计、动态流
	bus := events.NewBus(log)
	bus.Subscribe(service.NewFanoutSubscriber(store, fetcher, hub, mailer, metrics, log))
	bus.Subscribe(service.NewAuditSubscriber(auditSink, log))
	bus.Subscribe(service.NewActivitySubscriber(auditSink, log))

	// 初始化服务层
	threadService := service.NewThreadService(store, guard, resolver, unitProvider, auditSink, log)
	messageService := service.NewMessageService(store, guard, sanitizer, bus,
		cfg.Messaging.RateLimitWindow, cfg.Messaging.RateLimitBurst, auditSink, metrics, log)
	receiptService := service.NewReceiptService(store, cfg.Messaging.MinViewDuration, log)
	flaggedService := service.NewFlaggedService(store, auditSink, metrics, log)
	notificationService := service.NewNotificationService(store, log)

	// 认证
	authService := auth.NewService(store)
	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry, cfg.JWT.StreamExpiry)

	// 附件存储
	attachmentStore, err := attachments.NewStore(cfg.Attachment.Dir, cfg.Attachment.MaxSize, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize attachment storage: %v", err))
	}

	// 健康检查
	var redisPinger health.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}
	healthChecker := health.NewChecker(store, redisPinger, log)

	// SSE 快照流
	streamer := stream.NewStreamer(threadService, metrics, log)

	// 创建默认管理员用户（仅用于开发测试）
	if cfg.Log.Development {
		createDefaultAdmin(store, log)
	}

	// 违禁词跨实例重载广播（仅在启用 Redis 时）
	var banListChanged func()
	if redisCache != nil {
		banListChanged = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := redisCache.PublishBanListReload(ctx); err != nil {
				log.Warn("ban list reload broadcast failed", zap.Error(err))
			}
		}
	}

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:              cfg,
		ThreadService:       threadService,
		MessageService:      messageService,
		ReceiptService:      receiptService,
		FlaggedService:      flaggedService,
		NotificationService: notificationService,
		AuthService:         authService,
		JWTManager:          jwtManager,
		Fetcher:             fetcher,
		BanList:             banList,
		Attachments:         attachmentStore,
		Streamer:            streamer,
		Hub:                 hub,
		Metrics:             metrics,
		HealthChecker:       healthChecker,
		Store:               store,
		Audit:               auditSink,
		Logger:              log,
		BanListChanged:      banListChanged,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// SSE 连接是长连接，写超时交给流层的心跳与取消处理
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 实时推送 Hub goroutine
	group.Go(func() error {
		log.Info("starting realtime hub")
		hub.Run(groupCtx)
		return nil
	})

	// 链接预览工作池 goroutine
	group.Go(func() error {
		log.Info("starting link preview worker pool",
			zap.Int("workers", cfg.Preview.Workers))
		workerPool.Start(groupCtx)
		return nil
	})

	// 定时清理过期通知 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		log.Info("starting expired notification cleanup task", zap.Duration("interval", 1*time.Hour))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("notification cleanup task stopped")
				return nil
			case <-ticker.C:
				count, err := notificationService.PurgeExpired()
				if err != nil {
					log.Error("failed to purge expired notifications", zap.Error(err))
				} else if count > 0 {
					log.Info("expired notifications purged", zap.Int("count", count))
				}
			}
		}
	})

	// 滞留链接预览重排队 goroutine（重启丢失的在途抓取任务由此挽救）
	group.Go(func() error {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if _, err := fetcher.RequeuePending(10 * time.Minute); err != nil {
					log.Error("failed to requeue pending previews", zap.Error(err))
				}
			}
		}
	})

	// 违禁词重载订阅 goroutine（其他实例变更时热更新本地匹配器）
	if redisCache != nil {
		group.Go(func() error {
			redisCache.ListenBanListReload(groupCtx, func() {
				if err := banList.Reload(); err != nil {
					log.Warn("ban list reload failed", zap.Error(err))
				}
			})
			return nil
		})
	}

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		workerPool.Stop()
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Error("redis close error", zap.Error(err))
			}
		}
		if err := store.Close(); err != nil {
			log.Error("storage close error", zap.Error(err))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}

// createDefaultAdmin 在开发模式下创建默认管理员账号。
func createDefaultAdmin(store storage.Store, log *zap.Logger) {
	const adminUsername = "admin"
	if _, err := store.GetUserByUsername(adminUsername); err == nil {
		return
	}

	hash, err := auth.HashPassword("admin12345")
	if err != nil {
		log.Warn("failed to hash default admin password", zap.Error(err))
		return
	}
	admin := &domain.User{
		ID:           uuid.NewString(),
		Username:     adminUsername,
		Email:        "admin@scribemarket.local",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsStaff:      true,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := store.CreateUser(admin); err != nil {
		log.Warn("failed to create default admin", zap.Error(err))
		return
	}
	log.Info("default admin created (development only)", zap.String("username", adminUsername))
}
