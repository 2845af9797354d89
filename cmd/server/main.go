package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"firmsync/internal/database"
	"firmsync/internal/router"
	"firmsync/internal/services"
	"firmsync/pkg/config"
	"firmsync/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting FirmSync...")

	// 初始化数据库
	if err := database.Initialize(cfg); err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		// 关闭数据库连接
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
		// 关闭Redis连接
		if err := database.CloseRedisQueue(); err != nil {
			appLogger.Error("Failed to close Redis:", err)
		}
	}()

	// 执行数据库迁移
	if err := database.Migrate(); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 组装同步管道
	db := database.GetDB()
	tokenStorage := services.NewTokenStorage(db)
	oauthManager := services.NewOAuthManager(db, tokenStorage)
	auditLogger := services.NewAuditLogger(db)
	syncService := services.NewSyncService(
		services.NewRateLimiterFromConfig(),
		tokenStorage,
		oauthManager,
		services.NewDataTransformer(),
		services.NewSyncLogStore(db),
		services.NewRedisRecordSink(database.GetRedisQueue()),
		auditLogger,
	)

	// 启动同步调度引擎（在路由初始化前）
	syncEngine := services.NewSyncEngine(db, syncService)
	services.SetGlobalSyncEngine(syncEngine)
	if err := syncEngine.Start(); err != nil {
		appLogger.Errorf("Failed to start sync engine: %v", err)
		// 不影响主服务启动
	}
	defer syncEngine.Stop()

	// 设置路由（在调度引擎初始化后）
	r := router.SetupRouter(&router.Dependencies{
		IntegrationService: services.NewIntegrationService(db, tokenStorage, oauthManager, syncEngine),
		SyncService:        syncService,
		HealthCheck:        services.NewIntegrationHealthCheck(tokenStorage, oauthManager, auditLogger),
	})

	// 启动服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// 启动服务
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	if err := server.Close(); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}
