package router

import (
	"time"

	"firmsync/internal/database"
	"firmsync/internal/handlers"
	"firmsync/internal/middleware"
	"firmsync/internal/services"
	"firmsync/pkg/response"

	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter(deps *Dependencies) *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS())

	// 注册路由
	registerRoutes(router, deps)
	return router
}

// Dependencies 路由依赖的服务集合
type Dependencies struct {
	IntegrationService *services.IntegrationService
	SyncService        *services.SyncService
	HealthCheck        *services.IntegrationHealthCheck
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps *Dependencies) {

	auth := middleware.NewAuthMiddleware()

	// API路由组
	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		// 🔐 集成路由（需要登录，数据按当前租户隔离）
		integrationHandler := handlers.NewIntegrationHandler(deps.IntegrationService, deps.SyncService, deps.HealthCheck)
		integrations := api.Group("/integrations", auth.RequireLogin())
		{
			// 🔒 集成管理（连接和断开需要律所管理员）
			integrations.GET("", integrationHandler.List)
			integrations.POST("/connect", auth.RequireFirmAdmin(), integrationHandler.Connect)
			integrations.GET("/:provider", integrationHandler.Get)
			integrations.PUT("/:provider", auth.RequireFirmAdmin(), integrationHandler.Update)
			integrations.DELETE("/:provider", auth.RequireFirmAdmin(), integrationHandler.Disconnect)

			// 🔒 同步相关
			integrations.POST("/:provider/sync", integrationHandler.TriggerSync)
			integrations.GET("/:provider/sync-status", integrationHandler.GetSyncStatus)
			integrations.GET("/:provider/sync-logs", integrationHandler.GetSyncLogs)

			// 🔒 健康检查
			integrations.GET("/health/all", integrationHandler.CheckAllHealth)
			integrations.GET("/:provider/health", integrationHandler.CheckHealth)
		}

		// 🔐 同步队列路由
		queueHandler := handlers.NewQueueHandler(database.GetDB())
		syncQueue := api.Group("/sync-queue", auth.RequireLogin())
		{
			syncQueue.GET("/stats", queueHandler.GetQueueStats)
			syncQueue.GET("/runs/:sync_id", queueHandler.GetSyncRunStatus)

			// 🔒 清空队列（平台管理员专用）
			syncQueue.DELETE("/:provider", auth.RequirePlatformAdmin(), queueHandler.ClearQueue)
		}

		// WebSocket路由（token通过查询参数认证）
		wsHandler := handlers.NewWebSocketHandler()
		api.GET("/ws/sync-events", wsHandler.SyncEvents)
	}
}

func healthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "FirmSync",
		"version":   "1.0.0",
	}
	response.Success(c, data)
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
