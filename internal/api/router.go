package api

import (
	"time"

	"github.com/Mieluoxxx/Lumina-API/internal/api/handlers"
	"github.com/Mieluoxxx/Lumina-API/internal/api/middleware"
	"github.com/Mieluoxxx/Lumina-API/internal/ledger"
	"github.com/Mieluoxxx/Lumina-API/internal/resolver"
	"github.com/Mieluoxxx/Lumina-API/internal/runner"
	"github.com/Mieluoxxx/Lumina-API/internal/stats"
	"github.com/Mieluoxxx/Lumina-API/internal/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
// 运行器与对象存储客户端由调用方按配置构造后传入
func SetupRouter(db *gorm.DB, runnerClient *runner.Client, storageClient *storage.Client) *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())

	// 健康检查端点
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "Lumina-API",
		})
	})

	requestCounter := stats.NewRequestCounter(60 * time.Second)

	// API 路由组：计数 + 身份提取
	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.RequestCounterMiddleware(requestCounter))
	apiGroup.Use(middleware.IdentityMiddleware())
	{
		setupLedgerRoutes(apiGroup, db)
		setupStatsRoutes(apiGroup, db, requestCounter)
		setupGenerationRoutes(apiGroup, db, runnerClient, storageClient)
		setupDeviceRoutes(apiGroup, runnerClient)
	}

	return router
}

// setupLedgerRoutes 配置代币账本路由
func setupLedgerRoutes(group *gin.RouterGroup, db *gorm.DB) {
	service := ledger.NewService(db)
	adminHandler := handlers.NewAdminTokenHandler(service)
	memberHandler := handlers.NewMemberTokenHandler(service)

	admin := group.Group("/admin/tokens")
	{
		admin.POST("", adminHandler.IssueTokens)
		admin.GET("", adminHandler.ListTokens)
		admin.POST("/:id", adminHandler.DistributeTokens)
	}

	members := group.Group("/members/tokens")
	{
		members.GET("", memberHandler.ListUsages)
		members.POST("", memberHandler.UseTokens)
		members.GET("/balance", memberHandler.GetBalance)
	}
}

// setupStatsRoutes 配置统计查询路由
func setupStatsRoutes(group *gin.RouterGroup, db *gorm.DB, requestCounter *stats.RequestCounter) {
	aggregator := stats.NewAggregator(db)
	handler := handlers.NewStatsHandler(aggregator, requestCounter)

	group.GET("/stats", handler.GetSystemStats)
	group.GET("/admin/statistics/rank/:criteria", handler.GetRank)
	group.GET("/admin/statistics/tokens/export", handler.ExportTokenRank)

	memberStats := group.Group("/members/:member_id/statistics")
	{
		memberStats.GET("/images", handler.GetDailyImages)
		memberStats.GET("/tools", handler.GetToolUsage)
		memberStats.GET("/models", handler.GetModelUsage)
		memberStats.GET("/tokens/usage", handler.GetTokenUsage)
	}
}

// setupGenerationRoutes 配置生成任务路由
func setupGenerationRoutes(group *gin.RouterGroup, db *gorm.DB, runnerClient *runner.Client, storageClient *storage.Client) {
	ledgerService := ledger.NewService(db)
	res := resolver.NewResolver(runnerClient, storageClient)

	generationHandler := handlers.NewGenerationHandler(ledgerService, runnerClient)
	taskHandler := handlers.NewTaskHandler(res)

	generation := group.Group("/generation")
	{
		generation.POST("/remove-bg/:gpu_env", generationHandler.RemoveBackground)
		generation.GET("/tasks/:task_id", taskHandler.GetTask)
	}
}

// setupDeviceRoutes 配置设备状态路由
func setupDeviceRoutes(group *gin.RouterGroup, runnerClient *runner.Client) {
	handler := handlers.NewDeviceHandler(runnerClient)

	device := group.Group("/device")
	{
		device.GET("/health", handler.Health)
		device.GET("/cuda_available", handler.CUDAAvailable)
		device.GET("/cuda_usage", handler.CUDAUsage)
	}
}
