package api

import (
	"time"

	"go-sysdash/internal/api/handlers"
	"go-sysdash/internal/api/middleware"
	"go-sysdash/internal/repository"
	"go-sysdash/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies 路由需要的外部依赖，由 main 组装
type Dependencies struct {
	DB             *gorm.DB
	Logger         *zap.Logger
	MonitorService *service.MonitorService
	AlarmService   *service.AlarmService
	// RestartCollector 人工重启采集器，可以为 nil
	RestartCollector func() error
	StreamInterval   time.Duration
}

// NewRouter 创建带日志和 panic 恢复中间件的 gin 引擎，并注册全部路由
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(middleware.LoggingMiddleware(deps.Logger), middleware.Recovery(deps.Logger))
	SetupRoutes(router, deps)
	return router
}

// SetupRoutes 设置所有路由
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	// 初始化仓储层和服务层
	userService := service.NewUserService(repository.NewUserRepository(deps.DB))
	alarmService := deps.AlarmService
	if alarmService == nil {
		alarmService = service.NewAlarmService(repository.NewAlarmRepository(deps.DB))
	}

	// 初始化处理器
	authHandler := handlers.NewAuthHandler(userService)
	userHandler := handlers.NewUserHandler(userService)
	alarmHandler := handlers.NewAlarmHandler(alarmService)
	healthHandler := handlers.NewHealthHandler(deps.MonitorService)
	systemHandler := handlers.NewSystemHandler(deps.MonitorService, deps.RestartCollector, deps.StreamInterval, deps.Logger)

	// 公开路由组
	public := router.Group("/api/v1")
	{
		public.GET("/health", healthHandler.CheckHealth)

		// 登录和刷新令牌无需访问令牌
		auth := public.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
		}
	}

	// 需要认证的路由组
	protected := router.Group("/api/v1")
	protected.Use(middleware.AuthMiddleware())
	{
		auth := protected.Group("/auth")
		{
			auth.GET("/me", authHandler.GetCurrentUser)
			auth.PUT("/password", authHandler.ChangePassword)
		}

		// 主机指标只对管理员开放
		system := protected.Group("/system")
		system.Use(middleware.AdminMiddleware())
		{
			system.GET("/dashboard", systemHandler.GetDashboard)
			system.GET("/cpu", systemHandler.GetCPU)
			system.GET("/memory", systemHandler.GetMemory)
			system.GET("/disks", systemHandler.GetDisks)
			system.GET("/network", systemHandler.GetNetwork)
			system.GET("/processes", systemHandler.GetProcesses)
			system.GET("/history", systemHandler.GetHistory)
			system.GET("/health", systemHandler.GetHealth)
			system.GET("/stream", systemHandler.Stream)
			system.POST("/refresh", systemHandler.Refresh)
			system.POST("/collector/restart", systemHandler.RestartCollector)
		}

		// 告警管理路由
		alarms := protected.Group("/alarms")
		alarms.Use(middleware.AdminMiddleware())
		{
			alarms.GET("", alarmHandler.GetAlarms)
			alarms.GET("/active", alarmHandler.GetActiveAlarms)
			alarms.GET("/recent", alarmHandler.GetRecentAlarms)
			alarms.GET("/stats", alarmHandler.GetAlarmStats)
			alarms.GET("/:id", alarmHandler.GetAlarm)
			alarms.DELETE("/:id", alarmHandler.DeleteAlarm)
			alarms.POST("/:id/resolve", alarmHandler.ResolveAlarm)
			alarms.POST("/:id/reactivate", alarmHandler.ReactivateAlarm)
			alarms.POST("/batch/resolve", alarmHandler.BatchResolveAlarms)
			alarms.POST("/batch/delete", alarmHandler.BatchDeleteAlarms)
		}

		// 管理员用户管理
		admin := protected.Group("/admin")
		admin.Use(middleware.AdminMiddleware())
		{
			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", userHandler.ListUsers)
				adminUsers.POST("", userHandler.CreateUser)
				adminUsers.GET("/:id", userHandler.GetUser)
			}
		}
	}
}
