package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	v1 "city.newnan/mc-toolbox/api/v1"
	"city.newnan/mc-toolbox/internal/config"
	"city.newnan/mc-toolbox/internal/metrics"
	"city.newnan/mc-toolbox/internal/middleware"
	"city.newnan/mc-toolbox/internal/service"
	"city.newnan/mc-toolbox/internal/sse"
	"city.newnan/mc-toolbox/internal/websocket"
)

// Deps 路由用到的服务
type Deps struct {
	Backend   v1.ServerBackend
	Collector *metrics.Collector
	Metrics   *service.MetricsService
	Playtime  *service.PlaytimeService
	Treasure  *service.TreasureService
	Broker    *sse.Broker
	Manager   *websocket.Manager
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	// 设置Gin模式
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// 配置跨域
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "欢迎使用 Minecraft 服务器工具箱 API",
		})
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"websocket":        deps.Manager.ClientCount(),
			"sse":              deps.Broker.GetClientCount(),
			"treasure_running": deps.Treasure.Current().Running,
		})
	})

	// API文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	userController := v1.NewUserController(cfg)
	roleController := v1.NewRoleController()
	realtimeController := v1.NewRealtimeController(deps.Manager, deps.Broker, deps.Backend)
	serverController := v1.NewServerController(deps.Backend)
	reportController := v1.NewReportController(deps.Playtime, deps.Metrics, cfg.MetricsDays, cfg.MetricsPercentiles)
	treasureController := v1.NewTreasureController(deps.Treasure)
	metricsController := v1.NewMetricsController(deps.Collector, deps.Metrics, deps.Broker)

	api := r.Group("/api/v1")
	{
		// 公开路由
		api.POST("/user/register", userController.Register)
		api.POST("/user/login", userController.Login)
		api.POST("/user/logout", userController.Logout)

		// 认证之后按角色检查权限
		authorized := api.Group("")
		authorized.Use(middleware.JWTAuth(cfg), middleware.Authorize())
		{
			// 个人信息
			authorized.GET("/user/profile", userController.GetProfile)
			authorized.PUT("/user/profile", userController.UpdateProfile)
			authorized.GET("/user/refresh-token", userController.RefreshToken)

			// 用户管理
			authorized.GET("/users", userController.ListUsers)
			authorized.GET("/users/:id", userController.GetUser)
			authorized.PUT("/users/:id", userController.UpdateUser)
			authorized.DELETE("/users/:id", userController.DeleteUser)
			authorized.PUT("/users/:id/disable", userController.DisableUser)
			authorized.PUT("/users/:id/enable", userController.EnableUser)
			authorized.PUT("/users/:id/role", userController.ChangeUserRole)

			// 角色管理
			authorized.GET("/roles", roleController.ListRoles)
			authorized.GET("/roles/:id", roleController.GetRole)
			authorized.POST("/roles", roleController.CreateRole)
			authorized.PUT("/roles/:id", roleController.UpdateRole)
			authorized.DELETE("/roles/:id", roleController.DeleteRole)
			authorized.GET("/roles/:id/permissions", roleController.GetRolePermissions)
			authorized.POST("/roles/:id/permissions", roleController.AddRolePermission)
			authorized.DELETE("/roles/:id/permissions", roleController.RemoveRolePermission)

			// 服务器
			authorized.GET("/server/status", serverController.GetStatus)
			authorized.POST("/server/command", serverController.ExecuteCommand)

			// 报表
			authorized.GET("/reports/playtimes", reportController.GetPlaytimes)
			authorized.GET("/reports/playtimes.html", reportController.GetPlaytimesHTML)
			authorized.GET("/reports/performance", reportController.GetPerformance)

			// 寻宝
			authorized.POST("/treasure/hunts", treasureController.StartHunt)
			authorized.GET("/treasure/hunts/current", treasureController.CurrentHunt)
			authorized.DELETE("/treasure/hunts/current", treasureController.StopHunt)

			// 性能采样
			authorized.POST("/metrics/samples", metricsController.CollectSample)
			authorized.GET("/metrics/latest", metricsController.LatestSample)

			// 实时通信
			authorized.GET("/ws", realtimeController.HandleWebSocket)
			authorized.GET("/sse", realtimeController.HandleSSE)
			authorized.GET("/realtime/stats", realtimeController.GetRealtimeStats)
			authorized.POST("/ws/broadcast", realtimeController.BroadcastMessage)
			authorized.POST("/sse/publish", realtimeController.PublishSSEEvent)
		}
	}

	return r
}
