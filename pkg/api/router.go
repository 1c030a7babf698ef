package api

import (
	"github.com/gin-gonic/gin"

	"github.com/LENAX/proc-estimator/pkg/api/handler"
	"github.com/LENAX/proc-estimator/pkg/api/middleware"
	"github.com/LENAX/proc-estimator/pkg/core/estimator"
	"github.com/LENAX/proc-estimator/pkg/core/schedule"
)

// SetupRouter 设置路由
func SetupRouter(est *estimator.Estimator, defaultAlgorithm schedule.Algorithm, version string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// 全局中间件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	estimateHandler := handler.NewEstimateHandler(est, defaultAlgorithm)
	healthHandler := handler.NewHealthHandler(version)

	// 健康检查路由（不带前缀）
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		estimates := v1.Group("/estimates")
		{
			estimates.POST("", estimateHandler.Create)
			estimates.GET("", estimateHandler.List)
			estimates.GET("/:id", estimateHandler.Get)
			estimates.DELETE("/:id", estimateHandler.Delete)
		}
	}

	return router
}
