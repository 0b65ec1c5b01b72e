package handler

import (
	"log/slog"

	"layaway/internal/metrics"
	"layaway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger, m))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		// 客户侧
		layaway := api.Group("/layaway")
		{
			layaway.POST("/requests", h.CreateRequest)
			layaway.GET("/requests/:id", h.GetRequest)
		}

		// 管理端
		admin := api.Group("/admin/layaway")
		{
			admin.GET("/active", h.ListActive)
			admin.GET("/history", h.ListHistory)
			admin.GET("/requests", h.ListAll)

			admin.POST("/requests/:id/approve", h.transition(h.lifecycleService.Approve))
			admin.POST("/requests/:id/reject", h.transition(h.lifecycleService.Reject))
			admin.POST("/requests/:id/deliver", h.transition(h.lifecycleService.Deliver))
			admin.POST("/requests/:id/cancel", h.transition(h.lifecycleService.Cancel))
			admin.POST("/requests/:id/refund", h.transition(h.lifecycleService.MarkRefunded))
			admin.POST("/requests/:id/payment", h.RecordPayment)
			admin.DELETE("/requests/:id", h.DeleteRequest)

			admin.GET("/trust/:email", h.GetTrust)
			admin.POST("/trust/:email/reconcile", h.ReconcileTrust)

			admin.GET("/config", h.GetConfig)
			admin.PUT("/config", h.UpdateConfig)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, response.CodeNotFound, "接口不存在")
	})

	return r
}
