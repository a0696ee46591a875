package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scribemarket/backend/internal/monitoring"
)

// MonitoringMiddleware 监控中间件
type MonitoringMiddleware struct {
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewMonitoringMiddleware 创建监控中间件
func NewMonitoringMiddleware(metrics *monitoring.Metrics, logger *zap.Logger) *MonitoringMiddleware {
	return &MonitoringMiddleware{
		metrics: metrics,
		logger:  logger,
	}
}

// HTTPMetrics HTTP 指标中间件
func (mm *MonitoringMiddleware) HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := strconv.Itoa(c.Writer.Status())

		mm.metrics.RecordHTTPRequest(
			c.Request.Method,
			c.FullPath(),
			statusCode,
			duration,
		)

		if c.Writer.Status() >= 400 {
			mm.metrics.RecordError("http_error", "http")
		}
	}
}

// PanicRecovery Panic 恢复中间件
func (mm *MonitoringMiddleware) PanicRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				mm.metrics.RecordPanic()

				mm.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("ip", c.ClientIP()),
				)

				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}
