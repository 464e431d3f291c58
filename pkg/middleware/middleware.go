// Package middleware 提供 Gin 通用中间件（日志、trace、panic recover、指标、限流）
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wyfcoding/optionpricer/pkg/logger"
	"github.com/wyfcoding/optionpricer/pkg/metrics"
)

// RequestIDKey gin context key for request ID
const RequestIDKey = "request_id"

// TraceIDKey gin context key for trace ID
const TraceIDKey = "trace_id"

// SpanIDKey gin context key for span ID
const SpanIDKey = "span_id"

// TraceHeader 上游传入的 trace id 头
const TraceHeader = "X-Trace-ID"

// GinLoggingMiddleware Gin 日志中间件，生成 request/trace/span id 并写入 request context
func GinLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		spanID := uuid.New().String()

		c.Set(RequestIDKey, requestID)
		c.Set(TraceIDKey, traceID)
		c.Set(SpanIDKey, spanID)
		c.Header(TraceHeader, traceID)

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		ctx := logger.ContextWithTrace(c.Request.Context(), traceID, spanID)
		c.Request = c.Request.WithContext(ctx)

		logger.Debug(ctx, "HTTP request started",
			"request_id", requestID,
			"method", method,
			"path", path,
			"client_ip", c.ClientIP(),
		)

		c.Next()

		logger.Info(ctx, "HTTP request completed",
			"request_id", requestID,
			"method", method,
			"path", path,
			"status_code", c.Writer.Status(),
			"response_size", c.Writer.Size(),
			"duration", time.Since(start),
		)
	}
}

// GinRecoveryMiddleware Gin panic 恢复中间件
func GinRecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID, _ := c.Get(RequestIDKey)

				logger.Error(c.Request.Context(), "HTTP request panicked",
					"request_id", requestID,
					"panic", err,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "Internal server error",
					"request_id": requestID,
				})
			}
		}()
		c.Next()
	}
}

// GinCORSMiddleware Gin CORS 中间件
func GinCORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// GinMetricsMiddleware 记录请求数与耗时，path 使用路由模板避免标签爆炸
func GinMetricsMiddleware(collector metrics.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		collector.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start).Seconds())
	}
}
