package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/optionpricer/pkg/logger"
	"github.com/wyfcoding/optionpricer/pkg/ratelimit"
	"github.com/wyfcoding/optionpricer/pkg/response"
)

// ErrorCodeRateLimited 限流拒绝时的业务错误码
const ErrorCodeRateLimited = "RATE_LIMITED"

// RateLimitMiddleware 按客户端 IP 限流，限流器故障时放行
// routeCosts 以路由模板为键，指定该路由每次请求消耗的令牌数，未列出的路由消耗 1 个
func RateLimitMiddleware(limiter ratelimit.RateLimiter, limit ratelimit.Limit, routeCosts map[string]int) gin.HandlerFunc {
	return func(c *gin.Context) {
		cost := 1
		if n, ok := routeCosts[c.FullPath()]; ok {
			cost = n
		}

		res, err := limiter.AllowN(c.Request.Context(), c.ClientIP(), limit, cost)
		if err != nil {
			logger.Warn(c.Request.Context(), "Rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(res.ResetAfter/time.Second), 10))

		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(res.RetryAfter/time.Second)+1, 10))
			logger.Info(c.Request.Context(), "Request rate limited", "client_ip", c.ClientIP(), "route", c.FullPath(), "cost", cost)
			response.ErrorWithStatus(c, http.StatusTooManyRequests, "too many requests, retry after "+res.RetryAfter.String(), ErrorCodeRateLimited)
			return
		}

		c.Next()
	}
}
