// Package ratelimit 提供基于 Redis GCRA 的分布式限流，请求可按计算量消耗多个令牌
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "optionpricer:ratelimit:"

// RateLimiter 限流器接口
type RateLimiter interface {
	// AllowN 检查 key 在给定规则下能否消耗 cost 个令牌
	AllowN(ctx context.Context, key string, limit Limit, cost int) (*Result, error)
}

// Limit 限流规则
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// PerSecond 每秒 rate 个令牌，允许 burst 突发
func PerSecond(rate, burst int) Limit {
	return Limit{Rate: rate, Period: time.Second, Burst: burst}
}

// Result 限流检查结果
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// gcra redis_rate.Limiter 的最小接口
type gcra interface {
	AllowN(ctx context.Context, key string, limit redis_rate.Limit, n int) (*redis_rate.Result, error)
}

// RedisRateLimiter 基于 redis_rate 的实现
type RedisRateLimiter struct {
	limiter gcra
}

// NewRedisRateLimiter 创建限流器
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{limiter: redis_rate.NewLimiter(rdb)}
}

// AllowN 消耗 cost 个令牌，cost 小于 1 时按 1 计
func (r *RedisRateLimiter) AllowN(ctx context.Context, key string, limit Limit, cost int) (*Result, error) {
	if cost < 1 {
		cost = 1
	}
	res, err := r.limiter.AllowN(ctx, keyPrefix+key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Burst,
	}, cost)
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}
