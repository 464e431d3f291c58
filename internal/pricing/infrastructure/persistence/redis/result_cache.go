package redis

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
	"github.com/wyfcoding/optionpricer/pkg/cache"
)

const defaultResultTTL = 15 * time.Minute

// JSONStore ResultCache 依赖的 JSON 读写能力，由 pkg/cache.RedisCache 提供
type JSONStore interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error
}

// ResultCache 以 Redis 保存种子确定的定价结果
type ResultCache struct {
	store  JSONStore
	prefix string
	ttl    time.Duration
}

// NewResultCache ttl 非正时使用默认 15 分钟
func NewResultCache(store JSONStore, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	return &ResultCache{
		store:  store,
		prefix: "pricing_result:",
		ttl:    ttl,
	}
}

// Get 未命中时返回 nil, nil
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.PricingResult, error) {
	var res domain.PricingResult
	if err := c.store.GetJSON(ctx, c.prefix+key, &res); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (c *ResultCache) Set(ctx context.Context, key string, result *domain.PricingResult) error {
	if result == nil {
		return nil
	}
	return c.store.SetJSON(ctx, c.prefix+key, result, c.ttl)
}
