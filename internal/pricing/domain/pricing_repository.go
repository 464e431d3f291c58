package domain

import (
	"context"
)

// PricingRepository 定价历史仓储接口
type PricingRepository interface {
	Save(ctx context.Context, result *PricingResult) error
	GetLatest(ctx context.Context, contractKey string) (*PricingResult, error)
	GetHistory(ctx context.Context, contractKey string, limit int) ([]*PricingResult, error)
}

// ResultCache 确定性定价结果缓存
type ResultCache interface {
	Get(ctx context.Context, key string) (*PricingResult, error)
	Set(ctx context.Context, key string, result *PricingResult) error
}
