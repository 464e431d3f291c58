package application

import (
	"context"
	"fmt"

	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
)

const defaultHistoryLimit = 50

// PricingQueryService 处理定价历史查询（Queries）。
type PricingQueryService struct {
	repo domain.PricingRepository
}

// NewPricingQueryService 构造函数，repo 可为 nil
func NewPricingQueryService(repo domain.PricingRepository) *PricingQueryService {
	return &PricingQueryService{repo: repo}
}

// GetLatest 获取合约最新定价结果
func (q *PricingQueryService) GetLatest(ctx context.Context, contractKey string) (*domain.PricingResult, error) {
	if q.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	if contractKey == "" {
		return nil, fmt.Errorf("%w: contract key is required", domain.ErrInvalidParameter)
	}
	res, err := q.repo.GetLatest(ctx, contractKey)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrResultNotFound
	}
	return res, nil
}

// GetHistory 获取合约定价历史，按计算时间倒序
func (q *PricingQueryService) GetHistory(ctx context.Context, contractKey string, limit int) ([]*domain.PricingResult, error) {
	if q.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	if contractKey == "" {
		return nil, fmt.Errorf("%w: contract key is required", domain.ErrInvalidParameter)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return q.repo.GetHistory(ctx, contractKey, limit)
}
