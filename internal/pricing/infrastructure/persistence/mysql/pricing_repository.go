package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
	"gorm.io/gorm"
)

const maxHistoryLimit = 500

type pricingRepository struct {
	db *gorm.DB
}

// NewPricingRepository 创建并返回一个新的 pricingRepository 实例。
func NewPricingRepository(db *gorm.DB) domain.PricingRepository {
	return &pricingRepository{db: db}
}

// AutoMigrate 创建或更新 pricing_results 表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&PricingResultModel{})
}

func (r *pricingRepository) Save(ctx context.Context, res *domain.PricingResult) error {
	model := toPricingResultModel(res)
	if model == nil {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	res.ID = model.ID
	res.CreatedAt = model.CreatedAt
	res.UpdatedAt = model.UpdatedAt
	return nil
}

// GetLatest 不存在时返回 nil, nil
func (r *pricingRepository) GetLatest(ctx context.Context, contractKey string) (*domain.PricingResult, error) {
	var m PricingResultModel
	if err := r.db.WithContext(ctx).
		Where("contract_key = ?", contractKey).
		Order("calculated_at desc, id desc").
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toPricingResult(&m), nil
}

func (r *pricingRepository) GetHistory(ctx context.Context, contractKey string, limit int) ([]*domain.PricingResult, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	var models []PricingResultModel
	if err := r.db.WithContext(ctx).
		Where("contract_key = ?", contractKey).
		Order("calculated_at desc, id desc").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]*domain.PricingResult, len(models))
	for i := range models {
		res[i] = toPricingResult(&models[i])
	}
	return res, nil
}
