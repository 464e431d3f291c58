package domain

import "context"

// EventPublisher 事件发布者接口
type EventPublisher interface {
	// PublishOptionPriced 发布期权定价完成事件
	PublishOptionPriced(ctx context.Context, event OptionPricedEvent) error

	// PublishPricingError 发布定价错误事件
	PublishPricingError(ctx context.Context, event PricingErrorEvent) error

	// PublishBatchPricingCompleted 发布批量定价完成事件
	PublishBatchPricingCompleted(ctx context.Context, event BatchPricingCompletedEvent) error
}
