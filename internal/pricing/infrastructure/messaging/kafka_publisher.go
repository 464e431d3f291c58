package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
)

// Sender 消息发送能力，由 pkg/mq.KafkaProducer 提供
type Sender interface {
	SendMessage(ctx context.Context, topic string, key string, value any) error
}

// Envelope 事件信封
type Envelope struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredOn time.Time `json:"occurred_on"`
	Payload    any       `json:"payload"`
}

// KafkaEventPublisher 实现 domain.EventPublisher，将事件写入 Kafka 主题
type KafkaEventPublisher struct {
	sender Sender
	topic  string
}

// NewKafkaEventPublisher 创建新的 KafkaEventPublisher 实例
func NewKafkaEventPublisher(sender Sender, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{sender: sender, topic: topic}
}

// PublishOptionPriced 发布期权定价完成事件，按合约键分区
func (p *KafkaEventPublisher) PublishOptionPriced(ctx context.Context, event domain.OptionPricedEvent) error {
	return p.publishEvent(ctx, event.ContractKey, domain.OptionPricedEventType, event.OccurredOn, event)
}

// PublishPricingError 发布定价错误事件
func (p *KafkaEventPublisher) PublishPricingError(ctx context.Context, event domain.PricingErrorEvent) error {
	return p.publishEvent(ctx, string(event.Kind), domain.PricingErrorEventType, event.OccurredOn, event)
}

// PublishBatchPricingCompleted 发布批量定价完成事件
func (p *KafkaEventPublisher) PublishBatchPricingCompleted(ctx context.Context, event domain.BatchPricingCompletedEvent) error {
	return p.publishEvent(ctx, event.BatchID, domain.BatchPricingCompletedEventType, event.OccurredOn, event)
}

func (p *KafkaEventPublisher) publishEvent(ctx context.Context, key, eventType string, occurredOn time.Time, payload any) error {
	if occurredOn.IsZero() {
		occurredOn = time.Now()
	}
	return p.sender.SendMessage(ctx, p.topic, key, Envelope{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		OccurredOn: occurredOn,
		Payload:    payload,
	})
}
