// Package messaging 消费 Kafka 上的异步定价请求
package messaging

import (
	"context"
	"fmt"

	"github.com/wyfcoding/optionpricer/internal/pricing/application"
	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
	"github.com/wyfcoding/optionpricer/pkg/logger"
	"github.com/wyfcoding/optionpricer/pkg/mq"
)

// PriceRequestMessage 异步定价请求
// 指定 kind，或同时指定 averaging 与 option 代码
type PriceRequestMessage struct {
	RequestID    string                `json:"request_id"`
	Kind         string                `json:"kind"`
	Averaging    string                `json:"averaging"`
	Option       string                `json:"option"`
	Params       domain.ContractParams `json:"params"`
	Replications int                   `json:"replications"`
	Seed         *uint64               `json:"seed"`
	Workers      int                   `json:"workers"`
}

// Pricer 定价服务中被消费者使用的部分
type Pricer interface {
	PriceOption(ctx context.Context, cmd application.PriceOptionCommand) (*domain.PricingResult, error)
	PriceByCode(ctx context.Context, cmd application.PriceByCodeCommand) (*domain.PricingResult, error)
}

// PricingRequestConsumer 定价请求消费者
// 结果通过定价服务的事件发布器输出，失败的请求由 mq 层转入死信队列
type PricingRequestConsumer struct {
	consumer *mq.KafkaConsumer
	pricer   Pricer
	dlq      *mq.DeadLetterQueue
}

// NewPricingRequestConsumer 创建消费者，dlq 可为 nil
func NewPricingRequestConsumer(consumer *mq.KafkaConsumer, pricer Pricer, dlq *mq.DeadLetterQueue) *PricingRequestConsumer {
	return &PricingRequestConsumer{consumer: consumer, pricer: pricer, dlq: dlq}
}

// Run 阻塞消费直到 ctx 结束
func (c *PricingRequestConsumer) Run(ctx context.Context) error {
	logger.Info(ctx, "Pricing request consumer started")
	err := c.consumer.Consume(ctx, c.Handle, c.dlq)
	logger.Info(ctx, "Pricing request consumer stopped", "error", err)
	return err
}

// Handle 处理单条定价请求
func (c *PricingRequestConsumer) Handle(ctx context.Context, msg *mq.Message) error {
	var req PriceRequestMessage
	if err := msg.UnmarshalPayload(&req); err != nil {
		return fmt.Errorf("%w: malformed pricing request: %v", domain.ErrInvalidParameter, err)
	}

	var (
		result *domain.PricingResult
		err    error
	)
	switch {
	case req.Kind != "":
		kind, perr := domain.ParsePayoffKind(req.Kind)
		if perr != nil {
			return perr
		}
		result, err = c.pricer.PriceOption(ctx, application.PriceOptionCommand{
			Kind:         kind,
			Params:       req.Params,
			Replications: req.Replications,
			Seed:         req.Seed,
			Workers:      req.Workers,
		})
	case req.Averaging != "" || req.Option != "":
		result, err = c.pricer.PriceByCode(ctx, application.PriceByCodeCommand{
			Averaging:    req.Averaging,
			Option:       req.Option,
			Params:       req.Params,
			Replications: req.Replications,
			Seed:         req.Seed,
			Workers:      req.Workers,
		})
	default:
		return fmt.Errorf("%w: pricing request %q names no payoff", domain.ErrInvalidParameter, req.RequestID)
	}
	if err != nil {
		return err
	}

	logger.Info(ctx, "Pricing request handled",
		"request_id", req.RequestID,
		"key", msg.Key,
		"kind", result.Kind,
		"contract_key", result.ContractKey,
		"price", result.OptionPrice.String(),
	)
	return nil
}
