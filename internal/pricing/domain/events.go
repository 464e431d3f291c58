package domain

import "time"

const (
	OptionPricedEventType          = "OptionPriced"
	PricingErrorEventType          = "PricingError"
	BatchPricingCompletedEventType = "BatchPricingCompleted"
)

// OptionPricedEvent 期权定价完成事件
type OptionPricedEvent struct {
	ContractKey  string         `json:"contract_key"`
	Kind         PayoffKind     `json:"kind"`
	Params       ContractParams `json:"params"`
	OptionPrice  float64        `json:"option_price"`
	StdError     float64        `json:"std_error"`
	Replications int            `json:"replications"`
	Workers      int            `json:"workers"`
	Seed         uint64         `json:"seed"`
	PricingModel string         `json:"pricing_model"`
	CalculatedAt int64          `json:"calculated_at"`
	OccurredOn   time.Time      `json:"occurred_on"`
}

// PricingErrorEvent 定价错误事件
type PricingErrorEvent struct {
	Kind       PayoffKind     `json:"kind"`
	Params     ContractParams `json:"params"`
	Error      string         `json:"error"`
	ErrorCode  string         `json:"error_code"`
	Completed  int            `json:"completed"`
	OccurredAt int64          `json:"occurred_at"`
	OccurredOn time.Time      `json:"occurred_on"`
}

// BatchPricingCompletedEvent 批量定价完成事件
type BatchPricingCompletedEvent struct {
	BatchID        string    `json:"batch_id"`
	TotalContracts int       `json:"total_contracts"`
	SuccessCount   int       `json:"success_count"`
	FailureCount   int       `json:"failure_count"`
	AverageTime    float64   `json:"average_time"`
	CompletedAt    int64     `json:"completed_at"`
	OccurredOn     time.Time `json:"occurred_on"`
}
