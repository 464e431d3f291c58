package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PricingModelMonteCarlo 定价模型名称
const PricingModelMonteCarlo = "MONTE_CARLO"

// PricingResult 定价结果实体
type PricingResult struct {
	ID           uint                `json:"id"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	ContractKey  string              `json:"contract_key"`
	Kind         PayoffKind          `json:"kind"`
	Params       ContractParams      `json:"params"`
	OptionPrice  decimal.Decimal     `json:"option_price"`
	StdError     decimal.Decimal     `json:"std_error"`
	Benchmark    decimal.NullDecimal `json:"benchmark"`
	Replications int                 `json:"replications"`
	Workers      int                 `json:"workers"`
	Seed         uint64              `json:"seed"`
	Seeded       bool                `json:"seeded"`
	ElapsedMs    int64               `json:"elapsed_ms"`
	CalculatedAt int64               `json:"calculated_at"`
	PricingModel string              `json:"pricing_model"`
}

// ContractKey 合约参数与收益类型的内容哈希，用于查询定价历史
func ContractKey(kind PayoffKind, p ContractParams) string {
	canonical := fmt.Sprintf("%s|%d|%g|%g|%g|%g|%g|%g",
		kind, p.StepCount, p.Strike, p.Spot, p.Volatility, p.RiskFreeRate, p.Expiry, p.Barrier)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// CacheKey 确定性定价结果的缓存键
// 只有显式给定种子的请求结果可复现，种子、模拟次数和 worker 数共同决定结果
func CacheKey(contractKey string, seed uint64, replications, workers int) string {
	return fmt.Sprintf("%s:%d:%d:%d", contractKey, seed, replications, workers)
}
