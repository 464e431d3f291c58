package application

import (
	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
)

// PriceOptionCommand 期权定价命令
type PriceOptionCommand struct {
	Kind   domain.PayoffKind     `json:"kind"`
	Params domain.ContractParams `json:"params"`
	// 模拟次数，0 使用配置默认值
	Replications int `json:"replications"`
	// 随机种子，为空时使用当前时间
	Seed *uint64 `json:"seed,omitempty"`
	// worker 数，0 使用配置默认值
	Workers int `json:"workers"`
}

// PriceByCodeCommand 通过平均方式/期权方向代码定价
type PriceByCodeCommand struct {
	Averaging    string                `json:"averaging"` // 'A' 算术 或 'G' 几何
	Option       string                `json:"option"`    // 'C' 看涨 或 'P' 看跌
	Params       domain.ContractParams `json:"params"`
	Replications int                   `json:"replications"`
	Seed         *uint64               `json:"seed,omitempty"`
	Workers      int                   `json:"workers"`
}

// UpAndInCallCommand 向上敲入看涨期权定价命令
type UpAndInCallCommand struct {
	StepCount     int     `json:"n_int"`
	Strike        float64 `json:"strike"`
	Spot          float64 `json:"spot"`
	Volatility    float64 `json:"vol"`
	RiskFreeRate  float64 `json:"rfr"`
	Expiry        float64 `json:"expiry"`
	Barrier       float64 `json:"barrier"`
	NReplications int     `json:"n_reps"` // 0 表示默认 1000 次
	Seed          *uint64 `json:"seed,omitempty"`
	Workers       int     `json:"workers"`
}

// DefaultUpAndInReplications 向上敲入入口的默认模拟次数
const DefaultUpAndInReplications = 1000

// Params 转换为合约参数
func (c UpAndInCallCommand) Params() domain.ContractParams {
	return domain.ContractParams{
		StepCount:    c.StepCount,
		Strike:       c.Strike,
		Spot:         c.Spot,
		Volatility:   c.Volatility,
		RiskFreeRate: c.RiskFreeRate,
		Expiry:       c.Expiry,
		Barrier:      c.Barrier,
	}
}

// BatchPriceCommand 批量定价命令
type BatchPriceCommand struct {
	BatchID   string               `json:"batch_id"`
	Contracts []PriceOptionCommand `json:"contracts"`
}

// BatchFailure 批量定价中失败的条目
type BatchFailure struct {
	Index     int               `json:"index"`
	Kind      domain.PayoffKind `json:"kind"`
	ErrorCode string            `json:"error_code"`
	Error     string            `json:"error"`
}

// BatchPricingResult 批量定价结果
type BatchPricingResult struct {
	BatchID      string                  `json:"batch_id"`
	Results      []*domain.PricingResult `json:"results"`
	Failures     []BatchFailure          `json:"failures"`
	SuccessCount int                     `json:"success_count"`
	FailureCount int                     `json:"failure_count"`
	AverageTime  float64                 `json:"average_time"` // 秒
}

// ConvergenceCommand 收敛分析命令
// 对每个模拟次数独立重复定价 Runs 次，统计估计值的离散程度
type ConvergenceCommand struct {
	Kind              domain.PayoffKind     `json:"kind"`
	Params            domain.ContractParams `json:"params"`
	ReplicationCounts []int                 `json:"replication_counts"`
	Runs              int                   `json:"runs"`
	Seed              *uint64               `json:"seed,omitempty"`
	Workers           int                   `json:"workers"`
}

// ConvergencePoint 单个模拟次数下的统计
type ConvergencePoint struct {
	Replications int     `json:"replications"`
	Runs         int     `json:"runs"`
	MeanPrice    float64 `json:"mean_price"`
	// 各次估计值的样本标准差
	Spread float64 `json:"spread"`
	// 各次报告的标准误均值
	MeanStdError float64 `json:"mean_std_error"`
}

// ConvergenceReport 收敛分析结果
type ConvergenceReport struct {
	Kind   domain.PayoffKind  `json:"kind"`
	Seed   uint64             `json:"seed"`
	Points []ConvergencePoint `json:"points"`
	// 估计值离散程度是否随模拟次数增加而单调不增
	Monotone bool `json:"monotone"`
}

// SimulatePathCommand 单条路径诊断命令
type SimulatePathCommand struct {
	Params domain.ContractParams `json:"params"`
	Seed   *uint64               `json:"seed,omitempty"`
}

// PathReport 单条路径及其统计量
type PathReport struct {
	Seed           uint64                        `json:"seed"`
	Path           []float64                     `json:"path"`
	ArithmeticMean float64                       `json:"arithmetic_mean"`
	GeometricMean  float64                       `json:"geometric_mean"`
	Max            float64                       `json:"max"`
	Terminal       float64                       `json:"terminal"`
	Payoffs        map[domain.PayoffKind]float64 `json:"payoffs"` // 未折现收益
}
