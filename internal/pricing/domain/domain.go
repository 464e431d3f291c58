// 包 定价服务的领域模型
// 基于几何布朗运动的蒙特卡洛路径模拟，为亚式(算术/几何平均)期权与向上敲入障碍期权定价
package domain

import (
	"fmt"
	"math"
)

// ContractParams 期权合约构造参数
type ContractParams struct {
	StepCount    int     `json:"step_count"`     // 每条路径的离散步数
	Strike       float64 `json:"strike"`         // 行权价
	Spot         float64 `json:"spot"`           // 标的现价
	Volatility   float64 `json:"volatility"`     // 年化波动率
	RiskFreeRate float64 `json:"risk_free_rate"` // 无风险利率
	Expiry       float64 `json:"expiry"`         // 到期时间 (年)
	Barrier      float64 `json:"barrier"`        // 障碍价格，仅向上敲入期权使用
}

// OptionContract 期权合约
// 构造后不可变，模拟路径不再属于合约，而由定价引擎按 worker 持有
type OptionContract struct {
	stepCount    int
	strike       float64
	spot         float64
	volatility   float64
	riskFreeRate float64
	expiry       float64
	barrier      float64
}

// NewOptionContract 校验参数并创建期权合约
func NewOptionContract(p ContractParams) (*OptionContract, error) {
	if p.StepCount < 1 {
		return nil, fmt.Errorf("%w: step count must be positive, got %d", ErrInvalidParameter, p.StepCount)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"strike", p.Strike},
		{"spot", p.Spot},
		{"volatility", p.Volatility},
		{"risk free rate", p.RiskFreeRate},
		{"expiry", p.Expiry},
		{"barrier", p.Barrier},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return nil, fmt.Errorf("%w: %s must be finite", ErrInvalidParameter, f.name)
		}
	}
	if p.Expiry <= 0 {
		return nil, fmt.Errorf("%w: expiry must be positive, got %v", ErrInvalidParameter, p.Expiry)
	}
	if p.Spot <= 0 {
		return nil, fmt.Errorf("%w: spot must be positive, got %v", ErrInvalidParameter, p.Spot)
	}
	if p.Volatility < 0 {
		return nil, fmt.Errorf("%w: volatility must not be negative, got %v", ErrInvalidParameter, p.Volatility)
	}
	if p.Strike < 0 {
		return nil, fmt.Errorf("%w: strike must not be negative, got %v", ErrInvalidParameter, p.Strike)
	}

	return &OptionContract{
		stepCount:    p.StepCount,
		strike:       p.Strike,
		spot:         p.Spot,
		volatility:   p.Volatility,
		riskFreeRate: p.RiskFreeRate,
		expiry:       p.Expiry,
		barrier:      p.Barrier,
	}, nil
}

func (c *OptionContract) StepCount() int        { return c.stepCount }
func (c *OptionContract) Strike() float64       { return c.strike }
func (c *OptionContract) Spot() float64         { return c.spot }
func (c *OptionContract) Volatility() float64   { return c.volatility }
func (c *OptionContract) RiskFreeRate() float64 { return c.riskFreeRate }
func (c *OptionContract) Expiry() float64       { return c.expiry }
func (c *OptionContract) Barrier() float64      { return c.barrier }

// Params 返回构造该合约的参数
func (c *OptionContract) Params() ContractParams {
	return ContractParams{
		StepCount:    c.stepCount,
		Strike:       c.strike,
		Spot:         c.spot,
		Volatility:   c.volatility,
		RiskFreeRate: c.riskFreeRate,
		Expiry:       c.expiry,
		Barrier:      c.barrier,
	}
}

// Dt 单步时间间隔
func (c *OptionContract) Dt() float64 {
	return c.expiry / float64(c.stepCount)
}

// DriftPerStep 每步对数漂移项
// 漂移使用总方差 σ²·T 再除以步数，与扩散项 σ·√dt 的缩放方式分开计算
func (c *OptionContract) DriftPerStep() float64 {
	return (c.riskFreeRate*c.expiry - 0.5*c.volatility*c.volatility*c.expiry) / float64(c.stepCount)
}

// DiffusionPerStep 每步扩散系数 σ·√dt
func (c *OptionContract) DiffusionPerStep() float64 {
	return c.volatility * math.Sqrt(c.Dt())
}

// DiscountFactor 折现因子 exp(-r·T)
func (c *OptionContract) DiscountFactor() float64 {
	return math.Exp(-c.riskFreeRate * c.expiry)
}
