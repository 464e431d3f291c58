package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// BlackScholesInput Black-Scholes 模型输入
type BlackScholesInput struct {
	S float64 // 标的资产价格
	K float64 // 执行价格
	T float64 // 到期时间 (年)
	R float64 // 无风险利率
	V float64 // 波动率
}

// BlackScholesResult Black-Scholes 模型输出
type BlackScholesResult struct {
	Price decimal.Decimal
	Delta decimal.Decimal
	Gamma decimal.Decimal
	Theta decimal.Decimal
	Vega  decimal.Decimal
	Rho   decimal.Decimal
}

// BlackScholesInputFrom 由合约构造 Black-Scholes 输入
func BlackScholesInputFrom(c *OptionContract) BlackScholesInput {
	return BlackScholesInput{
		S: c.Spot(),
		K: c.Strike(),
		T: c.Expiry(),
		R: c.RiskFreeRate(),
		V: c.Volatility(),
	}
}

// HasClosedForm 该收益类型是否存在 Black-Scholes 解析解
func (k PayoffKind) HasClosedForm() bool {
	return k == PayoffEuropeanCall || k == PayoffEuropeanPut
}

// CalculateBlackScholes 计算欧式期权的 Black-Scholes 价格和 Greeks
// 用作 EUROPEAN_CALL/EUROPEAN_PUT 蒙特卡洛结果的基准
func CalculateBlackScholes(kind PayoffKind, input BlackScholesInput) (*BlackScholesResult, error) {
	if !kind.HasClosedForm() {
		return nil, fmt.Errorf("%w: no closed form for %s", ErrInvalidParameter, kind)
	}
	isCall := kind == PayoffEuropeanCall
	discount := math.Exp(-input.R * input.T)

	// σ=0 或 K=0 时价格退化为确定性远期的内在价值
	if input.V == 0 || input.K == 0 {
		forward := input.S - input.K*discount
		price := math.Max(forward, 0)
		delta := 0.0
		if forward > 0 {
			delta = 1
		}
		if !isCall {
			price = math.Max(-forward, 0)
			delta = 0
			if forward < 0 {
				delta = -1
			}
		}
		return &BlackScholesResult{
			Price: decimal.NewFromFloat(price),
			Delta: decimal.NewFromFloat(delta),
			Gamma: decimal.Zero,
			Theta: decimal.Zero,
			Vega:  decimal.Zero,
			Rho:   decimal.Zero,
		}, nil
	}

	sqrtT := math.Sqrt(input.T)
	d1 := (math.Log(input.S/input.K) + (input.R+0.5*input.V*input.V)*input.T) / (input.V * sqrtT)
	d2 := d1 - input.V*sqrtT

	var price, delta, theta, rho float64
	gamma := normPdf(d1) / (input.S * input.V * sqrtT)
	vega := input.S * sqrtT * normPdf(d1)

	if isCall {
		price = input.S*normCdf(d1) - input.K*discount*normCdf(d2)
		delta = normCdf(d1)
		theta = -input.S*normPdf(d1)*input.V/(2*sqrtT) - input.R*input.K*discount*normCdf(d2)
		rho = input.K * input.T * discount * normCdf(d2)
	} else {
		price = input.K*discount*normCdf(-d2) - input.S*normCdf(-d1)
		delta = normCdf(d1) - 1
		theta = -input.S*normPdf(d1)*input.V/(2*sqrtT) + input.R*input.K*discount*normCdf(-d2)
		rho = -input.K * input.T * discount * normCdf(-d2)
	}

	return &BlackScholesResult{
		Price: decimal.NewFromFloat(price),
		Delta: decimal.NewFromFloat(delta),
		Gamma: decimal.NewFromFloat(gamma),
		Theta: decimal.NewFromFloat(theta),
		Vega:  decimal.NewFromFloat(vega),
		Rho:   decimal.NewFromFloat(rho),
	}, nil
}

// normCdf 标准正态分布累积分布函数
func normCdf(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// normPdf 标准正态分布概率密度函数
func normPdf(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
