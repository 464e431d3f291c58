package domain

import (
	"fmt"
	"strings"
)

// PayoffKind 收益类型
type PayoffKind string

const (
	PayoffArithmeticCall PayoffKind = "ARITHMETIC_CALL" // 算术平均看涨
	PayoffArithmeticPut  PayoffKind = "ARITHMETIC_PUT"  // 算术平均看跌
	PayoffGeometricCall  PayoffKind = "GEOMETRIC_CALL"  // 几何平均看涨
	PayoffGeometricPut   PayoffKind = "GEOMETRIC_PUT"   // 几何平均看跌
	PayoffUpAndInCall    PayoffKind = "UP_AND_IN_CALL"  // 向上敲入看涨
	PayoffEuropeanCall   PayoffKind = "EUROPEAN_CALL"   // 普通欧式看涨 (到期价格)
	PayoffEuropeanPut    PayoffKind = "EUROPEAN_PUT"    // 普通欧式看跌 (到期价格)
)

// payoffFunc 读取路径统计量并计算单条路径的收益
type payoffFunc func(c *OptionContract, p Path) float64

var payoffs = map[PayoffKind]payoffFunc{
	PayoffArithmeticCall: func(c *OptionContract, p Path) float64 {
		return callPayoff(p.ArithmeticMean(), c.Strike())
	},
	PayoffArithmeticPut: func(c *OptionContract, p Path) float64 {
		return putPayoff(p.ArithmeticMean(), c.Strike())
	},
	PayoffGeometricCall: func(c *OptionContract, p Path) float64 {
		return callPayoff(p.GeometricMean(), c.Strike())
	},
	PayoffGeometricPut: func(c *OptionContract, p Path) float64 {
		return putPayoff(p.GeometricMean(), c.Strike())
	},
	PayoffUpAndInCall: func(c *OptionContract, p Path) float64 {
		last := p.Terminal()
		if last > c.Strike() && p.Max() > c.Barrier() {
			return last - c.Strike()
		}
		return 0
	},
	PayoffEuropeanCall: func(c *OptionContract, p Path) float64 {
		return callPayoff(p.Terminal(), c.Strike())
	},
	PayoffEuropeanPut: func(c *OptionContract, p Path) float64 {
		return putPayoff(p.Terminal(), c.Strike())
	},
}

func callPayoff(underlying, strike float64) float64 {
	if underlying > strike {
		return underlying - strike
	}
	return 0
}

func putPayoff(underlying, strike float64) float64 {
	if underlying < strike {
		return strike - underlying
	}
	return 0
}

// Valid 是否为已知收益类型
func (k PayoffKind) Valid() bool {
	_, ok := payoffs[k]
	return ok
}

// Payoff 计算给定路径下的收益
func (k PayoffKind) Payoff(c *OptionContract, p Path) (float64, error) {
	fn, ok := payoffs[k]
	if !ok {
		return 0, fmt.Errorf("%w: unknown payoff kind %q", ErrInvalidParameter, k)
	}
	return fn(c, p), nil
}

// ParsePayoffKind 解析收益类型，忽略大小写，允许用 '-' 代替 '_'
func ParsePayoffKind(s string) (PayoffKind, error) {
	k := PayoffKind(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown payoff kind %q", ErrInvalidParameter, s)
	}
	return k, nil
}

// PayoffKinds 返回全部收益类型
func PayoffKinds() []PayoffKind {
	return []PayoffKind{
		PayoffArithmeticCall,
		PayoffArithmeticPut,
		PayoffGeometricCall,
		PayoffGeometricPut,
		PayoffUpAndInCall,
		PayoffEuropeanCall,
		PayoffEuropeanPut,
	}
}
