package domain

import (
	"math"
)

// Path 一条离散化的标的价格路径，长度等于合约步数
type Path []float64

// SimulatePath 使用对数欧拉离散化模拟一条几何布朗运动路径
// buf 会被原地覆盖，容量不足时重新分配；返回的路径与 buf 共享底层数组
func SimulatePath(c *OptionContract, src GaussianSource, buf Path) (Path, error) {
	n := c.StepCount()
	if cap(buf) < n {
		buf = make(Path, n)
	}
	buf = buf[:n]

	drift := c.DriftPerStep()
	diffusion := c.DiffusionPerStep()
	spot := c.Spot()

	cumShocks := 0.0
	for i := 0; i < n; i++ {
		z, err := src.NextStandardNormal()
		if err != nil {
			return buf, &SourceError{Err: err}
		}
		cumShocks += drift + diffusion*z
		buf[i] = spot * math.Exp(cumShocks)
	}
	return buf, nil
}

// ArithmeticMean 算术平均
func (p Path) ArithmeticMean() float64 {
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	return sum / float64(len(p))
}

// GeometricMean 几何平均，要求所有价格为正
func (p Path) GeometricMean() float64 {
	sum := 0.0
	for _, v := range p {
		sum += math.Log(v)
	}
	return math.Exp(sum / float64(len(p)))
}

// Max 路径最大值
func (p Path) Max() float64 {
	m := math.Inf(-1)
	for _, v := range p {
		if v > m {
			m = v
		}
	}
	return m
}

// Terminal 到期价格，即最后一个模拟价格
func (p Path) Terminal() float64 {
	return p[len(p)-1]
}
