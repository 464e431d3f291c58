package domain

// GaussianSource 标准正态随机数源
// 每次调用返回一个独立同分布的 N(0,1) 样本，确定性回放模式下可能失败
type GaussianSource interface {
	NextStandardNormal() (float64, error)
}

// SourceFactory 按流编号创建相互独立的随机数源
// 流 0 用于单线程定价，并行定价时每个 worker 使用自己的流
type SourceFactory func(stream int) GaussianSource
