// Package random 提供定价引擎使用的标准正态随机数源
package random

import (
	"fmt"
	"sync"

	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// streamStride 相邻流之间的种子间隔
const streamStride = 67890

// NormalSource 基于 gonum distuv.Normal 的标准正态随机数源
// 非并发安全，每个 worker 应持有自己的实例
type NormalSource struct {
	dist distuv.Normal
}

// NewNormalSource 使用给定种子创建随机数源
func NewNormalSource(seed uint64) *NormalSource {
	return &NormalSource{
		dist: distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)},
	}
}

// NextStandardNormal 返回一个 N(0,1) 样本
func (s *NormalSource) NextStandardNormal() (float64, error) {
	return s.dist.Rand(), nil
}

// StreamSeed 第 stream 条流的种子
func StreamSeed(seed uint64, stream int) uint64 {
	return seed + uint64(stream)*streamStride
}

// NewFactory 返回按流派生种子的随机数源工厂
// 相同种子与相同 worker 数得到相同的定价结果
func NewFactory(seed uint64) domain.SourceFactory {
	return func(stream int) domain.GaussianSource {
		return NewNormalSource(StreamSeed(seed, stream))
	}
}

// LockedSource 可在多个 goroutine 间共享的随机数源
// 共享源的抽样顺序取决于调度，结果不可复现
type LockedSource struct {
	mu  sync.Mutex
	src domain.GaussianSource
}

// NewLockedSource 包装一个随机数源使其并发安全
func NewLockedSource(src domain.GaussianSource) *LockedSource {
	return &LockedSource{src: src}
}

func (s *LockedSource) NextStandardNormal() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.NextStandardNormal()
}

// NewSharedFactory 所有流共用同一个加锁随机数源
func NewSharedFactory(seed uint64) domain.SourceFactory {
	shared := NewLockedSource(NewNormalSource(seed))
	return func(int) domain.GaussianSource {
		return shared
	}
}

// Mode 随机数流模式
type Mode string

const (
	ModePerWorker Mode = "per_worker" // 每个 worker 独立种子流，可复现
	ModeShared    Mode = "shared"     // 共享加锁流，不可复现
)

// FactoryFor 按模式创建工厂
func FactoryFor(mode Mode, seed uint64) (domain.SourceFactory, error) {
	switch mode {
	case "", ModePerWorker:
		return NewFactory(seed), nil
	case ModeShared:
		return NewSharedFactory(seed), nil
	default:
		return nil, fmt.Errorf("unknown random stream mode %q", mode)
	}
}
