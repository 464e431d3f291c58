package random

import (
	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
)

// ReplaySource 按顺序回放预先给定的样本，耗尽后返回 domain.ErrSourceExhausted
type ReplaySource struct {
	draws []float64
	next  int
}

// NewReplaySource 创建回放随机数源
func NewReplaySource(draws []float64) *ReplaySource {
	return &ReplaySource{draws: draws}
}

func (s *ReplaySource) NextStandardNormal() (float64, error) {
	if s.next >= len(s.draws) {
		return 0, domain.ErrSourceExhausted
	}
	z := s.draws[s.next]
	s.next++
	return z, nil
}

// Remaining 剩余可回放样本数
func (s *ReplaySource) Remaining() int {
	return len(s.draws) - s.next
}

// NewReplayFactory 每条流回放同一份样本的独立副本
func NewReplayFactory(draws []float64) domain.SourceFactory {
	return func(int) domain.GaussianSource {
		return NewReplaySource(draws)
	}
}

// Record 从随机数源抽取 n 个样本，用于之后回放
func Record(src domain.GaussianSource, n int) ([]float64, error) {
	draws := make([]float64, n)
	for i := range draws {
		z, err := src.NextStandardNormal()
		if err != nil {
			return nil, err
		}
		draws[i] = z
	}
	return draws, nil
}
