package domain

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

type randSource struct {
	r *rand.Rand
}

func (s *randSource) NextStandardNormal() (float64, error) {
	return s.r.NormFloat64(), nil
}

func seededFactory(seed int64) SourceFactory {
	return func(stream int) GaussianSource {
		return &randSource{r: rand.New(rand.NewSource(seed + int64(stream)*67890))}
	}
}

// failingSource 在返回 limit 个样本后失败
type failingSource struct {
	limit int
	drawn int
	err   error
}

func (s *failingSource) NextStandardNormal() (float64, error) {
	if s.drawn >= s.limit {
		return 0, s.err
	}
	s.drawn++
	return 0.1, nil
}

var errBrokenSource = errors.New("broken source")

func mustContract(t *testing.T, p ContractParams) *OptionContract {
	t.Helper()
	c, err := NewOptionContract(p)
	if err != nil {
		t.Fatalf("NewOptionContract(%+v): %v", p, err)
	}
	return c
}

func atmParams() ContractParams {
	return ContractParams{
		StepCount:    252,
		Strike:       100,
		Spot:         100,
		Volatility:   0.2,
		RiskFreeRate: 0.05,
		Expiry:       1,
		Barrier:      120,
	}
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
