package application

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestPriceOption_ZeroVolatilityIsExact(t *testing.T) {
	f := newFixture(t)
	p := domain.ContractParams{StepCount: 4, Strike: 90, Spot: 100, Volatility: 0, RiskFreeRate: 0.05, Expiry: 1}

	res, err := f.svc.PriceOption(context.Background(), PriceOptionCommand{
		Kind:         domain.PayoffArithmeticCall,
		Params:       p,
		Replications: 50,
		Seed:         seedPtr(1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dt := p.Expiry / float64(p.StepCount)
	mean := 0.0
	for i := 1; i <= p.StepCount; i++ {
		mean += p.Spot * math.Exp(p.RiskFreeRate*dt*float64(i))
	}
	mean /= float64(p.StepCount)
	want := math.Exp(-p.RiskFreeRate*p.Expiry) * (mean - p.Strike)

	if got := res.OptionPrice.InexactFloat64(); !almostEqual(got, want, 1e-9) {
		t.Fatalf("price=%v want=%v", got, want)
	}
	if !res.StdError.IsZero() {
		t.Fatalf("std error=%v want=0", res.StdError)
	}
	if res.ContractKey != domain.ContractKey(domain.PayoffArithmeticCall, p) || !res.Seeded || res.Seed != 1 {
		t.Fatalf("unexpected result metadata: %+v", res)
	}
	if res.Benchmark.Valid {
		t.Fatalf("asian kinds carry no closed-form benchmark")
	}
	if len(f.repo.saved) != 1 || len(f.publisher.priced) != 1 || f.metrics.priced[string(domain.PayoffArithmeticCall)] != 1 {
		t.Fatalf("side effects: saved=%d events=%d metrics=%v", len(f.repo.saved), len(f.publisher.priced), f.metrics.priced)
	}
	if f.metrics.inFlight != 0 {
		t.Fatalf("in-flight gauge not released: %d", f.metrics.inFlight)
	}
}

func TestPriceOption_SeededResultsAreCached(t *testing.T) {
	f := newFixture(t)
	cmd := PriceOptionCommand{Kind: domain.PayoffGeometricPut, Params: smallParams(), Replications: 2000, Seed: seedPtr(99)}

	first, err := f.svc.PriceOption(context.Background(), cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.PriceOption(context.Background(), cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !first.OptionPrice.Equal(second.OptionPrice) {
		t.Fatalf("cached price differs: %v vs %v", first.OptionPrice, second.OptionPrice)
	}
	if f.metrics.misses != 1 || f.metrics.hits != 1 {
		t.Fatalf("cache lookups: hits=%d misses=%d", f.metrics.hits, f.metrics.misses)
	}
	if len(f.repo.saved) != 1 {
		t.Fatalf("cache hit must not persist again, saved=%d", len(f.repo.saved))
	}
}

func TestPriceOption_UnseededIsNotCached(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.PriceOption(context.Background(), PriceOptionCommand{Kind: domain.PayoffArithmeticPut, Params: smallParams(), Replications: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Seeded || len(f.cache.data) != 0 || f.metrics.hits+f.metrics.misses != 0 {
		t.Fatalf("unseeded result must bypass cache: seeded=%v cache=%d", res.Seeded, len(f.cache.data))
	}
}

func TestPriceOption_SharedStreamsBypassCache(t *testing.T) {
	s := testSettings()
	s.Reproducible = false
	c := &memCache{}
	svc := NewPricingService(s, perWorkerFactories, WithCache(c))

	if _, err := svc.PriceOption(context.Background(), PriceOptionCommand{Kind: domain.PayoffArithmeticCall, Params: smallParams(), Replications: 100, Seed: seedPtr(3)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.data) != 0 {
		t.Fatalf("non-reproducible streams must not be cached")
	}
}

func TestPriceByCode_MatchesDirectKind(t *testing.T) {
	f := newFixture(t)
	p := smallParams()

	byCode, err := f.svc.PriceByCode(context.Background(), PriceByCodeCommand{Averaging: "A", Option: "C", Params: p, Replications: 3000, Seed: seedPtr(5), Workers: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	direct, err := NewPricingService(testSettings(), perWorkerFactories).PriceOption(context.Background(), PriceOptionCommand{
		Kind: domain.PayoffArithmeticCall, Params: p, Replications: 3000, Seed: seedPtr(5), Workers: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byCode.Kind != domain.PayoffArithmeticCall || !byCode.OptionPrice.Equal(direct.OptionPrice) {
		t.Fatalf("by code=%v (%s) direct=%v", byCode.OptionPrice, byCode.Kind, direct.OptionPrice)
	}
}

func TestPriceByCode_InvalidSelector(t *testing.T) {
	f := newFixture(t)
	tests := []struct{ averaging, option string }{
		{"X", "Y"},
		{"A", ""},
		{"AG", "C"},
	}
	for _, tt := range tests {
		_, err := f.svc.PriceByCode(context.Background(), PriceByCodeCommand{Averaging: tt.averaging, Option: tt.option, Params: smallParams()})
		if !errors.Is(err, domain.ErrInvalidSelector) {
			t.Fatalf("(%q,%q): expected ErrInvalidSelector, got %v", tt.averaging, tt.option, err)
		}
	}
	if len(f.publisher.errors) != len(tests) || f.publisher.errors[0].ErrorCode != domain.ErrorCodeInvalidSelector {
		t.Fatalf("error events: %+v", f.publisher.errors)
	}
	if f.metrics.codes[domain.ErrorCodeInvalidSelector] != len(tests) {
		t.Fatalf("error metrics: %v", f.metrics.codes)
	}
}

func TestPriceUpAndInCall_DefaultsToThousandReplications(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.PriceUpAndInCall(context.Background(), UpAndInCallCommand{
		StepCount: 50, Strike: 100, Spot: 100, Volatility: 0.3, RiskFreeRate: 0.05, Expiry: 1, Barrier: 120, Seed: seedPtr(8),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != domain.PayoffUpAndInCall || res.Replications != DefaultUpAndInReplications {
		t.Fatalf("kind=%s replications=%d", res.Kind, res.Replications)
	}
	if res.Params.Barrier != 120 || res.OptionPrice.IsNegative() {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPriceUpAndInCall_BarrierAtZeroEqualsEuropeanCall(t *testing.T) {
	svc := NewPricingService(testSettings(), perWorkerFactories)
	p := smallParams()
	p.Barrier = 0

	upIn, err := svc.PriceUpAndInCall(context.Background(), UpAndInCallCommand{
		StepCount: p.StepCount, Strike: p.Strike, Spot: p.Spot, Volatility: p.Volatility,
		RiskFreeRate: p.RiskFreeRate, Expiry: p.Expiry, Barrier: 0, NReplications: 4000, Seed: seedPtr(21), Workers: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	euro, err := svc.PriceOption(context.Background(), PriceOptionCommand{Kind: domain.PayoffEuropeanCall, Params: p, Replications: 4000, Seed: seedPtr(21), Workers: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !upIn.OptionPrice.Equal(euro.OptionPrice) {
		t.Fatalf("up-and-in=%v european=%v", upIn.OptionPrice, euro.OptionPrice)
	}
	if !euro.Benchmark.Valid {
		t.Fatalf("european call must carry the closed-form benchmark")
	}
}

func TestPriceOption_InvalidParameters(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		cmd  PriceOptionCommand
	}{
		{"unknown kind", PriceOptionCommand{Kind: "LOOKBACK", Params: smallParams()}},
		{"too many replications", PriceOptionCommand{Kind: domain.PayoffArithmeticCall, Params: smallParams(), Replications: 100001}},
		{"negative replications", PriceOptionCommand{Kind: domain.PayoffArithmeticCall, Params: smallParams(), Replications: -1}},
		{"negative workers", PriceOptionCommand{Kind: domain.PayoffArithmeticCall, Params: smallParams(), Workers: -2}},
		{"too many steps", PriceOptionCommand{Kind: domain.PayoffArithmeticCall, Params: domain.ContractParams{StepCount: 1001, Strike: 1, Spot: 1, Expiry: 1}}},
		{"zero steps", PriceOptionCommand{Kind: domain.PayoffArithmeticCall, Params: domain.ContractParams{StepCount: 0, Strike: 1, Spot: 1, Expiry: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.PriceOption(context.Background(), tt.cmd); !errors.Is(err, domain.ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestPriceOption_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.PriceOption(ctx, PriceOptionCommand{Kind: domain.PayoffArithmeticCall, Params: smallParams(), Replications: 1000, Seed: seedPtr(1)})
	var cancelled *domain.CancelledError
	if !errors.As(err, &cancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected CancelledError wrapping context.Canceled, got %v", err)
	}
	if len(f.publisher.errors) != 1 || f.publisher.errors[0].ErrorCode != domain.ErrorCodeCancelled {
		t.Fatalf("error events: %+v", f.publisher.errors)
	}
	if len(f.repo.saved) != 0 || len(f.cache.data) != 0 {
		t.Fatalf("cancelled pricing must not produce a result")
	}
}

func TestBatchPrice(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.BatchPrice(context.Background(), BatchPriceCommand{
		Contracts: []PriceOptionCommand{
			{Kind: domain.PayoffArithmeticCall, Params: smallParams(), Replications: 500, Seed: seedPtr(1)},
			{Kind: domain.PayoffGeometricCall, Params: domain.ContractParams{StepCount: 12, Strike: 100, Spot: -1, Expiry: 1}},
			{Kind: domain.PayoffEuropeanPut, Params: smallParams(), Replications: 500, Seed: seedPtr(2)},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BatchID == "" || res.SuccessCount != 2 || res.FailureCount != 1 {
		t.Fatalf("unexpected batch: %+v", res)
	}
	if res.Failures[0].Index != 1 || res.Failures[0].ErrorCode != domain.ErrorCodeInvalidParameter {
		t.Fatalf("unexpected failure: %+v", res.Failures[0])
	}
	if len(f.publisher.batches) != 1 || f.publisher.batches[0].BatchID != res.BatchID {
		t.Fatalf("batch events: %+v", f.publisher.batches)
	}

	if _, err := f.svc.BatchPrice(context.Background(), BatchPriceCommand{}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("empty batch: expected ErrInvalidParameter, got %v", err)
	}
}

func TestAnalyzeConvergence_SpreadShrinks(t *testing.T) {
	svc := NewPricingService(testSettings(), perWorkerFactories)
	report, err := svc.AnalyzeConvergence(context.Background(), ConvergenceCommand{
		Kind:              domain.PayoffArithmeticCall,
		Params:            smallParams(),
		ReplicationCounts: []int{200, 3200},
		Runs:              12,
		Seed:              seedPtr(17),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Points) != 2 {
		t.Fatalf("points=%d", len(report.Points))
	}
	lo, hi := report.Points[0], report.Points[1]
	if hi.Spread >= lo.Spread || !report.Monotone {
		t.Fatalf("spread did not shrink: %v -> %v", lo.Spread, hi.Spread)
	}
	if hi.MeanStdError >= lo.MeanStdError {
		t.Fatalf("reported std error did not shrink: %v -> %v", lo.MeanStdError, hi.MeanStdError)
	}
	if !almostEqual(lo.MeanPrice, hi.MeanPrice, 4*lo.Spread) {
		t.Fatalf("means disagree: %v vs %v", lo.MeanPrice, hi.MeanPrice)
	}
}

func TestAnalyzeConvergence_RejectsBadRuns(t *testing.T) {
	svc := NewPricingService(testSettings(), perWorkerFactories)
	_, err := svc.AnalyzeConvergence(context.Background(), ConvergenceCommand{Kind: domain.PayoffArithmeticCall, Params: smallParams(), Runs: 1})
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestSimulatePath(t *testing.T) {
	svc := NewPricingService(testSettings(), perWorkerFactories)
	p := domain.ContractParams{StepCount: 5, Strike: 100, Spot: 100, Volatility: 0, RiskFreeRate: 0, Expiry: 1, Barrier: 150}

	report, err := svc.SimulatePath(context.Background(), SimulatePathCommand{Params: p, Seed: seedPtr(4)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Path) != 5 || report.Seed != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for i, v := range report.Path {
		if !almostEqual(v, 100, 1e-12) {
			t.Fatalf("path[%d]=%v want 100", i, v)
		}
	}
	if report.Payoffs[domain.PayoffArithmeticCall] != 0 || report.Payoffs[domain.PayoffUpAndInCall] != 0 {
		t.Fatalf("flat path at the strike pays nothing: %v", report.Payoffs)
	}
	if len(report.Payoffs) != len(domain.PayoffKinds()) {
		t.Fatalf("payoffs=%v", report.Payoffs)
	}
}

func TestQuery(t *testing.T) {
	if _, err := NewPricingService(testSettings(), perWorkerFactories).GetLatest(context.Background(), "k"); !errors.Is(err, ErrHistoryUnavailable) {
		t.Fatalf("expected ErrHistoryUnavailable, got %v", err)
	}

	f := newFixture(t)
	if _, err := f.svc.GetLatest(context.Background(), "missing"); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}

	p := smallParams()
	for _, seed := range []uint64{1, 2, 3} {
		if _, err := f.svc.PriceOption(context.Background(), PriceOptionCommand{Kind: domain.PayoffArithmeticCall, Params: p, Replications: 100, Seed: seedPtr(seed)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	key := domain.ContractKey(domain.PayoffArithmeticCall, p)

	latest, err := f.svc.GetLatest(context.Background(), key)
	if err != nil || latest.Seed != 3 {
		t.Fatalf("latest=%+v err=%v", latest, err)
	}
	history, err := f.svc.GetHistory(context.Background(), key, 2)
	if err != nil || len(history) != 2 {
		t.Fatalf("history=%d err=%v", len(history), err)
	}
}

func TestBatchPrice_RejectsOversizeBatch(t *testing.T) {
	settings := testSettings()
	settings.MaxBatchSize = 3
	f := newFixture(t)
	svc := NewPricingService(settings, perWorkerFactories, WithMetrics(f.metrics))

	contracts := make([]PriceOptionCommand, 4)
	for i := range contracts {
		contracts[i] = PriceOptionCommand{Kind: domain.PayoffEuropeanCall, Params: smallParams(), Replications: 100, Seed: seedPtr(uint64(i))}
	}
	_, err := svc.BatchPrice(context.Background(), BatchPriceCommand{Contracts: contracts})
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if len(f.metrics.priced) != 0 {
		t.Fatalf("oversize batch must be rejected before pricing: %v", f.metrics.priced)
	}

	res, err := svc.BatchPrice(context.Background(), BatchPriceCommand{Contracts: contracts[:3]})
	if err != nil || res.SuccessCount != 3 {
		t.Fatalf("batch at the limit: res=%+v err=%v", res, err)
	}
}

func TestAnalyzeConvergence_RejectsTooManyCounts(t *testing.T) {
	settings := testSettings()
	settings.MaxConvergenceCounts = 4
	calls := 0
	svc := NewPricingService(settings, func(seed uint64) (domain.SourceFactory, error) {
		calls++
		return perWorkerFactories(seed)
	})

	counts := make([]int, 2000)
	for i := range counts {
		counts[i] = 100
	}
	_, err := svc.AnalyzeConvergence(context.Background(), ConvergenceCommand{
		Kind:              domain.PayoffArithmeticCall,
		Params:            smallParams(),
		ReplicationCounts: counts,
		Runs:              200,
		Seed:              seedPtr(5),
	})
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("oversize convergence request must not simulate, factory calls=%d", calls)
	}
}

func TestSettings_DefaultRequestLimits(t *testing.T) {
	s := Settings{}.withDefaults()
	if s.MaxBatchSize != defaultMaxBatchSize || s.MaxConvergenceCounts != defaultMaxConvergenceCounts {
		t.Fatalf("unexpected limits: batch=%d counts=%d", s.MaxBatchSize, s.MaxConvergenceCounts)
	}
	if len(defaultConvergenceCounts) > s.MaxConvergenceCounts {
		t.Fatalf("default counts exceed the default limit")
	}
}
