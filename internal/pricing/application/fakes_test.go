package application

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
	"github.com/wyfcoding/optionpricer/internal/pricing/infrastructure/random"
)

type memRepo struct {
	mu    sync.Mutex
	saved []*domain.PricingResult
}

func (r *memRepo) Save(_ context.Context, res *domain.PricingResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res.ID = uint(len(r.saved) + 1)
	r.saved = append(r.saved, res)
	return nil
}

func (r *memRepo) GetLatest(ctx context.Context, key string) (*domain.PricingResult, error) {
	h, _ := r.GetHistory(ctx, key, 1)
	if len(h) == 0 {
		return nil, nil
	}
	return h[0], nil
}

func (r *memRepo) GetHistory(_ context.Context, key string, limit int) ([]*domain.PricingResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PricingResult
	for _, res := range r.saved {
		if res.ContractKey == key {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string]*domain.PricingResult
}

func (c *memCache) Get(_ context.Context, key string) (*domain.PricingResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *memCache) Set(_ context.Context, key string, res *domain.PricingResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]*domain.PricingResult{}
	}
	c.data[key] = res
	return nil
}

type memPublisher struct {
	mu      sync.Mutex
	priced  []domain.OptionPricedEvent
	errors  []domain.PricingErrorEvent
	batches []domain.BatchPricingCompletedEvent
}

func (p *memPublisher) PublishOptionPriced(_ context.Context, e domain.OptionPricedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.priced = append(p.priced, e)
	return nil
}

func (p *memPublisher) PublishPricingError(_ context.Context, e domain.PricingErrorEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, e)
	return nil
}

func (p *memPublisher) PublishBatchPricingCompleted(_ context.Context, e domain.BatchPricingCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, e)
	return nil
}

type memMetrics struct {
	mu       sync.Mutex
	priced   map[string]int
	codes    map[string]int
	hits     int
	misses   int
	inFlight int
}

func newMemMetrics() *memMetrics {
	return &memMetrics{priced: map[string]int{}, codes: map[string]int{}}
}

func (m *memMetrics) RecordHTTPRequest(string, string, int, float64) {}

func (m *memMetrics) RecordPricing(kind string, _ int, _ float64, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code != "" {
		m.codes[code]++
		return
	}
	m.priced[kind]++
}

func (m *memMetrics) RecordCacheLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *memMetrics) TrackInFlight() func() {
	m.mu.Lock()
	m.inFlight++
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}
}

type fixture struct {
	svc       *PricingService
	repo      *memRepo
	cache     *memCache
	publisher *memPublisher
	metrics   *memMetrics
}

func testSettings() Settings {
	return Settings{
		Workers:             4,
		DefaultReplications: 1000,
		MaxReplications:     100000,
		MaxSteps:            1000,
		CheckpointInterval:  64,
		Reproducible:        true,
	}
}

func perWorkerFactories(seed uint64) (domain.SourceFactory, error) {
	return random.NewFactory(seed), nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      &memRepo{},
		cache:     &memCache{},
		publisher: &memPublisher{},
		metrics:   newMemMetrics(),
	}
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f.svc = NewPricingService(testSettings(), perWorkerFactories,
		WithRepository(f.repo),
		WithCache(f.cache),
		WithPublisher(f.publisher),
		WithMetrics(f.metrics),
		WithClock(func() time.Time { return clock }),
	)
	return f
}

func seedPtr(s uint64) *uint64 { return &s }

func smallParams() domain.ContractParams {
	return domain.ContractParams{
		StepCount:    12,
		Strike:       100,
		Spot:         100,
		Volatility:   0.2,
		RiskFreeRate: 0.05,
		Expiry:       1,
		Barrier:      110,
	}
}
