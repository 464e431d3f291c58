package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
	"github.com/wyfcoding/optionpricer/pkg/cache"
)

type memStore struct {
	data map[string][]byte
	ttl  map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (m *memStore) GetJSON(_ context.Context, key string, dest any) error {
	b, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *memStore) SetJSON(_ context.Context, key string, value any, exp time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	m.ttl[key] = exp
	return nil
}

func TestResultCache(t *testing.T) {
	store := newMemStore()
	c := NewResultCache(store, 0)
	ctx := context.Background()

	got, err := c.Get(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("miss should be nil, nil: got=%v err=%v", got, err)
	}

	res := &domain.PricingResult{
		Kind:        domain.PayoffArithmeticCall,
		OptionPrice: decimal.RequireFromString("5.7712"),
		Seed:        7,
		Seeded:      true,
	}
	if err := c.Set(ctx, "k", res); err != nil {
		t.Fatalf("set: %v", err)
	}
	if store.ttl["pricing_result:k"] != defaultResultTTL {
		t.Fatalf("ttl=%v", store.ttl["pricing_result:k"])
	}

	got, err = c.Get(ctx, "k")
	if err != nil || got == nil {
		t.Fatalf("hit expected: got=%v err=%v", got, err)
	}
	if !got.OptionPrice.Equal(res.OptionPrice) || got.Kind != res.Kind || got.Seed != 7 {
		t.Fatalf("unexpected cached result: %+v", got)
	}
}
