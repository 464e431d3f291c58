package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
)

// PricingResultModel 定价结果数据库模型
type PricingResultModel struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
	ContractKey  string    `gorm:"column:contract_key;type:char(64);index:idx_contract_calc,priority:1;not null"`
	Kind         string    `gorm:"column:kind;type:varchar(32);not null"`
	StepCount    int       `gorm:"column:step_count;not null"`
	Strike       float64   `gorm:"column:strike;not null"`
	Spot         float64   `gorm:"column:spot;not null"`
	Volatility   float64   `gorm:"column:volatility;not null"`
	RiskFreeRate float64   `gorm:"column:risk_free_rate;not null"`
	Expiry       float64   `gorm:"column:expiry;not null"`
	Barrier      float64   `gorm:"column:barrier"`
	OptionPrice  string    `gorm:"column:option_price;type:decimal(32,18);not null"`
	StdError     string    `gorm:"column:std_error;type:decimal(32,18);not null"`
	Benchmark    *string   `gorm:"column:benchmark;type:decimal(32,18)"`
	Replications int       `gorm:"column:replications;not null"`
	Workers      int       `gorm:"column:workers;not null"`
	Seed         uint64    `gorm:"column:seed;type:bigint unsigned"`
	Seeded       bool      `gorm:"column:seeded"`
	ElapsedMs    int64     `gorm:"column:elapsed_ms"`
	CalculatedAt int64     `gorm:"column:calculated_at;type:bigint;index:idx_contract_calc,priority:2;not null"`
	PricingModel string    `gorm:"column:pricing_model;type:varchar(32)"`
}

func (PricingResultModel) TableName() string { return "pricing_results" }

func toPricingResultModel(res *domain.PricingResult) *PricingResultModel {
	if res == nil {
		return nil
	}
	m := &PricingResultModel{
		ID:           res.ID,
		CreatedAt:    res.CreatedAt,
		UpdatedAt:    res.UpdatedAt,
		ContractKey:  res.ContractKey,
		Kind:         string(res.Kind),
		StepCount:    res.Params.StepCount,
		Strike:       res.Params.Strike,
		Spot:         res.Params.Spot,
		Volatility:   res.Params.Volatility,
		RiskFreeRate: res.Params.RiskFreeRate,
		Expiry:       res.Params.Expiry,
		Barrier:      res.Params.Barrier,
		OptionPrice:  res.OptionPrice.String(),
		StdError:     res.StdError.String(),
		Replications: res.Replications,
		Workers:      res.Workers,
		Seed:         res.Seed,
		Seeded:       res.Seeded,
		ElapsedMs:    res.ElapsedMs,
		CalculatedAt: res.CalculatedAt,
		PricingModel: res.PricingModel,
	}
	if res.Benchmark.Valid {
		s := res.Benchmark.Decimal.String()
		m.Benchmark = &s
	}
	return m
}

func toPricingResult(m *PricingResultModel) *domain.PricingResult {
	if m == nil {
		return nil
	}
	price, _ := decimal.NewFromString(m.OptionPrice)
	stdErr, _ := decimal.NewFromString(m.StdError)

	res := &domain.PricingResult{
		ID:          m.ID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		ContractKey: m.ContractKey,
		Kind:        domain.PayoffKind(m.Kind),
		Params: domain.ContractParams{
			StepCount:    m.StepCount,
			Strike:       m.Strike,
			Spot:         m.Spot,
			Volatility:   m.Volatility,
			RiskFreeRate: m.RiskFreeRate,
			Expiry:       m.Expiry,
			Barrier:      m.Barrier,
		},
		OptionPrice:  price,
		StdError:     stdErr,
		Replications: m.Replications,
		Workers:      m.Workers,
		Seed:         m.Seed,
		Seeded:       m.Seeded,
		ElapsedMs:    m.ElapsedMs,
		CalculatedAt: m.CalculatedAt,
		PricingModel: m.PricingModel,
	}
	if m.Benchmark != nil {
		if b, err := decimal.NewFromString(*m.Benchmark); err == nil {
			res.Benchmark = decimal.NewNullDecimal(b)
		}
	}
	return res
}
