package application

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
	"github.com/wyfcoding/optionpricer/pkg/metrics"
)

var (
	ErrResultNotFound     = errors.New("pricing result not found")
	ErrHistoryUnavailable = errors.New("pricing history is not configured")
)

// FactoryProvider 按种子创建随机数源工厂
type FactoryProvider func(seed uint64) (domain.SourceFactory, error)

// Settings 定价服务参数
type Settings struct {
	Workers             int // 0 表示 CPU 核数
	DefaultReplications int
	MaxReplications     int
	MaxSteps            int
	CheckpointInterval  int
	// 单个批量请求的合约数上限
	MaxBatchSize int
	// 收敛分析的模拟次数档位上限
	MaxConvergenceCounts int
	// 相同种子与 worker 数是否产生相同结果，决定能否缓存
	Reproducible bool
}

func (s Settings) withDefaults() Settings {
	if s.Workers <= 0 {
		s.Workers = runtime.NumCPU()
	}
	if s.DefaultReplications <= 0 {
		s.DefaultReplications = DefaultUpAndInReplications
	}
	if s.MaxReplications < s.DefaultReplications {
		s.MaxReplications = s.DefaultReplications
	}
	if s.MaxSteps <= 0 {
		s.MaxSteps = 10000
	}
	if s.MaxBatchSize <= 0 {
		s.MaxBatchSize = defaultMaxBatchSize
	}
	if s.MaxConvergenceCounts <= 0 {
		s.MaxConvergenceCounts = defaultMaxConvergenceCounts
	}
	return s
}

// Option 可选依赖
type Option func(*deps)

type deps struct {
	repo      domain.PricingRepository
	cache     domain.ResultCache
	publisher domain.EventPublisher
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// WithRepository 持久化定价历史
func WithRepository(repo domain.PricingRepository) Option {
	return func(d *deps) { d.repo = repo }
}

// WithCache 缓存种子确定的结果
func WithCache(cache domain.ResultCache) Option {
	return func(d *deps) { d.cache = cache }
}

// WithPublisher 发布定价事件
func WithPublisher(p domain.EventPublisher) Option {
	return func(d *deps) { d.publisher = p }
}

// WithMetrics 记录定价指标
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(d *deps) { d.metrics = m }
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// PricingService 定价门面服务。
type PricingService struct {
	Command *PricingCommandService
	Query   *PricingQueryService
}

// NewPricingService 构造函数。
func NewPricingService(settings Settings, factories FactoryProvider, opts ...Option) *PricingService {
	d := &deps{now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return &PricingService{
		Command: newPricingCommandService(settings.withDefaults(), factories, d),
		Query:   NewPricingQueryService(d.repo),
	}
}

// --- Command Facade ---

func (s *PricingService) PriceOption(ctx context.Context, cmd PriceOptionCommand) (*domain.PricingResult, error) {
	return s.Command.PriceOption(ctx, cmd)
}

func (s *PricingService) PriceByCode(ctx context.Context, cmd PriceByCodeCommand) (*domain.PricingResult, error) {
	return s.Command.PriceByCode(ctx, cmd)
}

func (s *PricingService) PriceUpAndInCall(ctx context.Context, cmd UpAndInCallCommand) (*domain.PricingResult, error) {
	return s.Command.PriceUpAndInCall(ctx, cmd)
}

func (s *PricingService) BatchPrice(ctx context.Context, cmd BatchPriceCommand) (*BatchPricingResult, error) {
	return s.Command.BatchPrice(ctx, cmd)
}

func (s *PricingService) AnalyzeConvergence(ctx context.Context, cmd ConvergenceCommand) (*ConvergenceReport, error) {
	return s.Command.AnalyzeConvergence(ctx, cmd)
}

func (s *PricingService) SimulatePath(ctx context.Context, cmd SimulatePathCommand) (*PathReport, error) {
	return s.Command.SimulatePath(ctx, cmd)
}

// --- Query Facade ---

func (s *PricingService) GetLatest(ctx context.Context, contractKey string) (*domain.PricingResult, error) {
	return s.Query.GetLatest(ctx, contractKey)
}

func (s *PricingService) GetHistory(ctx context.Context, contractKey string, limit int) ([]*domain.PricingResult, error) {
	return s.Query.GetHistory(ctx, contractKey, limit)
}
