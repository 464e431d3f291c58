package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
	"github.com/wyfcoding/optionpricer/pkg/logger"
	"gonum.org/v1/gonum/stat"
)

const (
	defaultConvergenceRuns = 10
	maxConvergenceRuns     = 200
	runSeedStride          = 1_000_003

	defaultMaxBatchSize         = 100
	defaultMaxConvergenceCounts = 20
)

var defaultConvergenceCounts = []int{500, 1000, 2000, 4000, 8000}

// PricingCommandService 处理定价相关的命令操作
type PricingCommandService struct {
	settings  Settings
	factories FactoryProvider
	*deps
}

func newPricingCommandService(settings Settings, factories FactoryProvider, d *deps) *PricingCommandService {
	return &PricingCommandService{settings: settings, factories: factories, deps: d}
}

// pricingRun 一次定价的已解析参数
type pricingRun struct {
	kind         domain.PayoffKind
	contract     *domain.OptionContract
	replications int
	workers      int
	seed         uint64
	seeded       bool
}

// PriceOption 期权定价
func (c *PricingCommandService) PriceOption(ctx context.Context, cmd PriceOptionCommand) (*domain.PricingResult, error) {
	run, err := c.resolve(cmd.Kind, cmd.Params, cmd.Replications, cmd.Seed, cmd.Workers)
	if err != nil {
		c.reject(ctx, cmd.Kind, cmd.Params, err)
		return nil, err
	}
	return c.price(ctx, run)
}

// PriceByCode 通过 ('A'|'G', 'C'|'P') 代码定价
func (c *PricingCommandService) PriceByCode(ctx context.Context, cmd PriceByCodeCommand) (*domain.PricingResult, error) {
	kind, err := selectByCode(cmd.Averaging, cmd.Option)
	if err != nil {
		c.reject(ctx, "", cmd.Params, err)
		return nil, err
	}
	return c.PriceOption(ctx, PriceOptionCommand{
		Kind:         kind,
		Params:       cmd.Params,
		Replications: cmd.Replications,
		Seed:         cmd.Seed,
		Workers:      cmd.Workers,
	})
}

// PriceUpAndInCall 向上敲入看涨期权定价，模拟次数默认 1000
func (c *PricingCommandService) PriceUpAndInCall(ctx context.Context, cmd UpAndInCallCommand) (*domain.PricingResult, error) {
	reps := cmd.NReplications
	if reps == 0 {
		reps = DefaultUpAndInReplications
	}
	return c.PriceOption(ctx, PriceOptionCommand{
		Kind:         domain.PayoffUpAndInCall,
		Params:       cmd.Params(),
		Replications: reps,
		Seed:         cmd.Seed,
		Workers:      cmd.Workers,
	})
}

// BatchPrice 批量定价，单个合约失败不影响其余合约
func (c *PricingCommandService) BatchPrice(ctx context.Context, cmd BatchPriceCommand) (*BatchPricingResult, error) {
	if len(cmd.Contracts) == 0 {
		return nil, fmt.Errorf("%w: batch has no contracts", domain.ErrInvalidParameter)
	}
	if len(cmd.Contracts) > c.settings.MaxBatchSize {
		return nil, fmt.Errorf("%w: batch has %d contracts, limit is %d", domain.ErrInvalidParameter, len(cmd.Contracts), c.settings.MaxBatchSize)
	}
	batchID := cmd.BatchID
	if batchID == "" {
		batchID = uuid.New().String()
	}

	out := &BatchPricingResult{
		BatchID:  batchID,
		Results:  make([]*domain.PricingResult, 0, len(cmd.Contracts)),
		Failures: []BatchFailure{},
	}
	totalTime := 0.0

	for i, contract := range cmd.Contracts {
		start := c.now()
		result, err := c.PriceOption(ctx, contract)
		totalTime += c.now().Sub(start).Seconds()

		if err != nil {
			out.Failures = append(out.Failures, BatchFailure{
				Index:     i,
				Kind:      contract.Kind,
				ErrorCode: domain.ErrorCode(err),
				Error:     err.Error(),
			})
			continue
		}
		out.Results = append(out.Results, result)
	}

	out.SuccessCount = len(out.Results)
	out.FailureCount = len(out.Failures)
	out.AverageTime = totalTime / float64(len(cmd.Contracts))

	logger.Info(ctx, "Batch pricing completed",
		"batch_id", batchID,
		"total", len(cmd.Contracts),
		"success", out.SuccessCount,
		"failure", out.FailureCount,
	)

	if c.publisher != nil {
		now := c.now()
		if err := c.publisher.PublishBatchPricingCompleted(context.WithoutCancel(ctx), domain.BatchPricingCompletedEvent{
			BatchID:        batchID,
			TotalContracts: len(cmd.Contracts),
			SuccessCount:   out.SuccessCount,
			FailureCount:   out.FailureCount,
			AverageTime:    out.AverageTime,
			CompletedAt:    now.UnixMilli(),
			OccurredOn:     now,
		}); err != nil {
			logger.Warn(ctx, "Failed to publish batch pricing event", "batch_id", batchID, "error", err)
		}
	}

	return out, nil
}

// AnalyzeConvergence 对每个模拟次数独立重复定价，统计估计值的均值与离散程度
// 结果不持久化也不发布事件
func (c *PricingCommandService) AnalyzeConvergence(ctx context.Context, cmd ConvergenceCommand) (*ConvergenceReport, error) {
	counts := cmd.ReplicationCounts
	if len(counts) == 0 {
		counts = defaultConvergenceCounts
	}
	if len(counts) > c.settings.MaxConvergenceCounts {
		return nil, fmt.Errorf("%w: %d replication counts, limit is %d", domain.ErrInvalidParameter, len(counts), c.settings.MaxConvergenceCounts)
	}
	runs := cmd.Runs
	if runs == 0 {
		runs = defaultConvergenceRuns
	}
	if runs < 2 || runs > maxConvergenceRuns {
		return nil, fmt.Errorf("%w: runs must be in [2, %d], got %d", domain.ErrInvalidParameter, maxConvergenceRuns, runs)
	}

	first, err := c.resolve(cmd.Kind, cmd.Params, counts[0], cmd.Seed, cmd.Workers)
	if err != nil {
		return nil, err
	}
	for _, n := range counts {
		if n <= 0 || n > c.settings.MaxReplications {
			return nil, fmt.Errorf("%w: replication count %d out of range", domain.ErrInvalidParameter, n)
		}
	}

	done := logger.LogDuration(ctx, "Convergence analysis finished", "kind", first.kind, "counts", counts, "runs", runs)
	defer done()

	report := &ConvergenceReport{Kind: first.kind, Seed: first.seed, Points: make([]ConvergencePoint, 0, len(counts)), Monotone: true}
	prices := make([]float64, runs)
	stdErrs := make([]float64, runs)

	for idx, n := range counts {
		for r := 0; r < runs; r++ {
			seed := first.seed + uint64(idx*runs+r)*runSeedStride
			est, err := c.estimate(ctx, first.contract, first.kind, n, first.workers, seed)
			if err != nil {
				return nil, err
			}
			prices[r] = est.Price
			stdErrs[r] = est.StdError
		}

		mean, spread := stat.MeanStdDev(prices, nil)
		point := ConvergencePoint{
			Replications: n,
			Runs:         runs,
			MeanPrice:    mean,
			Spread:       spread,
			MeanStdError: stat.Mean(stdErrs, nil),
		}
		if len(report.Points) > 0 && point.Spread > report.Points[len(report.Points)-1].Spread {
			report.Monotone = false
		}
		report.Points = append(report.Points, point)
	}
	return report, nil
}

// SimulatePath 生成单条路径用于诊断
func (c *PricingCommandService) SimulatePath(ctx context.Context, cmd SimulatePathCommand) (*PathReport, error) {
	contract, err := c.contract(cmd.Params)
	if err != nil {
		return nil, err
	}
	seed, _ := c.seed(cmd.Seed)
	factory, err := c.factories(seed)
	if err != nil {
		return nil, err
	}

	path, err := domain.SimulatePath(contract, factory(0), nil)
	if err != nil {
		return nil, err
	}

	payoffs := make(map[domain.PayoffKind]float64, len(domain.PayoffKinds()))
	for _, kind := range domain.PayoffKinds() {
		v, err := kind.Payoff(contract, path)
		if err != nil {
			return nil, err
		}
		payoffs[kind] = v
	}

	logger.Debug(ctx, "Path simulated", "seed", seed, "steps", len(path))

	return &PathReport{
		Seed:           seed,
		Path:           path,
		ArithmeticMean: path.ArithmeticMean(),
		GeometricMean:  path.GeometricMean(),
		Max:            path.Max(),
		Terminal:       path.Terminal(),
		Payoffs:        payoffs,
	}, nil
}

// price 执行一次完整定价：缓存、引擎、持久化、事件与指标
func (c *PricingCommandService) price(ctx context.Context, run *pricingRun) (*domain.PricingResult, error) {
	params := run.contract.Params()
	contractKey := domain.ContractKey(run.kind, params)

	cacheKey := ""
	if c.cache != nil && run.seeded && c.settings.Reproducible {
		cacheKey = domain.CacheKey(contractKey, run.seed, run.replications, run.workers)
		cached, err := c.cache.Get(ctx, cacheKey)
		if err != nil {
			logger.Warn(ctx, "Result cache lookup failed", "key", cacheKey, "error", err)
		}
		if c.metrics != nil && err == nil {
			c.metrics.RecordCacheLookup(cached != nil)
		}
		if cached != nil {
			return cached, nil
		}
	}

	if c.metrics != nil {
		defer c.metrics.TrackInFlight()()
	}

	start := c.now()
	est, err := c.estimate(ctx, run.contract, run.kind, run.replications, run.workers, run.seed)
	elapsed := c.now().Sub(start)
	if err != nil {
		c.fail(ctx, run.kind, params, err)
		if c.metrics != nil {
			c.metrics.RecordPricing(string(run.kind), completedBefore(err), elapsed.Seconds(), domain.ErrorCode(err))
		}
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordPricing(string(run.kind), est.Replications, elapsed.Seconds(), "")
	}

	now := c.now()
	result := &domain.PricingResult{
		ContractKey:  contractKey,
		Kind:         run.kind,
		Params:       params,
		OptionPrice:  decimal.NewFromFloat(est.Price),
		StdError:     decimal.NewFromFloat(est.StdError),
		Replications: est.Replications,
		Workers:      est.Workers,
		Seed:         run.seed,
		Seeded:       run.seeded,
		ElapsedMs:    elapsed.Milliseconds(),
		CalculatedAt: now.UnixMilli(),
		PricingModel: domain.PricingModelMonteCarlo,
	}
	if run.kind.HasClosedForm() {
		if bs, err := domain.CalculateBlackScholes(run.kind, domain.BlackScholesInputFrom(run.contract)); err == nil {
			result.Benchmark = decimal.NewNullDecimal(bs.Price)
		}
	}

	logger.Info(ctx, "Option priced",
		"kind", run.kind,
		"contract_key", contractKey,
		"price", est.Price,
		"std_error", est.StdError,
		"replications", est.Replications,
		"workers", est.Workers,
		"seed", run.seed,
		"elapsed_ms", result.ElapsedMs,
	)

	if c.repo != nil {
		if err := c.repo.Save(ctx, result); err != nil {
			logger.Error(ctx, "Failed to save pricing result", "contract_key", contractKey, "error", err)
		}
	}
	if cacheKey != "" {
		if err := c.cache.Set(ctx, cacheKey, result); err != nil {
			logger.Warn(ctx, "Failed to cache pricing result", "key", cacheKey, "error", err)
		}
	}
	if c.publisher != nil {
		if err := c.publisher.PublishOptionPriced(ctx, domain.OptionPricedEvent{
			ContractKey:  contractKey,
			Kind:         run.kind,
			Params:       params,
			OptionPrice:  est.Price,
			StdError:     est.StdError,
			Replications: est.Replications,
			Workers:      est.Workers,
			Seed:         run.seed,
			PricingModel: result.PricingModel,
			CalculatedAt: result.CalculatedAt,
			OccurredOn:   now,
		}); err != nil {
			logger.Warn(ctx, "Failed to publish option priced event", "contract_key", contractKey, "error", err)
		}
	}

	return result, nil
}

// estimate 以指定种子运行引擎
func (c *PricingCommandService) estimate(ctx context.Context, contract *domain.OptionContract, kind domain.PayoffKind, n, workers int, seed uint64) (*domain.Estimate, error) {
	factory, err := c.factories(seed)
	if err != nil {
		return nil, err
	}
	opts := []domain.EngineOption{domain.WithWorkers(workers)}
	if c.settings.CheckpointInterval > 0 {
		opts = append(opts, domain.WithCheckpointInterval(c.settings.CheckpointInterval))
	}
	return domain.NewEngine(factory, opts...).Price(ctx, contract, kind, n)
}

// resolve 校验命令参数并补全默认值
func (c *PricingCommandService) resolve(kind domain.PayoffKind, params domain.ContractParams, reps int, seed *uint64, workers int) (*pricingRun, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown payoff kind %q", domain.ErrInvalidParameter, kind)
	}
	contract, err := c.contract(params)
	if err != nil {
		return nil, err
	}

	if reps == 0 {
		reps = c.settings.DefaultReplications
	}
	if reps < 0 || reps > c.settings.MaxReplications {
		return nil, fmt.Errorf("%w: replications must be in [1, %d], got %d", domain.ErrInvalidParameter, c.settings.MaxReplications, reps)
	}

	if workers < 0 {
		return nil, fmt.Errorf("%w: workers must not be negative, got %d", domain.ErrInvalidParameter, workers)
	}
	if workers == 0 || workers > c.settings.Workers {
		workers = c.settings.Workers
	}
	if workers > reps {
		workers = reps
	}

	s, seeded := c.seed(seed)
	return &pricingRun{
		kind:         kind,
		contract:     contract,
		replications: reps,
		workers:      workers,
		seed:         s,
		seeded:       seeded,
	}, nil
}

func (c *PricingCommandService) contract(params domain.ContractParams) (*domain.OptionContract, error) {
	if params.StepCount > c.settings.MaxSteps {
		return nil, fmt.Errorf("%w: step count must not exceed %d, got %d", domain.ErrInvalidParameter, c.settings.MaxSteps, params.StepCount)
	}
	return domain.NewOptionContract(params)
}

// seed 未指定种子时按当前时间取种
func (c *PricingCommandService) seed(seed *uint64) (uint64, bool) {
	if seed != nil {
		return *seed, true
	}
	return uint64(c.now().UnixNano()), false
}

// reject 参数校验失败，未进入引擎
func (c *PricingCommandService) reject(ctx context.Context, kind domain.PayoffKind, params domain.ContractParams, err error) {
	if c.metrics != nil {
		c.metrics.RecordPricing(string(kind), 0, 0, domain.ErrorCode(err))
	}
	c.fail(ctx, kind, params, err)
}

// fail 记录并发布定价失败
func (c *PricingCommandService) fail(ctx context.Context, kind domain.PayoffKind, params domain.ContractParams, err error) {
	code := domain.ErrorCode(err)
	completed := completedBefore(err)

	logger.Warn(ctx, "Option pricing failed",
		"kind", kind,
		"error_code", code,
		"completed", completed,
		"error", err,
	)

	if c.publisher == nil {
		return
	}
	now := c.now()
	if perr := c.publisher.PublishPricingError(context.WithoutCancel(ctx), domain.PricingErrorEvent{
		Kind:       kind,
		Params:     params,
		Error:      err.Error(),
		ErrorCode:  code,
		Completed:  completed,
		OccurredAt: now.UnixMilli(),
		OccurredOn: now,
	}); perr != nil {
		logger.Warn(ctx, "Failed to publish pricing error event", "error", perr)
	}
}

// completedBefore 取消时已完成的模拟次数
func completedBefore(err error) int {
	var cancelled *domain.CancelledError
	if errors.As(err, &cancelled) {
		return cancelled.Checkpoint.Completed
	}
	return 0
}

func selectByCode(averaging, option string) (domain.PayoffKind, error) {
	if len(averaging) != 1 || len(option) != 1 {
		return "", fmt.Errorf("%w: selector codes must be single characters, got %q/%q", domain.ErrInvalidSelector, averaging, option)
	}
	return domain.SelectAveraging(averaging[0], option[0])
}
