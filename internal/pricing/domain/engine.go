package domain

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

const defaultCheckpointInterval = 256

// Estimate 蒙特卡洛定价估计
type Estimate struct {
	Kind         PayoffKind `json:"kind"`
	Price        float64    `json:"price"`
	StdError     float64    `json:"std_error"`
	Replications int        `json:"replications"`
	Workers      int        `json:"workers"`
}

// Engine 蒙特卡洛定价引擎
// 每个 worker 独占一个路径缓冲区与一条随机数流，结果按求和合并
type Engine struct {
	newSource          SourceFactory
	workers            int
	checkpointInterval int
}

// EngineOption 引擎选项
type EngineOption func(*Engine)

// WithWorkers 设置并行 worker 数，小于 1 时按 1 处理
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// WithCheckpointInterval 设置检查取消信号的间隔 (模拟次数)
func WithCheckpointInterval(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.checkpointInterval = n
		}
	}
}

// NewEngine 创建定价引擎
func NewEngine(factory SourceFactory, opts ...EngineOption) *Engine {
	e := &Engine{
		newSource:          factory,
		workers:            1,
		checkpointInterval: defaultCheckpointInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workers 返回配置的 worker 数
func (e *Engine) Workers() int { return e.workers }

// Price 对给定收益类型进行 nReplications 次模拟并返回折现后的平均收益
func (e *Engine) Price(ctx context.Context, c *OptionContract, kind PayoffKind, nReplications int) (*Estimate, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: contract is required", ErrInvalidParameter)
	}
	if nReplications <= 0 {
		return nil, fmt.Errorf("%w: replications must be positive, got %d", ErrInvalidParameter, nReplications)
	}
	payoff, ok := payoffs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown payoff kind %q", ErrInvalidParameter, kind)
	}
	if e.newSource == nil {
		return nil, errors.New("engine has no gaussian source factory")
	}

	workers := e.workers
	if workers > nReplications {
		workers = nReplications
	}

	if workers <= 1 {
		acc, err := e.replicate(ctx, c, payoff, e.newSource(0), nReplications)
		if err != nil {
			return nil, err
		}
		return acc.estimate(c, kind, 1), nil
	}

	perWorker := nReplications / workers
	remainder := nReplications % workers
	partials := make([]accumulator, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w // per-iteration copy; go.mod targets go1.21 (pre-1.22 loop semantics)
		count := perWorker
		if w == workers-1 {
			count += remainder
		}
		g.Go(func() error {
			acc, err := e.replicate(gctx, c, payoff, e.newSource(w), count)
			partials[w] = acc
			return err
		})
	}
	err := g.Wait()

	var total accumulator
	for _, p := range partials {
		total.merge(p)
	}
	if err != nil {
		var cancelled *CancelledError
		if errors.As(err, &cancelled) {
			return nil, &CancelledError{Checkpoint: total.checkpoint(), Err: cancelled.Err}
		}
		return nil, err
	}
	return total.estimate(c, kind, workers), nil
}

// PriceByCode 通过两字符代码选择平均价格收益并定价
func (e *Engine) PriceByCode(ctx context.Context, c *OptionContract, averaging, option byte, nReplications int) (*Estimate, error) {
	kind, err := SelectAveraging(averaging, option)
	if err != nil {
		return nil, err
	}
	return e.Price(ctx, c, kind, nReplications)
}

// replicate 单个 worker 的模拟循环，buf 在各次模拟之间复用
func (e *Engine) replicate(ctx context.Context, c *OptionContract, payoff payoffFunc, src GaussianSource, n int) (accumulator, error) {
	var acc accumulator
	buf := make(Path, c.StepCount())
	for i := 0; i < n; i++ {
		if i%e.checkpointInterval == 0 {
			if err := ctx.Err(); err != nil {
				return acc, &CancelledError{Checkpoint: acc.checkpoint(), Err: err}
			}
		}
		path, err := SimulatePath(c, src, buf)
		if err != nil {
			return acc, err
		}
		buf = path
		acc.add(payoff(c, path))
	}
	return acc, nil
}

// accumulator 累加收益和，并用 Welford 方法累计离差平方和
type accumulator struct {
	sum   float64
	mean  float64
	m2    float64
	count int
}

func (a *accumulator) add(x float64) {
	a.sum += x
	a.count++
	delta := x - a.mean
	a.mean += delta / float64(a.count)
	a.m2 += delta * (x - a.mean)
}

func (a *accumulator) merge(o accumulator) {
	if o.count == 0 {
		return
	}
	if a.count == 0 {
		*a = o
		return
	}
	n := float64(a.count + o.count)
	delta := o.mean - a.mean
	a.mean += delta * float64(o.count) / n
	a.m2 += o.m2 + delta*delta*float64(a.count)*float64(o.count)/n
	a.sum += o.sum
	a.count += o.count
}

func (a accumulator) checkpoint() Checkpoint {
	return Checkpoint{Sum: a.sum, SquaredDeviations: a.m2, Completed: a.count}
}

func (a accumulator) estimate(c *OptionContract, kind PayoffKind, workers int) *Estimate {
	n := float64(a.count)
	df := c.DiscountFactor()

	stdErr := 0.0
	if a.count > 1 && a.m2 > 0 {
		stdErr = df * math.Sqrt(a.m2/(n-1)/n)
	}

	return &Estimate{
		Kind:         kind,
		Price:        df * a.sum / n,
		StdError:     stdErr,
		Replications: a.count,
		Workers:      workers,
	}
}
