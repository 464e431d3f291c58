package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/wyfcoding/optionpricer/internal/pricing/application"
	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
	"github.com/wyfcoding/optionpricer/internal/pricing/infrastructure/random"
	"github.com/wyfcoding/optionpricer/pkg/logger"
)

// globalOptions 所有子命令共享的参数
type globalOptions struct {
	workers    int
	maxReps    int
	streamMode string
	logLevel   string
}

// contractOptions 合约参数，与原始调用参数同名
type contractOptions struct {
	stepCount int
	strike    float64
	spot      float64
	vol       float64
	rfr       float64
	expiry    float64
	barrier   float64
	reps      int
	seed      uint64
}

func (o *contractOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&o.stepCount, "n-int", 100, "number of time steps per path")
	f.Float64Var(&o.strike, "strike", 100, "strike price")
	f.Float64Var(&o.spot, "spot", 100, "spot price of the underlying")
	f.Float64Var(&o.vol, "vol", 0.2, "annualized volatility")
	f.Float64Var(&o.rfr, "rfr", 0.05, "risk-free rate")
	f.Float64Var(&o.expiry, "expiry", 1, "time to expiry in years")
	f.Float64Var(&o.barrier, "barrier", 0, "up-and-in barrier level")
	f.IntVar(&o.reps, "reps", application.DefaultUpAndInReplications, "number of replications")
	f.Uint64Var(&o.seed, "seed", 0, "random seed, unseeded when omitted")
}

func (o *contractOptions) params() domain.ContractParams {
	return domain.ContractParams{
		StepCount:    o.stepCount,
		Strike:       o.strike,
		Spot:         o.spot,
		Volatility:   o.vol,
		RiskFreeRate: o.rfr,
		Expiry:       o.expiry,
		Barrier:      o.barrier,
	}
}

// seedFlag 只有显式传入 --seed 时才固定种子
func (o *contractOptions) seedFlag(cmd *cobra.Command) *uint64 {
	if !cmd.Flags().Changed("seed") {
		return nil
	}
	s := o.seed
	return &s
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "mcprice",
		Short:         "Monte Carlo pricer for Asian and up-and-in barrier options",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return logger.Init(logger.Config{Level: g.logLevel, Format: "text", Output: "stderr"})
		},
	}
	pf := root.PersistentFlags()
	pf.IntVar(&g.workers, "workers", 0, "parallel workers, 0 uses all CPUs")
	pf.IntVar(&g.maxReps, "max-reps", 10000000, "upper bound on replications")
	pf.StringVar(&g.streamMode, "stream-mode", string(random.ModePerWorker), "random stream mode: per_worker or shared")
	pf.StringVar(&g.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newPriceCmd(g),
		newUpInCmd(g),
		newPathCmd(g),
		newConvergenceCmd(g),
	)
	return root
}

func (g *globalOptions) service() *application.PricingService {
	mode := random.Mode(g.streamMode)
	return application.NewPricingService(application.Settings{
		Workers:             g.workers,
		DefaultReplications: application.DefaultUpAndInReplications,
		MaxReplications:     g.maxReps,
		Reproducible:        mode == random.ModePerWorker,
	}, func(seed uint64) (domain.SourceFactory, error) {
		return random.FactoryFor(mode, seed)
	})
}

func newPriceCmd(g *globalOptions) *cobra.Command {
	var (
		c         contractOptions
		kind      string
		averaging string
		option    string
	)
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price an option by payoff kind or by averaging/option codes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := g.service()
			ctx := cmd.Context()
			if kind != "" {
				k, err := domain.ParsePayoffKind(kind)
				if err != nil {
					return report(cmd, err)
				}
				res, err := svc.PriceOption(ctx, application.PriceOptionCommand{
					Kind: k, Params: c.params(), Replications: c.reps, Seed: c.seedFlag(cmd), Workers: g.workers,
				})
				if err != nil {
					return report(cmd, err)
				}
				return writeJSON(cmd.OutOrStdout(), res)
			}
			res, err := svc.PriceByCode(ctx, application.PriceByCodeCommand{
				Averaging: averaging, Option: option, Params: c.params(), Replications: c.reps, Seed: c.seedFlag(cmd), Workers: g.workers,
			})
			if err != nil {
				return report(cmd, err)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	c.bind(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "payoff kind, e.g. ARITHMETIC_CALL")
	cmd.Flags().StringVar(&averaging, "averaging", "A", "averaging code: A arithmetic, G geometric")
	cmd.Flags().StringVar(&option, "option", "C", "option code: C call, P put")
	return cmd
}

func newUpInCmd(g *globalOptions) *cobra.Command {
	var c contractOptions
	cmd := &cobra.Command{
		Use:   "upin",
		Short: "Price an up-and-in barrier call",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := g.service().PriceUpAndInCall(cmd.Context(), application.UpAndInCallCommand{
				StepCount:     c.stepCount,
				Strike:        c.strike,
				Spot:          c.spot,
				Volatility:    c.vol,
				RiskFreeRate:  c.rfr,
				Expiry:        c.expiry,
				Barrier:       c.barrier,
				NReplications: c.reps,
				Seed:          c.seedFlag(cmd),
				Workers:       g.workers,
			})
			if err != nil {
				return report(cmd, err)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	c.bind(cmd)
	return cmd
}

func newPathCmd(g *globalOptions) *cobra.Command {
	var c contractOptions
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Simulate and print one price path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := g.service().SimulatePath(cmd.Context(), application.SimulatePathCommand{
				Params: c.params(),
				Seed:   c.seedFlag(cmd),
			})
			if err != nil {
				return report(cmd, err)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	c.bind(cmd)
	return cmd
}

func newConvergenceCmd(g *globalOptions) *cobra.Command {
	var (
		c      contractOptions
		kind   string
		counts []int
		runs   int
	)
	cmd := &cobra.Command{
		Use:   "convergence",
		Short: "Measure estimate spread across replication counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := domain.ParsePayoffKind(kind)
			if err != nil {
				return report(cmd, err)
			}
			res, err := g.service().AnalyzeConvergence(cmd.Context(), application.ConvergenceCommand{
				Kind:              k,
				Params:            c.params(),
				ReplicationCounts: counts,
				Runs:              runs,
				Seed:              c.seedFlag(cmd),
				Workers:           g.workers,
			})
			if err != nil {
				return report(cmd, err)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	c.bind(cmd)
	cmd.Flags().StringVar(&kind, "kind", string(domain.PayoffArithmeticCall), "payoff kind")
	cmd.Flags().IntSliceVar(&counts, "counts", nil, "replication counts to compare")
	cmd.Flags().IntVar(&runs, "runs", 10, "independent runs per count")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// report 打印错误，取消时附带已完成的部分结果
func report(cmd *cobra.Command, err error) error {
	out := map[string]any{
		"error":      err.Error(),
		"error_code": domain.ErrorCode(err),
	}
	var cancelled *domain.CancelledError
	if errors.As(err, &cancelled) {
		out["checkpoint"] = cancelled.Checkpoint
	}
	if werr := writeJSON(cmd.ErrOrStderr(), out); werr != nil {
		return fmt.Errorf("%w (write failed: %v)", err, werr)
	}
	return err
}
