package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"incplan/internal/config"
	"incplan/internal/delay"
	"incplan/internal/incremental"
	"incplan/internal/logging"
	"incplan/internal/mangle"
	"incplan/internal/plan"
	"incplan/internal/store"
	"incplan/internal/types"
)

type solveOptions struct {
	root *rootOptions

	imin         int
	imax         imaxValue
	istop        istopValue
	delayRate    float64
	minDuration  int
	maxDuration  int
	agents       int
	seed         uint64
	planOut      string
	delayLog     string
	journal      string
	show         []string
	solveTimeout time.Duration
}

func newSolveCmd(root *rootOptions) *cobra.Command {
	o := &solveOptions{root: root, istop: istopValue{c: incremental.StopSAT}}

	cmd := &cobra.Command{
		Use:   "solve [files...]",
		Short: "Run the incremental solving loop",
		Long: `Loads the program files ("-" or no files reads standard input), then grounds
and solves one step at a time. With a positive --delay_rate a random agent delay
may be injected before each step after the first. When a model is found, the
allow-listed atoms are written to the plan file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}

	f := cmd.Flags()
	f.IntVar(&o.imin, "imin", 1, "Minimum number of steps")
	f.Var(&o.imax, "imax", "Maximum number of steps")
	f.Var(&o.istop, "istop", "Stop criterion")
	f.Float64Var(&o.delayRate, "delay_rate", 0, "Delay rate; the per-step delay probability is 1-exp(-rate)")
	f.IntVar(&o.minDuration, "min_duration", 1, "Minimum duration of a delay")
	f.IntVar(&o.maxDuration, "max_duration", 3, "Maximum duration of a delay")
	f.IntVar(&o.agents, "agents", 0, "Number of agents (default: the integer ending line 2 of the first input file that has one, normally the instance header)")
	f.Uint64Var(&o.seed, "seed", 0, "Random seed for delay injection (default: time based)")
	f.StringVar(&o.planOut, "plan-out", "original_plan.lp", "Plan file written when a model is found")
	f.StringVar(&o.delayLog, "delay-log", "delay_atoms.lp", "File delay events are appended to")
	f.StringVar(&o.journal, "journal", "", "SQLite run journal (disabled when empty)")
	f.StringSliceVar(&o.show, "show", nil, "Predicates written to the plan file as name/arity (default orig/4,conflict_location/3)")
	f.DurationVar(&o.solveTimeout, "solve-timeout", 0, "Per-solve timeout; a timed out step is UNKNOWN (0 disables)")
	return cmd
}

// apply overlays explicitly set flags on the configuration file values.
func (o *solveOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("imin") {
		if o.imin < 0 {
			return fmt.Errorf("%w: --imin: value too small: %d", config.ErrInvalid, o.imin)
		}
		cfg.Incremental.IMin = o.imin
	}
	if f.Changed("imax") {
		cfg.Incremental.IMax = o.imax.n
	}
	if f.Changed("istop") {
		cfg.Incremental.IStop = string(o.istop.c)
	}
	if f.Changed("delay_rate") {
		cfg.Delay.Rate = o.delayRate
	}
	if f.Changed("min_duration") {
		cfg.Delay.MinDuration = o.minDuration
	}
	if f.Changed("max_duration") {
		cfg.Delay.MaxDuration = o.maxDuration
	}
	if f.Changed("agents") {
		cfg.Delay.Agents = o.agents
	}
	if f.Changed("seed") {
		seed := o.seed
		cfg.Delay.Seed = &seed
	}
	if f.Changed("plan-out") {
		cfg.Output.PlanFile = o.planOut
	}
	if f.Changed("delay-log") {
		cfg.Output.DelayLog = o.delayLog
	}
	if f.Changed("journal") {
		cfg.Output.Journal = o.journal
	}
	if f.Changed("show") {
		cfg.Output.Show = o.show
	}
	if f.Changed("solve-timeout") {
		cfg.Engine.SolveTimeout = o.solveTimeout.String()
	}
	return cfg.Validate()
}

func (o *solveOptions) run(cmd *cobra.Command, args []string) error {
	cfg := o.root.cfg
	logger := o.root.logger
	if err := o.apply(cmd, cfg); err != nil {
		return err
	}
	show, err := types.ParseSignatures(cfg.Output.Show)
	if err != nil {
		return fmt.Errorf("%w: --show: %w", config.ErrInvalid, err)
	}
	if len(args) == 0 {
		args = []string{"-"}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := mangle.NewEngine(mangle.Config{
		FactLimit:     cfg.Engine.FactLimit,
		SolveTimeout:  cfg.GetSolveTimeout(),
		Contradiction: cfg.Engine.Contradiction,
	},
		mangle.WithLogger(logging.For(logger, cfg.Logging, logging.CategoryEngine)),
		mangle.WithStdin(cmd.InOrStdin()),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	defer engine.Close()

	opts := incremental.Options{
		IMin:  cfg.Incremental.IMin,
		IMax:  cfg.Incremental.IMax,
		IStop: incremental.StopCondition(cfg.Incremental.IStop),
	}
	ctrlOpts := []incremental.Option{
		incremental.WithLogger(logging.For(logger, cfg.Logging, logging.CategoryController)),
	}

	var seed uint64
	if cfg.Delay.Rate > 0 {
		policy, usedSeed, err := newDelayPolicy(cfg, args, logging.For(logger, cfg.Logging, logging.CategoryDelay))
		if err != nil {
			return err
		}
		seed = usedSeed
		delayLog := plan.NewDelayLog(cfg.Output.DelayLog)
		defer delayLog.Close()
		ctrlOpts = append(ctrlOpts, incremental.WithDelayPolicy(policy), incremental.WithObserver(delayLog))
	}

	var (
		journal *store.Journal
		runID   string
	)
	if cfg.Output.Journal != "" {
		journal, err = store.Open(cfg.Output.Journal, logging.For(logger, cfg.Logging, logging.CategoryStore))
		if err != nil {
			return err
		}
		defer journal.Close()
		runID, err = journal.BeginRun(ctx, store.RunInfo{
			Sources:   args,
			IMin:      opts.IMin,
			IMax:      opts.IMax,
			IStop:     string(opts.IStop),
			DelayRate: cfg.Delay.Rate,
			Seed:      seed,
		})
		if err != nil {
			return err
		}
		ctrlOpts = append(ctrlOpts, incremental.WithObserver(journal.Recorder(runID)))
	}

	ctrl, err := incremental.NewController(engine, opts, ctrlOpts...)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	res, err := ctrl.Run(ctx, args)
	if err != nil {
		return err
	}

	var facts []types.Atom
	out := cmd.OutOrStdout()
	if res.Found {
		facts = plan.Extract(res.Model, show)
		if err := plan.WriteFile(cfg.Output.PlanFile, facts); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", successStyle.Render("plan written"),
			mutedStyle.Render(fmt.Sprintf("%s (%d facts, step %d of %d)",
				cfg.Output.PlanFile, len(facts), res.ModelStep, res.Steps)))
	} else {
		fmt.Fprintf(out, "%s %s\n", warnStyle.Render("no plan found"),
			mutedStyle.Render(fmt.Sprintf("after %d steps", res.Steps)))
	}
	if len(res.Delays) > 0 {
		fmt.Fprintf(out, "%s\n", mutedStyle.Render(fmt.Sprintf("%d delays logged to %s", len(res.Delays), cfg.Output.DelayLog)))
	}

	if journal != nil {
		if err := journal.FinishRun(ctx, runID, res, facts); err != nil {
			return err
		}
	}
	logger.Info("Run finished",
		zap.Int("steps", res.Steps), zap.Bool("found", res.Found), zap.Int("delays", len(res.Delays)))
	return nil
}

func newDelayPolicy(cfg *config.Config, sources []string, logger *zap.Logger) (*delay.RandomPolicy, uint64, error) {
	agents := cfg.Delay.Agents
	if agents == 0 {
		n, from, err := delay.AgentCountFromFiles(sources)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: agent count: set --agents or pass an instance file: %w", config.ErrInvalid, err)
		}
		logger.Info("Agent count read from instance", zap.String("file", from), zap.Int("agents", n))
		agents = n
	}

	seed := uint64(time.Now().UnixNano())
	if cfg.Delay.Seed != nil {
		seed = *cfg.Delay.Seed
	}
	policy, err := delay.NewRandomPolicy(delay.Params{
		Rate:        cfg.Delay.Rate,
		MinDuration: cfg.Delay.MinDuration,
		MaxDuration: cfg.Delay.MaxDuration,
		Agents:      agents,
	}, delay.NewSeededSource(seed))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	params := policy.Params()
	logger.Debug("Delay policy ready",
		zap.Float64("probability", delay.Probability(params.Rate)),
		zap.Int("agents", params.Agents),
		zap.Int("min_duration", params.MinDuration),
		zap.Int("max_duration", params.MaxDuration),
		zap.Uint64("seed", seed))
	return policy, seed, nil
}
