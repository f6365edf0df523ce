package incremental

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"incplan/internal/delay"
	"incplan/internal/types"
)

// StepRecord describes one completed iteration of the loop.
type StepRecord struct {
	Step    int
	Parts   []types.Part
	Delay   *delay.Event
	Result  types.SolveResult
	Elapsed time.Duration
}

// Observer is notified as the loop progresses. An observer error aborts the run.
type Observer interface {
	DelayInjected(ctx context.Context, ev delay.Event) error
	StepCompleted(ctx context.Context, rec StepRecord) error
}

// Result is the outcome of a run.
type Result struct {
	// Steps is the number of iterations executed.
	Steps int
	// Last is the final solve result, nil when no step ran.
	Last *types.SolveResult
	// Model is the most recent satisfiable model and ModelStep the step that produced it.
	Model     []types.Atom
	ModelStep int
	// Found is false when no step was ever satisfiable ("no plan").
	Found  bool
	Delays []delay.Event
}

// Controller runs the incremental solving loop.
type Controller struct {
	engine    Engine
	opts      Options
	policy    delay.Policy
	builder   StepBuilder
	observers []Observer
	logger    *zap.Logger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithDelayPolicy enables delay injection from step 1 on.
func WithDelayPolicy(p delay.Policy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// WithObserver registers an observer. Observers run in registration order.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController validates opts and binds them to an engine.
func NewController(engine Engine, opts Options, options ...Option) (*Controller, error) {
	if engine == nil {
		return nil, fmt.Errorf("controller requires an engine")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		engine: engine,
		opts:   opts,
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Run loads sources ("-" is standard input; none means "-") and runs the loop to
// termination. A run that never finds a model returns Found == false and no error.
func (c *Controller) Run(ctx context.Context, sources []string) (*Result, error) {
	if len(sources) == 0 {
		sources = []string{"-"}
	}
	for _, src := range sources {
		if err := c.engine.Load(src); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoad, src, err)
		}
	}
	if err := c.engine.AddFragment("check", []string{"t"}, checkFragmentText); err != nil {
		return nil, fmt.Errorf("%w: check fragment: %w", ErrLoad, err)
	}
	if c.policy != nil {
		if err := c.engine.AddFragment("delay", []string{"a", "s", "d"}, delayFragmentText); err != nil {
			return nil, fmt.Errorf("%w: delay fragment: %w", ErrLoad, err)
		}
	}

	if c.opts.IMax == nil || *c.opts.IMax > 1 {
		if !c.engine.HasFragment("step", 1) {
			return nil, fmt.Errorf("%w: no source declares #program step(t)", ErrLoad)
		}
	}

	tracker := NewTracker(c.engine)
	res := &Result{}
	step := 0
	var last *types.SolveResult

	for ShouldContinue(c.opts, step, last) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()

		var ev *delay.Event
		if step > 0 {
			if err := tracker.Release(ctx, QueryAtom(step-1)); err != nil {
				return nil, err
			}
			if c.policy != nil {
				if e, ok := c.policy.MaybeDelay(step); ok {
					ev = &e
					c.logger.Info("Delay created",
						zap.Int("step", e.Step), zap.Int("agent", e.Agent), zap.Int("duration", e.Duration))
				}
			}
		}

		parts := c.builder.FragmentsFor(step, ev)
		if err := c.engine.Ground(ctx, parts); err != nil {
			return nil, fmt.Errorf("%w: ground step %d: %w", ErrEngine, step, err)
		}

		if err := tracker.Assert(ctx, QueryAtom(step)); err != nil {
			return nil, err
		}
		if ev != nil {
			if err := tracker.Assert(ctx, ev.Atom()); err != nil {
				return nil, err
			}
			res.Delays = append(res.Delays, *ev)
			for _, o := range c.observers {
				if err := o.DelayInjected(ctx, *ev); err != nil {
					return nil, fmt.Errorf("record delay at step %d: %w", step, err)
				}
			}
		}

		sr, err := c.engine.Solve(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: solve step %d: %w", ErrEngine, step, err)
		}
		last = &sr
		if sr.Satisfiable() {
			res.Model = sr.Model
			res.ModelStep = step
			res.Found = true
		}

		rec := StepRecord{Step: step, Parts: parts, Delay: ev, Result: sr, Elapsed: time.Since(start)}
		c.logger.Info("Step solved",
			zap.Int("step", step),
			zap.Stringer("status", sr.Status),
			zap.Int("model_size", len(sr.Model)),
			zap.Duration("elapsed", rec.Elapsed))
		for _, o := range c.observers {
			if err := o.StepCompleted(ctx, rec); err != nil {
				return nil, fmt.Errorf("record step %d: %w", step, err)
			}
		}
		step++
	}

	res.Steps = step
	res.Last = last
	if !res.Found {
		c.logger.Info("No plan found", zap.Int("steps", step))
	}
	return res, nil
}
