// Package delay generates synthetic agent delays between incremental solving steps.
//
// At each step the policy turns a configured rate into a probability
// p = 1 - exp(-rate), draws a uniform sample, and on a hit picks a duration from the
// inclusive range [MinDuration, MaxDuration] and an agent from [0, Agents-1].
// All randomness comes from an injected Source so a seeded run replays exactly.
package delay

import (
	"fmt"
	"math"
	"math/rand/v2"

	"incplan/internal/types"
)

// Event is one injected disruption.
type Event struct {
	Agent    int
	Step     int
	Duration int
}

// Atom returns the external atom delay(agent, step, duration).
func (e Event) Atom() types.Atom {
	return types.NewAtom("delay", types.Int(e.Agent), types.Int(e.Step), types.Int(e.Duration))
}

// Args returns the fragment arguments for the delay fragment, in atom order.
func (e Event) Args() []types.Term {
	return e.Atom().Args
}

// LogLine renders the event for the delay log. The log keeps the
// agent,duration,step order used by existing consumers of the file.
func (e Event) LogLine() string {
	return fmt.Sprintf("delay(%d,%d,%d).", e.Agent, e.Duration, e.Step)
}

// Policy decides whether a delay happens at a step.
type Policy interface {
	MaybeDelay(step int) (Event, bool)
}

// Source is the randomness a RandomPolicy consumes. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// NewSeededSource returns a reproducible source.
func NewSeededSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Params configures a RandomPolicy.
type Params struct {
	Rate        float64
	MinDuration int
	MaxDuration int
	Agents      int
}

// Validate checks the bounds a policy needs to draw from.
func (p Params) Validate() error {
	if math.IsNaN(p.Rate) || math.IsInf(p.Rate, 0) {
		return fmt.Errorf("delay rate must be finite, got %v", p.Rate)
	}
	if p.MinDuration < 0 {
		return fmt.Errorf("min duration must be >= 0, got %d", p.MinDuration)
	}
	if p.MinDuration > p.MaxDuration {
		return fmt.Errorf("min duration %d exceeds max duration %d", p.MinDuration, p.MaxDuration)
	}
	if p.Agents < 1 {
		return fmt.Errorf("agent population must be >= 1, got %d", p.Agents)
	}
	return nil
}

// Probability returns the per-step delay probability for a rate.
func Probability(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	return 1 - math.Exp(-rate)
}

// RandomPolicy is the stochastic delay policy. It is not safe for concurrent use;
// each run owns its own policy and source.
type RandomPolicy struct {
	params Params
	prob   float64
	src    Source
}

// NewRandomPolicy validates params and binds them to a source.
func NewRandomPolicy(params Params, src Source) (*RandomPolicy, error) {
	if src == nil {
		return nil, fmt.Errorf("delay policy requires a random source")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &RandomPolicy{
		params: params,
		prob:   Probability(params.Rate),
		src:    src,
	}, nil
}

// Params returns the policy configuration.
func (p *RandomPolicy) Params() Params {
	return p.params
}

// MaybeDelay draws the delay decision for step. A miss consumes exactly one sample,
// a hit consumes the decision, duration and agent samples. A drawn duration of zero is
// reported as no delay and does not draw an agent.
func (p *RandomPolicy) MaybeDelay(step int) (Event, bool) {
	if p.src.Float64() >= p.prob {
		return Event{}, false
	}
	duration := p.params.MinDuration + p.src.IntN(p.params.MaxDuration-p.params.MinDuration+1)
	if duration == 0 {
		return Event{}, false
	}
	agent := p.src.IntN(p.params.Agents)
	return Event{Agent: agent, Step: step, Duration: duration}, true
}
