package incremental

import (
	"fmt"
	"strings"

	"incplan/internal/types"
)

// StopCondition is the result status that ends the loop.
type StopCondition string

const (
	StopSAT     StopCondition = "SAT"
	StopUNSAT   StopCondition = "UNSAT"
	StopUNKNOWN StopCondition = "UNKNOWN"
)

// ParseStopCondition accepts SAT, UNSAT or UNKNOWN (case-sensitive, like the CLI).
func ParseStopCondition(s string) (StopCondition, error) {
	switch c := StopCondition(strings.TrimSpace(s)); c {
	case StopSAT, StopUNSAT, StopUNKNOWN:
		return c, nil
	default:
		return "", fmt.Errorf("invalid stop criterion %q: want SAT, UNSAT or UNKNOWN", s)
	}
}

// Met reports whether res satisfies the condition.
func (c StopCondition) Met(res types.SolveResult) bool {
	switch c {
	case StopSAT:
		return res.Satisfiable()
	case StopUNSAT:
		return res.Unsatisfiable()
	case StopUNKNOWN:
		return res.Unknown()
	default:
		return false
	}
}

// Options are the loop bounds. They are fixed for the lifetime of a controller.
type Options struct {
	IMin  int
	IMax  *int
	IStop StopCondition
}

// DefaultOptions mirrors the CLI defaults: imin 1, no imax, stop on SAT.
func DefaultOptions() Options {
	return Options{IMin: 1, IStop: StopSAT}
}

// Validate checks the bounds.
func (o Options) Validate() error {
	if o.IMin < 0 {
		return fmt.Errorf("imin must be >= 0, got %d", o.IMin)
	}
	if o.IMax != nil && *o.IMax < 0 {
		return fmt.Errorf("imax must be >= 0, got %d", *o.IMax)
	}
	if _, err := ParseStopCondition(string(o.IStop)); err != nil {
		return err
	}
	return nil
}

// ShouldContinue evaluates the loop condition before any work is done for step.
// last is nil before the first solve.
func ShouldContinue(o Options, step int, last *types.SolveResult) bool {
	if o.IMax != nil && step >= *o.IMax {
		return false
	}
	if last == nil || step < o.IMin {
		return true
	}
	return !o.IStop.Met(*last)
}
