package incremental

import (
	"incplan/internal/delay"
	"incplan/internal/types"
)

// StepBuilder produces the fragment list for a step.
type StepBuilder struct{}

// FragmentsFor returns, in order:
//
//	step 0:  check(0), base
//	step n:  check(n), step(n) [, delay(agent, n, duration)]
func (StepBuilder) FragmentsFor(step int, ev *delay.Event) []types.Part {
	parts := []types.Part{{Name: "check", Args: []types.Term{types.Int(step)}}}
	if step == 0 {
		return append(parts, types.Part{Name: "base"})
	}
	parts = append(parts, types.Part{Name: "step", Args: []types.Term{types.Int(step)}})
	if ev != nil {
		parts = append(parts, types.Part{Name: "delay", Args: ev.Args()})
	}
	return parts
}
