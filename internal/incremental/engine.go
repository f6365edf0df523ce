// Package incremental drives an incremental solving loop over a logic engine.
//
// Each step grounds the step's program fragments, moves the query(step) external
// forward, optionally injects a delay event, and solves. The loop stops according to
// the configured minimum/maximum step counts and stop criterion.
package incremental

import (
	"context"
	"errors"

	"incplan/internal/types"
)

// Engine is the solver engine the controller drives. The controller owns the engine
// exclusively for the duration of a run and never calls it concurrently.
type Engine interface {
	Load(path string) error
	AddFragment(name string, params []string, text string) error
	HasFragment(name string, arity int) bool
	Ground(ctx context.Context, parts []types.Part) error
	AssignExternal(ctx context.Context, atom types.Atom, value bool) error
	ReleaseExternal(ctx context.Context, atom types.Atom) error
	Solve(ctx context.Context) (types.SolveResult, error)
}

var (
	// ErrProtocol marks an out-of-turn assert or release of an external atom.
	ErrProtocol = errors.New("external atom protocol violation")
	// ErrLoad marks a program source that could not be loaded.
	ErrLoad = errors.New("program load failed")
	// ErrEngine marks a ground or solve failure inside the engine.
	ErrEngine = errors.New("solver engine failure")
)

// Built-in fragments registered by the controller before the first step.
const (
	checkFragmentText = "#external query($t)."
	delayFragmentText = "#external delay($a, $s, $d)."
)

// QueryAtom returns query(step).
func QueryAtom(step int) types.Atom {
	return types.NewAtom("query", types.Int(step))
}
