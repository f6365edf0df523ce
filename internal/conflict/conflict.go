// Package conflict finds locations that two agents visit in a plan.
package conflict

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"incplan/internal/plan"
	"incplan/internal/types"
)

// Conflict says AgentA reaches Location strictly before AgentB does.
type Conflict struct {
	AgentA   types.Term
	AgentB   types.Term
	Location types.Term
}

// Atom renders conflict_location(agent_a, agent_b, location).
func (c Conflict) Atom() types.Atom {
	return types.NewAtom("conflict_location", c.AgentA, c.AgentB, c.Location)
}

// Detect returns every ordered pair of distinct agents visiting the same location,
// the earlier arrival first. The result has no duplicates and is sorted.
func Detect(visits []plan.Visit) []Conflict {
	byLocation := make(map[string][]plan.Visit)
	for _, v := range visits {
		key := v.Location.String()
		byLocation[key] = append(byLocation[key], v)
	}

	seen := make(map[string]bool)
	var out []Conflict
	for _, group := range byLocation {
		for _, a := range group {
			for _, b := range group {
				if a.Arrival >= b.Arrival || a.Agent.Equal(b.Agent) {
					continue
				}
				c := Conflict{AgentA: a.Agent, AgentB: b.Agent, Location: a.Location}
				key := c.Atom().String()
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, c)
			}
		}
	}
	sortConflicts(out)
	return out
}

// Engine is the part of the solver engine the query-backed detector needs.
type Engine interface {
	LoadString(origin, src string) error
	Ground(ctx context.Context, parts []types.Part) error
	Solve(ctx context.Context) (types.SolveResult, error)
}

const conflictRule = `conflict_location(A1, A2, L) :- orig(A1, L, T1, _), orig(A2, L, T2, _), T1 < T2, A1 != A2.`

// DetectWithEngine evaluates the conflict relation as a rule over the visits in a
// fresh engine. It agrees with Detect.
func DetectWithEngine(ctx context.Context, engine Engine, visits []plan.Visit) ([]Conflict, error) {
	var src strings.Builder
	for _, v := range visits {
		fmt.Fprintf(&src, "%s.\n", v.Atom())
	}
	src.WriteString(conflictRule)
	src.WriteString("\n")

	if err := engine.LoadString("conflicts", src.String()); err != nil {
		return nil, fmt.Errorf("failed to load conflict query: %w", err)
	}
	if err := engine.Ground(ctx, []types.Part{{Name: "base"}}); err != nil {
		return nil, fmt.Errorf("failed to ground conflict query: %w", err)
	}
	res, err := engine.Solve(ctx)
	if err != nil {
		return nil, fmt.Errorf("conflict query failed: %w", err)
	}
	if !res.Satisfiable() {
		return nil, fmt.Errorf("conflict query returned %s", res.Status)
	}

	var out []Conflict
	for _, atom := range res.Model {
		if atom.Name != "conflict_location" || len(atom.Args) != 3 {
			continue
		}
		out = append(out, Conflict{AgentA: atom.Args[0], AgentB: atom.Args[1], Location: atom.Args[2]})
	}
	sortConflicts(out)
	return out, nil
}

// Atoms renders conflicts for writing to a facts file.
func Atoms(conflicts []Conflict) []types.Atom {
	out := make([]types.Atom, len(conflicts))
	for i, c := range conflicts {
		out[i] = c.Atom()
	}
	return out
}

func sortConflicts(cs []Conflict) {
	sort.Slice(cs, func(i, j int) bool {
		return cs[i].Atom().String() < cs[j].Atom().String()
	})
}
