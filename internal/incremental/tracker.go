package incremental

import (
	"context"
	"fmt"

	"incplan/internal/types"
)

// ExternalAssigner is the slice of the engine the tracker needs.
type ExternalAssigner interface {
	AssignExternal(ctx context.Context, atom types.Atom, value bool) error
	ReleaseExternal(ctx context.Context, atom types.Atom) error
}

// Tracker owns the asserted state of external atoms and is the only component that
// asserts or releases them. At most one query(step) is asserted at any time; delay
// atoms are assert-only and stay true for the rest of the run.
type Tracker struct {
	engine   ExternalAssigner
	asserted map[string]types.Atom
	query    *int
	delays   []types.Atom
}

// NewTracker binds a tracker to an engine.
func NewTracker(engine ExternalAssigner) *Tracker {
	return &Tracker{
		engine:   engine,
		asserted: make(map[string]types.Atom),
	}
}

type atomKind int

const (
	kindQuery atomKind = iota
	kindDelay
)

func classify(atom types.Atom) (atomKind, error) {
	switch {
	case atom.Name == "query" && len(atom.Args) == 1:
		if _, ok := atom.Args[0].AsInt(); !ok {
			return 0, fmt.Errorf("%w: query step must be a number: %s", ErrProtocol, atom)
		}
		return kindQuery, nil
	case atom.Name == "delay" && len(atom.Args) == 3:
		return kindDelay, nil
	default:
		return 0, fmt.Errorf("%w: %s is not a query/1 or delay/3 external", ErrProtocol, atom)
	}
}

// Assert makes atom true in the engine.
func (t *Tracker) Assert(ctx context.Context, atom types.Atom) error {
	kind, err := classify(atom)
	if err != nil {
		return err
	}
	key := atom.String()
	if _, ok := t.asserted[key]; ok {
		return fmt.Errorf("%w: %s is already asserted", ErrProtocol, key)
	}
	if kind == kindQuery && t.query != nil {
		return fmt.Errorf("%w: cannot assert %s while %s is asserted", ErrProtocol, key, QueryAtom(*t.query))
	}

	if err := t.engine.AssignExternal(ctx, atom, true); err != nil {
		return fmt.Errorf("%w: assign %s: %w", ErrEngine, key, err)
	}

	t.asserted[key] = atom
	if kind == kindQuery {
		n, _ := atom.Args[0].AsInt()
		step := int(n)
		t.query = &step
	} else {
		t.delays = append(t.delays, atom)
	}
	return nil
}

// Release returns an asserted query atom to unasserted. Delay atoms cannot be released.
func (t *Tracker) Release(ctx context.Context, atom types.Atom) error {
	kind, err := classify(atom)
	if err != nil {
		return err
	}
	key := atom.String()
	if kind == kindDelay {
		return fmt.Errorf("%w: delay atom %s cannot be released", ErrProtocol, key)
	}
	if _, ok := t.asserted[key]; !ok {
		return fmt.Errorf("%w: %s is not asserted", ErrProtocol, key)
	}

	if err := t.engine.ReleaseExternal(ctx, atom); err != nil {
		return fmt.Errorf("%w: release %s: %w", ErrEngine, key, err)
	}
	delete(t.asserted, key)
	t.query = nil
	return nil
}

// CurrentQueryStep returns the step of the asserted query atom, if any.
func (t *Tracker) CurrentQueryStep() (int, bool) {
	if t.query == nil {
		return 0, false
	}
	return *t.query, true
}

// Asserted returns the currently asserted atoms: the query first, then delays in
// assertion order.
func (t *Tracker) Asserted() []types.Atom {
	out := make([]types.Atom, 0, len(t.asserted))
	if t.query != nil {
		out = append(out, QueryAtom(*t.query))
	}
	return append(out, t.delays...)
}
