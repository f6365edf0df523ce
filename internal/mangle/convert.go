package mangle

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/functional"
	"github.com/google/mangle/parse"

	"incplan/internal/types"
)

// AtomFromAST converts an engine atom to the solver-neutral form.
func AtomFromAST(atom ast.Atom) types.Atom {
	args := make([]types.Term, len(atom.Args))
	for i, arg := range atom.Args {
		args[i] = termFromBaseTerm(arg)
	}
	return types.Atom{Name: atom.Predicate.Symbol, Args: args}
}

func termFromBaseTerm(term ast.BaseTerm) types.Term {
	if c, ok := term.(ast.Constant); ok {
		return termFromConstant(c)
	}
	return types.Compound(term.String())
}

func termFromConstant(c ast.Constant) types.Term {
	switch c.Type {
	case ast.NumberType:
		return types.Number(c.NumValue)
	case ast.NameType:
		return types.Name(c.Symbol)
	case ast.StringType:
		return types.String(c.Symbol)
	default:
		return types.Compound(c.String())
	}
}

// ParseAtom parses a single ground atom in program syntax.
func ParseAtom(text string) (ast.Atom, error) {
	atom, err := parse.Atom(text)
	if err != nil {
		return ast.Atom{}, fmt.Errorf("failed to parse atom %q: %w", text, err)
	}
	ground, err := evalGround(atom)
	if err != nil {
		return ast.Atom{}, fmt.Errorf("atom %q is not ground: %w", text, err)
	}
	return ground, nil
}

// evalGround evaluates constructor expressions such as fn:pair(2, 3) or [2, 3] in
// the arguments of atom and fails on anything that does not reduce to a constant.
func evalGround(atom ast.Atom) (ast.Atom, error) {
	args := make([]ast.BaseTerm, len(atom.Args))
	for i, arg := range atom.Args {
		if _, ok := arg.(ast.Variable); ok {
			return ast.Atom{}, fmt.Errorf("argument %d is the variable %s", i, arg)
		}
		v, err := functional.EvalExpr(arg, ast.ConstSubstMap{})
		if err != nil {
			return ast.Atom{}, fmt.Errorf("argument %d: %w", i, err)
		}
		c, ok := v.(ast.Constant)
		if !ok {
			return ast.Atom{}, fmt.Errorf("argument %d does not evaluate to a value: %s", i, arg)
		}
		args[i] = c
	}
	return ast.Atom{Predicate: atom.Predicate, Args: args}, nil
}

// ParseFacts reads a file of ground facts (one "pred(args)." per clause), such as a
// plan file written by a previous run.
func ParseFacts(r io.Reader) ([]types.Atom, error) {
	unit, err := parse.Unit(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse facts: %w", err)
	}
	facts := make([]types.Atom, 0, len(unit.Clauses))
	for _, clause := range unit.Clauses {
		if len(clause.Premises) > 0 {
			return nil, fmt.Errorf("expected ground facts, found rule for %s", clause.Head.Predicate.Symbol)
		}
		head, err := evalGround(clause.Head)
		if err != nil {
			return nil, fmt.Errorf("fact %s is not ground: %w", clause.Head.String(), err)
		}
		facts = append(facts, AtomFromAST(head))
	}
	return facts, nil
}

func sortAtoms(atoms []types.Atom) {
	sort.Slice(atoms, func(i, j int) bool {
		return atoms[i].String() < atoms[j].String()
	})
}
