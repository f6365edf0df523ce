// Package types provides the solver-neutral data model shared across incplan packages.
// It exists so that the controller, the extractor and the conflict pass can exchange
// atoms and solve results without importing a concrete engine backend.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// TERMS
// =============================================================================

// TermKind classifies a ground term.
type TermKind int

const (
	KindNumber TermKind = iota
	KindName
	KindString
	// KindCompound holds engine text that has no structured Go form (lists, pairs, floats).
	KindCompound
)

// Term is a ground argument of an atom.
type Term struct {
	Kind TermKind
	Num  int64
	Text string
}

// Number returns an integer term.
func Number(n int64) Term {
	return Term{Kind: KindNumber, Num: n}
}

// Int is a convenience wrapper around Number for Go ints.
func Int(n int) Term {
	return Number(int64(n))
}

// Name returns a name constant. The leading slash is added when missing.
func Name(s string) Term {
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return Term{Kind: KindName, Text: s}
}

// String returns a string constant term.
func String(s string) Term {
	return Term{Kind: KindString, Text: s}
}

// Compound wraps raw engine text.
func Compound(text string) Term {
	return Term{Kind: KindCompound, Text: text}
}

// String renders the term in program syntax.
func (t Term) String() string {
	switch t.Kind {
	case KindNumber:
		return strconv.FormatInt(t.Num, 10)
	case KindString:
		return strconv.Quote(t.Text)
	default:
		return t.Text
	}
}

// AsInt returns the integer value of a number term.
func (t Term) AsInt() (int64, bool) {
	if t.Kind != KindNumber {
		return 0, false
	}
	return t.Num, true
}

// Equal reports whether two terms denote the same constant.
func (t Term) Equal(o Term) bool {
	return t.Kind == o.Kind && t.String() == o.String()
}

// =============================================================================
// ATOMS
// =============================================================================

// Atom is a ground fact: a predicate name applied to terms.
type Atom struct {
	Name string
	Args []Term
}

// NewAtom builds an atom.
func NewAtom(name string, args ...Term) Atom {
	return Atom{Name: name, Args: args}
}

// String renders the atom as name(a1,...,aN) without a trailing period.
func (a Atom) String() string {
	if len(a.Args) == 0 {
		return a.Name
	}
	parts := make([]string, len(a.Args))
	for i, arg := range a.Args {
		parts[i] = arg.String()
	}
	return a.Name + "(" + strings.Join(parts, ",") + ")"
}

// Signature returns the predicate signature of the atom.
func (a Atom) Signature() Signature {
	return Signature{Name: a.Name, Arity: len(a.Args)}
}

// Equal compares atoms by rendered form.
func (a Atom) Equal(o Atom) bool {
	return a.String() == o.String()
}

// Signature identifies a predicate by name and arity (name/arity).
type Signature struct {
	Name  string
	Arity int
}

func (s Signature) String() string {
	return fmt.Sprintf("%s/%d", s.Name, s.Arity)
}

// ParseSignature parses "name/arity".
func ParseSignature(s string) (Signature, error) {
	s = strings.TrimSpace(s)
	idx := strings.LastIndex(s, "/")
	if idx <= 0 || idx == len(s)-1 {
		return Signature{}, fmt.Errorf("invalid predicate signature %q: want name/arity", s)
	}
	arity, err := strconv.Atoi(s[idx+1:])
	if err != nil || arity < 0 {
		return Signature{}, fmt.Errorf("invalid arity in predicate signature %q", s)
	}
	return Signature{Name: s[:idx], Arity: arity}, nil
}

// ParseSignatures parses a list of signatures, failing on the first bad entry.
func ParseSignatures(list []string) ([]Signature, error) {
	sigs := make([]Signature, 0, len(list))
	for _, s := range list {
		sig, err := ParseSignature(s)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// Part names a program fragment and the arguments to ground it with.
type Part struct {
	Name string
	Args []Term
}

func (p Part) String() string {
	return NewAtom(p.Name, p.Args...).String()
}
