package mangle

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/mangle/parse"

	"incplan/internal/types"
)

// Program text is Mangle Datalog. Fragment boundaries and external declarations use
// clingo-style directives, which Mangle itself reads as comments:
//
//	#program step(t).
//	at($t, P) :- ...
//	#external query($t).
//
// Text before the first #program directive belongs to the base fragment.

var (
	programDirective  = regexp.MustCompile(`^\s*#program\s+([a-z_][A-Za-z0-9_]*)\s*(?:\(([^)]*)\))?\s*\.\s*$`)
	externalDirective = regexp.MustCompile(`^\s*#external\s+(.+?)\s*\.\s*$`)
	paramRef          = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	declHead          = regexp.MustCompile(`(?m)^\s*Decl\s+([a-z_][A-Za-z0-9_]*)\s*\(`)
	identifier        = regexp.MustCompile(`^[a-z_][A-Za-z0-9_]*$`)
)

// fragment is a named, parameterised piece of program text.
type fragment struct {
	name   string
	params []string
	text   string
	origin string
}

func (f fragment) key() string {
	return fragmentKey(f.name, len(f.params))
}

func fragmentKey(name string, arity int) string {
	return fmt.Sprintf("%s/%d", name, arity)
}

// splitFragments cuts a source into fragments at #program directives.
func splitFragments(origin, src string) ([]fragment, error) {
	var (
		out     []fragment
		current = fragment{name: "base", origin: origin}
		body    strings.Builder
		lineNo  int
	)
	flush := func() {
		current.text = body.String()
		out = append(out, current)
		body.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#program") {
			m := programDirective.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("%s:%d: malformed #program directive", origin, lineNo)
			}
			params, err := parseParams(m[2])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", origin, lineNo, err)
			}
			flush()
			current = fragment{name: m[1], params: params, origin: origin}
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", origin, err)
	}
	flush()
	return out, nil
}

func parseParams(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var params []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if !identifier.MatchString(p) {
			return nil, fmt.Errorf("invalid fragment parameter %q", p)
		}
		params = append(params, p)
	}
	return params, nil
}

// instantiate substitutes $param references with the rendered arguments.
func (f fragment) instantiate(args []types.Term) (string, error) {
	if len(args) != len(f.params) {
		return "", fmt.Errorf("fragment %s expects %d arguments, got %d", f.key(), len(f.params), len(args))
	}
	values := make(map[string]string, len(f.params))
	for i, p := range f.params {
		values[p] = args[i].String()
	}
	var missing []string
	text := paramRef.ReplaceAllStringFunc(f.text, func(ref string) string {
		name := ref[1:]
		v, ok := values[name]
		if !ok {
			missing = append(missing, name)
			return ref
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("fragment %s (%s) references undeclared parameters %v", f.key(), f.origin, missing)
	}
	return text, nil
}

// externalDecls returns the atom text of every #external directive in text.
func externalDecls(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if m := externalDirective.FindStringSubmatch(line); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}

// externalSignatures returns predicate name and arity of every #external directive in
// fragment text that may still hold $param references.
func externalSignatures(text string) (map[string]int, error) {
	out := make(map[string]int)
	for _, decl := range externalDecls(text) {
		atom, err := parse.Atom(paramRef.ReplaceAllString(decl, "0"))
		if err != nil {
			return nil, fmt.Errorf("malformed #external %s: %w", decl, err)
		}
		name, arity := atom.Predicate.Symbol, len(atom.Args)
		if prev, ok := out[name]; ok && prev != arity {
			return nil, fmt.Errorf("external %s declared with arities %d and %d", name, prev, arity)
		}
		out[name] = arity
	}
	return out, nil
}

// declaredPredicates lists predicates that carry an explicit Decl in text.
func declaredPredicates(text string) []string {
	var out []string
	for _, m := range declHead.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

func synthesizedDecl(name string, arity int) string {
	vars := make([]string, arity)
	for i := range vars {
		vars[i] = fmt.Sprintf("X%d", i)
	}
	return fmt.Sprintf("Decl %s(%s).\n", name, strings.Join(vars, ", "))
}
