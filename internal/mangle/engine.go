// Package mangle provides the Google Mangle backed solver engine for incremental planning.
//
// The engine keeps named program fragments, grounds them on request, tracks external
// atoms whose truth is set by the driver, and evaluates the accumulated program to a
// fixpoint on every solve. A solve is unsatisfiable when the contradiction predicate
// is derived.
package mangle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
	"go.uber.org/zap"

	"incplan/internal/types"
)

var (
	// ErrUnknownFragment is returned when grounding a fragment no source declared.
	ErrUnknownFragment = errors.New("unknown program fragment")
	// ErrUnknownExternal is returned when assigning an atom never declared #external.
	ErrUnknownExternal = errors.New("unknown external atom")
	// ErrReleasedExternal is returned when assigning an external after its release.
	ErrReleasedExternal = errors.New("external atom already released")
)

// Config holds engine configuration.
type Config struct {
	FactLimit     int           `json:"fact_limit"`
	SolveTimeout  time.Duration `json:"solve_timeout"`
	Contradiction string        `json:"contradiction"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FactLimit:     500000,
		Contradiction: "inconsistent",
	}
}

type external struct {
	atom     ast.Atom
	value    bool
	released bool
}

// Stats contains engine statistics.
type Stats struct {
	Fragments       int   `json:"fragments"`
	GroundedParts   int   `json:"grounded_parts"`
	Externals       int   `json:"externals"`
	TrueExternals   int   `json:"true_externals"`
	LastModelFacts  int   `json:"last_model_facts"`
	LastSolveMillis int64 `json:"last_solve_ms"`
}

// Engine is a single-owner solver engine. Methods are serialized by a mutex, but the
// incremental protocol assumes one driver issues calls in order.
type Engine struct {
	config Config
	logger *zap.Logger
	stdin  io.Reader

	mu            sync.Mutex
	fragments     map[string][]fragment
	grounded      map[string]bool
	units         []parse.SourceUnit
	declared      map[string]bool
	externals     map[string]*external
	externalOrder []string
	externalPreds map[string]int
	programInfo   *analysis.ProgramInfo
	dirty         bool
	stats         Stats
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStdin sets the reader used when a source path is "-".
func WithStdin(r io.Reader) Option {
	return func(e *Engine) {
		e.stdin = r
	}
}

// NewEngine creates a new engine instance.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Contradiction == "" {
		cfg.Contradiction = DefaultConfig().Contradiction
	}
	if !identifier.MatchString(cfg.Contradiction) {
		return nil, fmt.Errorf("invalid contradiction predicate %q", cfg.Contradiction)
	}
	e := &Engine{
		config:        cfg,
		logger:        zap.NewNop(),
		stdin:         os.Stdin,
		fragments:     make(map[string][]fragment),
		grounded:      make(map[string]bool),
		declared:      make(map[string]bool),
		externals:     make(map[string]*external),
		externalPreds: make(map[string]int),
		dirty:         true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Load reads a program source. "-" reads standard input.
func (e *Engine) Load(path string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(e.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read program %s: %w", path, err)
	}
	return e.LoadString(path, string(data))
}

// LoadString registers the fragments of a program source held in memory.
func (e *Engine) LoadString(origin, src string) error {
	frags, err := splitFragments(origin, src)
	if err != nil {
		return err
	}
	// Parse every fragment without parameters up front so syntax errors surface at load time.
	for _, f := range frags {
		if len(f.params) > 0 {
			continue
		}
		if _, err := parse.Unit(strings.NewReader(f.text)); err != nil {
			return fmt.Errorf("failed to parse %s fragment %s: %w", origin, f.key(), err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range frags {
		if err := e.registerLocked(f); err != nil {
			return fmt.Errorf("%s fragment %s: %w", origin, f.key(), err)
		}
	}
	e.logger.Debug("Loaded program", zap.String("source", origin), zap.Int("fragments", len(frags)))
	return nil
}

// AddFragment registers program text under name with the given parameters.
func (e *Engine) AddFragment(name string, params []string, text string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("invalid fragment name %q", name)
	}
	for _, p := range params {
		if !identifier.MatchString(p) {
			return fmt.Errorf("invalid fragment parameter %q", p)
		}
	}
	if strings.Contains(text, "#program") {
		return fmt.Errorf("fragment %s must not contain #program directives", name)
	}

	f := fragment{name: name, params: append([]string(nil), params...), text: text, origin: "<" + name + ">"}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registerLocked(f)
}

// registerLocked stores f and records the predicates of its #external directives, so
// rules may read an external predicate before any of its atoms is grounded.
func (e *Engine) registerLocked(f fragment) error {
	sigs, err := externalSignatures(f.text)
	if err != nil {
		return err
	}
	for name, arity := range sigs {
		if prev, ok := e.externalPreds[name]; ok && prev != arity {
			return fmt.Errorf("external %s/%d conflicts with %s/%d", name, arity, name, prev)
		}
	}
	for name, arity := range sigs {
		if _, ok := e.externalPreds[name]; !ok {
			e.externalPreds[name] = arity
			e.dirty = true
		}
	}
	e.fragments[f.key()] = append(e.fragments[f.key()], f)
	return nil
}

// HasFragment reports whether any source declared name with the given arity.
func (e *Engine) HasFragment(name string, arity int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fragments[fragmentKey(name, arity)]) > 0
}

// Ground instantiates the requested parts and adds them to the program.
// Grounding a part twice is a no-op.
func (e *Engine) Ground(ctx context.Context, parts []types.Part) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, part := range parts {
		key := fragmentKey(part.Name, len(part.Args))
		frags := e.fragments[key]
		if len(frags) == 0 && key != "base/0" {
			return fmt.Errorf("%w: %s", ErrUnknownFragment, key)
		}
		partID := part.String()
		if e.grounded[partID] {
			e.logger.Debug("Part already grounded", zap.String("part", partID))
			continue
		}

		for _, f := range frags {
			text, err := f.instantiate(part.Args)
			if err != nil {
				return err
			}
			if err := e.addExternalsLocked(text); err != nil {
				return fmt.Errorf("ground %s: %w", partID, err)
			}
			unit, err := parse.Unit(strings.NewReader(text))
			if err != nil {
				return fmt.Errorf("ground %s from %s: %w", partID, f.origin, err)
			}
			e.units = append(e.units, unit)
			for _, name := range declaredPredicates(text) {
				e.declared[name] = true
			}
		}
		e.grounded[partID] = true
		e.stats.GroundedParts++
		e.dirty = true
	}
	return nil
}

func (e *Engine) addExternalsLocked(text string) error {
	for _, decl := range externalDecls(text) {
		atom, err := ParseAtom(decl)
		if err != nil {
			return err
		}
		if len(atom.Args) == 0 {
			return fmt.Errorf("external %s must have arguments", decl)
		}
		key := AtomFromAST(atom).String()
		if _, ok := e.externals[key]; ok {
			continue
		}
		if arity, ok := e.externalPreds[atom.Predicate.Symbol]; ok && arity != len(atom.Args) {
			return fmt.Errorf("external %s conflicts with %s/%d", key, atom.Predicate.Symbol, arity)
		}
		e.externals[key] = &external{atom: atom}
		e.externalOrder = append(e.externalOrder, key)
		e.externalPreds[atom.Predicate.Symbol] = len(atom.Args)
	}
	return nil
}

// AssignExternal sets the truth value of a declared external atom.
func (e *Engine) AssignExternal(ctx context.Context, atom types.Atom, value bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	key := atom.String()
	ext, ok := e.externals[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExternal, key)
	}
	if ext.released {
		return fmt.Errorf("%w: %s", ErrReleasedExternal, key)
	}
	ext.value = value
	return nil
}

// ReleaseExternal makes an external atom permanently false.
func (e *Engine) ReleaseExternal(ctx context.Context, atom types.Atom) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	key := atom.String()
	ext, ok := e.externals[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExternal, key)
	}
	ext.value = false
	ext.released = true
	return nil
}

// rebuildProgramLocked analyzes all grounded units plus declarations for external
// predicates that no source declared, grounded or not.
func (e *Engine) rebuildProgramLocked() error {
	var (
		clauses []ast.Clause
		decls   []ast.Decl
	)
	for _, unit := range e.units {
		clauses = append(clauses, unit.Clauses...)
		decls = append(decls, unit.Decls...)
	}

	var synth strings.Builder
	for name, arity := range e.externalPreds {
		if !e.declared[name] {
			synth.WriteString(synthesizedDecl(name, arity))
		}
	}
	if synth.Len() > 0 {
		unit, err := parse.Unit(strings.NewReader(synth.String()))
		if err != nil {
			return fmt.Errorf("failed to declare external predicates: %w", err)
		}
		decls = append(decls, unit.Decls...)
	}

	programInfo, err := analysis.AnalyzeOneUnit(parse.SourceUnit{Clauses: clauses, Decls: decls}, nil)
	if err != nil {
		return err
	}
	e.programInfo = programInfo
	e.dirty = false
	return nil
}

// Solve evaluates the program with the current external assignment.
// A solve that outlives the configured timeout reports Unknown; the abandoned
// evaluation finishes in the background against a store nobody reads.
func (e *Engine) Solve(ctx context.Context) (types.SolveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dirty || e.programInfo == nil {
		if err := e.rebuildProgramLocked(); err != nil {
			return types.SolveResult{}, fmt.Errorf("failed to analyze program: %w", err)
		}
	}

	baseStore := factstore.NewSimpleInMemoryStore()
	store := factstore.NewConcurrentFactStore(baseStore)
	trueCount := 0
	for _, key := range e.externalOrder {
		ext := e.externals[key]
		if ext.value && !ext.released {
			store.Add(ext.atom)
			trueCount++
		}
	}

	solveCtx := ctx
	if e.config.SolveTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, e.config.SolveTimeout)
		defer cancel()
	}

	start := time.Now()
	programInfo := e.programInfo
	done := make(chan error, 1)
	go func() {
		_, err := mengine.EvalProgramWithStats(programInfo, store)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return types.SolveResult{}, fmt.Errorf("evaluation failed: %w", err)
		}
	case <-solveCtx.Done():
		if err := ctx.Err(); err != nil {
			return types.SolveResult{}, err
		}
		e.logger.Warn("Solve interrupted by timeout", zap.Duration("timeout", e.config.SolveTimeout))
		e.recordSolveLocked(trueCount, 0, start)
		return types.SolveResult{Status: types.StatusUnknown}, nil
	}

	if limit := e.config.FactLimit; limit > 0 && store.EstimateFactCount() > limit {
		e.logger.Warn("Fact limit exceeded during solve",
			zap.Int("limit", limit), zap.Int("facts", store.EstimateFactCount()))
		e.recordSolveLocked(trueCount, 0, start)
		return types.SolveResult{Status: types.StatusUnknown}, nil
	}

	var model []types.Atom
	contradiction := false
	for _, sym := range store.ListPredicates() {
		if sym.Symbol == e.config.Contradiction {
			err := store.GetFacts(ast.NewQuery(sym), func(ast.Atom) error {
				contradiction = true
				return nil
			})
			if err != nil {
				return types.SolveResult{}, fmt.Errorf("failed to read %s facts: %w", sym.Symbol, err)
			}
			continue
		}
		err := store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
			model = append(model, AtomFromAST(atom))
			return nil
		})
		if err != nil {
			return types.SolveResult{}, fmt.Errorf("failed to read model facts for %s: %w", sym.Symbol, err)
		}
	}

	if contradiction {
		e.recordSolveLocked(trueCount, 0, start)
		return types.SolveResult{Status: types.StatusUnsatisfiable}, nil
	}
	sortAtoms(model)
	e.recordSolveLocked(trueCount, len(model), start)
	return types.SolveResult{Status: types.StatusSatisfiable, Model: model}, nil
}

func (e *Engine) recordSolveLocked(trueExternals, modelFacts int, start time.Time) {
	e.stats.TrueExternals = trueExternals
	e.stats.LastModelFacts = modelFacts
	e.stats.LastSolveMillis = time.Since(start).Milliseconds()
}

// GetStats returns engine statistics.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	for _, frags := range e.fragments {
		s.Fragments += len(frags)
	}
	s.Externals = len(e.externals)
	return s
}

// Close releases engine resources.
func (e *Engine) Close() error {
	return nil
}
