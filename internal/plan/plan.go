// Package plan extracts the shown part of a model and reads and writes plan files.
package plan

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"incplan/internal/mangle"
	"incplan/internal/types"
)

// DefaultSignatures is the allow-list written to the plan file.
var DefaultSignatures = []types.Signature{
	{Name: "orig", Arity: 4},
	{Name: "conflict_location", Arity: 3},
}

// Extract keeps the atoms whose signature is in allow, sorted by rendered text.
// An empty allow-list keeps nothing.
func Extract(model []types.Atom, allow []types.Signature) []types.Atom {
	keep := make(map[types.Signature]bool, len(allow))
	for _, sig := range allow {
		keep[sig] = true
	}
	var out []types.Atom
	for _, atom := range model {
		if keep[atom.Signature()] {
			out = append(out, atom)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

// WriteFacts writes one "atom." line per atom.
func WriteFacts(w io.Writer, atoms []types.Atom) error {
	bw := bufio.NewWriter(w)
	for _, atom := range atoms {
		if _, err := fmt.Fprintf(bw, "%s.\n", atom); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile replaces path with the given facts. Plan and conflict files both go
// through here.
func WriteFile(path string, atoms []types.Atom) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create fact file: %w", err)
	}
	if err := WriteFacts(f, atoms); err != nil {
		f.Close()
		return fmt.Errorf("failed to write fact file %s: %w", path, err)
	}
	return f.Close()
}

// ReadFile parses a plan file written by WriteFile.
func ReadFile(path string) ([]types.Atom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan file: %w", err)
	}
	defer f.Close()

	atoms, err := mangle.ParseFacts(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return atoms, nil
}
