package plan

import (
	"fmt"

	"incplan/internal/types"
)

// Visit is one orig(agent, location, arrival, exit) fact: agent occupies location
// from arrival until exit.
type Visit struct {
	Agent    types.Term
	Location types.Term
	Arrival  int64
	Exit     types.Term
}

// VisitFromAtom converts an orig/4 atom. The arrival time must be a number.
func VisitFromAtom(atom types.Atom) (Visit, error) {
	if atom.Name != "orig" || len(atom.Args) != 4 {
		return Visit{}, fmt.Errorf("%s is not an orig/4 fact", atom)
	}
	arrival, ok := atom.Args[2].AsInt()
	if !ok {
		return Visit{}, fmt.Errorf("%s: arrival time %s is not a number", atom, atom.Args[2])
	}
	return Visit{
		Agent:    atom.Args[0],
		Location: atom.Args[1],
		Arrival:  arrival,
		Exit:     atom.Args[3],
	}, nil
}

// Atom renders the visit back to orig/4.
func (v Visit) Atom() types.Atom {
	return types.NewAtom("orig", v.Agent, v.Location, types.Number(v.Arrival), v.Exit)
}

// Visits picks the orig/4 facts out of atoms. Other predicates are skipped.
func Visits(atoms []types.Atom) ([]Visit, error) {
	var out []Visit
	for _, atom := range atoms {
		if atom.Name != "orig" || len(atom.Args) != 4 {
			continue
		}
		v, err := VisitFromAtom(atom)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
