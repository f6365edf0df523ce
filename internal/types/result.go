package types

// Status is the tri-state outcome of a solve call.
type Status int

const (
	StatusUnknown Status = iota
	StatusSatisfiable
	StatusUnsatisfiable
)

func (s Status) String() string {
	switch s {
	case StatusSatisfiable:
		return "SAT"
	case StatusUnsatisfiable:
		return "UNSAT"
	default:
		return "UNKNOWN"
	}
}

// SolveResult is what the engine reports for one solve call.
// Model is only populated when the result is satisfiable.
type SolveResult struct {
	Status Status
	Model  []Atom
}

func (r SolveResult) Satisfiable() bool   { return r.Status == StatusSatisfiable }
func (r SolveResult) Unsatisfiable() bool { return r.Status == StatusUnsatisfiable }
func (r SolveResult) Unknown() bool       { return r.Status == StatusUnknown }
