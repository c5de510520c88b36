package milp

import (
	"context"
	"time"
)

type Status int

const (
	// StatusUnknown means the search stopped before finding any solution.
	StatusUnknown Status = iota
	StatusOptimal
	// StatusFeasible means a limit ended the search with an incumbent.
	StatusFeasible
	StatusInfeasible
	StatusUnbounded
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	default:
		return "unknown"
	}
}

type Options struct {
	TimeLimit time.Duration
	// MIPGap is the relative gap at which the search may stop.
	MIPGap  float64
	Verbose bool
	// Incumbent optionally seeds the search with a known solution. Engines
	// ignore it when it is not feasible for the model.
	Incumbent []float64
}

type Result struct {
	Status    Status
	Values    []float64
	Objective float64
	// Bound is the best proven lower bound; -Inf when unknown.
	Bound float64
	// Gap is the relative gap; -1 when the engine cannot report one.
	Gap     float64
	Nodes   int
	Runtime time.Duration
	// Seeded reports whether the incumbent option was accepted.
	Seeded bool
}

// Solver is an engine able to solve a Model.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *Model, opts Options) (*Result, error)
}

// RelativeGap is (incumbent - bound) / |incumbent|, zero when both meet.
func RelativeGap(incumbent, bound float64) float64 {
	diff := incumbent - bound
	if diff <= 0 {
		return 0
	}
	den := incumbent
	if den < 0 {
		den = -den
	}
	if den < 1e-9 {
		den = 1e-9
	}
	return diff / den
}
