// Package highs runs milp models on the HiGHS engine through the nextmv
// mip SDK. The SDK loads HiGHS as a plugin at solve time.
package highs

import (
	"collection-route-service/internal/milp"
	"collection-route-service/internal/platform/obs"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nextmv-io/sdk/mip"
)

// highsInf is where HiGHS starts treating a bound as infinite.
const highsInf = 1e30

type Solver struct{}

func New() *Solver { return &Solver{} }

func (*Solver) Name() string { return "highs" }

// Solve translates m into an SDK model and solves it. The SDK does not
// expose warm starts or branching priorities, so Incumbent and priorities
// are ignored and Result.Seeded is always false. The relative gap is only
// known when HiGHS proves optimality.
func (s *Solver) Solve(ctx context.Context, m *milp.Model, opts milp.Options) (_ *milp.Result, err error) {
	defer obs.Time(ctx, "highs.Solve")(&err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Incumbent != nil {
		obs.Infof(ctx, "op=highs.Solve warm_start=ignored reason=%q", "the mip SDK takes no incumbent")
	}

	prog := lower(m)
	sm, vars := prog.build()

	solver, err := mip.NewSolver("highs", sm)
	if err != nil {
		return nil, fmt.Errorf("highs: create solver: %w", err)
	}

	so := mip.NewSolveOptions()
	if opts.TimeLimit > 0 {
		limit := opts.TimeLimit
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, time.Until(dl))
		}
		if err := so.SetMaximumDuration(limit); err != nil {
			return nil, fmt.Errorf("highs: time limit: %w", err)
		}
	}
	if err := so.SetMIPGapRelative(opts.MIPGap); err != nil {
		return nil, fmt.Errorf("highs: mip gap: %w", err)
	}
	if opts.Verbose {
		so.SetVerbosity(mip.High)
	} else {
		so.SetVerbosity(mip.Off)
	}

	sol, err := solver.Solve(so)
	if err != nil {
		return nil, fmt.Errorf("highs: solve: %w", err)
	}
	return collect(prog, vars, sol), nil
}

// column is one variable as HiGHS receives it.
type column struct {
	kind   milp.VarKind
	lo, hi float64
	cost   float64
}

type row struct {
	sense mip.Sense
	rhs   float64
	terms []milp.Term
}

// program is a milp.Model lowered to what the SDK can express. The SDK
// objective has no constant, so it is carried in offset and added back to
// reported objectives.
type program struct {
	cols   []column
	rows   []row
	offset float64
}

func lower(m *milp.Model) program {
	p := program{cols: make([]column, m.NumVars()), offset: m.ObjectiveConstant()}
	for j := range p.cols {
		v := milp.Var(j)
		lo, hi := m.Bounds(v)
		col := column{kind: m.Kind(v), lo: lo, hi: math.Min(hi, highsInf), cost: m.ObjectiveCoef(v)}
		switch col.kind {
		case milp.Binary:
			col.lo, col.hi = 0, 1
		case milp.Integer:
			col.lo = math.Max(col.lo, math.MinInt32)
			col.hi = math.Min(col.hi, math.MaxInt32)
		}
		p.cols[j] = col
	}

	for _, c := range m.Constraints() {
		r := row{rhs: c.RHS, terms: c.Terms}
		switch c.Sense {
		case milp.LessEqual:
			r.sense = mip.LessThanOrEqual
		case milp.GreaterEqual:
			r.sense = mip.GreaterThanOrEqual
		default:
			r.sense = mip.Equal
		}
		p.rows = append(p.rows, r)
	}
	return p
}

// build creates the SDK model. It needs the SDK plugin.
func (p program) build() (mip.Model, []mip.Var) {
	sm := mip.NewModel()
	sm.Objective().SetMinimize()

	vars := make([]mip.Var, len(p.cols))
	for j, c := range p.cols {
		switch c.kind {
		case milp.Binary:
			vars[j] = sm.NewBool()
		case milp.Integer:
			vars[j] = sm.NewInt(int64(c.lo), int64(c.hi))
		default:
			vars[j] = sm.NewFloat(c.lo, c.hi)
		}
		if c.cost != 0 {
			sm.Objective().NewTerm(c.cost, vars[j])
		}
	}
	for _, r := range p.rows {
		con := sm.NewConstraint(r.sense, r.rhs)
		for _, t := range r.terms {
			con.NewTerm(t.Coef, vars[t.Var])
		}
	}
	return sm, vars
}

// outcome is the part of mip.Solution collect reads.
type outcome interface {
	IsInfeasible() bool
	IsUnbounded() bool
	IsOptimal() bool
	HasValues() bool
	ObjectiveValue() float64
	RunTime() time.Duration
	Value(v mip.Var) float64
}

// collect maps an SDK outcome onto a milp.Result. A nil outcome means
// HiGHS stopped without an answer.
func collect(p program, vars []mip.Var, sol outcome) *milp.Result {
	res := &milp.Result{Status: milp.StatusUnknown, Bound: math.Inf(-1), Gap: -1}
	if sol == nil {
		return res
	}
	res.Runtime = sol.RunTime()

	switch {
	case sol.IsInfeasible():
		res.Status = milp.StatusInfeasible
		return res
	case sol.IsUnbounded():
		res.Status = milp.StatusUnbounded
		return res
	case !sol.HasValues():
		return res
	}

	res.Values = make([]float64, len(vars))
	for i, v := range vars {
		res.Values[i] = sol.Value(v)
	}
	res.Objective = sol.ObjectiveValue() + p.offset

	if sol.IsOptimal() {
		res.Status = milp.StatusOptimal
		res.Bound = res.Objective
		res.Gap = 0
	} else {
		res.Status = milp.StatusFeasible
	}
	return res
}
