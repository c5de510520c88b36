package milp

import (
	"collection-route-service/internal/platform/obs"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// DefaultMaxIntegers is the largest number of integer variables the
// embedded engine accepts unless BranchAndBound.MaxIntegers says otherwise.
const DefaultMaxIntegers = 400

// ErrModelTooLarge is returned by BranchAndBound for models above its
// integer variable cap.
var ErrModelTooLarge = errors.New("model too large for the embedded engine")

// BranchAndBound is the embedded engine: depth-first branch and bound over
// the dense simplex in this package. It is meant for small instances and
// for tests; large models belong on an external engine.
type BranchAndBound struct {
	// NodeLimit caps explored nodes; zero means no cap.
	NodeLimit int
	// MaxIntegers rejects larger models up front. Zero means
	// DefaultMaxIntegers and a negative value removes the cap.
	MaxIntegers int
}

func (BranchAndBound) Name() string { return "embedded" }

type bbNode struct {
	lo, hi []float64
	// bound is the parent relaxation value, a lower bound for the subtree.
	bound float64
}

func (b BranchAndBound) Solve(ctx context.Context, m *Model, opts Options) (*Result, error) {
	limit := b.MaxIntegers
	if limit == 0 {
		limit = DefaultMaxIntegers
	}
	if k := m.NumIntegers(); limit > 0 && k > limit {
		return nil, fmt.Errorf("branch and bound: %w: %d integer variables, limit %d; use SOLVER_ENGINE=highs",
			ErrModelTooLarge, k, limit)
	}

	start := time.Now()
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}

	res := &Result{Status: StatusUnknown, Bound: math.Inf(-1), Gap: -1}

	best := math.Inf(1)
	var incumbent []float64
	if opts.Incumbent != nil {
		if err := m.Check(opts.Incumbent, intTol); err == nil {
			incumbent = slices.Clone(opts.Incumbent)
			best = m.Objective(incumbent)
			res.Seeded = true
		} else if opts.Verbose {
			obs.Debugf(ctx, "op=milp.bnb seed_rejected=true reason=%q", err)
		}
	}

	n := m.NumVars()
	lo := make([]float64, n)
	hi := make([]float64, n)
	for j, v := range m.vars {
		lo[j], hi[j] = v.lower, v.upper
	}

	prune := func(bound float64) bool {
		if math.IsInf(best, 1) {
			return false
		}
		return bound >= best-math.Max(1e-6, opts.MIPGap*math.Abs(best))
	}

	stack := []bbNode{{lo: lo, hi: hi, bound: math.Inf(-1)}}
	floor := math.Inf(1)
	stopped := false

	for len(stack) > 0 {
		if ctx.Err() != nil || (b.NodeLimit > 0 && res.Nodes >= b.NodeLimit) {
			stopped = true
			break
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if prune(nd.bound) {
			floor = math.Min(floor, nd.bound)
			continue
		}

		res.Nodes++
		lp, err := solveLP(m, nd.lo, nd.hi)
		if err != nil {
			return nil, fmt.Errorf("branch and bound: node %d: %w", res.Nodes, err)
		}
		switch lp.status {
		case lpInfeasible:
			continue
		case lpUnbounded:
			res.Status = StatusUnbounded
			res.Runtime = time.Since(start)
			return res, nil
		}
		if prune(lp.obj) {
			floor = math.Min(floor, lp.obj)
			continue
		}

		j := branchVar(m, lp.x)
		if j < 0 {
			x := roundIntegral(m, lp.x)
			if err := m.Check(x, intTol); err != nil {
				fixed, ferr := repairRounded(m, nd.lo, nd.hi, x)
				if ferr != nil {
					return nil, fmt.Errorf("branch and bound: node %d: %w", res.Nodes, ferr)
				}
				if fixed == nil {
					// Rounding broke a constraint: split on the integer
					// furthest from its rounded value.
					children := roundedSplit(nd, worstRounded(m, nd, lp.x), lp.x, lp.obj)
					if opts.Verbose {
						obs.Debugf(ctx, "op=milp.bnb node=%d rounded_infeasible=true children=%d reason=%q",
							res.Nodes, len(children), err)
					}
					stack = append(stack, children...)
					continue
				}
				x = fixed
			}
			if obj := m.Objective(x); obj < best {
				best, incumbent = obj, x
				if opts.Verbose {
					obs.Debugf(ctx, "op=milp.bnb node=%d incumbent=%.6f open=%d", res.Nodes, best, len(stack))
				}
			}
			continue
		}

		v := lp.x[j]
		down := bbNode{lo: nd.lo, hi: slices.Clone(nd.hi), bound: lp.obj}
		down.hi[j] = math.Floor(v)
		up := bbNode{lo: slices.Clone(nd.lo), hi: nd.hi, bound: lp.obj}
		up.lo[j] = math.Ceil(v)
		// The up branch is explored first: fixing a binary to one tends to
		// reach complete routes quickly.
		stack = append(stack, down, up)
	}

	res.Runtime = time.Since(start)

	bound := math.Min(floor, best)
	if stopped {
		for _, nd := range stack {
			bound = math.Min(bound, nd.bound)
		}
	}
	res.Bound = bound

	switch {
	case incumbent == nil && stopped:
		res.Status = StatusUnknown
	case incumbent == nil:
		res.Status = StatusInfeasible
	default:
		res.Values = incumbent
		res.Objective = best
		if !math.IsInf(bound, -1) {
			res.Gap = RelativeGap(best, bound)
		}
		if stopped {
			res.Status = StatusFeasible
		} else {
			res.Status = StatusOptimal
		}
	}

	if opts.Verbose {
		obs.Debugf(ctx, "op=milp.bnb status=%s nodes=%d objective=%.6f gap=%.6f dur=%dms",
			res.Status, res.Nodes, res.Objective, res.Gap, res.Runtime.Milliseconds())
	}
	return res, nil
}

// branchVar picks the fractional integer variable with the highest
// priority, breaking ties by the fraction closest to one half.
func branchVar(m *Model, x []float64) int {
	pick := -1
	bestPrio := math.MinInt
	bestScore := 0.0
	for j, v := range m.vars {
		if v.kind == Continuous {
			continue
		}
		frac := x[j] - math.Floor(x[j])
		if frac <= intTol || frac >= 1-intTol {
			continue
		}
		score := math.Min(frac, 1-frac)
		if v.priority > bestPrio || (v.priority == bestPrio && score > bestScore) {
			pick, bestPrio, bestScore = j, v.priority, score
		}
	}
	return pick
}

func roundIntegral(m *Model, x []float64) []float64 {
	out := slices.Clone(x)
	for j, v := range m.vars {
		if v.kind != Continuous {
			out[j] = math.Round(out[j])
		}
	}
	return out
}

// repairRounded fixes every integer variable at its value in x and solves
// the remaining LP. It returns nil when that leaves no point that passes
// Check.
func repairRounded(m *Model, lo, hi, x []float64) ([]float64, error) {
	flo, fhi := slices.Clone(lo), slices.Clone(hi)
	for j, v := range m.vars {
		if v.kind == Continuous {
			continue
		}
		r := math.Min(math.Max(x[j], lo[j]), hi[j])
		flo[j], fhi[j] = r, r
	}
	lp, err := solveLP(m, flo, fhi)
	if err != nil {
		return nil, err
	}
	if lp.status != lpOptimal {
		return nil, nil
	}
	y := roundIntegral(m, lp.x)
	if m.Check(y, intTol) != nil {
		return nil, nil
	}
	return y, nil
}

// worstRounded returns the unfixed integer variable whose value in x is
// furthest from the nearest integer, or -1 when all of them are exact.
func worstRounded(m *Model, nd bbNode, x []float64) int {
	pick, worst := -1, 0.0
	for j, v := range m.vars {
		if v.kind == Continuous || nd.lo[j] >= nd.hi[j] {
			continue
		}
		if d := math.Abs(x[j] - math.Round(x[j])); d > worst {
			pick, worst = j, d
		}
	}
	return pick
}

// roundedSplit splits nd on variable j, whose value sits just off an
// integer, so that neither child contains that integer on the side x
// approaches from. It returns no children when a side would not shrink
// the node.
func roundedSplit(nd bbNode, j int, x []float64, bound float64) []bbNode {
	if j < 0 {
		return nil
	}
	r := math.Round(x[j])
	downHi, upLo := r, r+1
	if x[j] < r {
		downHi, upLo = r-1, r
	}
	if downHi >= nd.hi[j] || upLo <= nd.lo[j] {
		return nil
	}
	var out []bbNode
	if downHi >= nd.lo[j] {
		down := bbNode{lo: nd.lo, hi: slices.Clone(nd.hi), bound: bound}
		down.hi[j] = downHi
		out = append(out, down)
	}
	if upLo <= nd.hi[j] {
		up := bbNode{lo: slices.Clone(nd.lo), hi: nd.hi, bound: bound}
		up.lo[j] = upLo
		out = append(out, up)
	}
	return out
}
