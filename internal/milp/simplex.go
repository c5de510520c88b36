package milp

import (
	"errors"
	"fmt"
	"math"
)

const (
	pivotTol = 1e-9
	costTol  = 1e-9
	feasTol  = 1e-7
	zeroTol  = 1e-11
	intTol   = 1e-6
)

var errIterationLimit = errors.New("simplex: iteration limit reached")

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
)

type lpResult struct {
	status lpStatus
	x      []float64
	obj    float64
}

type lpRow struct {
	coef  []float64
	sense Sense
	rhs   float64
}

// solveLP solves the continuous relaxation of m with variable bounds
// overridden by lo and hi. Fixed variables are substituted out; finite
// upper bounds become explicit rows.
func solveLP(m *Model, lo, hi []float64) (lpResult, error) {
	n := len(m.vars)
	col := make([]int, n)
	var cols []int
	for j := range n {
		if math.IsInf(lo[j], -1) || math.IsNaN(lo[j]) {
			return lpResult{}, fmt.Errorf("simplex: variable %s has no finite lower bound", m.vars[j].name)
		}
		if hi[j] < lo[j]-feasTol {
			return lpResult{status: lpInfeasible}, nil
		}
		if hi[j]-lo[j] <= feasTol {
			col[j] = -1
			continue
		}
		col[j] = len(cols)
		cols = append(cols, j)
	}
	ns := len(cols)

	rows := make([]lpRow, 0, len(m.cons)+ns)
	for _, c := range m.cons {
		r := lpRow{coef: make([]float64, ns), sense: c.Sense, rhs: c.RHS}
		structural := false
		for _, t := range c.Terms {
			r.rhs -= t.Coef * lo[t.Var]
			if k := col[t.Var]; k >= 0 {
				r.coef[k] += t.Coef
				structural = true
			}
		}
		if !structural {
			if !constantHolds(r.sense, r.rhs) {
				return lpResult{status: lpInfeasible}, nil
			}
			continue
		}
		rows = append(rows, r)
	}
	for k, j := range cols {
		if math.IsInf(hi[j], 1) {
			continue
		}
		r := lpRow{coef: make([]float64, ns), sense: LessEqual, rhs: hi[j] - lo[j]}
		r.coef[k] = 1
		rows = append(rows, r)
	}

	cost := make([]float64, ns)
	for k, j := range cols {
		cost[k] = m.obj[j]
	}

	xs, status, err := simplex(cost, rows)
	if err != nil {
		return lpResult{}, err
	}
	if status != lpOptimal {
		return lpResult{status: status}, nil
	}

	x := make([]float64, n)
	for j := range n {
		x[j] = lo[j]
		if k := col[j]; k >= 0 {
			x[j] += xs[k]
		}
	}
	return lpResult{status: lpOptimal, x: x, obj: m.Objective(x)}, nil
}

func constantHolds(s Sense, rhs float64) bool {
	switch s {
	case LessEqual:
		return 0 <= rhs+feasTol
	case GreaterEqual:
		return 0 >= rhs-feasTol
	default:
		return math.Abs(rhs) <= feasTol
	}
}

// tableau is a dense two-phase primal simplex tableau. Column width holds
// the right-hand side; obj holds reduced costs and -z in its last cell.
type tableau struct {
	a     [][]float64
	obj   []float64
	basis []int
	width int
	art   int
	nz    []int
}

// simplex minimises cost.x subject to rows and x >= 0.
func simplex(cost []float64, rows []lpRow) ([]float64, lpStatus, error) {
	ns := len(cost)

	nSlack, nArt := 0, 0
	maxRHS := 0.0
	for i := range rows {
		r := &rows[i]
		if r.rhs < 0 {
			for k := range r.coef {
				r.coef[k] = -r.coef[k]
			}
			r.rhs = -r.rhs
			switch r.sense {
			case LessEqual:
				r.sense = GreaterEqual
			case GreaterEqual:
				r.sense = LessEqual
			}
		}
		maxRHS = math.Max(maxRHS, r.rhs)
		if r.sense != Equal {
			nSlack++
		}
		if r.sense != LessEqual {
			nArt++
		}
	}

	width := ns + nSlack + nArt
	t := &tableau{
		a:     make([][]float64, len(rows)),
		basis: make([]int, len(rows)),
		width: width,
		art:   ns + nSlack,
		nz:    make([]int, 0, width+1),
	}

	s, a := ns, ns+nSlack
	for i, r := range rows {
		row := make([]float64, width+1)
		copy(row, r.coef)
		row[width] = r.rhs
		switch r.sense {
		case LessEqual:
			row[s] = 1
			t.basis[i] = s
			s++
		case GreaterEqual:
			row[s] = -1
			s++
			row[a] = 1
			t.basis[i] = a
			a++
		default:
			row[a] = 1
			t.basis[i] = a
			a++
		}
		t.a[i] = row
	}

	if nArt > 0 {
		phase1 := make([]float64, width)
		for j := t.art; j < width; j++ {
			phase1[j] = 1
		}
		t.setObjective(phase1)
		if _, err := t.run(width); err != nil {
			return nil, lpOptimal, err
		}
		if -t.obj[width] > feasTol*(1+maxRHS) {
			return nil, lpInfeasible, nil
		}
		t.driveOutArtificials()
	}

	full := make([]float64, width)
	copy(full, cost)
	t.setObjective(full)
	status, err := t.run(t.art)
	if err != nil {
		return nil, lpOptimal, err
	}
	if status == lpUnbounded {
		return nil, lpUnbounded, nil
	}

	x := make([]float64, ns)
	for i, b := range t.basis {
		if b < ns {
			x[b] = math.Max(0, t.a[i][width])
		}
	}
	return x, lpOptimal, nil
}

func (t *tableau) setObjective(c []float64) {
	obj := make([]float64, t.width+1)
	copy(obj, c)
	for i, b := range t.basis {
		cb := c[b]
		if cb == 0 {
			continue
		}
		for j, v := range t.a[i] {
			if v != 0 {
				obj[j] -= cb * v
			}
		}
	}
	t.obj = obj
}

// run pivots until no column below limit has a negative reduced cost.
// Dantzig pricing is used until the objective stalls, then Bland's rule
// takes over for the rest of the phase to rule out cycling.
func (t *tableau) run(limit int) (lpStatus, error) {
	maxIter := 50*(len(t.a)+t.width) + 1000
	bland := false
	stall := 0
	last := t.obj[t.width]

	for range maxIter {
		k := -1
		best := -costTol
		for j := range limit {
			d := t.obj[j]
			if d >= -costTol {
				continue
			}
			if bland {
				k = j
				break
			}
			if d < best {
				best = d
				k = j
			}
		}
		if k < 0 {
			return lpOptimal, nil
		}

		r := -1
		ratio := 0.0
		for i, row := range t.a {
			aik := row[k]
			if aik <= pivotTol {
				continue
			}
			q := math.Max(0, row[t.width]) / aik
			if r < 0 || q < ratio-1e-12 || (q <= ratio+1e-12 && t.basis[i] < t.basis[r]) {
				r = i
				ratio = q
			}
		}
		if r < 0 {
			return lpUnbounded, nil
		}

		t.pivot(r, k)

		cur := t.obj[t.width]
		if cur > last+1e-12 {
			last = cur
			stall = 0
		} else if stall++; stall > 30 {
			bland = true
		}
	}
	return lpOptimal, errIterationLimit
}

func (t *tableau) pivot(r, k int) {
	pr := t.a[r]
	inv := 1 / pr[k]
	nz := t.nz[:0]
	for j, v := range pr {
		if v == 0 {
			continue
		}
		v *= inv
		if math.Abs(v) < zeroTol {
			pr[j] = 0
			continue
		}
		pr[j] = v
		nz = append(nz, j)
	}
	pr[k] = 1

	update := func(row []float64) {
		f := row[k]
		if f == 0 {
			return
		}
		for _, j := range nz {
			v := row[j] - f*pr[j]
			if math.Abs(v) < zeroTol {
				v = 0
			}
			row[j] = v
		}
		row[k] = 0
	}
	for i, row := range t.a {
		if i != r {
			update(row)
		}
	}
	update(t.obj)

	t.basis[r] = k
	t.nz = nz
}

// driveOutArtificials pivots zero-valued artificials out of the basis.
// Rows where that is impossible are redundant and keep their artificial
// at zero; artificial columns never re-enter in phase two.
func (t *tableau) driveOutArtificials() {
	for i := range t.a {
		if t.basis[i] < t.art {
			continue
		}
		for j := 0; j < t.art; j++ {
			if math.Abs(t.a[i][j]) > 1e-7 {
				t.pivot(i, j)
				break
			}
		}
	}
}
