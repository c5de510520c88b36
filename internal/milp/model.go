// Package milp holds a solver-neutral mixed-integer linear model and the
// engines that solve it.
package milp

import (
	"fmt"
	"math"
)

type VarKind int

const (
	Continuous VarKind = iota
	Integer
	Binary
)

// Var is a handle to a variable of one Model.
type Var int

type Sense int

const (
	LessEqual Sense = iota
	Equal
	GreaterEqual
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return "=="
	}
}

type Term struct {
	Var  Var
	Coef float64
}

// T is shorthand for building terms.
func T(coef float64, v Var) Term { return Term{Var: v, Coef: coef} }

type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

type variable struct {
	name     string
	kind     VarKind
	lower    float64
	upper    float64
	priority int
}

// Model is a minimisation problem. Every variable needs a finite lower bound.
type Model struct {
	vars     []variable
	cons     []Constraint
	obj      []float64
	objConst float64
}

func NewModel() *Model {
	return &Model{}
}

func (m *Model) newVar(name string, kind VarKind, lb, ub float64) Var {
	m.vars = append(m.vars, variable{name: name, kind: kind, lower: lb, upper: ub})
	m.obj = append(m.obj, 0)
	return Var(len(m.vars) - 1)
}

func (m *Model) NewBinary(name string) Var { return m.newVar(name, Binary, 0, 1) }

func (m *Model) NewInteger(name string, lb, ub float64) Var {
	return m.newVar(name, Integer, math.Ceil(lb), math.Floor(ub))
}

func (m *Model) NewContinuous(name string, lb, ub float64) Var {
	return m.newVar(name, Continuous, lb, ub)
}

// SetPriority makes branching prefer fractional variables of higher priority.
func (m *Model) SetPriority(v Var, p int) { m.vars[v].priority = p }

// AddConstraint merges repeated variables and drops zero coefficients.
func (m *Model) AddConstraint(name string, sense Sense, rhs float64, terms ...Term) {
	merged := make([]Term, 0, len(terms))
	pos := make(map[Var]int, len(terms))
	for _, t := range terms {
		if i, ok := pos[t.Var]; ok {
			merged[i].Coef += t.Coef
			continue
		}
		pos[t.Var] = len(merged)
		merged = append(merged, t)
	}
	out := merged[:0]
	for _, t := range merged {
		if t.Coef != 0 {
			out = append(out, t)
		}
	}
	m.cons = append(m.cons, Constraint{Name: name, Terms: out, Sense: sense, RHS: rhs})
}

func (m *Model) AddObjective(coef float64, v Var) { m.obj[v] += coef }

func (m *Model) AddObjectiveConstant(c float64) { m.objConst += c }

func (m *Model) NumVars() int { return len(m.vars) }

// NumIntegers counts binary and integer variables.
func (m *Model) NumIntegers() int {
	n := 0
	for _, v := range m.vars {
		if v.kind != Continuous {
			n++
		}
	}
	return n
}

func (m *Model) NumConstraints() int { return len(m.cons) }

func (m *Model) Name(v Var) string { return m.vars[v].name }

func (m *Model) Kind(v Var) VarKind { return m.vars[v].kind }

func (m *Model) Bounds(v Var) (float64, float64) { return m.vars[v].lower, m.vars[v].upper }

func (m *Model) Constraints() []Constraint { return m.cons }

// ObjectiveCoef returns the objective coefficient of v.
func (m *Model) ObjectiveCoef(v Var) float64 { return m.obj[v] }

func (m *Model) ObjectiveConstant() float64 { return m.objConst }

// Objective evaluates the objective at x.
func (m *Model) Objective(x []float64) float64 {
	total := m.objConst
	for v, c := range m.obj {
		if c != 0 {
			total += c * x[v]
		}
	}
	return total
}

// Check reports the first bound, integrality or constraint violation at x.
// Tolerances scale with the magnitude of the terms involved.
func (m *Model) Check(x []float64, tol float64) error {
	if len(x) != len(m.vars) {
		return fmt.Errorf("check: got %d values for %d variables", len(x), len(m.vars))
	}
	for i, v := range m.vars {
		val := x[i]
		if math.IsNaN(val) {
			return fmt.Errorf("check: %s is NaN", v.name)
		}
		if val < v.lower-tol || val > v.upper+tol {
			return fmt.Errorf("check: %s=%g outside [%g, %g]", v.name, val, v.lower, v.upper)
		}
		if v.kind != Continuous && math.Abs(val-math.Round(val)) > tol {
			return fmt.Errorf("check: %s=%g is not integral", v.name, val)
		}
	}
	for _, c := range m.cons {
		lhs, scale := 0.0, 1.0
		for _, t := range c.Terms {
			p := t.Coef * x[t.Var]
			lhs += p
			scale = math.Max(scale, math.Abs(p))
		}
		scale = math.Max(scale, math.Abs(c.RHS))
		slack := tol * scale
		var bad bool
		switch c.Sense {
		case LessEqual:
			bad = lhs > c.RHS+slack
		case GreaterEqual:
			bad = lhs < c.RHS-slack
		default:
			bad = math.Abs(lhs-c.RHS) > slack
		}
		if bad {
			return fmt.Errorf("check: constraint %s violated: %g %s %g", c.Name, lhs, c.Sense, c.RHS)
		}
	}
	return nil
}
