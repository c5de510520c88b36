package highs

import (
	"collection-route-service/internal/milp"
	"math"
	"testing"
	"time"

	"github.com/nextmv-io/sdk/mip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLower(t *testing.T) {
	m := milp.NewModel()
	x := m.NewBinary("x")
	n := m.NewInteger("n", -2.5, 7.5)
	z := m.NewContinuous("z", 1, math.Inf(1))
	m.AddObjective(3, x)
	m.AddObjective(-1.5, z)
	m.AddObjectiveConstant(10)
	m.AddConstraint("le", milp.LessEqual, 4, milp.T(1, x), milp.T(2, n))
	m.AddConstraint("ge", milp.GreaterEqual, -1, milp.T(1, z))
	m.AddConstraint("eq", milp.Equal, 2, milp.T(1, n), milp.T(-1, z))

	p := lower(m)

	assert.Equal(t, []column{
		{kind: milp.Binary, lo: 0, hi: 1, cost: 3},
		{kind: milp.Integer, lo: -2, hi: 7},
		{kind: milp.Continuous, lo: 1, hi: highsInf, cost: -1.5},
	}, p.cols)
	assert.Equal(t, 10.0, p.offset)

	require.Len(t, p.rows, 3)
	assert.Equal(t, mip.LessThanOrEqual, p.rows[0].sense)
	assert.Equal(t, 4.0, p.rows[0].rhs)
	assert.Equal(t, []milp.Term{milp.T(1, x), milp.T(2, n)}, p.rows[0].terms)
	assert.Equal(t, mip.GreaterThanOrEqual, p.rows[1].sense)
	assert.Equal(t, -1.0, p.rows[1].rhs)
	assert.Equal(t, mip.Equal, p.rows[2].sense)
	assert.Equal(t, 2.0, p.rows[2].rhs)
}

func TestLowerClampsIntegerBounds(t *testing.T) {
	m := milp.NewModel()
	m.NewInteger("n", -1e12, 1e12)

	p := lower(m)
	assert.Equal(t, float64(math.MinInt32), p.cols[0].lo)
	assert.Equal(t, float64(math.MaxInt32), p.cols[0].hi)
}

type fakeVar struct {
	mip.Var
	index int
}

func (v fakeVar) Index() int { return v.index }

type fakeOutcome struct {
	infeasible, unbounded, optimal bool
	values                         []float64
	objective                      float64
}

func (o fakeOutcome) IsInfeasible() bool { return o.infeasible }
func (o fakeOutcome) IsUnbounded() bool { return o.unbounded }
func (o fakeOutcome) IsOptimal() bool { return o.optimal }
func (o fakeOutcome) HasValues() bool { return o.values != nil }
func (o fakeOutcome) ObjectiveValue() float64 { return o.objective }
func (o fakeOutcome) RunTime() time.Duration { return 2 * time.Second }
func (o fakeOutcome) Value(v mip.Var) float64 { return o.values[v.Index()] }

func TestCollect(t *testing.T) {
	p := program{offset: 10}
	vars := []mip.Var{fakeVar{index: 0}, fakeVar{index: 1}}

	t.Run("optimal adds the objective constant", func(t *testing.T) {
		res := collect(p, vars, fakeOutcome{optimal: true, values: []float64{1, 2.5}, objective: 4})
		assert.Equal(t, milp.StatusOptimal, res.Status)
		assert.Equal(t, []float64{1, 2.5}, res.Values)
		assert.Equal(t, 14.0, res.Objective)
		assert.Equal(t, 14.0, res.Bound)
		assert.Equal(t, 0.0, res.Gap)
		assert.Equal(t, 2*time.Second, res.Runtime)
		assert.False(t, res.Seeded)
	})

	t.Run("stopped early", func(t *testing.T) {
		res := collect(p, vars, fakeOutcome{values: []float64{0, 1}, objective: 5})
		assert.Equal(t, milp.StatusFeasible, res.Status)
		assert.Equal(t, 15.0, res.Objective)
		assert.Equal(t, -1.0, res.Gap)
		assert.True(t, math.IsInf(res.Bound, -1))
	})

	t.Run("infeasible", func(t *testing.T) {
		assert.Equal(t, milp.StatusInfeasible, collect(p, vars, fakeOutcome{infeasible: true}).Status)
	})

	t.Run("unbounded", func(t *testing.T) {
		assert.Equal(t, milp.StatusUnbounded, collect(p, vars, fakeOutcome{unbounded: true}).Status)
	})

	t.Run("no values", func(t *testing.T) {
		res := collect(p, vars, fakeOutcome{})
		assert.Equal(t, milp.StatusUnknown, res.Status)
		assert.Nil(t, res.Values)
	})

	t.Run("no outcome", func(t *testing.T) {
		assert.Equal(t, milp.StatusUnknown, collect(p, vars, nil).Status)
	})
}
