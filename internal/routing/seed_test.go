package routing

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/instance"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearestNeighborSeed(t *testing.T) {
	inst := build(t, scenarioA())

	sol, err := NearestNeighborSeed(inst, FormulationOptions{})
	require.NoError(t, err)
	require.NoError(t, Verify(inst, sol))

	require.Len(t, sol.Routes, 1)
	r := sol.Routes[0]
	assert.Equal(t, []string{"a", "b", "F", "c", "F"}, stopIDs(r))
	assert.Equal(t, 2, r.Trips)
	assert.Equal(t, -1.0, sol.Gap)
	assert.InDelta(t, r.Cost, sol.Objective, 1e-9)
}

func TestNearestNeighborSeedIsDeterministic(t *testing.T) {
	e := scenarioA()
	// b and c are the same distance from a.
	e.Customers = []domain.Customer{
		{ID: "a", Location: at(1, 0), Demand: 1},
		{ID: "c", Location: at(1, 1), Demand: 1},
		{ID: "b", Location: at(1, -1), Demand: 1},
	}
	inst := build(t, e)

	first, err := NearestNeighborSeed(inst, FormulationOptions{})
	require.NoError(t, err)
	for range 5 {
		again, err := NearestNeighborSeed(inst, FormulationOptions{})
		require.NoError(t, err)
		assert.Equal(t, first.Routes, again.Routes)
	}
	assert.Equal(t, []string{"a", "b", "c", "F"}, stopIDs(first.Routes[0]))
}

func TestNearestNeighborSeedFailsWhenFleetIsShort(t *testing.T) {
	e := scenarioA()
	e.Customers = e.Customers[:1]
	// Long enough for a depot round trip to a, too short once the final
	// disposal visit is added.
	e.Vehicles[0].MaxShift = 60
	inst := build(t, e)

	_, err := NearestNeighborSeed(inst, FormulationOptions{})
	assert.ErrorContains(t, err, "unassigned")
}

func TestTranslateWarmStart(t *testing.T) {
	baseInst := build(t, scenarioA())
	baseline, err := NearestNeighborSeed(baseInst, FormulationOptions{})
	require.NoError(t, err)

	t.Run("removed and added customers", func(t *testing.T) {
		e := scenarioA()
		e.Customers = append(e.Customers[:1], e.Customers[2], domain.Customer{ID: "d", Location: at(9, 2), Demand: 2})
		inst := build(t, e)

		sol, err := TranslateWarmStart(inst, FormulationOptions{}, baseline)
		require.NoError(t, err)
		require.NoError(t, Verify(inst, sol))
		assert.Equal(t, map[string]string{"a": "truck", "c": "truck", "d": "truck"}, sol.Assignment())
	})

	t.Run("blocked arc is avoided", func(t *testing.T) {
		require.True(t, baseline.Uses("a", "b"))
		inst := build(t, scenarioA(), domain.ArcRef{From: "a", To: "b"})

		sol, err := TranslateWarmStart(inst, FormulationOptions{}, baseline)
		require.NoError(t, err)
		require.NoError(t, Verify(inst, sol))
		assert.False(t, sol.Uses("a", "b"))
	})

	t.Run("disabled vehicle hands over its customers", func(t *testing.T) {
		e := scenarioA()
		e.Vehicles = append(e.Vehicles, domain.Vehicle{ID: "spare", Capacity: 10, MaxShift: 200})
		inst := buildInput(t, instance.BuildInput{Entities: e, Disabled: []string{"truck"}})

		sol, err := TranslateWarmStart(inst, FormulationOptions{}, baseline)
		require.NoError(t, err)
		require.NoError(t, Verify(inst, sol))
		require.Len(t, sol.Routes, 1)
		assert.Equal(t, "spare", sol.Routes[0].VehicleID)
	})

	t.Run("nil baseline", func(t *testing.T) {
		_, err := TranslateWarmStart(baseInst, FormulationOptions{}, nil)
		assert.Error(t, err)
	})
}

func TestRouteFits(t *testing.T) {
	inst := build(t, scenarioA())
	a, _ := inst.NodeIndex("a")
	b, _ := inst.NodeIndex("b")
	c, _ := inst.NodeIndex("c")
	f := inst.Facility()

	tests := []struct {
		name   string
		seq    []int
		opts   FormulationOptions
		copies int
		want   bool
	}{
		{name: "empty", want: true},
		{name: "one trip", seq: []int{a, c, f}, copies: 1, want: true},
		{name: "over capacity", seq: []int{a, b, c, f}, copies: 1},
		{name: "two trips", seq: []int{a, b, f, c, f}, copies: 2, want: true},
		{name: "too many dumps", seq: []int{a, b, f, c, f}, copies: 1},
		{name: "missing final dump", seq: []int{a, c}, copies: 1},
		{name: "direct return", seq: []int{a, c}, opts: FormulationOptions{AllowDirectReturn: true}, want: true},
		{name: "starts at facility", seq: []int{f, a, f}, copies: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, routeFits(inst, 0, tt.seq, tt.opts, tt.copies))
		})
	}
}

func TestTrimFacilities(t *testing.T) {
	assert.Equal(t, []int{1, 4, 2, 4}, trimFacilities([]int{4, 1, 4, 4, 2, 4}, 4))
	assert.Empty(t, trimFacilities([]int{4, 4}, 4))
}
