package instance

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/matrix"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(x, y float64) *domain.Coordinates { return &domain.Coordinates{Lon: x, Lat: y} }

func lineEntities() domain.Entities {
	return domain.Entities{
		Depots:     []domain.Depot{{ID: "D", Location: at(0, 0)}},
		Facilities: []domain.Facility{{ID: "F", Location: at(10, 0)}},
		Customers: []domain.Customer{
			{ID: "a", Location: at(1, 0), Demand: 4},
			{ID: "b", Location: at(2, 0), Demand: 6},
			{ID: "c", Location: at(3, 0), Demand: 3},
			{ID: "d", Location: at(9, 0), Demand: 2},
		},
		Vehicles: []domain.Vehicle{
			{ID: "big", Capacity: 10, MaxShift: 100},
			{ID: "small", Capacity: 5, MaxShift: 100},
		},
	}
}

func euclid(t *testing.T, e domain.Entities) *matrix.Matrix {
	t.Helper()
	m, err := matrix.NewService(nil, nil, matrix.Options{TimePerUnit: 1}).Compute(context.Background(), e.Nodes(), matrix.ModeEuclidean)
	require.NoError(t, err)
	return m
}

func TestBuildLaysOutNodes(t *testing.T) {
	e := lineEntities()
	inst, err := NewBuilder(Options{}).Build(BuildInput{Entities: e, Matrix: euclid(t, e)})
	require.NoError(t, err)

	assert.NotEmpty(t, inst.ID())
	assert.Equal(t, 6, inst.NumNodes())
	assert.Equal(t, "D", inst.Node(inst.Depot()).ID)
	assert.Equal(t, "F", inst.Node(inst.Facility()).ID)
	assert.Equal(t, []int{1, 2, 3, 4}, inst.Customers())
	assert.InDelta(t, 10.0, inst.Cost(0, 5), 1e-12)
	assert.Len(t, inst.Arcs(), 6*5)

	// "small" cannot take customer b (demand 6).
	b, _ := inst.NodeIndex("b")
	assert.False(t, inst.Compatible(1, b))
	assert.True(t, inst.Compatible(0, b))
}

func TestBuildRejectsCustomerTooHeavyForFleet(t *testing.T) {
	e := lineEntities()
	e.Customers[1].Demand = 12

	_, err := NewBuilder(Options{}).Build(BuildInput{Entities: e, Matrix: euclid(t, e)})
	var ie *domain.InfeasibleInstanceError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "customer", ie.EntityKind)
	assert.Equal(t, "b", ie.EntityID)
}

func TestBuildConsidersOnlyEnabledVehicles(t *testing.T) {
	e := lineEntities()
	_, err := NewBuilder(Options{}).Build(BuildInput{Entities: e, Matrix: euclid(t, e), Disabled: []string{"big"}})
	var ie *domain.InfeasibleInstanceError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "b", ie.EntityID)
	assert.Equal(t, "small", ie.VehicleID)
}

func TestBuildRejectsUnknownDisabledVehicle(t *testing.T) {
	e := lineEntities()
	_, err := NewBuilder(Options{}).Build(BuildInput{Entities: e, Matrix: euclid(t, e), Disabled: []string{"ghost"}})
	var dv *domain.DataValidationError
	require.ErrorAs(t, err, &dv)
	assert.Equal(t, "ghost", dv.ID)
}

func TestBuildRequiresExactlyOneDepotAndFacility(t *testing.T) {
	e := lineEntities()
	e.Facilities = append(e.Facilities, domain.Facility{ID: "F2", Location: at(20, 0)})

	_, err := NewBuilder(Options{}).Build(BuildInput{Entities: e, Matrix: euclid(t, e)})
	var dv *domain.DataValidationError
	require.ErrorAs(t, err, &dv)
	assert.Equal(t, "facilities", dv.Field)

	e = lineEntities()
	e.Depots = nil
	_, err = NewBuilder(Options{}).Build(BuildInput{Entities: e, Matrix: euclid(t, lineEntities())})
	require.ErrorAs(t, err, &dv)
	assert.Equal(t, "depots", dv.Field)
}

func TestBuildRemovesBlockedArcs(t *testing.T) {
	e := lineEntities()
	inst, err := NewBuilder(Options{}).Build(BuildInput{
		Entities: e,
		Matrix:   euclid(t, e),
		Blocked:  []domain.ArcRef{{From: "a", To: "b"}},
	})
	require.NoError(t, err)

	a, _ := inst.NodeIndex("a")
	b, _ := inst.NodeIndex("b")
	assert.False(t, inst.Allowed(a, b))
	assert.True(t, inst.Allowed(b, a))
	assert.Equal(t, []domain.ArcRef{{From: "a", To: "b"}}, inst.Blocked())

	_, err = NewBuilder(Options{}).Build(BuildInput{
		Entities: e,
		Matrix:   euclid(t, e),
		Blocked:  []domain.ArcRef{{From: "a", To: "zzz"}},
	})
	var dv *domain.DataValidationError
	require.ErrorAs(t, err, &dv)
}

func TestBuildFlagsShiftUnreachableCustomer(t *testing.T) {
	e := lineEntities()
	for i := range e.Vehicles {
		e.Vehicles[i].MaxShift = 15
	}
	// d sits 9 away: 18 > 15 even on the direct round trip.
	_, err := NewBuilder(Options{}).Build(BuildInput{Entities: e, Matrix: euclid(t, e)})
	var ie *domain.InfeasibleInstanceError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "d", ie.EntityID)
}

func TestMinArcTimeFloor(t *testing.T) {
	e := lineEntities()
	e.Customers[1].Location = at(1, 0) // same spot as a
	inst, err := NewBuilder(Options{MinArcTime: 0.5}).Build(BuildInput{Entities: e, Matrix: euclid(t, e)})
	require.NoError(t, err)

	assert.Equal(t, 0.5, inst.Time(1, 2))
	assert.Equal(t, 0.0, inst.Cost(1, 2))
	assert.Equal(t, 0.0, inst.Time(1, 1))
}

func TestSparsifyKeepsMandatoryArcs(t *testing.T) {
	e := lineEntities()
	inst, err := NewBuilder(Options{Sparsify: &SparsifyOptions{K: 1, MaxTime: 5}}).Build(BuildInput{Entities: e, Matrix: euclid(t, e)})
	require.NoError(t, err)

	depot, fac := inst.Depot(), inst.Facility()
	for _, c := range inst.Customers() {
		assert.True(t, inst.Allowed(depot, c))
		assert.True(t, inst.Allowed(c, depot))
		assert.True(t, inst.Allowed(c, fac))
	}
	assert.True(t, inst.Allowed(depot, fac))
	assert.True(t, inst.Allowed(fac, depot))

	a, _ := inst.NodeIndex("a")
	c, _ := inst.NodeIndex("c")
	d, _ := inst.NodeIndex("d")
	// a keeps only its nearest neighbour b. Facility arcs obey the cutoff:
	// F->d takes 1, F->a takes 9.
	assert.False(t, inst.Allowed(a, c))
	assert.True(t, inst.Allowed(fac, d))
	assert.False(t, inst.Allowed(fac, a))
	// c->d is d's nearest incoming arc but takes 6.
	assert.False(t, inst.Allowed(c, d))
}
