package routing

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/instance"
	"collection-route-service/internal/matrix"
	"collection-route-service/internal/milp"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func at(x, y float64) *domain.Coordinates { return &domain.Coordinates{Lon: x, Lat: y} }

// scenarioA is one vehicle of capacity 10 and three customers with demand
// 4, 6 and 3, so at least two trips are needed.
func scenarioA() domain.Entities {
	return domain.Entities{
		Depots:     []domain.Depot{{ID: "D", Location: at(0, 0)}},
		Facilities: []domain.Facility{{ID: "F", Location: at(10, 0)}},
		Customers: []domain.Customer{
			{ID: "a", Location: at(2, 3), Demand: 4},
			{ID: "b", Location: at(5, 4), Demand: 6},
			{ID: "c", Location: at(8, 1), Demand: 3},
		},
		Vehicles: []domain.Vehicle{{ID: "truck", Capacity: 10, MaxShift: 200}},
	}
}

func build(t *testing.T, e domain.Entities, blocked ...domain.ArcRef) *instance.Instance {
	t.Helper()
	return buildInput(t, instance.BuildInput{Entities: e, Blocked: blocked})
}

// buildInput fills in a euclidean matrix for in.Entities and builds.
func buildInput(t *testing.T, in instance.BuildInput) *instance.Instance {
	t.Helper()
	m, err := matrix.NewService(nil, nil, matrix.DefaultOptions()).Compute(context.Background(), in.Entities.Nodes(), matrix.ModeEuclidean)
	require.NoError(t, err)
	in.Matrix = m
	inst, err := instance.NewBuilder(instance.DefaultOptions()).Build(in)
	require.NoError(t, err)
	return inst
}

func testConfig() Config {
	return Config{TimeLimit: time.Minute, LogLevel: "quiet"}
}

// stubEngine returns a canned result.
type stubEngine struct {
	res *milp.Result
	err error
	got milp.Options
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Solve(_ context.Context, _ *milp.Model, opts milp.Options) (*milp.Result, error) {
	s.got = opts
	return s.res, s.err
}

// limitedEngine runs the embedded engine to completion and then reports the
// outcome as if a limit had stopped it at the given gap.
type limitedEngine struct {
	milp.BranchAndBound
	gap float64
}

func (l limitedEngine) Solve(ctx context.Context, m *milp.Model, opts milp.Options) (*milp.Result, error) {
	res, err := l.BranchAndBound.Solve(ctx, m, opts)
	if err != nil || res.Status != milp.StatusOptimal {
		return res, err
	}
	res.Status = milp.StatusFeasible
	res.Gap = l.gap
	return res, nil
}

func stopIDs(r domain.Route) []string {
	out := make([]string, len(r.Stops))
	for i, s := range r.Stops {
		out[i] = s.NodeID
	}
	return out
}

func permutations(items []int) [][]int {
	if len(items) <= 1 {
		return [][]int{append([]int(nil), items...)}
	}
	var out [][]int
	for i := range items {
		rest := make([]int, 0, len(items)-1)
		rest = append(rest, items[:i]...)
		rest = append(rest, items[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]int{items[i]}, p...))
		}
	}
	return out
}

// bruteForceSingleVehicle enumerates every customer order and every choice
// of disposal visits between customers for vehicle 0, with the mandatory
// final disposal, and returns the cheapest capacity-feasible travel cost.
func bruteForceSingleVehicle(inst *instance.Instance) float64 {
	customers := inst.Customers()
	capacity := inst.Vehicle(0).Capacity
	f := inst.Facility()
	best := -1.0

	for _, perm := range permutations(customers) {
		for mask := 0; mask < 1<<(len(perm)-1); mask++ {
			seq := []int{}
			load, ok := 0, true
			for k, c := range perm {
				load += inst.Node(c).Demand
				if load > capacity {
					ok = false
					break
				}
				seq = append(seq, c)
				if k < len(perm)-1 && mask&(1<<k) != 0 {
					seq = append(seq, f)
					load = 0
				}
			}
			if !ok {
				continue
			}
			seq = append(seq, f)

			cost, prev := 0.0, inst.Depot()
			for _, i := range seq {
				cost += inst.Cost(prev, i)
				prev = i
			}
			cost += inst.Cost(prev, inst.Depot())
			if best < 0 || cost < best {
				best = cost
			}
		}
	}
	return best
}
