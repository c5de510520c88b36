package instance

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/matrix"
	"slices"
)

// Node is a solver-ready node. Service is in minutes.
type Node struct {
	ID       string
	Kind     domain.NodeKind
	Location domain.Coordinates
	Demand   int
	Service  float64
}

type Vehicle struct {
	domain.Vehicle
	Enabled bool
}

// Arc is an allowed directed arc between node indices.
type Arc struct {
	From, To int
	Cost     float64
	Time     float64
}

// Instance is an immutable routing instance. Node 0 is the depot, nodes
// 1..n are customers in input order and the last node is the facility.
// Build one with Builder; never mutate the slices returned by accessors.
type Instance struct {
	id       string
	entities domain.Entities
	opts     Options
	source   *matrix.Matrix

	nodes    []Node
	index    map[string]int
	vehicles []Vehicle
	dist     [][]float64
	cost     [][]float64
	time     [][]float64
	allowed  [][]bool
	blocked  []domain.ArcRef
	// compatible[v][i] is false when vehicle v can never serve customer i.
	compatible [][]bool
}

func (in *Instance) ID() string { return in.id }

func (in *Instance) Options() Options { return in.opts }

// Matrix returns the distance matrix the instance was built from.
func (in *Instance) Matrix() *matrix.Matrix { return in.source }

// Entities returns a copy of the entities the instance was built from.
func (in *Instance) Entities() domain.Entities {
	return domain.Entities{
		Depots:     slices.Clone(in.entities.Depots),
		Facilities: slices.Clone(in.entities.Facilities),
		Customers:  slices.Clone(in.entities.Customers),
		Vehicles:   slices.Clone(in.entities.Vehicles),
	}
}

func (in *Instance) Degraded() bool { return in.source != nil && in.source.Degraded }

func (in *Instance) NumNodes() int { return len(in.nodes) }

func (in *Instance) Node(i int) Node { return in.nodes[i] }

func (in *Instance) Depot() int { return 0 }

func (in *Instance) Facility() int { return len(in.nodes) - 1 }

// Customers returns customer node indices in order.
func (in *Instance) Customers() []int {
	out := make([]int, 0, len(in.nodes)-2)
	for i := 1; i < len(in.nodes)-1; i++ {
		out = append(out, i)
	}
	return out
}

func (in *Instance) NodeIndex(id string) (int, bool) {
	i, ok := in.index[id]
	return i, ok
}

func (in *Instance) NumVehicles() int { return len(in.vehicles) }

func (in *Instance) Vehicle(v int) Vehicle { return in.vehicles[v] }

// EnabledVehicles returns indices of vehicles available to the solver.
func (in *Instance) EnabledVehicles() []int {
	out := make([]int, 0, len(in.vehicles))
	for v, veh := range in.vehicles {
		if veh.Enabled {
			out = append(out, v)
		}
	}
	return out
}

func (in *Instance) VehicleIndex(id string) (int, bool) {
	for v, veh := range in.vehicles {
		if veh.ID == id {
			return v, true
		}
	}
	return -1, false
}

// DisabledVehicles returns ids of vehicles present but not available.
func (in *Instance) DisabledVehicles() []string {
	var out []string
	for _, veh := range in.vehicles {
		if !veh.Enabled {
			out = append(out, veh.ID)
		}
	}
	return out
}

func (in *Instance) Cost(i, j int) float64 { return in.cost[i][j] }

func (in *Instance) Time(i, j int) float64 { return in.time[i][j] }

func (in *Instance) Distance(i, j int) float64 { return in.dist[i][j] }

// Allowed reports whether arc (i, j) survived blocking and sparsification.
func (in *Instance) Allowed(i, j int) bool { return in.allowed[i][j] }

// Compatible reports whether vehicle v may visit node i.
func (in *Instance) Compatible(v, i int) bool {
	if in.nodes[i].Kind != domain.KindCustomer {
		return true
	}
	return in.compatible[v][i]
}

// Blocked returns the arcs excluded by changesets.
func (in *Instance) Blocked() []domain.ArcRef { return slices.Clone(in.blocked) }

// Arcs lists every allowed arc.
func (in *Instance) Arcs() []Arc {
	var out []Arc
	for i := range in.nodes {
		for j := range in.nodes {
			if in.allowed[i][j] {
				out = append(out, Arc{From: i, To: j, Cost: in.cost[i][j], Time: in.time[i][j]})
			}
		}
	}
	return out
}

// FacilityService is the dump time spent at each disposal visit.
func (in *Instance) FacilityService() float64 { return in.nodes[in.Facility()].Service }
