package instance

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/matrix"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
)

type Options struct {
	// CostPerUnit converts matrix distance into objective cost.
	CostPerUnit float64
	// MinArcTime floors the travel time between distinct nodes.
	MinArcTime float64
	// FacilityService is the time spent unloading at each disposal visit.
	FacilityService float64
	// Sparsify is nil unless the scalability mode is explicitly enabled.
	Sparsify *SparsifyOptions
}

func DefaultOptions() Options {
	return Options{CostPerUnit: 1, MinArcTime: 0.01}
}

// BuildInput is everything an instance is derived from.
type BuildInput struct {
	Entities domain.Entities
	Matrix   *matrix.Matrix
	// Disabled lists vehicle ids present in the fleet but unavailable.
	Disabled []string
	Blocked  []domain.ArcRef
}

// Builder turns validated entities and a matrix into an Instance.
type Builder struct {
	Options Options
}

func NewBuilder(opts Options) *Builder {
	d := DefaultOptions()
	if opts.CostPerUnit <= 0 {
		opts.CostPerUnit = d.CostPerUnit
	}
	if opts.MinArcTime <= 0 {
		opts.MinArcTime = d.MinArcTime
	}
	return &Builder{Options: opts}
}

// Build validates the input and produces an immutable Instance.
// Validation problems are *domain.DataValidationError; customers no enabled
// vehicle can ever serve are reported as *domain.InfeasibleInstanceError.
func (b *Builder) Build(in BuildInput) (*Instance, error) {
	e := in.Entities
	if err := domain.ValidateEntities(e); err != nil {
		return nil, err
	}
	if len(e.Depots) != 1 {
		return nil, &domain.DataValidationError{Entity: "instance", Field: "depots", Reason: fmt.Sprintf("exactly one depot required, got %d", len(e.Depots))}
	}
	if len(e.Facilities) != 1 {
		return nil, &domain.DataValidationError{Entity: "instance", Field: "facilities", Reason: fmt.Sprintf("exactly one facility required, got %d", len(e.Facilities))}
	}
	if in.Matrix == nil {
		return nil, fmt.Errorf("build instance: matrix is nil")
	}

	inst := &Instance{
		id:       uuid.NewString(),
		entities: e,
		opts:     b.Options,
		source:   in.Matrix,
		index:    make(map[string]int),
	}

	inst.nodes = append(inst.nodes, Node{ID: e.Depots[0].ID, Kind: domain.KindDepot, Location: *e.Depots[0].Location})
	for _, c := range e.Customers {
		inst.nodes = append(inst.nodes, Node{
			ID:       c.ID,
			Kind:     domain.KindCustomer,
			Location: *c.Location,
			Demand:   c.Demand,
			Service:  float64(c.Service),
		})
	}
	inst.nodes = append(inst.nodes, Node{
		ID:       e.Facilities[0].ID,
		Kind:     domain.KindFacility,
		Location: *e.Facilities[0].Location,
		Service:  b.Options.FacilityService,
	})
	for i, n := range inst.nodes {
		inst.index[n.ID] = i
	}

	disabled := make(map[string]bool, len(in.Disabled))
	for _, id := range in.Disabled {
		disabled[id] = true
	}
	for _, v := range e.Vehicles {
		inst.vehicles = append(inst.vehicles, Vehicle{Vehicle: v, Enabled: !disabled[v.ID]})
		delete(disabled, v.ID)
	}
	for id := range disabled {
		return nil, &domain.DataValidationError{Entity: "vehicle", ID: id, Reason: "disabled vehicle is not part of the fleet"}
	}

	if err := inst.loadMatrix(in.Matrix, b.Options); err != nil {
		return nil, err
	}

	if err := inst.applyBlocked(in.Blocked); err != nil {
		return nil, err
	}
	if b.Options.Sparsify != nil {
		inst.sparsify(*b.Options.Sparsify)
	}

	if err := inst.checkServiceable(); err != nil {
		return nil, err
	}
	return inst, nil
}

func (in *Instance) loadMatrix(m *matrix.Matrix, opts Options) error {
	n := len(in.nodes)
	pos := make([]int, n)
	for i, nd := range in.nodes {
		idx, ok := m.Index(nd.ID)
		if !ok {
			return fmt.Errorf("build instance: matrix has no entry for node %q", nd.ID)
		}
		pos[i] = idx
	}

	in.dist = make([][]float64, n)
	in.cost = make([][]float64, n)
	in.time = make([][]float64, n)
	in.allowed = make([][]bool, n)
	for i := range n {
		in.dist[i] = make([]float64, n)
		in.cost[i] = make([]float64, n)
		in.time[i] = make([]float64, n)
		in.allowed[i] = make([]bool, n)
		for j := range n {
			if i == j {
				continue
			}
			d := m.Distance[pos[i]][pos[j]]
			t := m.Time[pos[i]][pos[j]]
			if math.IsNaN(d) || math.IsNaN(t) || d < 0 || t < 0 {
				return fmt.Errorf("build instance: invalid matrix entry %q -> %q", in.nodes[i].ID, in.nodes[j].ID)
			}
			in.dist[i][j] = d
			in.cost[i][j] = d * opts.CostPerUnit
			in.time[i][j] = math.Max(t, opts.MinArcTime)
			in.allowed[i][j] = true
		}
	}
	return nil
}

func (in *Instance) applyBlocked(blocked []domain.ArcRef) error {
	for _, a := range blocked {
		i, ok := in.index[a.From]
		if !ok {
			return &domain.DataValidationError{Entity: "arc", ID: a.From + "->" + a.To, Field: "from", Reason: "unknown node"}
		}
		j, ok := in.index[a.To]
		if !ok {
			return &domain.DataValidationError{Entity: "arc", ID: a.From + "->" + a.To, Field: "to", Reason: "unknown node"}
		}
		if i == j {
			return &domain.DataValidationError{Entity: "arc", ID: a.From + "->" + a.To, Reason: "arc endpoints must differ"}
		}
		in.allowed[i][j] = false
		if !slices.Contains(in.blocked, a) {
			in.blocked = append(in.blocked, a)
		}
	}
	return nil
}

// checkServiceable flags customers no enabled vehicle can ever serve, either
// by capacity or because even the fastest depot round trip exceeds every
// shift. Shortest paths over allowed arcs make the shift test a lower bound.
func (in *Instance) checkServiceable() error {
	enabled := in.EnabledVehicles()
	customers := in.Customers()

	in.compatible = make([][]bool, len(in.vehicles))
	for v := range in.vehicles {
		in.compatible[v] = make([]bool, len(in.nodes))
	}

	if len(customers) == 0 {
		return nil
	}
	if len(enabled) == 0 {
		c := in.nodes[customers[0]]
		return &domain.InfeasibleInstanceError{
			EntityKind: "customer",
			EntityID:   c.ID,
			Constraint: "no enabled vehicle is available",
		}
	}

	sp := in.shortestTimes()
	depot := in.Depot()

	maxCap := 0
	for _, v := range enabled {
		maxCap = max(maxCap, in.vehicles[v].Capacity)
	}

	for _, c := range customers {
		nd := in.nodes[c]
		if nd.Demand > maxCap {
			ie := &domain.InfeasibleInstanceError{
				EntityKind: "customer",
				EntityID:   nd.ID,
				Constraint: fmt.Sprintf("demand %d exceeds the capacity of every enabled vehicle (max %d)", nd.Demand, maxCap),
			}
			if len(enabled) == 1 {
				ie.VehicleID = in.vehicles[enabled[0]].ID
			}
			return ie
		}

		roundTrip := sp[depot][c] + nd.Service + sp[c][depot]
		if math.IsInf(roundTrip, 1) {
			return &domain.InfeasibleInstanceError{
				EntityKind: "customer",
				EntityID:   nd.ID,
				Constraint: "unreachable from the depot over allowed arcs",
			}
		}

		served := false
		for _, v := range enabled {
			veh := in.vehicles[v]
			ok := nd.Demand <= veh.Capacity && roundTrip <= float64(veh.MaxShift)+1e-9
			in.compatible[v][c] = ok
			served = served || ok
		}
		if !served {
			return &domain.InfeasibleInstanceError{
				EntityKind: "customer",
				EntityID:   nd.ID,
				Constraint: fmt.Sprintf("fastest depot round trip takes %.2f, longer than every enabled vehicle's max shift", roundTrip),
			}
		}
	}
	return nil
}

// shortestTimes runs Floyd-Warshall over allowed arcs.
func (in *Instance) shortestTimes() [][]float64 {
	n := len(in.nodes)
	d := make([][]float64, n)
	for i := range n {
		d[i] = make([]float64, n)
		for j := range n {
			switch {
			case i == j:
				d[i][j] = 0
			case in.allowed[i][j]:
				d[i][j] = in.time[i][j]
			default:
				d[i][j] = math.Inf(1)
			}
		}
	}
	for k := range n {
		for i := range n {
			if math.IsInf(d[i][k], 1) {
				continue
			}
			for j := range n {
				if alt := d[i][k] + d[k][j]; alt < d[i][j] {
					d[i][j] = alt
				}
			}
		}
	}
	return d
}
