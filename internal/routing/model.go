// Package routing formulates the collection routing problem as a MILP and
// drives a solver engine over it.
//
// Every enabled vehicle gets its own copy of the graph: the depot, the
// customers it can serve and a small number of facility copies, one per
// disposal visit it may make. Arc variables are binary; load and arrival
// time variables propagate along used arcs with big-M constraints, which
// also rules out subtours because every arc takes strictly positive time.
package routing

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/instance"
	"collection-route-service/internal/milp"
	"fmt"
	"slices"
)

type FormulationOptions struct {
	// MaxDisposalVisits caps facility visits per vehicle. Zero derives the
	// cap from a first-fit-decreasing packing of the customers the vehicle
	// can serve, plus one.
	MaxDisposalVisits int
	// AllowDirectReturn lets a vehicle go home without a final disposal visit.
	AllowDirectReturn bool
	// Stability is set when re-solving against a baseline.
	Stability *Stability
}

// Stability charges Weight for each customer served by a different vehicle
// than in the baseline assignment (customer id to vehicle id). Customers
// the baseline never served are free.
type Stability struct {
	Baseline map[string]string
	Weight   float64
}

func NewStability(baseline *domain.Solution, weight float64) *Stability {
	return &Stability{Baseline: baseline.Assignment(), Weight: weight}
}

func (s *Stability) penalty(inst *instance.Instance, assignment map[string]string) float64 {
	if s == nil || s.Weight == 0 {
		return 0
	}
	total := 0.0
	for _, c := range inst.Customers() {
		id := inst.Node(c).ID
		prev, ok := s.Baseline[id]
		if ok && assignment[id] != prev {
			total += s.Weight
		}
	}
	return total
}

type arcKey struct{ from, to int }

// fleetVehicle is the per-vehicle part of the model.
type fleetVehicle struct {
	index     int // instance vehicle index
	customers []int
	copies    int
	used      milp.Var
	arcs      map[arcKey]milp.Var
	succ      map[int][]int
	pred      map[int][]int
	load      map[int]milp.Var
	arrive    map[int]milp.Var
	back      milp.Var
}

// Model is the MILP for one instance. Graph nodes reuse instance indices
// for the depot and customers; facility copy k is node NumNodes()-1+k, so
// copy 0 coincides with the instance facility index.
type Model struct {
	inst  *instance.Instance
	opts  FormulationOptions
	prog  *milp.Model
	fleet []*fleetVehicle
	byID  map[string]int
}

func (m *Model) Instance() *instance.Instance { return m.inst }

func (m *Model) Options() FormulationOptions { return m.opts }

// Program exposes the underlying solver-neutral model.
func (m *Model) Program() *milp.Model { return m.prog }

// DisposalVisits returns how many facility visits vehicleID may make.
func (m *Model) DisposalVisits(vehicleID string) int {
	if f, ok := m.byID[vehicleID]; ok {
		return m.fleet[f].copies
	}
	return 0
}

func (m *Model) facilityCopy(k int) int { return m.inst.Facility() + k }

func (m *Model) isCopy(g int) bool { return g >= m.inst.Facility() }

// node maps a graph node back to its instance node.
func (m *Model) node(g int) int {
	if m.isCopy(g) {
		return m.inst.Facility()
	}
	return g
}

// Formulate builds the routing MILP over inst.
func Formulate(inst *instance.Instance, opts FormulationOptions) (*Model, error) {
	if inst == nil {
		return nil, fmt.Errorf("formulate: instance is nil")
	}
	if opts.MaxDisposalVisits < 0 {
		return nil, &domain.DataValidationError{Entity: "formulation", Field: "max_disposal_visits", Reason: "must not be negative"}
	}
	if opts.Stability != nil && opts.Stability.Weight < 0 {
		return nil, &domain.DataValidationError{Entity: "formulation", Field: "stability_weight", Reason: "must not be negative"}
	}

	m := &Model{inst: inst, opts: opts, prog: milp.NewModel(), byID: make(map[string]int)}
	for _, v := range inst.EnabledVehicles() {
		m.byID[inst.Vehicle(v).ID] = len(m.fleet)
		m.fleet = append(m.fleet, m.addVehicle(v))
	}
	m.addCoverage()
	m.addTripCount()
	m.addStability()
	return m, nil
}

func (m *Model) addVehicle(v int) *fleetVehicle {
	inst, p := m.inst, m.prog
	veh := inst.Vehicle(v)
	shift := float64(veh.MaxShift)
	capacity := float64(veh.Capacity)

	fv := &fleetVehicle{
		index:  v,
		arcs:   make(map[arcKey]milp.Var),
		succ:   make(map[int][]int),
		pred:   make(map[int][]int),
		load:   make(map[int]milp.Var),
		arrive: make(map[int]milp.Var),
	}
	for _, c := range inst.Customers() {
		if inst.Compatible(v, c) {
			fv.customers = append(fv.customers, c)
		}
	}
	fv.copies = disposalVisits(inst, v, fv.customers, m.opts)

	fv.used = p.NewBinary(fmt.Sprintf("used[%s]", veh.ID))
	p.SetPriority(fv.used, 2)
	p.AddObjective(float64(veh.StartupCost), fv.used)

	graph := slices.Clone(fv.customers)
	for k := range fv.copies {
		graph = append(graph, m.facilityCopy(k))
	}

	for _, c := range fv.customers {
		fv.load[c] = p.NewContinuous(fmt.Sprintf("load[%s,%s]", veh.ID, inst.Node(c).ID), float64(inst.Node(c).Demand), capacity)
	}
	for _, g := range graph {
		fv.arrive[g] = p.NewContinuous(fmt.Sprintf("arrive[%s,%d]", veh.ID, g), 0, shift)
	}
	fv.back = p.NewContinuous(fmt.Sprintf("back[%s]", veh.ID), 0, shift)

	depot := inst.Depot()
	all := append([]int{depot}, graph...)
	for _, a := range all {
		for _, b := range all {
			if !m.candidate(a, b) {
				continue
			}
			x := p.NewBinary(fmt.Sprintf("x[%s,%d,%d]", veh.ID, a, b))
			p.SetPriority(x, 1)
			p.AddObjective(inst.Cost(m.node(a), m.node(b)), x)
			fv.arcs[arcKey{a, b}] = x
			fv.succ[a] = append(fv.succ[a], b)
			fv.pred[b] = append(fv.pred[b], a)
		}
	}

	in, out := fv.inTerms, fv.outTerms

	p.AddConstraint("leave_depot["+veh.ID+"]", milp.Equal, 0, append(out(depot), milp.T(-1, fv.used))...)
	p.AddConstraint("enter_depot["+veh.ID+"]", milp.Equal, 0, append(in(depot), milp.T(-1, fv.used))...)

	for _, g := range graph {
		name := fmt.Sprintf("[%s,%d]", veh.ID, g)
		balance := in(g)
		for _, t := range out(g) {
			balance = append(balance, milp.T(-1, t.Var))
		}
		p.AddConstraint("flow"+name, milp.Equal, 0, balance...)
		p.AddConstraint("gate"+name, milp.LessEqual, 0, append(in(g), milp.T(-1, fv.used))...)
	}

	// No two-customer cycles.
	for _, i := range fv.customers {
		for _, j := range fv.customers {
			xij, ok1 := fv.arcs[arcKey{i, j}]
			xji, ok2 := fv.arcs[arcKey{j, i}]
			if i < j && ok1 && ok2 {
				p.AddConstraint(fmt.Sprintf("pair[%s,%d,%d]", veh.ID, i, j), milp.LessEqual, 1, milp.T(1, xij), milp.T(1, xji))
			}
		}
	}

	// Facility copies are used in order.
	for k := 1; k < fv.copies; k++ {
		next := in(m.facilityCopy(k))
		for _, t := range in(m.facilityCopy(k - 1)) {
			next = append(next, milp.T(-1, t.Var))
		}
		p.AddConstraint(fmt.Sprintf("copy_order[%s,%d]", veh.ID, k), milp.LessEqual, 0, next...)
	}

	for _, a := range all {
		for _, b := range fv.succ[a] {
			m.linkArc(fv, a, b)
		}
	}
	return fv
}

// linkArc propagates arrival time and, between customers, carried load
// along arc (a, b) when it is used.
func (m *Model) linkArc(fv *fleetVehicle, a, b int) {
	inst, p := m.inst, m.prog
	veh := inst.Vehicle(fv.index)
	shift := float64(veh.MaxShift)
	x := fv.arcs[arcKey{a, b}]

	ia, ib := m.node(a), m.node(b)
	travel := inst.Time(ia, ib)
	service := inst.Node(ia).Service
	bigM := shift + service + travel

	switch {
	case a == inst.Depot():
		p.AddConstraint(fmt.Sprintf("time_out[%s,%d]", veh.ID, b), milp.GreaterEqual, 0,
			milp.T(1, fv.arrive[b]), milp.T(-travel, x))
	case b == inst.Depot():
		p.AddConstraint(fmt.Sprintf("time_back[%s,%d]", veh.ID, a), milp.GreaterEqual, service+travel-bigM,
			milp.T(1, fv.back), milp.T(-1, fv.arrive[a]), milp.T(-bigM, x))
	default:
		p.AddConstraint(fmt.Sprintf("time[%s,%d,%d]", veh.ID, a, b), milp.GreaterEqual, service+travel-bigM,
			milp.T(1, fv.arrive[b]), milp.T(-1, fv.arrive[a]), milp.T(-bigM, x))
	}

	ua, okA := fv.load[a]
	ub, okB := fv.load[b]
	if okA && okB {
		capacity := float64(veh.Capacity)
		demand := float64(inst.Node(ib).Demand)
		p.AddConstraint(fmt.Sprintf("load[%s,%d,%d]", veh.ID, a, b), milp.GreaterEqual, demand-capacity,
			milp.T(1, ub), milp.T(-1, ua), milp.T(-capacity, x))
	}
}

func (fv *fleetVehicle) outTerms(g int) []milp.Term {
	terms := make([]milp.Term, 0, len(fv.succ[g]))
	for _, b := range fv.succ[g] {
		terms = append(terms, milp.T(1, fv.arcs[arcKey{g, b}]))
	}
	return terms
}

func (fv *fleetVehicle) inTerms(g int) []milp.Term {
	terms := make([]milp.Term, 0, len(fv.pred[g]))
	for _, a := range fv.pred[g] {
		terms = append(terms, milp.T(1, fv.arcs[arcKey{a, g}]))
	}
	return terms
}

// candidate reports whether arc (a, b) enters the model. Arcs between
// facility copies, from the depot to the facility and, unless direct
// returns are allowed, from a customer back to the depot are never useful.
func (m *Model) candidate(a, b int) bool {
	if a == b {
		return false
	}
	depot := m.inst.Depot()
	switch {
	case m.isCopy(a) && m.isCopy(b):
		return false
	case a == depot && m.isCopy(b):
		return false
	case b == depot && !m.isCopy(a) && !m.opts.AllowDirectReturn:
		return false
	}
	return m.inst.Allowed(m.node(a), m.node(b))
}

// addCoverage makes every customer be entered exactly once across the fleet.
func (m *Model) addCoverage() {
	for _, c := range m.inst.Customers() {
		var terms []milp.Term
		for _, fv := range m.fleet {
			terms = append(terms, fv.inTerms(c)...)
		}
		m.prog.AddConstraint("cover["+m.inst.Node(c).ID+"]", milp.Equal, 1, terms...)
	}
}

// addTripCount requires enough collection trips for the total demand.
// Every trip ends with a disposal visit or, when allowed, a direct return.
func (m *Model) addTripCount() {
	total, largest := 0, 0
	for _, c := range m.inst.Customers() {
		total += m.inst.Node(c).Demand
	}
	for _, fv := range m.fleet {
		largest = max(largest, m.inst.Vehicle(fv.index).Capacity)
	}
	if total == 0 || largest == 0 {
		return
	}

	var terms []milp.Term
	for _, fv := range m.fleet {
		for k := range fv.copies {
			terms = append(terms, fv.inTerms(m.facilityCopy(k))...)
		}
		if m.opts.AllowDirectReturn {
			terms = append(terms, milp.T(1, fv.used))
		}
	}
	need := (total + largest - 1) / largest
	m.prog.AddConstraint("trips", milp.GreaterEqual, float64(need), terms...)
}

// addStability adds Weight * (1 - served_by_baseline_vehicle) per customer.
func (m *Model) addStability() {
	s := m.opts.Stability
	if s == nil || s.Weight == 0 {
		return
	}
	for _, c := range m.inst.Customers() {
		prev, ok := s.Baseline[m.inst.Node(c).ID]
		if !ok {
			continue
		}
		m.prog.AddObjectiveConstant(s.Weight)
		f, ok := m.byID[prev]
		if !ok {
			continue
		}
		for _, t := range m.fleet[f].inTerms(c) {
			m.prog.AddObjective(-s.Weight, t.Var)
		}
	}
}

// disposalVisits is the number of facility copies given to vehicle v.
func disposalVisits(inst *instance.Instance, v int, customers []int, opts FormulationOptions) int {
	if len(customers) == 0 {
		return 0
	}
	if opts.MaxDisposalVisits > 0 {
		return opts.MaxDisposalVisits
	}
	demands := make([]int, len(customers))
	for i, c := range customers {
		demands[i] = inst.Node(c).Demand
	}
	return min(len(customers), firstFitDecreasing(demands, inst.Vehicle(v).Capacity)+1)
}

// firstFitDecreasing returns the number of bins of the given capacity a
// first-fit-decreasing packing of demands needs.
func firstFitDecreasing(demands []int, capacity int) int {
	sorted := slices.Clone(demands)
	slices.SortFunc(sorted, func(a, b int) int { return b - a })

	var bins []int
	for _, d := range sorted {
		placed := false
		for i := range bins {
			if bins[i]+d <= capacity {
				bins[i] += d
				placed = true
				break
			}
		}
		if !placed {
			bins = append(bins, d)
		}
	}
	return len(bins)
}
