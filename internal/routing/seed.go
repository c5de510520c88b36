package routing

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/instance"
	"fmt"
	"math"
	"slices"
)

// NearestNeighborSeed builds a feasible solution greedily, one vehicle at a
// time in fleet order. Each step drives to the closest remaining customer
// by travel time, detouring through the facility first when the hopper is
// full. Ties go to the lower customer id so the result is deterministic.
// It is meant as an engine incumbent, not as a plan of its own.
func NearestNeighborSeed(inst *instance.Instance, opts FormulationOptions) (*domain.Solution, error) {
	remaining := make(map[int]bool)
	for _, c := range inst.Customers() {
		remaining[c] = true
	}

	var routes []domain.Route
	for _, v := range inst.EnabledVehicles() {
		if len(remaining) == 0 {
			break
		}
		seq := nearestNeighborRoute(inst, v, remaining, opts)
		if len(seq) == 0 {
			continue
		}
		for _, i := range seq {
			delete(remaining, i)
		}
		routes = append(routes, evalRoute(inst, v, seq))
	}

	if len(remaining) > 0 {
		return nil, fmt.Errorf("nearest neighbor seed: %d customers left unassigned", len(remaining))
	}
	return assemble(inst, routes, opts.Stability), nil
}

func nearestNeighborRoute(inst *instance.Instance, v int, remaining map[int]bool, opts FormulationOptions) []int {
	facility := inst.Facility()
	copies := disposalVisits(inst, v, compatibleCustomers(inst, v), opts)
	hopper := domain.NewHopper(inst.Vehicle(v).Vehicle)

	var seq []int
	cur := inst.Depot()
	for {
		best, bestTime := -1, math.Inf(1)
		var bestSeq []int
		for _, c := range inst.Customers() {
			if !remaining[c] || !inst.Compatible(v, c) || slices.Contains(seq, c) {
				continue
			}
			demand := inst.Node(c).Demand

			var options [][]int
			if hopper.Fits(demand) {
				options = append(options, append(slices.Clone(seq), c))
			}
			if cur != inst.Depot() && cur != facility {
				options = append(options, append(slices.Clone(seq), facility, c))
			}

			for _, cand := range options {
				if !routeFits(inst, v, closeRoute(cand, facility, opts), opts, copies) {
					continue
				}
				t := legTime(inst, cur, cand[len(seq):])
				// Select next stop by minimum travel time; ids break ties.
				if t < bestTime || (t == bestTime && best >= 0 && inst.Node(c).ID < inst.Node(best).ID) {
					best, bestTime, bestSeq = c, t, cand
				}
			}
		}
		if best < 0 {
			break
		}

		if len(bestSeq) == len(seq)+2 {
			hopper.Dump()
		}
		if err := hopper.Collect(inst.Node(best).Demand); err != nil {
			break
		}
		seq, cur = bestSeq, best
	}

	if len(seq) == 0 {
		return nil
	}
	return closeRoute(seq, facility, opts)
}

// TranslateWarmStart carries a baseline solution over to inst: customers
// that no longer exist are dropped, stops that would need a disallowed arc
// are removed, and every customer left unrouted (removed stops and new
// customers alike) is placed by cheapest feasible insertion. Routes of
// disabled vehicles are dissolved the same way.
func TranslateWarmStart(inst *instance.Instance, opts FormulationOptions, baseline *domain.Solution) (*domain.Solution, error) {
	if baseline == nil {
		return nil, fmt.Errorf("translate warm start: baseline is nil")
	}
	facility := inst.Facility()

	seqs := make(map[int][]int)
	copies := make(map[int]int)
	for _, v := range inst.EnabledVehicles() {
		copies[v] = disposalVisits(inst, v, compatibleCustomers(inst, v), opts)
	}

	placed := make(map[int]bool)
	for _, r := range baseline.Routes {
		v, ok := inst.VehicleIndex(r.VehicleID)
		if !ok || !inst.Vehicle(v).Enabled {
			continue
		}

		var kept []int
		for _, s := range r.Stops {
			i, ok := inst.NodeIndex(s.NodeID)
			if !ok {
				continue
			}
			nd := inst.Node(i)
			if nd.Kind == domain.KindCustomer && (placed[i] || !inst.Compatible(v, i)) {
				continue
			}

			options := [][]int{append(slices.Clone(kept), i)}
			if nd.Kind == domain.KindCustomer && len(kept) > 0 && kept[len(kept)-1] != facility {
				options = append(options, append(slices.Clone(kept), facility, i))
			}
			for _, cand := range options {
				if routeFits(inst, v, closeRoute(cand, facility, opts), opts, copies[v]) {
					kept = cand
					if nd.Kind == domain.KindCustomer {
						placed[i] = true
					}
					break
				}
			}
		}
		seqs[v] = trimFacilities(kept, facility)
	}

	for _, c := range inst.Customers() {
		if placed[c] {
			continue
		}
		v, seq, ok := cheapestInsertion(inst, opts, seqs, copies, c)
		if !ok {
			return nil, fmt.Errorf("translate warm start: no feasible insertion for customer %q", inst.Node(c).ID)
		}
		seqs[v] = seq
		placed[c] = true
	}

	var routes []domain.Route
	for _, v := range inst.EnabledVehicles() {
		if seq := seqs[v]; len(seq) > 0 {
			routes = append(routes, evalRoute(inst, v, closeRoute(seq, facility, opts)))
		}
	}
	return assemble(inst, routes, opts.Stability), nil
}

// cheapestInsertion tries c at every position of every compatible vehicle,
// alone or next to a disposal visit, and returns the cheapest feasible
// open sequence.
func cheapestInsertion(inst *instance.Instance, opts FormulationOptions, seqs map[int][]int, copies map[int]int, c int) (int, []int, bool) {
	facility := inst.Facility()
	bestV, bestDelta := -1, math.Inf(1)
	var bestSeq []int

	for _, v := range inst.EnabledVehicles() {
		if !inst.Compatible(v, c) {
			continue
		}
		seq := seqs[v]
		base := 0.0
		if len(seq) == 0 {
			base = -float64(inst.Vehicle(v).StartupCost)
		} else {
			base = routeCost(inst, closeRoute(seq, facility, opts))
		}

		for p := 0; p <= len(seq); p++ {
			for _, insert := range [][]int{{c}, {facility, c}, {c, facility}} {
				cand := slices.Concat(seq[:p], insert, seq[p:])
				closed := closeRoute(cand, facility, opts)
				if !routeFits(inst, v, closed, opts, copies[v]) {
					continue
				}
				if delta := routeCost(inst, closed) - base; delta < bestDelta-1e-9 {
					bestV, bestDelta, bestSeq = v, delta, cand
				}
			}
		}
	}
	return bestV, trimFacilities(bestSeq, facility), bestV >= 0
}

// routeFits checks an explicit stop sequence for vehicle v against the
// rules the model enforces.
func routeFits(inst *instance.Instance, v int, seq []int, opts FormulationOptions, copies int) bool {
	if len(seq) == 0 {
		return true
	}
	facility := inst.Facility()
	if seq[0] == facility {
		return false
	}
	if seq[len(seq)-1] != facility && !opts.AllowDirectReturn {
		return false
	}

	veh := inst.Vehicle(v)
	depot := inst.Depot()
	prev := depot
	clock, load, dumps := 0.0, 0, 0
	for k := 0; k <= len(seq); k++ {
		i := depot
		if k < len(seq) {
			i = seq[k]
		}
		if i == prev || !inst.Allowed(prev, i) {
			return false
		}
		clock += inst.Time(prev, i)
		if i == depot {
			break
		}
		nd := inst.Node(i)
		if nd.Kind == domain.KindFacility {
			dumps++
			load = 0
		} else {
			if !inst.Compatible(v, i) {
				return false
			}
			load += nd.Demand
			if load > veh.Capacity {
				return false
			}
		}
		clock += nd.Service
		prev = i
	}
	return dumps <= copies && clock <= float64(veh.MaxShift)+1e-9
}

// closeRoute appends the final disposal visit when one is required.
func closeRoute(seq []int, facility int, opts FormulationOptions) []int {
	if len(seq) == 0 || opts.AllowDirectReturn || seq[len(seq)-1] == facility {
		return seq
	}
	return append(slices.Clone(seq), facility)
}

// trimFacilities drops leading and repeated disposal visits.
func trimFacilities(seq []int, facility int) []int {
	out := make([]int, 0, len(seq))
	for _, i := range seq {
		if i == facility && (len(out) == 0 || out[len(out)-1] == facility) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func routeCost(inst *instance.Instance, seq []int) float64 {
	total := 0.0
	prev := inst.Depot()
	for _, i := range seq {
		total += inst.Cost(prev, i)
		prev = i
	}
	if len(seq) > 0 {
		total += inst.Cost(prev, inst.Depot())
	}
	return total
}

func legTime(inst *instance.Instance, from int, path []int) float64 {
	total := 0.0
	for _, i := range path {
		total += inst.Time(from, i)
		from = i
	}
	return total
}

func compatibleCustomers(inst *instance.Instance, v int) []int {
	var out []int
	for _, c := range inst.Customers() {
		if inst.Compatible(v, c) {
			out = append(out, c)
		}
	}
	return out
}
