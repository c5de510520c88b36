package routing

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/milp"
	"fmt"
)

// Encode translates sol into a value vector for the model, for use as an
// engine incumbent. It fails when sol uses a vehicle, arc or number of
// disposal visits the model does not have.
func (m *Model) Encode(sol *domain.Solution) ([]float64, error) {
	vals := make([]float64, m.prog.NumVars())
	for j := range vals {
		lo, _ := m.prog.Bounds(milp.Var(j))
		vals[j] = lo
	}
	if sol == nil {
		return vals, nil
	}

	for _, r := range sol.Routes {
		if len(r.Stops) == 0 {
			continue
		}
		f, ok := m.byID[r.VehicleID]
		if !ok {
			return nil, fmt.Errorf("encode: vehicle %q is not available", r.VehicleID)
		}
		fv := m.fleet[f]

		graph, err := m.graphSequence(fv, r)
		if err != nil {
			return nil, fmt.Errorf("encode: vehicle %q: %w", r.VehicleID, err)
		}

		vals[fv.used] = 1
		prev := m.inst.Depot()
		clock, load := 0.0, 0
		for _, g := range append(graph, m.inst.Depot()) {
			x, ok := fv.arcs[arcKey{prev, g}]
			if !ok {
				return nil, fmt.Errorf("encode: vehicle %q: arc %s -> %s is not in the model",
					r.VehicleID, m.inst.Node(m.node(prev)).ID, m.inst.Node(m.node(g)).ID)
			}
			vals[x] = 1

			clock += m.inst.Time(m.node(prev), m.node(g))
			if g == m.inst.Depot() {
				vals[fv.back] = clock
				break
			}
			vals[fv.arrive[g]] = clock

			if m.isCopy(g) {
				load = 0
			} else {
				load += m.inst.Node(g).Demand
				vals[fv.load[g]] = float64(load)
			}
			clock += m.inst.Node(m.node(g)).Service
			prev = g
		}
	}
	return vals, nil
}

// graphSequence maps a route onto graph nodes, giving successive facility
// stops successive facility copies.
func (m *Model) graphSequence(fv *fleetVehicle, r domain.Route) ([]int, error) {
	seq, ok := sequence(m.inst, r)
	if !ok {
		return nil, fmt.Errorf("route visits an unknown node")
	}
	graph := make([]int, 0, len(seq))
	k := 0
	for _, i := range seq {
		switch m.inst.Node(i).Kind {
		case domain.KindFacility:
			if k >= fv.copies {
				return nil, fmt.Errorf("more than %d disposal visits", fv.copies)
			}
			graph = append(graph, m.facilityCopy(k))
			k++
		case domain.KindCustomer:
			if _, ok := fv.load[i]; !ok {
				return nil, fmt.Errorf("customer %q cannot be served by this vehicle", m.inst.Node(i).ID)
			}
			graph = append(graph, i)
		default:
			return nil, fmt.Errorf("depot listed as a stop")
		}
	}
	return graph, nil
}

// Decode reads routes out of an engine value vector. Times and loads are
// recomputed from the instance rather than read from continuous variables.
func (m *Model) Decode(vals []float64) (*domain.Solution, error) {
	if len(vals) != m.prog.NumVars() {
		return nil, fmt.Errorf("decode: got %d values for %d variables", len(vals), m.prog.NumVars())
	}

	depot := m.inst.Depot()
	var routes []domain.Route
	for _, fv := range m.fleet {
		if vals[fv.used] < 0.5 {
			continue
		}

		var seq []int
		cur := depot
		for step := 0; ; step++ {
			if step > len(fv.arcs) {
				return nil, fmt.Errorf("decode: vehicle %q: route does not return to the depot", m.inst.Vehicle(fv.index).ID)
			}
			next := -1
			for _, b := range fv.succ[cur] {
				if vals[fv.arcs[arcKey{cur, b}]] > 0.5 {
					next = b
					break
				}
			}
			if next < 0 {
				return nil, fmt.Errorf("decode: vehicle %q: route breaks off after node %d", m.inst.Vehicle(fv.index).ID, cur)
			}
			if next == depot {
				break
			}
			seq = append(seq, m.node(next))
			cur = next
		}
		routes = append(routes, evalRoute(m.inst, fv.index, seq))
	}
	return assemble(m.inst, routes, m.opts.Stability), nil
}
