package routing

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/instance"
)

// evalRoute walks seq, a list of instance node indices with the depot
// implicit at both ends, for vehicle v. Arrival is the service start in
// minutes after leaving the depot.
func evalRoute(inst *instance.Instance, v int, seq []int) domain.Route {
	veh := inst.Vehicle(v)
	r := domain.Route{VehicleID: veh.ID, Stops: make([]domain.Stop, 0, len(seq))}

	prev := inst.Depot()
	clock := 0.0
	load := 0
	served := false
	for _, i := range seq {
		nd := inst.Node(i)
		clock += inst.Time(prev, i)
		r.Distance += inst.Distance(prev, i)
		r.Cost += inst.Cost(prev, i)

		stop := domain.Stop{NodeID: nd.ID, Arrival: clock}
		if nd.Kind == domain.KindFacility {
			stop.Kind = domain.StopFacility
			if served {
				r.Trips++
			}
			load, served = 0, false
		} else {
			stop.Kind = domain.StopCustomer
			load += nd.Demand
			r.Load += nd.Demand
			served = true
		}
		stop.Load = load
		r.Stops = append(r.Stops, stop)

		clock += nd.Service
		prev = i
	}
	if served {
		r.Trips++
	}

	if len(seq) > 0 {
		clock += inst.Time(prev, inst.Depot())
		r.Distance += inst.Distance(prev, inst.Depot())
		r.Cost += inst.Cost(prev, inst.Depot())
	}
	r.Duration = clock
	return r
}

// assemble totals routes into a Solution. Routes without stops are dropped
// and the remaining ones keep fleet order.
func assemble(inst *instance.Instance, routes []domain.Route, stab *Stability) *domain.Solution {
	sol := &domain.Solution{Gap: -1, Degraded: inst.Degraded()}

	byVehicle := make(map[string]domain.Route, len(routes))
	for _, r := range routes {
		if len(r.Stops) > 0 {
			byVehicle[r.VehicleID] = r
		}
	}
	for v := range inst.NumVehicles() {
		veh := inst.Vehicle(v)
		r, ok := byVehicle[veh.ID]
		if !ok {
			continue
		}
		sol.Routes = append(sol.Routes, r)
		sol.TravelCost += r.Cost
		sol.StartupCost += float64(veh.StartupCost)
	}

	sol.StabilityPenalty = stab.penalty(inst, sol.Assignment())
	sol.Objective = sol.TravelCost + sol.StartupCost + sol.StabilityPenalty
	return sol
}

// sequence maps a route's stops onto instance node indices.
func sequence(inst *instance.Instance, r domain.Route) ([]int, bool) {
	seq := make([]int, 0, len(r.Stops))
	for _, s := range r.Stops {
		i, ok := inst.NodeIndex(s.NodeID)
		if !ok {
			return nil, false
		}
		seq = append(seq, i)
	}
	return seq, true
}
