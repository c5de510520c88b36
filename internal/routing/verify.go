package routing

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/instance"
	"errors"
	"fmt"
)

var ErrInvalidSolution = errors.New("invalid solution")

// Verify checks sol against the instance from scratch: every customer is
// served exactly once by an enabled vehicle, carried load never exceeds
// capacity between disposal visits, every route fits its vehicle's shift
// and no route uses a blocked or otherwise disallowed arc.
func Verify(inst *instance.Instance, sol *domain.Solution) error {
	if sol == nil {
		return fmt.Errorf("%w: no solution", ErrInvalidSolution)
	}

	seen := make(map[int]string)
	vehicles := make(map[string]bool)
	for _, r := range sol.Routes {
		v, ok := inst.VehicleIndex(r.VehicleID)
		if !ok {
			return fmt.Errorf("%w: unknown vehicle %q", ErrInvalidSolution, r.VehicleID)
		}
		veh := inst.Vehicle(v)
		if !veh.Enabled {
			return fmt.Errorf("%w: vehicle %q is disabled", ErrInvalidSolution, r.VehicleID)
		}
		if vehicles[r.VehicleID] {
			return fmt.Errorf("%w: vehicle %q has two routes", ErrInvalidSolution, r.VehicleID)
		}
		vehicles[r.VehicleID] = true
		if len(r.Stops) == 0 {
			continue
		}

		seq, ok := sequence(inst, r)
		if !ok {
			return fmt.Errorf("%w: vehicle %q visits an unknown node", ErrInvalidSolution, r.VehicleID)
		}

		prev := inst.Depot()
		clock, load := 0.0, 0
		for _, i := range seq {
			nd := inst.Node(i)
			if nd.Kind == domain.KindDepot {
				return fmt.Errorf("%w: vehicle %q lists the depot as a stop", ErrInvalidSolution, r.VehicleID)
			}
			if err := checkArc(inst, r.VehicleID, prev, i); err != nil {
				return err
			}
			clock += inst.Time(prev, i)

			switch nd.Kind {
			case domain.KindFacility:
				load = 0
			case domain.KindCustomer:
				if other, dup := seen[i]; dup {
					return fmt.Errorf("%w: customer %q served by %q and %q", ErrInvalidSolution, nd.ID, other, r.VehicleID)
				}
				seen[i] = r.VehicleID
				load += nd.Demand
				if load > veh.Capacity {
					return fmt.Errorf("%w: vehicle %q carries %d at %q (capacity %d)",
						ErrInvalidSolution, r.VehicleID, load, nd.ID, veh.Capacity)
				}
			}
			clock += nd.Service
			prev = i
		}
		if err := checkArc(inst, r.VehicleID, prev, inst.Depot()); err != nil {
			return err
		}
		clock += inst.Time(prev, inst.Depot())

		if clock > float64(veh.MaxShift)+1e-6 {
			return fmt.Errorf("%w: vehicle %q route takes %.2f (max shift %d)",
				ErrInvalidSolution, r.VehicleID, clock, veh.MaxShift)
		}
	}

	for _, c := range inst.Customers() {
		if _, ok := seen[c]; !ok {
			return fmt.Errorf("%w: customer %q is not served", ErrInvalidSolution, inst.Node(c).ID)
		}
	}
	return nil
}

func checkArc(inst *instance.Instance, vehicle string, from, to int) error {
	if from == to {
		return fmt.Errorf("%w: vehicle %q stays at %s", ErrInvalidSolution, vehicle, inst.Node(to).ID)
	}
	if !inst.Allowed(from, to) {
		return fmt.Errorf("%w: vehicle %q uses disallowed arc %s -> %s",
			ErrInvalidSolution, vehicle, inst.Node(from).ID, inst.Node(to).ID)
	}
	return nil
}
