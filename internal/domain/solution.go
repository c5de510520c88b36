package domain

import "time"

type SolveStatus string

const (
	StatusOptimal           SolveStatus = "optimal"
	StatusFeasibleTimeLimit SolveStatus = "feasible_time_limit"
	StatusInfeasible        SolveStatus = "infeasible"
	StatusError             SolveStatus = "solver_error"
)

// WarmStart records what the engine did with the incumbent it was given.
type WarmStart string

const (
	WarmStartNone     WarmStart = ""
	WarmStartAccepted WarmStart = "accepted"
	// WarmStartIgnored means the engine cannot take an incumbent or
	// rejected it and searched from scratch.
	WarmStartIgnored WarmStart = "ignored"
)

type StopKind string

const (
	StopCustomer StopKind = "customer"
	StopFacility StopKind = "facility"
)

// Represents a single visit in a collection route.
// Arrival is the estimated arrival in minutes after leaving the depot and
// Load is what the vehicle carries when it leaves the stop.
type Stop struct {
	NodeID  string
	Kind    StopKind
	Arrival float64
	Load    int
}

// Represents the route of one used vehicle. The depot is implicit at both ends.
type Route struct {
	VehicleID string
	Stops     []Stop
	Distance  float64
	Duration  float64
	Cost      float64
	Load      int
	Trips     int
}

// Customers returns the customer ids in visiting order.
func (r Route) Customers() []string {
	out := make([]string, 0, len(r.Stops))
	for _, s := range r.Stops {
		if s.Kind == StopCustomer {
			out = append(out, s.NodeID)
		}
	}
	return out
}

// Solution is immutable planning output for one solve.
// Gap is -1 when the engine could not report one.
type Solution struct {
	Routes           []Route
	Objective        float64
	TravelCost       float64
	StartupCost      float64
	StabilityPenalty float64
	Status           SolveStatus
	Gap              float64
	Runtime          time.Duration
	Degraded         bool
	WarmStart        WarmStart
}

// Assignment maps each served customer to its vehicle.
func (s *Solution) Assignment() map[string]string {
	out := make(map[string]string)
	if s == nil {
		return out
	}
	for _, r := range s.Routes {
		for _, c := range r.Customers() {
			out[c] = r.VehicleID
		}
	}
	return out
}

func (s *Solution) Route(vehicleID string) (Route, bool) {
	if s == nil {
		return Route{}, false
	}
	for _, r := range s.Routes {
		if r.VehicleID == vehicleID {
			return r, true
		}
	}
	return Route{}, false
}

// Uses reports whether any route goes straight from stop from to stop to.
// Depot legs are not stops and never match.
func (s *Solution) Uses(from, to string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Routes {
		for i := 1; i < len(r.Stops); i++ {
			if r.Stops[i-1].NodeID == from && r.Stops[i].NodeID == to {
				return true
			}
		}
	}
	return false
}
