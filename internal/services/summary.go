package services

import (
	"collection-route-service/internal/domain"
)

type StopSummary struct {
	NodeID  string          `json:"node_id"`
	Kind    domain.StopKind `json:"kind"`
	Arrival float64         `json:"arrival_min"`
	Load    int             `json:"load"`
}

type VehicleSummary struct {
	VehicleID string        `json:"vehicle_id"`
	Stops     []StopSummary `json:"stops"`
	Distance  float64       `json:"distance"`
	Duration  float64       `json:"duration_min"`
	Load      int           `json:"load"`
	Trips     int           `json:"trips"`
}

// Summary is the per-vehicle route report of a solution.
type Summary struct {
	Vehicles         []VehicleSummary   `json:"vehicles"`
	Objective        float64            `json:"objective"`
	TravelCost       float64            `json:"travel_cost"`
	StartupCost      float64            `json:"startup_cost"`
	StabilityPenalty float64            `json:"stability_penalty"`
	Distance         float64            `json:"distance"`
	Duration         float64            `json:"duration_min"`
	Load             int                `json:"load"`
	Status           domain.SolveStatus `json:"status"`
	// Gap is nil when the engine could not report one.
	Gap      *float64 `json:"gap"`
	Degraded bool     `json:"degraded"`
	// WarmStart is accepted or ignored when the solve was seeded.
	WarmStart domain.WarmStart `json:"warm_start,omitempty"`
}

// Summarize reports every route of sol with totals. Stop loads are what the
// vehicle carries when it leaves the stop.
func Summarize(sol *domain.Solution) Summary {
	if sol == nil {
		return Summary{Vehicles: []VehicleSummary{}}
	}

	s := Summary{
		Vehicles:         make([]VehicleSummary, 0, len(sol.Routes)),
		Objective:        sol.Objective,
		TravelCost:       sol.TravelCost,
		StartupCost:      sol.StartupCost,
		StabilityPenalty: sol.StabilityPenalty,
		Status:           sol.Status,
		Degraded:         sol.Degraded,
		WarmStart:        sol.WarmStart,
	}
	if sol.Gap >= 0 {
		gap := sol.Gap
		s.Gap = &gap
	}

	for _, r := range sol.Routes {
		vs := VehicleSummary{
			VehicleID: r.VehicleID,
			Stops:     make([]StopSummary, 0, len(r.Stops)),
			Distance:  r.Distance,
			Duration:  r.Duration,
			Load:      r.Load,
			Trips:     r.Trips,
		}
		for _, st := range r.Stops {
			vs.Stops = append(vs.Stops, StopSummary{NodeID: st.NodeID, Kind: st.Kind, Arrival: st.Arrival, Load: st.Load})
		}
		s.Vehicles = append(s.Vehicles, vs)
		s.Distance += r.Distance
		s.Duration += r.Duration
		s.Load += r.Load
	}
	return s
}
