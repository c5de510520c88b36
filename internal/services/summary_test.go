package services

import (
	"collection-route-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	sol := &domain.Solution{
		Routes: []domain.Route{
			{
				VehicleID: "v1",
				Stops: []domain.Stop{
					{NodeID: "a", Kind: domain.StopCustomer, Arrival: 3, Load: 4},
					{NodeID: "F", Kind: domain.StopFacility, Arrival: 9, Load: 0},
				},
				Distance: 12, Duration: 36, Load: 4, Trips: 1,
			},
			{
				VehicleID: "v2",
				Stops: []domain.Stop{
					{NodeID: "b", Kind: domain.StopCustomer, Arrival: 5, Load: 2},
					{NodeID: "F", Kind: domain.StopFacility, Arrival: 8, Load: 0},
				},
				Distance: 8, Duration: 24, Load: 2, Trips: 1,
			},
		},
		Objective: 25, TravelCost: 20, StartupCost: 5,
		Status: domain.StatusOptimal, Gap: 0, WarmStart: domain.WarmStartIgnored,
	}

	s := Summarize(sol)

	require.Len(t, s.Vehicles, 2)
	assert.Equal(t, "v1", s.Vehicles[0].VehicleID)
	assert.Equal(t, StopSummary{NodeID: "F", Kind: domain.StopFacility, Arrival: 9}, s.Vehicles[0].Stops[1])
	assert.Equal(t, 20.0, s.Distance)
	assert.Equal(t, 60.0, s.Duration)
	assert.Equal(t, 6, s.Load)
	assert.Equal(t, 25.0, s.Objective)
	assert.Equal(t, 5.0, s.StartupCost)
	assert.Equal(t, domain.WarmStartIgnored, s.WarmStart)
	require.NotNil(t, s.Gap)
	assert.Equal(t, 0.0, *s.Gap)
}

func TestSummarizeUnknownGapAndNil(t *testing.T) {
	s := Summarize(&domain.Solution{Status: domain.StatusFeasibleTimeLimit, Gap: -1, Degraded: true})
	assert.Nil(t, s.Gap)
	assert.True(t, s.Degraded)
	assert.NotNil(t, s.Vehicles)

	assert.Empty(t, Summarize(nil).Vehicles)
}
