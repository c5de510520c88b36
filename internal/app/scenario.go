package app

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/services"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a one-shot solve read from YAML: the entities, optional
// closures, and an optional changeset to reoptimize with afterwards.
type Scenario struct {
	domain.Entities   `yaml:",inline"`
	DisabledVehicles  []string          `yaml:"disabled_vehicles"`
	BlockArcs         []domain.ArcRef   `yaml:"block_arcs"`
	TimeLimitSeconds  float64           `yaml:"time_limit_seconds"`
	AllowDirectReturn *bool             `yaml:"allow_direct_return"`
	Changeset         *domain.Changeset `yaml:"changeset"`
	StabilityWeight   *float64          `yaml:"stability_weight"`
}

func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	if s.TimeLimitSeconds < 0 {
		return nil, &domain.DataValidationError{Entity: "scenario", ID: path, Field: "time_limit_seconds", Reason: "must not be negative"}
	}
	return &s, nil
}

func (s *Scenario) PlanRequest() services.PlanRequest {
	return services.PlanRequest{
		Entities:          s.Entities,
		DisabledVehicles:  s.DisabledVehicles,
		BlockArcs:         s.BlockArcs,
		TimeLimit:         s.limit(),
		AllowDirectReturn: s.AllowDirectReturn,
	}
}

// ReoptimizeRequest returns false when the scenario carries no changeset.
func (s *Scenario) ReoptimizeRequest(planID string) (services.ReoptimizeRequest, bool) {
	if s.Changeset == nil {
		return services.ReoptimizeRequest{}, false
	}
	return services.ReoptimizeRequest{
		PlanID:          planID,
		Changeset:       *s.Changeset,
		TimeLimit:       s.limit(),
		StabilityWeight: s.StabilityWeight,
	}, true
}

func (s *Scenario) limit() time.Duration {
	return time.Duration(s.TimeLimitSeconds * float64(time.Second))
}
