package dto

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/services"
	"time"
)

type PlanRequest struct {
	Entities          domain.Entities `json:"entities"`
	DisabledVehicles  []string        `json:"disabled_vehicles"`
	BlockArcs         []domain.ArcRef `json:"block_arcs"`
	TimeLimitSeconds  *float64        `json:"time_limit_seconds"`
	MIPGap            *float64        `json:"mip_gap"`
	AllowDirectReturn *bool           `json:"allow_direct_return"`
}

type ReoptimizeRequest struct {
	Changeset        domain.Changeset `json:"changeset"`
	TimeLimitSeconds *float64         `json:"time_limit_seconds"`
	StabilityWeight  *float64         `json:"stability_weight"`
}

type PlanResponse struct {
	ID        string            `json:"id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Changeset *domain.Changeset `json:"changeset,omitempty"`
	Summary   services.Summary  `json:"summary"`
}

func NewPlanResponse(p *services.Plan) PlanResponse {
	res := PlanResponse{
		ID:        p.ID,
		ParentID:  p.ParentID,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		Summary:   services.Summarize(p.Solution),
	}
	if !p.Changeset.IsEmpty() {
		cs := p.Changeset
		res.Changeset = &cs
	}
	return res
}
