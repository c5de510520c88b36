package services

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/instance"
	"collection-route-service/internal/routing"
	"context"
	"time"
)

// Plan is a stored solve. Reoptimizing a plan stores a new plan whose
// ParentID points back at it; plans are never updated in place.
type Plan struct {
	ID        string
	ParentID  string
	Version   int
	CreatedAt time.Time
	Instance  *instance.Instance
	Solution  *domain.Solution
	// Formulation is what the plan was solved under; reoptimized plans
	// inherit it.
	Formulation routing.FormulationOptions
	// Changeset is what was applied to the parent, zero for a fresh plan.
	Changeset domain.Changeset
}

// Port: storage for plans. Get returns an error wrapping domain.ErrNotFound
// for unknown ids.
type PlanRepository interface {
	Save(ctx context.Context, p *Plan) error
	Get(ctx context.Context, id string) (*Plan, error)
}
