package repositories

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/services"
	"context"
	"errors"
	"fmt"
	"sync"
)

// In-memory implementation of the PlanRepository port. Plans are immutable
// once saved, so the stored pointers are handed out directly.
type MemoryPlanRepository struct {
	mu    sync.RWMutex
	plans map[string]*services.Plan
}

func NewMemoryPlanRepository() *MemoryPlanRepository {
	return &MemoryPlanRepository{plans: make(map[string]*services.Plan)}
}

func (r *MemoryPlanRepository) Save(ctx context.Context, p *services.Plan) error {
	if p == nil || p.ID == "" {
		return errors.New("save plan: plan has no id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[p.ID]; ok {
		return fmt.Errorf("save plan %q: %w: plans are never overwritten", p.ID, domain.ErrInvalidState)
	}
	r.plans[p.ID] = p
	return nil
}

func (r *MemoryPlanRepository) Get(ctx context.Context, id string) (*services.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %q: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// Len reports the number of stored plans.
func (r *MemoryPlanRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plans)
}
