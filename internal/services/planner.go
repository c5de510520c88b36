package services

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/instance"
	"collection-route-service/internal/matrix"
	"collection-route-service/internal/platform/obs"
	"collection-route-service/internal/reopt"
	"collection-route-service/internal/routing"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type PlannerConfig struct {
	Mode            matrix.Mode
	Formulation     routing.FormulationOptions
	Solve           routing.Config
	StabilityWeight float64
}

// PlanRequest is one planning job. TimeLimit and MIPGap override the
// planner defaults when set.
type PlanRequest struct {
	Entities          domain.Entities
	DisabledVehicles  []string
	BlockArcs         []domain.ArcRef
	TimeLimit         time.Duration
	MIPGap            *float64
	AllowDirectReturn *bool
}

// Planner runs the end-to-end pipelines: entities to matrix to instance to
// solved plan, and plan plus changeset to a reoptimized plan.
type Planner struct {
	matrix  *matrix.Service
	builder *instance.Builder
	orch    *routing.Orchestrator
	reopt   *reopt.Engine
	repo    PlanRepository
	cfg     PlannerConfig

	mu    sync.Mutex
	locks map[string]*planLock
}

// planLock serializes reoptimizations of one plan. The entry is dropped
// once nobody holds or waits for it.
type planLock struct {
	mu   sync.Mutex
	refs int
}

func NewPlanner(ms *matrix.Service, b *instance.Builder, orch *routing.Orchestrator, repo PlanRepository, cfg PlannerConfig) *Planner {
	return &Planner{
		matrix:  ms,
		builder: b,
		orch:    orch,
		reopt:   reopt.NewEngine(ms, orch),
		repo:    repo,
		cfg:     cfg,
		locks:   make(map[string]*planLock),
	}
}

// Plan validates the request, solves it and stores the result. A time limit
// before proven optimality is not an error here; the plan's status and gap
// carry it.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (_ *Plan, err error) {
	defer obs.Time(ctx, "services.Plan")(&err)

	if err := domain.ValidateEntities(req.Entities); err != nil {
		return nil, err
	}

	m, err := p.matrix.Compute(ctx, req.Entities.Nodes(), p.cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	inst, err := p.builder.Build(instance.BuildInput{
		Entities: req.Entities,
		Matrix:   m,
		Disabled: req.DisabledVehicles,
		Blocked:  req.BlockArcs,
	})
	if err != nil {
		return nil, err
	}

	opts := p.cfg.Formulation
	if req.AllowDirectReturn != nil {
		opts.AllowDirectReturn = *req.AllowDirectReturn
	}
	model, err := routing.Formulate(inst, opts)
	if err != nil {
		return nil, err
	}

	sol, err := p.orch.Solve(ctx, model, p.solveConfig(req.TimeLimit, req.MIPGap))
	if err = tolerateTimeout(ctx, err); err != nil {
		return nil, err
	}

	plan := &Plan{
		ID:          uuid.NewString(),
		Version:     1,
		CreatedAt:   time.Now().UTC(),
		Instance:    inst,
		Solution:    sol,
		Formulation: opts,
	}
	if err := p.repo.Save(ctx, plan); err != nil {
		return nil, fmt.Errorf("plan: save: %w", err)
	}
	obs.Infof(ctx, "op=services.Plan plan_id=%s status=%s objective=%.4f routes=%d",
		plan.ID, sol.Status, sol.Objective, len(sol.Routes))
	return plan, nil
}

// ReoptimizeRequest applies Changeset to the plan with id PlanID.
type ReoptimizeRequest struct {
	PlanID          string
	Changeset       domain.Changeset
	TimeLimit       time.Duration
	StabilityWeight *float64
}

// Reoptimize stores and returns a new plan derived from an existing one.
// Requests against the same plan run one at a time.
func (p *Planner) Reoptimize(ctx context.Context, req ReoptimizeRequest) (_ *Plan, err error) {
	defer obs.Time(ctx, "services.Reoptimize")(&err)

	defer p.lock(req.PlanID)()

	parent, err := p.repo.Get(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("reoptimize: %w", err)
	}

	cfg := reopt.Config{
		Solve:           p.solveConfig(req.TimeLimit, nil),
		Formulation:     parent.Formulation,
		StabilityWeight: p.cfg.StabilityWeight,
	}
	if req.StabilityWeight != nil {
		cfg.StabilityWeight = *req.StabilityWeight
	}

	res, err := p.reopt.Reoptimize(ctx, parent.Instance, parent.Solution, req.Changeset, cfg)
	if err = tolerateTimeout(ctx, err); err != nil {
		return nil, err
	}

	plan := &Plan{
		ID:          uuid.NewString(),
		ParentID:    parent.ID,
		Version:     parent.Version + 1,
		CreatedAt:   time.Now().UTC(),
		Instance:    res.Instance,
		Solution:    res.Solution,
		Formulation: parent.Formulation,
		Changeset:   req.Changeset,
	}
	if err := p.repo.Save(ctx, plan); err != nil {
		return nil, fmt.Errorf("reoptimize: save: %w", err)
	}
	obs.Infof(ctx, "op=services.Reoptimize plan_id=%s parent_id=%s status=%s objective=%.4f stability=%.4f",
		plan.ID, parent.ID, res.Solution.Status, res.Solution.Objective, res.Solution.StabilityPenalty)
	return plan, nil
}

func (p *Planner) Get(ctx context.Context, id string) (*Plan, error) {
	plan, err := p.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return plan, nil
}

func (p *Planner) solveConfig(limit time.Duration, gap *float64) routing.Config {
	cfg := p.cfg.Solve
	if limit > 0 {
		cfg.TimeLimit = limit
	}
	if gap != nil {
		cfg.MIPGap = *gap
	}
	return cfg
}

// lock takes the per-plan lock for id and returns its release.
func (p *Planner) lock(id string) func() {
	p.mu.Lock()
	l, ok := p.locks[id]
	if !ok {
		l = &planLock{}
		p.locks[id] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		defer p.mu.Unlock()
		if l.refs--; l.refs == 0 {
			delete(p.locks, id)
		}
	}
}

// tolerateTimeout drops a *domain.SolverTimeoutError after logging it.
func tolerateTimeout(ctx context.Context, err error) error {
	var timeout *domain.SolverTimeoutError
	if errors.As(err, &timeout) {
		obs.Infof(ctx, "op=services.solve warning=%q", timeout.Error())
		return nil
	}
	return err
}
