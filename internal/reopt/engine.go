// Package reopt re-solves a planned instance after operational changes.
//
// A Session walks Baseline -> ChangesetApplied -> Resolved. Apply derives a
// new instance from the baseline and a changeset; Resolve solves it with a
// stability penalty against the baseline plan, seeded with that plan. Next
// turns a resolved session into a fresh baseline for the following cycle.
package reopt

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/instance"
	"collection-route-service/internal/matrix"
	"collection-route-service/internal/platform/metrics"
	"collection-route-service/internal/platform/obs"
	"collection-route-service/internal/routing"
	"context"
	"errors"
	"fmt"
	"slices"
)

type Config struct {
	Solve       routing.Config
	Formulation routing.FormulationOptions
	// StabilityWeight is charged per customer served by another vehicle
	// than in the baseline plan.
	StabilityWeight float64
}

func DefaultConfig() Config {
	return Config{Solve: routing.DefaultConfig(), StabilityWeight: 1}
}

// Engine holds the services a reoptimization cycle needs. It is safe for
// concurrent use; sessions are not.
type Engine struct {
	matrix *matrix.Service
	orch   *routing.Orchestrator
}

func NewEngine(ms *matrix.Service, orch *routing.Orchestrator) *Engine {
	return &Engine{matrix: ms, orch: orch}
}

// Result is the outcome of one reoptimization.
type Result struct {
	Instance *instance.Instance
	Solution *domain.Solution
}

// Reoptimize runs one full cycle. A *domain.SolverTimeoutError comes back
// together with a usable Result.
func (e *Engine) Reoptimize(ctx context.Context, base *instance.Instance, baseline *domain.Solution, cs domain.Changeset, cfg Config) (_ *Result, err error) {
	defer obs.Time(ctx, "reopt.Reoptimize")(&err)

	s, err := e.Begin(base, baseline)
	if err != nil {
		return nil, err
	}
	if err := s.Apply(ctx, cs); err != nil {
		return nil, err
	}
	sol, err := s.Resolve(ctx, cfg)
	if sol == nil {
		return nil, err
	}
	return &Result{Instance: s.Instance(), Solution: sol}, err
}

// Derive builds the instance that results from applying cs to base.
// Disabled vehicles and blocked arcs carry over from base; blocked arcs
// touching removed customers are dropped with them. New customers get
// matrix entries computed against every existing node.
func (e *Engine) Derive(ctx context.Context, base *instance.Instance, cs domain.Changeset) (_ *instance.Instance, err error) {
	defer obs.Time(ctx, "reopt.Derive")(&err)

	if base == nil {
		return nil, errors.New("derive: base instance is nil")
	}
	if err := domain.ValidateChangeset(cs); err != nil {
		return nil, err
	}

	ent := base.Entities()

	remove := make(map[string]bool, len(cs.RemoveCustomers))
	for _, id := range cs.RemoveCustomers {
		i, ok := base.NodeIndex(id)
		if !ok || base.Node(i).Kind != domain.KindCustomer {
			return nil, &domain.DataValidationError{Entity: "changeset", ID: id, Field: "remove_customers", Reason: "not a customer of the baseline"}
		}
		remove[id] = true
	}
	ent.Customers = slices.DeleteFunc(ent.Customers, func(c domain.Customer) bool { return remove[c.ID] })

	for _, c := range cs.AddCustomers {
		// Ids are never reused: matrix rows are matched by id.
		if _, ok := base.NodeIndex(c.ID); ok {
			return nil, &domain.DataValidationError{Entity: "changeset", ID: c.ID, Field: "add_customers", Reason: "id already used in the baseline"}
		}
		ent.Customers = append(ent.Customers, c)
	}

	disabled := make(map[string]bool)
	for _, id := range base.DisabledVehicles() {
		disabled[id] = true
	}
	for _, id := range cs.DisableVehicles {
		if _, ok := base.VehicleIndex(id); !ok {
			return nil, &domain.DataValidationError{Entity: "changeset", ID: id, Field: "disable_vehicles", Reason: "not in the fleet"}
		}
		if slices.Contains(cs.EnableVehicles, id) {
			return nil, &domain.DataValidationError{Entity: "changeset", ID: id, Field: "enable_vehicles", Reason: "vehicle is both disabled and enabled"}
		}
		disabled[id] = true
	}
	for _, id := range cs.EnableVehicles {
		if _, ok := base.VehicleIndex(id); !ok {
			return nil, &domain.DataValidationError{Entity: "changeset", ID: id, Field: "enable_vehicles", Reason: "not in the fleet"}
		}
		delete(disabled, id)
	}
	var off []string
	for _, v := range ent.Vehicles {
		if disabled[v.ID] {
			off = append(off, v.ID)
		}
	}

	var blocked []domain.ArcRef
	for _, a := range slices.Concat(base.Blocked(), cs.BlockArcs) {
		if remove[a.From] || remove[a.To] || slices.Contains(blocked, a) {
			continue
		}
		blocked = append(blocked, a)
	}

	m, err := e.matrix.Extend(ctx, base.Matrix(), ent.Nodes())
	if err != nil {
		return nil, fmt.Errorf("derive: %w", err)
	}

	inst, err := instance.NewBuilder(base.Options()).Build(instance.BuildInput{
		Entities: ent,
		Matrix:   m,
		Disabled: off,
		Blocked:  blocked,
	})
	if err != nil {
		return nil, err
	}
	obs.Infof(ctx, "op=reopt.Derive base=%s instance=%s customers=%d disabled=%d blocked=%d",
		base.ID(), inst.ID(), len(ent.Customers), len(off), len(blocked))
	return inst, nil
}

// outcome labels a finished cycle for metrics.
func outcome(err error) string {
	var (
		timeout    *domain.SolverTimeoutError
		infeasible *domain.InfeasibleInstanceError
		invalid    *domain.DataValidationError
	)
	switch {
	case err == nil:
		return "resolved"
	case errors.As(err, &timeout):
		return "time_limit"
	case errors.As(err, &infeasible):
		return "infeasible"
	case errors.As(err, &invalid):
		return "rejected"
	default:
		return "error"
	}
}

func count(err error) { metrics.Reoptimizations.WithLabelValues(outcome(err)).Inc() }
