package routing

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/milp"
	"collection-route-service/internal/platform/metrics"
	"collection-route-service/internal/platform/obs"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrSolverFailed wraps fatal engine outcomes: unbounded models, engine
// errors, no solution at all, or a solution that fails verification.
var ErrSolverFailed = errors.New("solver failed")

type Config struct {
	TimeLimit time.Duration
	// MIPGap is the relative gap at which a solution counts as optimal.
	MIPGap float64
	// LogLevel is quiet, info or debug; debug also turns on engine output.
	LogLevel string
	// WarmStart seeds the engine. It may come from a different instance;
	// it is translated onto the current one first.
	WarmStart *domain.Solution
}

func DefaultConfig() Config {
	return Config{TimeLimit: 30 * time.Second, LogLevel: "info"}
}

func (c Config) validate() (obs.Level, error) {
	if c.TimeLimit <= 0 {
		return 0, &domain.DataValidationError{Entity: "solve_config", Field: "time_limit", Reason: "must be positive"}
	}
	if c.MIPGap < 0 || c.MIPGap >= 1 || math.IsNaN(c.MIPGap) {
		return 0, &domain.DataValidationError{Entity: "solve_config", Field: "mip_gap", Reason: "must be in [0, 1)"}
	}
	level, err := obs.ParseLevel(c.LogLevel)
	if err != nil {
		return 0, &domain.DataValidationError{Entity: "solve_config", Field: "log_level", Reason: err.Error()}
	}
	return level, nil
}

// Orchestrator runs a solver engine over routing models.
type Orchestrator struct {
	Engine milp.Solver
	// Construct seeds solves without a warm start using NearestNeighborSeed.
	Construct bool
}

func NewOrchestrator(engine milp.Solver) *Orchestrator {
	return &Orchestrator{Engine: engine, Construct: true}
}

// Solve solves m and returns a verified solution. When a limit stops the
// engine before optimality the best solution is returned together with a
// *domain.SolverTimeoutError. Infeasible models yield a
// *domain.InfeasibleInstanceError; other engine failures wrap ErrSolverFailed.
// The model and its instance are never modified.
func (o *Orchestrator) Solve(ctx context.Context, m *Model, cfg Config) (_ *domain.Solution, err error) {
	defer obs.Time(ctx, "routing.Solve")(&err)

	if m == nil {
		return nil, errors.New("solve: model is nil")
	}
	if o.Engine == nil {
		return nil, errors.New("solve: no engine configured")
	}
	level, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	engine := o.Engine.Name()
	runID := uuid.NewString()
	logf := func(format string, args ...any) {
		if level >= obs.LevelInfo {
			obs.Infof(ctx, "op=routing.Solve run_id=%s engine=%s "+format, append([]any{runID, engine}, args...)...)
		}
	}

	seed, source := o.seed(m, cfg, logf)
	var incumbent []float64
	if seed != nil {
		incumbent, err = m.Encode(seed)
		if err != nil {
			logf("seed=%s seed_dropped=true err=%q", source, err)
			seed, incumbent = nil, nil
		}
	}

	start := time.Now()
	res, err := o.Engine.Solve(ctx, m.prog, milp.Options{
		TimeLimit: cfg.TimeLimit,
		MIPGap:    cfg.MIPGap,
		Verbose:   level >= obs.LevelDebug,
		Incumbent: incumbent,
	})
	metrics.SolveDuration.WithLabelValues(engine).Observe(time.Since(start).Seconds())

	count := func(s domain.SolveStatus) { metrics.SolveTotal.WithLabelValues(engine, string(s)).Inc() }

	if err != nil {
		count(domain.StatusError)
		return nil, fmt.Errorf("solve: %s engine: %w", engine, err)
	}
	logf("engine_status=%s objective=%.4f gap=%.4f nodes=%d seeded=%t dur=%dms",
		res.Status, res.Objective, res.Gap, res.Nodes, res.Seeded, res.Runtime.Milliseconds())

	var sol *domain.Solution
	switch res.Status {
	case milp.StatusInfeasible:
		count(domain.StatusInfeasible)
		return nil, diagnose(m)

	case milp.StatusUnbounded:
		count(domain.StatusError)
		return nil, fmt.Errorf("%w: %s engine reports the model unbounded", ErrSolverFailed, engine)

	case milp.StatusUnknown:
		if seed == nil {
			count(domain.StatusError)
			return nil, fmt.Errorf("%w: %s engine found no solution within %s", ErrSolverFailed, engine, cfg.TimeLimit)
		}
		logf("result=seed source=%s", source)
		sol = seed
		sol.Status = domain.StatusFeasibleTimeLimit
		sol.Gap = -1

	default:
		sol, err = m.Decode(res.Values)
		if err != nil {
			count(domain.StatusError)
			return nil, fmt.Errorf("%w: %w", ErrSolverFailed, err)
		}
		sol.Status = domain.StatusFeasibleTimeLimit
		sol.Gap = res.Gap
		if res.Status == milp.StatusOptimal {
			sol.Status = domain.StatusOptimal
		}

		// Engines that cannot take an incumbent may finish behind the seed.
		if seed != nil && seed.Objective < sol.Objective-1e-6 {
			logf("result=seed source=%s engine_objective=%.4f seed_objective=%.4f", source, sol.Objective, seed.Objective)
			seed.Status = sol.Status
			seed.Gap = -1
			if !math.IsInf(res.Bound, -1) {
				seed.Gap = milp.RelativeGap(seed.Objective, res.Bound)
			}
			sol = seed
		}
	}
	sol.Runtime = res.Runtime
	if incumbent != nil {
		sol.WarmStart = domain.WarmStartIgnored
		if res.Seeded {
			sol.WarmStart = domain.WarmStartAccepted
		}
		logf("seed=%s warm_start=%s", source, sol.WarmStart)
	}

	if err := Verify(m.inst, sol); err != nil {
		count(domain.StatusError)
		return nil, fmt.Errorf("%w: %w", ErrSolverFailed, err)
	}

	count(sol.Status)
	if sol.Status == domain.StatusFeasibleTimeLimit {
		return sol, &domain.SolverTimeoutError{TimeLimit: cfg.TimeLimit, Gap: sol.Gap}
	}
	return sol, nil
}

// seed picks the engine incumbent: the translated warm start when one is
// given, else the construction heuristic.
func (o *Orchestrator) seed(m *Model, cfg Config, logf func(string, ...any)) (*domain.Solution, string) {
	type source struct {
		name  string
		build func() (*domain.Solution, error)
	}
	var sources []source
	if cfg.WarmStart != nil {
		sources = append(sources, source{"warm_start", func() (*domain.Solution, error) {
			return TranslateWarmStart(m.inst, m.opts, cfg.WarmStart)
		}})
	}
	if o.Construct {
		sources = append(sources, source{"nearest_neighbor", func() (*domain.Solution, error) {
			return NearestNeighborSeed(m.inst, m.opts)
		}})
	}

	for _, s := range sources {
		sol, err := s.build()
		if err == nil {
			err = Verify(m.inst, sol)
		}
		if err != nil {
			logf("seed=%s seed_unavailable=true err=%q", s.name, err)
			continue
		}
		logf("seed=%s seed_objective=%.4f", s.name, sol.Objective)
		return sol, s.name
	}
	return nil, ""
}

// diagnose names the entity behind an infeasible model. A customer that
// no vehicle can serve even on a dedicated trip is named directly;
// otherwise the fleet as a whole is short and hints describe why.
func diagnose(m *Model) error {
	inst := m.inst
	for _, c := range inst.Customers() {
		servable := false
		for _, fv := range m.fleet {
			if _, ok := fv.load[c]; !ok {
				continue
			}
			if routeFits(inst, fv.index, closeRoute([]int{c}, inst.Facility(), m.opts), m.opts, fv.copies) {
				servable = true
				break
			}
		}
		if !servable {
			return &domain.InfeasibleInstanceError{
				EntityKind: "customer",
				EntityID:   inst.Node(c).ID,
				Constraint: "no enabled vehicle can serve it on a dedicated trip within its shift over allowed arcs",
			}
		}
	}

	demand, capacity := 0, 0
	for _, c := range inst.Customers() {
		demand += inst.Node(c).Demand
	}
	for _, fv := range m.fleet {
		capacity += inst.Vehicle(fv.index).Capacity * max(fv.copies, 1)
	}
	hints := []string{fmt.Sprintf("total demand %d against %d per-trip capacity over %d enabled vehicles", demand, capacity, len(m.fleet))}
	if n := len(inst.Blocked()); n > 0 {
		hints = append(hints, fmt.Sprintf("%d arcs are blocked", n))
	}
	if inst.Options().Sparsify != nil {
		hints = append(hints, "arc sparsification is enabled; disabling it may restore feasibility")
	}
	if m.opts.MaxDisposalVisits > 0 {
		hints = append(hints, fmt.Sprintf("disposal visits are capped at %d per vehicle", m.opts.MaxDisposalVisits))
	}
	return &domain.InfeasibleInstanceError{
		EntityKind: "instance",
		EntityID:   inst.ID(),
		Constraint: "no assignment of customers to vehicles satisfies capacity and shift limits together",
		Hints:      hints,
	}
}
