package reopt

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/instance"
	"collection-route-service/internal/routing"
	"context"
	"errors"
	"fmt"
	"sync"
)

type State int

const (
	StateBaseline State = iota
	StateChangesetApplied
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateBaseline:
		return "baseline"
	case StateChangesetApplied:
		return "changeset_applied"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is one reoptimization cycle over a baseline plan.
// Calls are serialized; a session runs at most one solve at a time.
type Session struct {
	engine *Engine

	mu       sync.Mutex
	state    State
	base     *instance.Instance
	baseline *domain.Solution
	derived  *instance.Instance
	result   *domain.Solution
}

// Begin opens a session on a baseline plan, which must be valid for base.
func (e *Engine) Begin(base *instance.Instance, baseline *domain.Solution) (*Session, error) {
	if base == nil {
		return nil, errors.New("begin: base instance is nil")
	}
	if err := routing.Verify(base, baseline); err != nil {
		return nil, fmt.Errorf("begin: baseline: %w", err)
	}
	return &Session{engine: e, state: StateBaseline, base: base, baseline: baseline}, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Instance returns the newest instance of the session: the derived one once
// a changeset is applied, the baseline's before.
func (s *Session) Instance() *instance.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.derived != nil {
		return s.derived
	}
	return s.base
}

func (s *Session) Baseline() *domain.Solution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// Result returns the resolved solution, nil before Resolve succeeds.
func (s *Session) Result() *domain.Solution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Apply derives the changed instance. A failed Apply leaves the session in
// Baseline so a corrected changeset can be tried.
func (s *Session) Apply(ctx context.Context, cs domain.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateBaseline {
		return fmt.Errorf("apply: %w: session is %s", domain.ErrInvalidState, s.state)
	}
	inst, err := s.engine.Derive(ctx, s.base, cs)
	if err != nil {
		count(err)
		return err
	}
	s.derived = inst
	s.state = StateChangesetApplied
	return nil
}

// Resolve solves the derived instance with a stability penalty against the
// baseline plan, which also seeds the engine. On a time limit the session
// still resolves and the solution comes back with the timeout error.
// Infeasibility leaves the session in ChangesetApplied.
func (s *Session) Resolve(ctx context.Context, cfg Config) (*domain.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateChangesetApplied {
		return nil, fmt.Errorf("resolve: %w: session is %s", domain.ErrInvalidState, s.state)
	}
	if cfg.StabilityWeight < 0 {
		err := &domain.DataValidationError{Entity: "reoptimize_config", Field: "stability_weight", Reason: "must not be negative"}
		count(err)
		return nil, err
	}

	opts := cfg.Formulation
	opts.Stability = routing.NewStability(s.baseline, cfg.StabilityWeight)
	m, err := routing.Formulate(s.derived, opts)
	if err != nil {
		count(err)
		return nil, err
	}

	solveCfg := cfg.Solve
	solveCfg.WarmStart = s.baseline
	sol, err := s.engine.orch.Solve(ctx, m, solveCfg)
	count(err)
	if sol == nil {
		return nil, err
	}
	s.result = sol
	s.state = StateResolved
	return sol, err
}

// Next makes the resolved plan the baseline of a new cycle.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateResolved {
		return fmt.Errorf("next: %w: session is %s", domain.ErrInvalidState, s.state)
	}
	s.base, s.baseline = s.derived, s.result
	s.derived, s.result = nil, nil
	s.state = StateBaseline
	return nil
}
