package reopt

import (
	"collection-route-service/internal/domain"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	inst, baseline := plan(t, line())
	ctx := context.Background()

	s, err := newEngine().Begin(inst, baseline)
	require.NoError(t, err)
	assert.Equal(t, StateBaseline, s.State())
	assert.Same(t, inst, s.Instance())

	_, err = s.Resolve(ctx, testConfig())
	require.ErrorIs(t, err, domain.ErrInvalidState)
	require.ErrorIs(t, s.Next(), domain.ErrInvalidState)

	// A rejected changeset leaves the baseline in place.
	err = s.Apply(ctx, domain.Changeset{RemoveCustomers: []string{"nope"}})
	var dve *domain.DataValidationError
	require.ErrorAs(t, err, &dve)
	assert.Equal(t, StateBaseline, s.State())

	require.NoError(t, s.Apply(ctx, domain.Changeset{
		AddCustomers: []domain.Customer{{ID: "E", Location: at(2, 1), Demand: 2}},
	}))
	assert.Equal(t, StateChangesetApplied, s.State())
	require.ErrorIs(t, s.Apply(ctx, domain.Changeset{}), domain.ErrInvalidState)

	sol, err := s.Resolve(ctx, testConfig())
	require.NoError(t, err)
	assert.Equal(t, StateResolved, s.State())
	assert.Same(t, sol, s.Result())
	assert.Equal(t, "v", sol.Assignment()["E"])

	require.NoError(t, s.Next())
	assert.Equal(t, StateBaseline, s.State())
	assert.Same(t, sol, s.Baseline())
	assert.Nil(t, s.Result())

	require.NoError(t, s.Apply(ctx, domain.Changeset{RemoveCustomers: []string{"E"}}))
	again, err := s.Resolve(ctx, testConfig())
	require.NoError(t, err)
	_, ok := again.Assignment()["E"]
	assert.False(t, ok)
	assert.InDelta(t, baseline.Objective, again.Objective, 1e-6)
}

func TestBeginRejectsInvalidBaseline(t *testing.T) {
	inst, baseline := plan(t, line())
	broken := *baseline
	broken.Routes = nil

	_, err := newEngine().Begin(inst, &broken)
	assert.ErrorContains(t, err, "not served")

	_, err = newEngine().Begin(inst, nil)
	assert.Error(t, err)
}

func TestResolveRejectsNegativeStabilityWeight(t *testing.T) {
	inst, baseline := plan(t, line())
	s, err := newEngine().Begin(inst, baseline)
	require.NoError(t, err)
	require.NoError(t, s.Apply(context.Background(), domain.Changeset{}))

	cfg := testConfig()
	cfg.StabilityWeight = -1
	_, err = s.Resolve(context.Background(), cfg)
	var dve *domain.DataValidationError
	require.ErrorAs(t, err, &dve)
	assert.Equal(t, StateChangesetApplied, s.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "changeset_applied", StateChangesetApplied.String())
	assert.Equal(t, "state(7)", State(7).String())
}
