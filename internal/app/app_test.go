package app

import (
	"collection-route-service/internal/adapters/cache"
	"collection-route-service/internal/config"
	"collection-route-service/internal/domain"
	"collection-route-service/internal/matrix"
	"collection-route-service/internal/milp"
	"collection-route-service/internal/services"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(lon, lat float64) *domain.Coordinates { return &domain.Coordinates{Lon: lon, Lat: lat} }

func entities() domain.Entities {
	return domain.Entities{
		Depots:     []domain.Depot{{ID: "D", Location: at(-112.07, 33.44)}},
		Facilities: []domain.Facility{{ID: "F", Location: at(-112.00, 33.44)}},
		Customers: []domain.Customer{
			{ID: "A", Location: at(-112.05, 33.45), Demand: 2},
			{ID: "B", Location: at(-112.03, 33.46), Demand: 3},
		},
		Vehicles: []domain.Vehicle{{ID: "v", Capacity: 10, MaxShift: 600}},
	}
}

// roadConfig returns a valid road-mode config using the mock provider. The
// overrides run before validation.
func roadConfig(t *testing.T, cacheKind string, overrides ...func(*config.Config)) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DistanceMode:     "road",
		RoutingProvider:  "mock",
		ProviderTimeout:  1,
		MatrixWorkers:    2,
		MatrixCache:      cacheKind,
		MatrixCachePath:  filepath.Join(dir, "cache.json"),
		SQLitePath:       filepath.Join(dir, "cache.db"),
		SolverEngine:     "embedded",
		TimeLimitSeconds: 30,
		LogLevel:         "quiet",
		StabilityWeight:  1,
		CostPerUnit:      1,
		TimePerUnit:      3,
		FallbackSpeedKph: 40,
	}
	for _, o := range overrides {
		o(cfg)
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

// planAndClose solves once through a fresh app and returns the number of
// cached pairs a second app sees on start.
func planAndClose(t *testing.T, cfg *config.Config) int {
	t.Helper()
	ctx := context.Background()

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	plan, err := a.Planner.Plan(ctx, services.PlanRequest{Entities: entities()})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOptimal, plan.Solution.Status)
	assert.False(t, plan.Solution.Degraded)
	assert.Positive(t, a.Cache.Len())
	require.NoError(t, a.Close(ctx))

	again, err := New(ctx, cfg)
	require.NoError(t, err)
	defer again.Close(ctx)
	return again.Cache.Len()
}

func TestAppPersistsMatrixCache(t *testing.T) {
	// Four nodes give 12 ordered off-diagonal pairs.
	for _, kind := range []string{"file", "sqlite"} {
		t.Run(kind, func(t *testing.T) {
			assert.Equal(t, 12, planAndClose(t, roadConfig(t, kind)))
		})
	}

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := roadConfig(t, "redis", func(c *config.Config) { c.RedisURL = "redis://" + mr.Addr() })
		assert.Equal(t, 12, planAndClose(t, cfg))
	})

	t.Run("none", func(t *testing.T) {
		assert.Equal(t, 0, planAndClose(t, roadConfig(t, "none")))
	})
}

func TestAppRecoversFromCorruptFileCache(t *testing.T) {
	cfg := roadConfig(t, "file")
	require.NoError(t, os.WriteFile(cfg.MatrixCachePath, []byte("{not json"), 0o644))

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close(context.Background())
	assert.True(t, a.Cache.Discarded())
	assert.Equal(t, 0, a.Cache.Len())
}

func TestAppStoreErrors(t *testing.T) {
	ctx := context.Background()

	cfg := roadConfig(t, "redis", func(c *config.Config) { c.RedisURL = "not-a-url" })
	_, err := New(ctx, cfg)
	assert.ErrorContains(t, err, "REDIS_URL")

	_, _, err = OpenSQL(ctx, roadConfig(t, "file"))
	assert.ErrorContains(t, err, "not a SQL backend")
}

func TestOpenSQLCreatesSchema(t *testing.T) {
	ctx := context.Background()
	conn, dialect, err := OpenSQL(ctx, roadConfig(t, "sqlite"))
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, cache.DialectSQLite, dialect)
	stats, err := cache.ReadStats(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, cache.Stats{}, stats)
}

func TestNewProviderAndEngine(t *testing.T) {
	cfg := roadConfig(t, "none")

	for provider, name := range map[string]string{"mock": "mock", "osrm": "osrm/driving", "ors": "ors/driving-car"} {
		cfg.RoutingProvider = provider
		cfg.OSRMBaseURL = "http://localhost:5000"
		cfg.ORSAPIKey = "key"
		p, err := NewProvider(cfg)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}

	cfg.RoutingProvider = "pigeon"
	_, err := NewProvider(cfg)
	assert.Error(t, err)

	assert.Equal(t, "highs", NewEngine(&config.Config{SolverEngine: "HiGHS"}).Name())
	assert.IsType(t, milp.BranchAndBound{}, NewEngine(&config.Config{SolverEngine: "embedded"}))
}

func TestAnalyticModeNeedsNoProvider(t *testing.T) {
	cfg := roadConfig(t, "none", func(c *config.Config) {
		c.DistanceMode = "haversine"
		c.RoutingProvider = "osrm"
		c.OSRMBaseURL = ""
	})

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close(context.Background())

	m, err := a.Matrix.Compute(context.Background(), entities().Nodes(), matrix.ModeHaversine)
	require.NoError(t, err)
	assert.False(t, m.Degraded)
}
