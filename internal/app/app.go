// Package app is the composition root shared by the binaries: it turns a
// validated config into concrete adapters behind the ports.
package app

import (
	"collection-route-service/internal/adapters/cache"
	"collection-route-service/internal/adapters/distance"
	"collection-route-service/internal/adapters/highs"
	"collection-route-service/internal/adapters/repositories"
	"collection-route-service/internal/config"
	"collection-route-service/internal/instance"
	"collection-route-service/internal/matrix"
	"collection-route-service/internal/milp"
	"collection-route-service/internal/platform/db"
	"collection-route-service/internal/ports"
	"collection-route-service/internal/routing"
	"collection-route-service/internal/services"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
)

type App struct {
	Planner *services.Planner
	Matrix  *matrix.Service
	Cache   *matrix.Cache
	Plans   *repositories.MemoryPlanRepository

	closers []func() error
}

// New wires every adapter named by cfg. Close must be called to flush the
// matrix cache and release connections.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.closeAll()
		}
	}()

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	a.Cache, err = matrix.LoadCache(ctx, store)
	if err != nil {
		return nil, err
	}
	if a.Cache.Discarded() {
		log.Printf("op=app.New matrix_cache=%s discarded=true", cfg.MatrixCache)
	}

	var provider ports.RouteProvider
	if cfg.Mode() == matrix.ModeRoad {
		provider, err = NewProvider(cfg)
		if err != nil {
			return nil, err
		}
	}

	a.Matrix = matrix.NewService(provider, a.Cache, cfg.MatrixOptions())
	a.Plans = repositories.NewMemoryPlanRepository()
	a.Planner = services.NewPlanner(
		a.Matrix,
		instance.NewBuilder(cfg.InstanceOptions()),
		routing.NewOrchestrator(NewEngine(cfg)),
		a.Plans,
		services.PlannerConfig{
			Mode:            cfg.Mode(),
			Formulation:     cfg.Formulation(),
			Solve:           cfg.SolveConfig(),
			StabilityWeight: cfg.StabilityWeight,
		},
	)

	providerName := "none"
	if provider != nil {
		providerName = provider.Name()
	}
	log.Printf("op=app.New mode=%s provider=%s cache=%s cached_pairs=%d engine=%s",
		cfg.Mode(), providerName, cfg.MatrixCache, a.Cache.Len(), cfg.SolverEngine)
	if strings.ToLower(cfg.SolverEngine) != "highs" {
		log.Printf("op=app.New engine=embedded max_integers=%d warning=%q",
			milp.DefaultMaxIntegers, "larger models are rejected; set SOLVER_ENGINE=highs")
	}
	return a, nil
}

// Close flushes the matrix cache, then closes the store connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Cache != nil {
		if err := a.Cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.closeAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStore opens the matrix cache backend. The returned closer is nil when
// there is nothing to release; the store is nil for MATRIX_CACHE=none.
func OpenStore(ctx context.Context, cfg *config.Config) (ports.MatrixStore, func() error, error) {
	switch strings.ToLower(cfg.MatrixCache) {
	case "none":
		return nil, nil, nil

	case "file":
		return cache.NewFileStore(cfg.MatrixCachePath), nil, nil

	case "sqlite", "postgres":
		conn, dialect, err := OpenSQL(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if dialect == cache.DialectPostgres {
			return cache.NewSQLStore(conn), conn.Close, nil
		}
		return cache.NewSqliteStore(conn), conn.Close, nil

	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open matrix store: parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("open matrix store: ping redis: %w", err)
		}
		return cache.NewRedisStore(client, cache.DefaultRedisKey), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("open matrix store: unknown cache %q", cfg.MatrixCache)
	}
}

// OpenSQL opens the SQL cache database named by cfg and makes sure the
// schema exists.
func OpenSQL(ctx context.Context, cfg *config.Config) (*sql.DB, cache.Dialect, error) {
	var (
		conn    *sql.DB
		dialect cache.Dialect
		err     error
	)
	switch strings.ToLower(cfg.MatrixCache) {
	case "sqlite":
		dialect = cache.DialectSQLite
		conn, err = db.OpenSQLite(cfg.SQLitePath)
	case "postgres":
		dialect = cache.DialectPostgres
		conn, err = db.Open(cfg.DatabaseURL)
	default:
		return nil, "", fmt.Errorf("open sql cache: MATRIX_CACHE=%q is not a SQL backend", cfg.MatrixCache)
	}
	if err != nil {
		return nil, "", err
	}

	if err := cache.InitSchema(ctx, conn, dialect); err != nil {
		_ = conn.Close()
		return nil, "", err
	}
	return conn, dialect, nil
}

// NewProvider builds the road-network provider named by ROUTING_PROVIDER.
func NewProvider(cfg *config.Config) (ports.RouteProvider, error) {
	opts := distance.ClientOptions{Timeout: cfg.ProviderTimeoutDuration(), RPS: cfg.ProviderRPS}
	switch strings.ToLower(cfg.RoutingProvider) {
	case "osrm":
		return distance.NewOSRMProvider(cfg.OSRMBaseURL, cfg.RoutingProfile, opts)
	case "ors":
		return distance.NewORSProvider(cfg.ORSAPIKey, cfg.ORSBaseURL, cfg.RoutingProfile, opts)
	case "mock":
		return distance.NewMockProvider(nil), nil
	default:
		return nil, fmt.Errorf("new provider: unknown provider %q", cfg.RoutingProvider)
	}
}

func NewEngine(cfg *config.Config) milp.Solver {
	if strings.ToLower(cfg.SolverEngine) == "highs" {
		return highs.New()
	}
	return milp.BranchAndBound{}
}
