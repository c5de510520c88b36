package config

import (
	"collection-route-service/internal/instance"
	"collection-route-service/internal/matrix"
	"collection-route-service/internal/platform/obs"
	"collection-route-service/internal/routing"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the service configuration. Values come from, in increasing
// precedence: defaults, config.yaml in the config directory, a .env file in
// the same directory, and the process environment.
type Config struct {
	Port string `mapstructure:"PORT"`

	DistanceMode    string  `mapstructure:"DISTANCE_MODE"`
	RoutingProvider string  `mapstructure:"ROUTING_PROVIDER"`
	OSRMBaseURL     string  `mapstructure:"OSRM_BASE_URL"`
	ORSAPIKey       string  `mapstructure:"ORS_API_KEY"`
	ORSBaseURL      string  `mapstructure:"ORS_BASE_URL"`
	RoutingProfile  string  `mapstructure:"ROUTING_PROFILE"`
	ProviderRPS     float64 `mapstructure:"PROVIDER_RPS"`
	ProviderTimeout float64 `mapstructure:"PROVIDER_TIMEOUT_SECONDS"`
	MatrixWorkers   int     `mapstructure:"MATRIX_WORKERS"`

	MatrixCache     string `mapstructure:"MATRIX_CACHE"`
	MatrixCachePath string `mapstructure:"MATRIX_CACHE_PATH"`
	SQLitePath      string `mapstructure:"SQLITE_PATH"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	RedisURL        string `mapstructure:"REDIS_URL"`

	SolverEngine      string  `mapstructure:"SOLVER_ENGINE"`
	TimeLimitSeconds  float64 `mapstructure:"TIME_LIMIT_SECONDS"`
	MIPGap            float64 `mapstructure:"MIP_GAP"`
	LogLevel          string  `mapstructure:"LOG_LEVEL"`
	StabilityWeight   float64 `mapstructure:"STABILITY_WEIGHT"`
	MaxDisposalVisits int     `mapstructure:"MAX_DISPOSAL_VISITS"`
	AllowDirectReturn bool    `mapstructure:"ALLOW_DIRECT_RETURN"`

	CostPerUnit      float64 `mapstructure:"COST_PER_UNIT"`
	TimePerUnit      float64 `mapstructure:"TIME_PER_UNIT"`
	FallbackSpeedKph float64 `mapstructure:"FALLBACK_SPEED_KPH"`
	FacilityService  float64 `mapstructure:"FACILITY_SERVICE"`
	SparsifyK        int     `mapstructure:"SPARSIFY_K"`
	SparsifyMaxTime  float64 `mapstructure:"SPARSIFY_MAX_TIME"`
}

var defaults = map[string]any{
	"PORT":                     "8080",
	"DISTANCE_MODE":            "haversine",
	"ROUTING_PROVIDER":         "osrm",
	"OSRM_BASE_URL":            "http://localhost:5000",
	"ORS_API_KEY":              "",
	"ORS_BASE_URL":             "https://api.openrouteservice.org",
	"ROUTING_PROFILE":          "",
	"PROVIDER_RPS":             0.0,
	"PROVIDER_TIMEOUT_SECONDS": 10.0,
	"MATRIX_WORKERS":           5,
	"MATRIX_CACHE":             "file",
	"MATRIX_CACHE_PATH":        "data/matrix_cache.json",
	"SQLITE_PATH":              "data/matrix_cache.db",
	"DATABASE_URL":             "",
	"REDIS_URL":                "",
	"SOLVER_ENGINE":            "highs",
	"TIME_LIMIT_SECONDS":       30.0,
	"MIP_GAP":                  0.0,
	"LOG_LEVEL":                "info",
	"STABILITY_WEIGHT":         1.0,
	"MAX_DISPOSAL_VISITS":      0,
	"ALLOW_DIRECT_RETURN":      false,
	"COST_PER_UNIT":            1.0,
	"TIME_PER_UNIT":            3.0,
	"FALLBACK_SPEED_KPH":       40.0,
	"FACILITY_SERVICE":         0.0,
	"SPARSIFY_K":               0,
	"SPARSIFY_MAX_TIME":        0.0,
}

// Load reads the configuration from dir (may be empty for the working
// directory) and validates it.
func Load(dir string) (*Config, error) {
	envFile := filepath.Join(dir, ".env")
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config: read %s: %w", envFile, err)
		}
		log.Println("No .env file found (using environment variables)")
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("load config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(key, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: "+format, append([]any{key}, args...)...))
	}

	mode, err := matrix.ParseMode(c.DistanceMode)
	if err != nil {
		bad("DISTANCE_MODE", "%v", err)
	}
	switch strings.ToLower(c.RoutingProvider) {
	case "osrm":
		if mode == matrix.ModeRoad && strings.TrimSpace(c.OSRMBaseURL) == "" {
			bad("OSRM_BASE_URL", "required for road distances")
		}
	case "ors":
		if mode == matrix.ModeRoad && strings.TrimSpace(c.ORSAPIKey) == "" {
			bad("ORS_API_KEY", "required for road distances")
		}
	case "mock":
	default:
		bad("ROUTING_PROVIDER", "unknown provider %q (osrm|ors|mock)", c.RoutingProvider)
	}
	if c.ProviderRPS < 0 {
		bad("PROVIDER_RPS", "must not be negative")
	}
	if c.ProviderTimeout <= 0 {
		bad("PROVIDER_TIMEOUT_SECONDS", "must be positive")
	}
	if c.MatrixWorkers <= 0 {
		bad("MATRIX_WORKERS", "must be positive")
	}

	switch strings.ToLower(c.MatrixCache) {
	case "none":
	case "file":
		if strings.TrimSpace(c.MatrixCachePath) == "" {
			bad("MATRIX_CACHE_PATH", "required for the file cache")
		}
	case "sqlite":
		if strings.TrimSpace(c.SQLitePath) == "" {
			bad("SQLITE_PATH", "required for the sqlite cache")
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			bad("DATABASE_URL", "required for the postgres cache")
		}
	case "redis":
		if strings.TrimSpace(c.RedisURL) == "" {
			bad("REDIS_URL", "required for the redis cache")
		}
	default:
		bad("MATRIX_CACHE", "unknown cache %q (none|file|sqlite|postgres|redis)", c.MatrixCache)
	}

	switch strings.ToLower(c.SolverEngine) {
	case "embedded", "highs":
	default:
		bad("SOLVER_ENGINE", "unknown engine %q (embedded|highs)", c.SolverEngine)
	}
	if c.TimeLimitSeconds <= 0 {
		bad("TIME_LIMIT_SECONDS", "must be positive")
	}
	if c.MIPGap < 0 || c.MIPGap >= 1 || math.IsNaN(c.MIPGap) {
		bad("MIP_GAP", "must be in [0, 1)")
	}
	if _, err := obs.ParseLevel(c.LogLevel); err != nil {
		bad("LOG_LEVEL", "%v", err)
	}
	if c.StabilityWeight < 0 {
		bad("STABILITY_WEIGHT", "must not be negative")
	}
	if c.MaxDisposalVisits < 0 {
		bad("MAX_DISPOSAL_VISITS", "must not be negative")
	}

	for key, val := range map[string]float64{
		"COST_PER_UNIT":      c.CostPerUnit,
		"TIME_PER_UNIT":      c.TimePerUnit,
		"FALLBACK_SPEED_KPH": c.FallbackSpeedKph,
	} {
		if val <= 0 {
			bad(key, "must be positive")
		}
	}
	if c.FacilityService < 0 {
		bad("FACILITY_SERVICE", "must not be negative")
	}
	if c.SparsifyK < 0 || c.SparsifyMaxTime < 0 {
		bad("SPARSIFY_K", "sparsification settings must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Mode returns the parsed distance mode. Call only on a validated config.
func (c *Config) Mode() matrix.Mode {
	m, _ := matrix.ParseMode(c.DistanceMode)
	return m
}

func (c *Config) MatrixOptions() matrix.Options {
	return matrix.Options{
		TimePerUnit:      c.TimePerUnit,
		FallbackSpeedKph: c.FallbackSpeedKph,
		Workers:          c.MatrixWorkers,
	}
}

func (c *Config) InstanceOptions() instance.Options {
	opts := instance.DefaultOptions()
	opts.CostPerUnit = c.CostPerUnit
	opts.FacilityService = c.FacilityService
	if c.SparsifyK > 0 {
		opts.Sparsify = &instance.SparsifyOptions{K: c.SparsifyK, MaxTime: c.SparsifyMaxTime}
	}
	return opts
}

func (c *Config) Formulation() routing.FormulationOptions {
	return routing.FormulationOptions{
		MaxDisposalVisits: c.MaxDisposalVisits,
		AllowDirectReturn: c.AllowDirectReturn,
	}
}

func (c *Config) SolveConfig() routing.Config {
	return routing.Config{
		TimeLimit: time.Duration(c.TimeLimitSeconds * float64(time.Second)),
		MIPGap:    c.MIPGap,
		LogLevel:  c.LogLevel,
	}
}

func (c *Config) ProviderTimeoutDuration() time.Duration {
	return time.Duration(c.ProviderTimeout * float64(time.Second))
}
