// Package config defines routecore's typed configuration surface: every
// knob enumerated in spec.md §6, with defaults and units, loaded through a
// koanf-backed Loader (yaml file + environment overlay). No component reads
// an untyped map — everything is a field on Config.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration struct.
type Config struct {
	App       AppConfig       `koanf:"app"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Matrix    MatrixConfig    `koanf:"matrix"`
	Spatial   SpatialConfig   `koanf:"spatial"`
	Genetic   GeneticConfig   `koanf:"genetic"`
	Greedy    GreedyConfig    `koanf:"greedy"`
	External  ExternalConfig  `koanf:"external"`
	Rerouting ReroutingConfig `koanf:"rerouting"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Cache     CacheConfig     `koanf:"cache"`
	Planner   PlannerConfig   `koanf:"planner"`
	Warmer    WarmerConfig    `koanf:"warmer"`
	Regional  RegionalConfig  `koanf:"regional"`
	Database  DatabaseConfig  `koanf:"database"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// IsDevelopment reports whether the app is running in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction reports whether the app is running in a production environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"` // json, text
	Output     string `koanf:"output"` // stdout, stderr, file
	FilePath   string `koanf:"file_path"`
	MaxSize    int    `koanf:"max_size"` // MB
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"` // days
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig configures pkg/metrics.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// MatrixConfig configures C1/C2/C3 — the MatrixBackend client, ParallelMatrix,
// and MatrixCache.
type MatrixConfig struct {
	// BatchSize is B, the max coordinates per backend batch call.
	BatchSize int `koanf:"batch_size"`
	// MaxConcurrent bounds simultaneous backend batch calls.
	MaxConcurrent int `koanf:"max_concurrent"`
	// BackendTimeout is the per-attempt timeout for a backend call.
	BackendTimeout time.Duration `koanf:"backend_timeout_s"`
	// RetryAttempts is the number of attempts (including the first) on
	// transient failure.
	RetryAttempts int `koanf:"retry_attempts"`
	// RetryBaseDelay is the exponential backoff base.
	RetryBaseDelay time.Duration `koanf:"retry_base_s"`
	// RetryFactor multiplies the delay after each attempt.
	RetryFactor float64 `koanf:"retry_factor"`
	// RetryJitter is the fractional jitter applied to each backoff delay.
	RetryJitter float64 `koanf:"retry_jitter"`
	// AverageSpeedMPS is the Haversine-fallback speed estimate.
	AverageSpeedMPS float64 `koanf:"average_speed_mps"`
	// BackendMaxCoordinates is the backend's own per-call coordinate limit.
	BackendMaxCoordinates int `koanf:"backend_max_coordinates"`
	// RequireFullMatrix, when true, makes a single failed batch propagate
	// BackendUnavailable instead of degrading to sentinel cells.
	RequireFullMatrix bool `koanf:"require_full_matrix"`
}

// SpatialConfig configures the SpatialIndex (C4).
type SpatialConfig struct {
	H3Resolution int `koanf:"h3_resolution"`
}

// GeneticConfig configures the genetic solver (C5).
type GeneticConfig struct {
	Population     int     `koanf:"population"`
	Generations    int     `koanf:"generations"`
	MutationRate   float64 `koanf:"mutation_rate"`
	CrossoverRate  float64 `koanf:"crossover_rate"`
	Elite          int     `koanf:"elite"`
	EarlyStop      int     `koanf:"early_stop"`
	TournamentSize int     `koanf:"tournament_size"`
	PenaltyPerMean float64 `koanf:"penalty_per_mean"` // K as a multiple of mean matrix value
}

// GreedyConfig configures the greedy + 2-opt solver (C5).
type GreedyConfig struct {
	Max2OptIterations int     `koanf:"max_2opt_iterations"`
	MinImprovement    float64 `koanf:"min_improvement"`
}

// ExternalConfig configures the two external solver adapters (C5 §4.5.3).
type ExternalConfig struct {
	FastEndpoint string        `koanf:"fast_endpoint"`
	RichEndpoint string        `koanf:"rich_endpoint"`
	Timeout      time.Duration `koanf:"timeout_s"`
}

// ReroutingConfig configures the PredictiveReroutingEngine (C8).
type ReroutingConfig struct {
	WarningMinutes  int `koanf:"warning_min"`
	CriticalMinutes int `koanf:"critical_min"`
	AutoMinutes     int `koanf:"auto_min"`
	SweepMinutes    int `koanf:"sweep_min"`
}

// PipelineConfig configures the EventPipeline (C9).
type PipelineConfig struct {
	QueueSize      int           `koanf:"queue_size"`
	Workers        int           `koanf:"workers"`
	HandlerTimeout time.Duration `koanf:"handler_timeout_s"`
	MaxRetries     int           `koanf:"max_retries"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
}

// CacheConfig configures pkg/cache and the MatrixCache TTL policy (§4.3).
type CacheConfig struct {
	Driver        string         `koanf:"driver"` // memory, redis
	RedisAddr     string         `koanf:"redis_addr"`
	RedisPassword string         `koanf:"redis_password"`
	RedisDB       int            `koanf:"redis_db"`
	RedisPoolSize int            `koanf:"redis_pool_size"`
	MaxEntries    int            `koanf:"max_entries"`
	DefaultTTL    time.Duration  `koanf:"default_ttl"`
	TTL           CacheTTLConfig `koanf:"ttl"`
}

// CacheTTLConfig enumerates per-kind TTLs from spec.md §4.3/§6.
type CacheTTLConfig struct {
	MatrixFull      time.Duration `koanf:"matrix_full"`
	MatrixBatch     time.Duration `koanf:"matrix_batch"`
	RouteGeometry   time.Duration `koanf:"route_geometry"`
	ReferenceLookup time.Duration `koanf:"reference_lookup"`
	AgentSchedule   time.Duration `koanf:"agent_schedule"`
	AgentLocation   time.Duration `koanf:"agent_location"`
	ActiveRoutes    time.Duration `koanf:"active_routes"`
	GPSPosition     time.Duration `koanf:"gps_position"`
}

// PlannerConfig configures WeeklyPlanner (C7).
type PlannerConfig struct {
	MaxVisitsPerDay int `koanf:"max_visits_per_day"`
}

// WarmerConfig configures CacheWarmer (C10).
type WarmerConfig struct {
	RunAt            string `koanf:"run_at"` // HH:MM local
	MinActiveClients int    `koanf:"min_active_clients"`
}

// RegionalConfig holds per-region traffic multipliers and forbidden bands.
// Values here are configuration, not baked constants (spec.md §9).
type RegionalConfig struct {
	TrafficMultipliers map[string]map[string]float64 `koanf:"traffic_multipliers"` // region -> period -> multiplier
	ForbiddenBands     map[string][]TimeBand          `koanf:"forbidden_bands"`    // region -> bands
}

// TimeBand is a minutes-from-midnight interval, e.g. a Friday prayer break.
type TimeBand struct {
	Weekday     int `koanf:"weekday"` // time.Weekday
	StartMinute int `koanf:"start_minute"`
	EndMinute   int `koanf:"end_minute"`
}

// DatabaseConfig configures the Postgres-backed fleet roster repository in
// pkg/database. AutoMigrate runs pending goose migrations when the warm
// command connects with --fleet-repository=postgres.
type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	Database        string        `koanf:"database"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// Validate checks the config for internally-inconsistent values that would
// otherwise surface as confusing runtime errors.
func (c *Config) Validate() error {
	if c.Matrix.BatchSize <= 0 {
		return fmt.Errorf("matrix.batch_size must be positive")
	}
	if c.Matrix.MaxConcurrent <= 0 {
		return fmt.Errorf("matrix.max_concurrent must be positive")
	}
	if c.Spatial.H3Resolution < 0 || c.Spatial.H3Resolution > 15 {
		return fmt.Errorf("spatial.h3_resolution must be in [0,15]")
	}
	if c.Genetic.Population <= 0 {
		return fmt.Errorf("genetic.population must be positive")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive")
	}
	if c.Pipeline.QueueSize <= 0 {
		return fmt.Errorf("pipeline.queue_size must be positive")
	}
	return nil
}

// DefaultConfig returns a Config populated with spec.md's documented
// defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "routecore",
			Version:     "0.1.0",
			Environment: "development",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "routecore",
		},
		Matrix: MatrixConfig{
			BatchSize:             100,
			MaxConcurrent:         4,
			BackendTimeout:        30 * time.Second,
			RetryAttempts:         3,
			RetryBaseDelay:        2 * time.Second,
			RetryFactor:           2.0,
			RetryJitter:           0.2,
			AverageSpeedMPS:       8.33,
			BackendMaxCoordinates: 100,
			RequireFullMatrix:     false,
		},
		Spatial: SpatialConfig{
			H3Resolution: 9,
		},
		Genetic: GeneticConfig{
			Population:     100,
			Generations:    500,
			MutationRate:   0.1,
			CrossoverRate:  0.8,
			Elite:          10,
			EarlyStop:      50,
			TournamentSize: 5,
			PenaltyPerMean: 10000,
		},
		Greedy: GreedyConfig{
			Max2OptIterations: 100,
			MinImprovement:    0.001,
		},
		External: ExternalConfig{
			FastEndpoint: "http://localhost:8081",
			RichEndpoint: "http://localhost:8082",
			Timeout:      30 * time.Second,
		},
		Rerouting: ReroutingConfig{
			WarningMinutes:  15,
			CriticalMinutes: 30,
			AutoMinutes:     20,
			SweepMinutes:    30,
		},
		Pipeline: PipelineConfig{
			QueueSize:      1000,
			Workers:        8,
			HandlerTimeout: 10 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: 200 * time.Millisecond,
		},
		Cache: CacheConfig{
			Driver:        "memory",
			RedisAddr:     "localhost:6379",
			RedisPoolSize: 10,
			MaxEntries:    100000,
			DefaultTTL:    5 * time.Minute,
			TTL: CacheTTLConfig{
				MatrixFull:      7 * 24 * time.Hour,
				MatrixBatch:     7 * 24 * time.Hour,
				RouteGeometry:   24 * time.Hour,
				ReferenceLookup: time.Hour,
				AgentSchedule:   30 * time.Minute,
				AgentLocation:   time.Minute,
				ActiveRoutes:    5 * time.Minute,
				GPSPosition:     10 * time.Second,
			},
		},
		Planner: PlannerConfig{
			MaxVisitsPerDay: 12,
		},
		Warmer: WarmerConfig{
			RunAt:            "05:00",
			MinActiveClients: 5,
		},
		Regional: RegionalConfig{
			TrafficMultipliers: map[string]map[string]float64{
				"almaty":   {"morning": 2.0, "midday": 1.3, "evening": 1.8},
				"tashkent": {"morning": 1.6, "midday": 1.2, "evening": 1.5},
				"bishkek":  {"morning": 1.4, "midday": 1.1, "evening": 1.3},
				"default":  {"morning": 1.3, "midday": 1.1, "evening": 1.2},
			},
			ForbiddenBands: map[string][]TimeBand{
				"default": {
					{Weekday: 5, StartMinute: 12 * 60, EndMinute: 13*60 + 30}, // Friday prayer break
				},
			},
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Username:        "routecore",
			Database:        "routecore",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
			AutoMigrate:     false,
		},
	}
}
