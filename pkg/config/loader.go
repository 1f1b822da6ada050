// pkg/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "ROUTECORE_"
	configEnvVar = "ROUTECORE_CONFIG_PATH"
)

// Loader loads configuration from defaults, an optional yaml file, and
// environment variables, in that priority order.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/routecore/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigPaths sets the candidate config file search paths.
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load loads configuration with priority:
// 1. Defaults (lowest)
// 2. Config file (yaml)
// 3. Environment variables (highest)
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.loadConfigFile(); err != nil {
		// The file is optional; missing-file is not fatal.
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Regional multipliers/forbidden-bands are nested maps that are
	// impractical to express as flat env-var defaults; fall back to the
	// documented defaults unless a config file supplied its own.
	if len(cfg.Regional.TrafficMultipliers) == 0 && len(cfg.Regional.ForbiddenBands) == 0 {
		cfg.Regional = DefaultConfig().Regional
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDefaults seeds the loader with spec.md's documented defaults.
func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		"app.name":        "routecore",
		"app.version":     "0.1.0",
		"app.environment": "development",
		"app.debug":       false,

		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		"metrics.enabled":   true,
		"metrics.namespace": "routecore",
		"metrics.subsystem": "",

		"matrix.batch_size":              100,
		"matrix.max_concurrent":          4,
		"matrix.backend_timeout_s":       30 * time.Second,
		"matrix.retry_attempts":          3,
		"matrix.retry_base_s":            2 * time.Second,
		"matrix.retry_factor":            2.0,
		"matrix.retry_jitter":            0.2,
		"matrix.average_speed_mps":       8.33,
		"matrix.backend_max_coordinates": 100,
		"matrix.require_full_matrix":     false,

		"spatial.h3_resolution": 9,

		"genetic.population":       100,
		"genetic.generations":      500,
		"genetic.mutation_rate":    0.1,
		"genetic.crossover_rate":   0.8,
		"genetic.elite":            10,
		"genetic.early_stop":       50,
		"genetic.tournament_size":  5,
		"genetic.penalty_per_mean": 10000.0,

		"greedy.max_2opt_iterations": 100,
		"greedy.min_improvement":     0.001,

		"rerouting.warning_min":  15,
		"rerouting.critical_min": 30,
		"rerouting.auto_min":     20,
		"rerouting.sweep_min":    30,

		"pipeline.queue_size":        1000,
		"pipeline.workers":           8,
		"pipeline.handler_timeout_s": 10 * time.Second,
		"pipeline.max_retries":       3,
		"pipeline.retry_base_delay":  200 * time.Millisecond,

		"cache.driver":          "memory",
		"cache.redis_addr":      "localhost:6379",
		"cache.redis_pool_size": 10,
		"cache.max_entries":     100000,
		"cache.default_ttl":     5 * time.Minute,
		"cache.ttl.matrix_full":      7 * 24 * time.Hour,
		"cache.ttl.matrix_batch":     7 * 24 * time.Hour,
		"cache.ttl.route_geometry":   24 * time.Hour,
		"cache.ttl.reference_lookup": time.Hour,
		"cache.ttl.agent_schedule":   30 * time.Minute,
		"cache.ttl.agent_location":   time.Minute,
		"cache.ttl.active_routes":    5 * time.Minute,
		"cache.ttl.gps_position":     10 * time.Second,

		"planner.max_visits_per_day": 12,

		"warmer.run_at":             "05:00",
		"warmer.min_active_clients": 5,

		"database.host":              "localhost",
		"database.port":              5432,
		"database.username":          "routecore",
		"database.database":          "routecore",
		"database.ssl_mode":          "disable",
		"database.max_open_conns":    10,
		"database.max_idle_conns":    2,
		"database.conn_max_lifetime": time.Hour,
		"database.conn_max_idle_time": 10 * time.Minute,
		"database.auto_migrate":      false,
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

// loadConfigFile loads configuration from a yaml file, if one is found.
func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

// loadEnv loads configuration from environment variables, overriding the
// file and defaults.
func (l *Loader) loadEnv() error {
	// Env names flatten both "." and "_" to "_", so resolve each name
	// against the keys already loaded from defaults and the config file.
	known := make(map[string]string)
	for _, key := range l.k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}
	return l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		// ROUTECORE_MATRIX_BATCH_SIZE -> matrix.batch_size
		name := strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		if key, ok := known[name]; ok {
			return key
		}
		return strings.ReplaceAll(name, "_", ".")
	}), nil)
}

// MustLoad loads configuration or panics.
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load is a convenience function that loads configuration with default
// loader options.
func Load() (*Config, error) {
	return NewLoader().Load()
}
