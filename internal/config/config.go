package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. GALNAV_ROUTE_JUMP_RANGE.
const EnvPrefix = "GALNAV_"

// Config holds application settings (in-memory representation).
// Route preferences are additionally persisted by internal/db.
type Config struct {
	Database DatabaseConfig `yaml:"database" json:"database"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Route    RouteConfig    `yaml:"route" json:"route"`
	Oracle   OracleConfig   `yaml:"oracle" json:"oracle"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn" json:"-"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" json:"addr"`
	CORSOrigins    []string      `yaml:"cors_origins" json:"cors_origins"`
	RatePerSecond  float64       `yaml:"rate_per_second" json:"rate_per_second"` // 0 = unlimited
	RateBurst      int           `yaml:"rate_burst" json:"rate_burst"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// RouteConfig holds the user-tunable search parameters.
type RouteConfig struct {
	JumpRange       float64       `yaml:"jump_range" json:"jump_range"`
	HeuristicWeight float64       `yaml:"heuristic_weight" json:"heuristic_weight"`
	MaxExpansions   int           `yaml:"max_expansions" json:"max_expansions"` // 0 = unbounded
	Workers         int           `yaml:"workers" json:"workers"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
}

type OracleConfig struct {
	Backend   string        `yaml:"backend" json:"backend"` // memory | sql
	CacheTTL  time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	CacheSize int           `yaml:"cache_size" json:"cache_size"` // 0 disables the cache
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "galnav.db",
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:13380",
			CORSOrigins:    []string{"*"},
			RatePerSecond:  20,
			RateBurst:      40,
			RequestTimeout: 30 * time.Second,
		},
		Route: RouteConfig{
			JumpRange:       30,
			HeuristicWeight: 1,
			MaxExpansions:   100_000,
			Workers:         1,
			Timeout:         10 * time.Second,
		},
		Oracle: OracleConfig{
			Backend:   "memory",
			CacheTTL:  10 * time.Minute,
			CacheSize: 50_000,
		},
	}
}

// Load builds the effective configuration: defaults, then .env (if present),
// then the YAML file at path (if non-empty), then GALNAV_* environment
// variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	// A missing .env is normal.
	_ = godotenv.Load()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("DB_DRIVER", &c.Database.Driver)
	str("DB_DSN", &c.Database.DSN)
	str("SERVER_ADDR", &c.Server.Addr)
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}
	float("RATE_PER_SECOND", &c.Server.RatePerSecond)
	integer("RATE_BURST", &c.Server.RateBurst)
	duration("REQUEST_TIMEOUT", &c.Server.RequestTimeout)
	float("ROUTE_JUMP_RANGE", &c.Route.JumpRange)
	float("ROUTE_HEURISTIC_WEIGHT", &c.Route.HeuristicWeight)
	integer("ROUTE_MAX_EXPANSIONS", &c.Route.MaxExpansions)
	integer("ROUTE_WORKERS", &c.Route.Workers)
	duration("ROUTE_TIMEOUT", &c.Route.Timeout)
	str("ORACLE_BACKEND", &c.Oracle.Backend)
	duration("ORACLE_CACHE_TTL", &c.Oracle.CacheTTL)
	integer("ORACLE_CACHE_SIZE", &c.Oracle.CacheSize)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want sqlite or postgres", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is empty"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Server.RatePerSecond < 0 {
		errs = append(errs, errors.New("server.rate_per_second must not be negative"))
	}
	if c.Server.RatePerSecond > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, errors.New("server.rate_burst must be at least 1"))
	}
	if err := c.Route.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Oracle.Backend {
	case "memory", "sql":
	default:
		errs = append(errs, fmt.Errorf("oracle.backend %q: want memory or sql", c.Oracle.Backend))
	}
	if c.Oracle.CacheSize < 0 {
		errs = append(errs, errors.New("oracle.cache_size must not be negative"))
	}
	return errors.Join(errs...)
}

// Validate checks the route parameters a user may edit at runtime.
func (r RouteConfig) Validate() error {
	var errs []error
	if !(r.JumpRange > 0) {
		errs = append(errs, fmt.Errorf("route.jump_range %v: must be positive", r.JumpRange))
	}
	if r.HeuristicWeight < 0 {
		errs = append(errs, fmt.Errorf("route.heuristic_weight %v: must not be negative", r.HeuristicWeight))
	}
	if r.MaxExpansions < 0 {
		errs = append(errs, fmt.Errorf("route.max_expansions %d: must not be negative", r.MaxExpansions))
	}
	if r.Workers < 1 {
		errs = append(errs, fmt.Errorf("route.workers %d: must be at least 1", r.Workers))
	}
	if r.Timeout < 0 {
		errs = append(errs, errors.New("route.timeout must not be negative"))
	}
	return errors.Join(errs...)
}
