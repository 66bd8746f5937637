package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	HTTP     HTTPConfig     `yaml:"http"`
	Engine   EngineConfig   `yaml:"engine"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// HTTPConfig holds the server settings.
type HTTPConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// EngineConfig holds the learning and allocation parameters.
type EngineConfig struct {
	ExplorationRate       float64       `yaml:"exploration_rate"`
	RebalanceInterval     int           `yaml:"rebalance_interval"`
	MinAllocationPct      float64       `yaml:"min_allocation_pct"`
	MaxAllocationPct      float64       `yaml:"max_allocation_pct"`
	MaxChangePerRebalance float64       `yaml:"max_change_per_rebalance"`
	StateDir              string        `yaml:"state_dir"`
	SnapshotInterval      time.Duration `yaml:"snapshot_interval"`
	Seed                  int64         `yaml:"seed"` // 0 means time-seeded
}

// DatabaseConfig holds optional Postgres settings; an empty DSN disables SQL
// persistence.
type DatabaseConfig struct {
	DSN     string        `yaml:"dsn"`
	Timeout time.Duration `yaml:"timeout"`
}

// RedisConfig holds the optional live stats mirror settings; an empty Addr
// falls back to the in-process cache.
type RedisConfig struct {
	Addr string        `yaml:"addr"`
	TTL  time.Duration `yaml:"ttl"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			Host:         "127.0.0.1",
			Port:         8090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Engine: EngineConfig{
			ExplorationRate:       0.10,
			RebalanceInterval:     10,
			MinAllocationPct:      5.0,
			MaxAllocationPct:      50.0,
			MaxChangePerRebalance: 5.0,
			StateDir:              "state",
			SnapshotInterval:      2 * time.Second,
		},
		Database: DatabaseConfig{
			Timeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			TTL: 5 * time.Minute,
		},
	}
}

// Load reads configuration from an optional YAML file layered over the
// defaults, then applies STRATCORE_* environment overrides and validates.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides maps a small set of deployment-facing settings onto
// environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STRATCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STRATCORE_HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if v := os.Getenv("STRATCORE_STATE_DIR"); v != "" {
		cfg.Engine.StateDir = v
	}
	if v := os.Getenv("STRATCORE_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Engine.ExplorationRate < 0 || c.Engine.ExplorationRate > 1 {
		return fmt.Errorf("exploration_rate %.3f outside [0, 1]", c.Engine.ExplorationRate)
	}
	if c.Engine.RebalanceInterval < 1 {
		return fmt.Errorf("rebalance_interval %d must be at least 1", c.Engine.RebalanceInterval)
	}
	if c.Engine.MinAllocationPct < 0 || c.Engine.MaxAllocationPct > 100 ||
		c.Engine.MinAllocationPct >= c.Engine.MaxAllocationPct {
		return fmt.Errorf("allocation bounds [%.1f, %.1f] invalid",
			c.Engine.MinAllocationPct, c.Engine.MaxAllocationPct)
	}
	if c.Engine.MaxChangePerRebalance <= 0 {
		return fmt.Errorf("max_change_per_rebalance %.1f must be positive", c.Engine.MaxChangePerRebalance)
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port %d invalid", c.HTTP.Port)
	}
	if c.Engine.StateDir == "" {
		return fmt.Errorf("state_dir must not be empty")
	}
	return nil
}
