package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

// Config is the top-level application config.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Database    DatabaseConfig    `koanf:"database"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	Audit       AuditConfig       `koanf:"audit"`
	Streams     StreamsConfig     `koanf:"streams"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// AggregationConfig drives the stale aggregate processor.
type AggregationConfig struct {
	Enabled      bool   `koanf:"enabled"`
	CronInterval string `koanf:"cron_interval"` // parsed and validated on startup
	BatchSize    int    `koanf:"batch_size"`
	WorkerCount  int    `koanf:"worker_count"`
}

// AuditConfig drives the audit rollup job.
type AuditConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Schedule  string `koanf:"schedule"` // cron expression, optional seconds field
	BatchSize int    `koanf:"batch_size"`
	Timeout   string `koanf:"timeout"`
}

type StreamsConfig struct {
	SeedPath      string `koanf:"seed_path"`
	CacheCapacity int    `koanf:"cache_capacity"`
}

// Interval returns the parsed aggregation interval.
func (c AggregationConfig) Interval() (time.Duration, error) {
	return time.ParseDuration(c.CronInterval)
}

// RunTimeout returns the parsed audit run timeout; empty means unbounded.
func (c AuditConfig) RunTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Timeout)
}

// SlogLevel maps the configured level name, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q (must be text or json)", c.Log.Format)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	interval, err := c.Aggregation.Interval()
	if err != nil {
		return fmt.Errorf("invalid aggregation cron interval %q: %w", c.Aggregation.CronInterval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("aggregation cron interval must be > 0")
	}
	if c.Aggregation.BatchSize <= 0 {
		return fmt.Errorf("aggregation.batch_size must be > 0")
	}
	if c.Aggregation.WorkerCount <= 0 {
		return fmt.Errorf("aggregation.worker_count must be > 0")
	}

	if _, err := cronParser.Parse(c.Audit.Schedule); err != nil {
		return fmt.Errorf("invalid audit.schedule %q: %w", c.Audit.Schedule, err)
	}
	if c.Audit.BatchSize <= 0 {
		return fmt.Errorf("audit.batch_size must be > 0")
	}
	if d, err := c.Audit.RunTimeout(); err != nil || d < 0 {
		return fmt.Errorf("invalid audit.timeout %q", c.Audit.Timeout)
	}

	if c.Streams.CacheCapacity <= 0 {
		return fmt.Errorf("streams.cache_capacity must be > 0")
	}
	return nil
}

// Load parses config from defaults, an optional YAML file and AEVON_
// environment variables, in that order, then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":               8080,
		"server.host":               "0.0.0.0",
		"server.mode":               "release",
		"log.level":                 "info",
		"log.format":                "text",
		"database.type":             "postgres",
		"database.dsn":              "postgres://localhost:5432/aevon?sslmode=disable",
		"database.max_open_conns":   25,
		"database.max_idle_conns":   25,
		"database.auto_migrate":     true,
		"aggregation.enabled":       true,
		"aggregation.cron_interval": "1m",
		"aggregation.batch_size":    1000,
		"aggregation.worker_count":  4,
		"audit.enabled":             true,
		"audit.schedule":            "0 */5 * * * *",
		"audit.batch_size":          500,
		"audit.timeout":             "4m",
		"streams.seed_path":         "./config/streams",
		"streams.cache_capacity":    10000,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// AEVON_AUDIT__BATCH_SIZE=100 overrides audit.batch_size.
	if err := k.Load(env.Provider("AEVON_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AEVON_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
