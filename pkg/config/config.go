package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the Delphi engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional, used for round event publication)
	Redis RedisConfig `yaml:"redis"`

	// Kafka configuration (optional, used for round event publication)
	Kafka KafkaConfig `yaml:"kafka"`

	// Events selects where lifecycle events are published.
	Events EventsConfig `yaml:"events"`

	// Delphi holds study defaults and aggregation behavior.
	Delphi DelphiConfig `yaml:"delphi"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"delphi"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"delphi"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	// LockTimeout bounds how long a lifecycle action waits on another
	// action's study row lock before failing.
	LockTimeout time.Duration `yaml:"lock_timeout" env:"PGLOCK_TIMEOUT" env-default:"5s"`
}

// RedisConfig holds Redis connection configuration. An empty host disables Redis.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`

	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT" env-default:"2s"`
}

// KafkaConfig holds Kafka producer configuration.
type KafkaConfig struct {
	// BrokersStr is a comma-separated list of host:port pairs.
	BrokersStr string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:""`
	Topic      string `yaml:"topic" env:"KAFKA_TOPIC" env-default:"delphi.round-events"`

	// Brokers is the parsed list from BrokersStr (not from config file).
	Brokers []string `yaml:"-"`
}

// Event publisher backends.
const (
	EventsBackendNone  = "none"
	EventsBackendRedis = "redis"
	EventsBackendKafka = "kafka"
)

// EventsConfig selects the lifecycle event publisher.
type EventsConfig struct {
	Backend       string `yaml:"backend" env:"EVENTS_BACKEND" env-default:"none"`
	ChannelPrefix string `yaml:"channel_prefix" env:"EVENTS_CHANNEL_PREFIX" env-default:"delphi:rounds"`
	MaxRetries    int    `yaml:"max_retries" env:"EVENTS_MAX_RETRIES" env-default:"3"`
}

// DelphiConfig holds study defaults and aggregation settings.
type DelphiConfig struct {
	// RatingMin and RatingMax bound every ordinal score.
	RatingMin int `yaml:"rating_min" env:"DELPHI_RATING_MIN" env-default:"1"`
	RatingMax int `yaml:"rating_max" env:"DELPHI_RATING_MAX" env-default:"3"`

	// DefaultTotalRounds and DefaultConsensusThreshold apply when a study omits them.
	DefaultTotalRounds        int     `yaml:"default_total_rounds" env:"DELPHI_DEFAULT_TOTAL_ROUNDS" env-default:"3"`
	DefaultConsensusThreshold float64 `yaml:"default_consensus_threshold" env:"DELPHI_DEFAULT_CONSENSUS_THRESHOLD" env-default:"1.0"`

	// RoleSource is "snapshot" (role at submission) or "current" (participant's live role).
	RoleSource string `yaml:"role_source" env:"DELPHI_ROLE_SOURCE" env-default:"snapshot"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile reads configuration from the given YAML path with environment overrides.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnv reads configuration from environment variables only.
// Used by scripts that run without a config.yaml.
func LoadEnv(version string) (*Config, error) {
	cfg := &Config{Version: version}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finalize() error {
	c.Kafka.Brokers = parseBrokers(c.Kafka.BrokersStr)

	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// validate ensures cross-field settings are consistent.
func (c *Config) validate() error {
	if c.Delphi.RatingMin > c.Delphi.RatingMax {
		return fmt.Errorf("delphi.rating_min (%d) must not exceed delphi.rating_max (%d)", c.Delphi.RatingMin, c.Delphi.RatingMax)
	}
	if c.Database.LockTimeout < 0 {
		return fmt.Errorf("database.lock_timeout must not be negative, got %s", c.Database.LockTimeout)
	}
	if c.Delphi.RoleSource != "snapshot" && c.Delphi.RoleSource != "current" {
		return fmt.Errorf("delphi.role_source must be snapshot or current, got %q", c.Delphi.RoleSource)
	}

	switch c.Events.Backend {
	case EventsBackendNone:
	case EventsBackendRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("events.backend is redis but redis.host is empty")
		}
	case EventsBackendKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("events.backend is kafka but kafka.brokers is empty")
		}
	default:
		return fmt.Errorf("unknown events.backend %q", c.Events.Backend)
	}
	return nil
}

// parseBrokers parses a comma-separated broker list.
func parseBrokers(value string) []string {
	if value == "" {
		return nil
	}

	var brokers []string
	for _, b := range strings.Split(value, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as required by golang-migrate.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}
