package assistant

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/creastat/assistant/core"
)

// Config is the declarative runtime configuration. Values load from a
// YAML file first and environment variables second, so the environment
// wins for any field set in both.
type Config struct {
	Bus       BusSettings       `yaml:"bus"`
	Lifecycle LifecycleSettings `yaml:"lifecycle"`
	History   HistorySettings   `yaml:"history"`
	Security  SecuritySettings  `yaml:"security"`
	LogLevel  string            `yaml:"log_level" env:"ASSISTANT_LOG_LEVEL"`
}

// BusSettings configures event delivery.
type BusSettings struct {
	QueueSize        int           `yaml:"queue_size" env:"ASSISTANT_BUS_QUEUE_SIZE"`
	Backpressure     string        `yaml:"backpressure" env:"ASSISTANT_BUS_BACKPRESSURE"`
	BlockTimeout     time.Duration `yaml:"block_timeout" env:"ASSISTANT_BUS_BLOCK_TIMEOUT"`
	FailureThreshold int           `yaml:"failure_threshold" env:"ASSISTANT_BUS_FAILURE_THRESHOLD"`
}

// LifecycleSettings configures component startup and shutdown.
type LifecycleSettings struct {
	InitTimeout         time.Duration `yaml:"init_timeout" env:"ASSISTANT_INIT_TIMEOUT"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout" env:"ASSISTANT_SHUTDOWN_TIMEOUT"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"ASSISTANT_HEALTH_INTERVAL"`
}

// HistorySettings configures event persistence.
type HistorySettings struct {
	// Backend is "memory", "sqlite", or "" to disable history.
	Backend        string        `yaml:"backend" env:"ASSISTANT_HISTORY_BACKEND"`
	DSN            string        `yaml:"dsn" env:"ASSISTANT_HISTORY_DSN"`
	Capacity       int           `yaml:"capacity" env:"ASSISTANT_HISTORY_CAPACITY"`
	RetentionAge   time.Duration `yaml:"retention_age" env:"ASSISTANT_HISTORY_RETENTION_AGE"`
	RetentionCount int           `yaml:"retention_count" env:"ASSISTANT_HISTORY_RETENTION_COUNT"`
}

// SecuritySettings configures the action permission policy.
type SecuritySettings struct {
	PermissionLevel string   `yaml:"permission_level" env:"ASSISTANT_PERMISSION_LEVEL"`
	AllowedCommands []string `yaml:"allowed_commands" env:"ASSISTANT_ALLOWED_COMMANDS" envSeparator:","`
}

// DefaultConfig returns the configuration used when no file or
// environment overrides are present.
func DefaultConfig() Config {
	return Config{
		Bus: BusSettings{
			QueueSize:        DefaultQueueSize,
			Backpressure:     string(BackpressureDropOldest),
			BlockTimeout:     DefaultBlockTimeout,
			FailureThreshold: DefaultFailureThreshold,
		},
		Lifecycle: LifecycleSettings{
			InitTimeout:         30 * time.Second,
			ShutdownTimeout:     10 * time.Second,
			HealthCheckInterval: 30 * time.Second,
		},
		Security: SecuritySettings{
			PermissionLevel: string(core.PermissionModerate),
		},
		LogLevel: "info",
	}
}

// LoadConfig reads path (when non-empty), applies environment overrides,
// and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, ConfigurationError{Message: fmt.Sprintf("read %q: %v", path, err)}
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, ConfigurationError{Message: fmt.Sprintf("parse %q: %v", path, err)}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, ConfigurationError{Message: fmt.Sprintf("environment overrides: %v", err)}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects out-of-range or unknown values.
func (c Config) Validate() error {
	if c.Bus.QueueSize < 0 {
		return ConfigurationError{Field: "bus.queue_size", Message: "must not be negative"}
	}
	switch BackpressurePolicy(c.Bus.Backpressure) {
	case BackpressureDropOldest, BackpressureDropNewest, BackpressureBlock, "":
	default:
		return ConfigurationError{
			Field:   "bus.backpressure",
			Message: fmt.Sprintf("unknown policy %q", c.Bus.Backpressure),
		}
	}
	if c.Bus.BlockTimeout < 0 {
		return ConfigurationError{Field: "bus.block_timeout", Message: "must not be negative"}
	}
	if c.Bus.FailureThreshold < 0 {
		return ConfigurationError{Field: "bus.failure_threshold", Message: "must not be negative"}
	}

	switch c.History.Backend {
	case "", "memory", "sqlite":
	default:
		return ConfigurationError{
			Field:   "history.backend",
			Message: fmt.Sprintf("unknown backend %q", c.History.Backend),
		}
	}
	if c.History.Backend == "sqlite" && c.History.DSN == "" {
		return ConfigurationError{Field: "history.dsn", Message: "required for the sqlite backend"}
	}

	if c.Security.PermissionLevel != "" {
		if !core.PermissionLevel(c.Security.PermissionLevel).Valid() {
			return ConfigurationError{
				Field:   "security.permission_level",
				Message: fmt.Sprintf("unknown level %q", c.Security.PermissionLevel),
			}
		}
	}
	return nil
}

// PermissionPolicy builds the action policy described by the security settings
func (c Config) PermissionPolicy() core.PermissionPolicy {
	policy := core.DefaultPermissionPolicy()
	if c.Security.PermissionLevel != "" {
		policy.MaxLevel = core.PermissionLevel(c.Security.PermissionLevel)
	}
	policy.AllowedCommands = c.Security.AllowedCommands
	return policy
}
