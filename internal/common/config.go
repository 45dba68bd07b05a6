package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Logging     LoggingConfig `toml:"logging"`
	Hunts       HuntsConfig   `toml:"hunts"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// HuntsConfig tunes the hunt execution engine. Concurrency bounds and the
// cancellation grace period are operational tuning, not core logic.
type HuntsConfig struct {
	DefinitionsDir       string `toml:"definitions_dir"`         // Directory containing hunt definition files (TOML)
	MaxStepsPerExecution int    `toml:"max_steps_per_execution"` // Per-execution concurrent step bound (K)
	MaxRunningSteps      int    `toml:"max_running_steps"`       // Global concurrent step bound across executions
	CancelGrace          string `toml:"cancel_grace"`            // Adapter-side cancellation grace period, e.g. "5s"
	StatusRingSize       int    `toml:"status_ring_size"`        // Recent status lines retained per execution for replay
	SubscriberBuffer     int    `toml:"subscriber_buffer"`       // Per-subscriber update channel buffer
	StatusThrottle       string `toml:"status_throttle"`         // Minimum interval between relayed status broadcasts
}

// DefaultConfig returns the baseline configuration applied before any file
// or environment overrides.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8085,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/venator",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Hunts: HuntsConfig{
			DefinitionsDir:       "./hunts",
			MaxStepsPerExecution: 2,
			MaxRunningSteps:      8,
			CancelGrace:          "5s",
			StatusRingSize:       64,
			SubscriberBuffer:     32,
			StatusThrottle:       "100ms",
		},
	}
}

// LoadConfig loads configuration from defaults, then an optional TOML file,
// then environment variable overrides.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies VENATOR_* environment variables on top of the
// loaded configuration.
func applyEnvOverrides(config *Config) {
	if host := os.Getenv("VENATOR_HOST"); host != "" {
		config.Server.Host = host
	}
	if portStr := os.Getenv("VENATOR_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Server.Port = port
		}
	}
	if path := os.Getenv("VENATOR_DB_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if level := os.Getenv("VENATOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants after all overrides are applied.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Hunts.MaxStepsPerExecution < 1 {
		return fmt.Errorf("hunts.max_steps_per_execution must be at least 1, got %d", c.Hunts.MaxStepsPerExecution)
	}
	if c.Hunts.MaxRunningSteps < c.Hunts.MaxStepsPerExecution {
		return fmt.Errorf("hunts.max_running_steps (%d) must be >= hunts.max_steps_per_execution (%d)",
			c.Hunts.MaxRunningSteps, c.Hunts.MaxStepsPerExecution)
	}
	if _, err := time.ParseDuration(c.Hunts.CancelGrace); err != nil {
		return fmt.Errorf("invalid hunts.cancel_grace '%s': %w", c.Hunts.CancelGrace, err)
	}
	if _, err := time.ParseDuration(c.Hunts.StatusThrottle); err != nil {
		return fmt.Errorf("invalid hunts.status_throttle '%s': %w", c.Hunts.StatusThrottle, err)
	}
	return nil
}

// CancelGraceDuration returns the parsed cancellation grace period.
func (h *HuntsConfig) CancelGraceDuration() time.Duration {
	d, err := time.ParseDuration(h.CancelGrace)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// StatusThrottleDuration returns the parsed status broadcast throttle.
func (h *HuntsConfig) StatusThrottleDuration() time.Duration {
	d, err := time.ParseDuration(h.StatusThrottle)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}
