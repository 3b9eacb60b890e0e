// Package config provides configuration management for the llrt CLI.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
	Log       LogConfig       `mapstructure:"log"`
}

// SchedulerConfig holds execution engine configuration.
type SchedulerConfig struct {
	// Workers is the worker goroutine count. 0 runs single-threaded,
	// a negative value selects the hardware concurrency.
	Workers int `mapstructure:"workers"`

	// Seed seeds the network's random number generator.
	Seed uint64 `mapstructure:"seed"`

	// Deterministic disables adaptive scheduling so repeated runs
	// produce identical results.
	Deterministic bool `mapstructure:"deterministic"`

	// SingleThreadThresholdUs is the estimated barrier duration in
	// microseconds below which a barrier runs on one worker.
	SingleThreadThresholdUs int `mapstructure:"single_thread_threshold_us"`
}

// ProfilingConfig holds performance recording configuration.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// TracePath is where the chrome://tracing JSON dump is written;
	// empty disables the dump.
	TracePath string `mapstructure:"trace_path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from the specified file path. An empty
// path searches the standard locations; a missing file falls back to
// defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/llrt")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no config file, defaults apply
		} else if os.IsNotExist(err) {
			// file specified but doesn't exist, defaults apply
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Allow environment variables to override config, e.g.
	// LLRT_SCHEDULER_WORKERS for scheduler.workers
	v.SetEnvPrefix("LLRT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("scheduler.workers", -1)
	v.SetDefault("scheduler.seed", 0)
	v.SetDefault("scheduler.deterministic", false)
	v.SetDefault("scheduler.single_thread_threshold_us", 30)

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.trace_path", "")

	v.SetDefault("log.level", "info")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Scheduler.SingleThreadThresholdUs < 0 {
		return fmt.Errorf("single thread threshold must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.Log.Level)
	}
	return nil
}
