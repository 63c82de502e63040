// Package config provides unified configuration loading for the adapter
// processes. Settings come from defaults, then an optional YAML file, then
// COSIM_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all adapter configuration.
type Config struct {
	// Results is the base directory for run output (logs, figures,
	// port info, monitoring data, run registry).
	Results string `json:"results" yaml:"results"`

	// Logging configures operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Monitoring configures the resource usage monitor.
	Monitoring MonitoringConfig `json:"monitoring" yaml:"monitoring"`

	// Network configures hub endpoints and dial behavior.
	Network NetworkConfig `json:"network" yaml:"network"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the per-adapter JSONL trace file under logs/.
	Level string `json:"level" yaml:"level"`
}

// MonitoringConfig configures resource usage sampling.
type MonitoringConfig struct {
	// Enabled turns the resource monitor on for adapter processes.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// SampleInterval is the delay between resource samples.
	SampleInterval time.Duration `json:"sample_interval" yaml:"sample_interval"`
}

// NetworkConfig configures the hub transport.
type NetworkConfig struct {
	// BindHost is the interface the hub listeners bind to.
	BindHost string `json:"bind_host" yaml:"bind_host"`

	// DialTimeout bounds a single connection attempt to a hub endpoint.
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout"`

	// ConnectDeadline bounds the total retry window when the simulator
	// adapter waits for a hub endpoint to come up.
	ConnectDeadline time.Duration `json:"connect_deadline" yaml:"connect_deadline"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Results: "results",
		Logging: LoggingConfig{
			Level: "info",
		},
		Monitoring: MonitoringConfig{
			Enabled:        false,
			SampleInterval: time.Second,
		},
		Network: NetworkConfig{
			BindHost:        "127.0.0.1",
			DialTimeout:     2 * time.Second,
			ConnectDeadline: 30 * time.Second,
		},
	}
}

// Load loads configuration from the default file location and environment.
// Order: defaults -> ~/.cosim/config.yaml -> environment variables.
func Load() (*Config, error) {
	cfg := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		path := filepath.Join(homeDir, ".cosim", "config.yaml")
		if _, statErr := os.Stat(path); statErr == nil {
			cfg, err = LoadFromFile(path)
			if err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file, applied on
// top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Results == "" {
		return fmt.Errorf("results directory must not be empty")
	}

	validLevels := map[string]bool{"": true, "info": true, "debug": true, "trace": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace)", c.Logging.Level)
	}

	if c.Monitoring.SampleInterval <= 0 {
		return fmt.Errorf("sample_interval must be positive, got %v", c.Monitoring.SampleInterval)
	}
	if c.Network.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be positive, got %v", c.Network.DialTimeout)
	}
	if c.Network.ConnectDeadline < c.Network.DialTimeout {
		return fmt.Errorf("connect_deadline %v shorter than dial_timeout %v",
			c.Network.ConnectDeadline, c.Network.DialTimeout)
	}
	return nil
}

// applyEnvOverrides applies COSIM_* environment variables to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COSIM_RESULTS"); v != "" {
		cfg.Results = v
	}
	if v := os.Getenv("COSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("COSIM_MONITORING"); v != "" {
		cfg.Monitoring.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("COSIM_SAMPLE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitoring.SampleInterval = d
		}
	}
	if v := os.Getenv("COSIM_BIND_HOST"); v != "" {
		cfg.Network.BindHost = v
	}
	if v := os.Getenv("COSIM_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Network.DialTimeout = d
		}
	}
	if v := os.Getenv("COSIM_CONNECT_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Network.ConnectDeadline = d
		}
	}
	// Legacy knob used by batch scripts; accepts a plain integer of seconds.
	if v := os.Getenv("COSIM_CONNECT_DEADLINE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Network.ConnectDeadline = time.Duration(n) * time.Second
		}
	}
}
