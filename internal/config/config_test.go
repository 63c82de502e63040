package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Monitoring.Enabled {
		t.Error("monitoring enabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
results: /data/cosim
logging:
  level: debug
monitoring:
  enabled: true
  sample_interval: 250ms
network:
  bind_host: 0.0.0.0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Results != "/data/cosim" {
		t.Errorf("Results = %q", cfg.Results)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	if !cfg.Monitoring.Enabled || cfg.Monitoring.SampleInterval != 250*time.Millisecond {
		t.Errorf("Monitoring = %+v", cfg.Monitoring)
	}
	if cfg.Network.BindHost != "0.0.0.0" {
		t.Errorf("BindHost = %q", cfg.Network.BindHost)
	}
	// Unset fields keep defaults.
	if cfg.Network.DialTimeout != 2*time.Second {
		t.Errorf("DialTimeout = %v, want default", cfg.Network.DialTimeout)
	}
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("results: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile accepted invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COSIM_RESULTS", "/env/results")
	t.Setenv("COSIM_LOG_LEVEL", "trace")
	t.Setenv("COSIM_MONITORING", "1")
	t.Setenv("COSIM_DIAL_TIMEOUT", "5s")
	t.Setenv("COSIM_CONNECT_DEADLINE_SECONDS", "90")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.Results != "/env/results" {
		t.Errorf("Results = %q", cfg.Results)
	}
	if cfg.Logging.Level != "trace" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	if !cfg.Monitoring.Enabled {
		t.Error("Monitoring not enabled from env")
	}
	if cfg.Network.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v", cfg.Network.DialTimeout)
	}
	if cfg.Network.ConnectDeadline != 90*time.Second {
		t.Errorf("ConnectDeadline = %v", cfg.Network.ConnectDeadline)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default ok", func(c *Config) {}, false},
		{"empty results", func(c *Config) { c.Results = "" }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"zero interval", func(c *Config) { c.Monitoring.SampleInterval = 0 }, true},
		{"zero dial timeout", func(c *Config) { c.Network.DialTimeout = 0 }, true},
		{"deadline below timeout", func(c *Config) {
			c.Network.ConnectDeadline = time.Second
			c.Network.DialTimeout = 2 * time.Second
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
