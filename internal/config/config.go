package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Hooks selects which kernel hooks the collector attaches. Both may run
// at once; the dedup filter collapses the overlap.
type Hooks struct {
	Kprobe     bool `yaml:"kprobe"`
	Tracepoint bool `yaml:"tracepoint"`
}

type Dedup struct {
	Enabled bool          `yaml:"enabled"`
	Window  time.Duration `yaml:"window"`
}

type Config struct {
	BPFObject       string        `yaml:"bpf_object"`
	Hooks           Hooks         `yaml:"hooks"`
	PerfBufferPages int           `yaml:"perf_buffer_pages"`
	LoadRetries     int           `yaml:"load_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	Dedup           Dedup         `yaml:"dedup"`
	Enrich          bool          `yaml:"enrich"`
	Output          string        `yaml:"output"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	LogLevel        string        `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		BPFObject:       "./internal/bpf/connmon.bpf.o",
		Hooks:           Hooks{Kprobe: true, Tracepoint: true},
		PerfBufferPages: 64,
		LoadRetries:     3,
		RetryDelay:      2 * time.Second,
		Dedup:           Dedup{Enabled: true, Window: time.Second},
		Enrich:          true,
		Output:          "-",
		MetricsAddr:     ":9100",
		LogLevel:        "info",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BPFObject == "" {
		return errors.New("bpf_object is required")
	}
	if !c.Hooks.Kprobe && !c.Hooks.Tracepoint {
		return errors.New("at least one of hooks.kprobe and hooks.tracepoint must be enabled")
	}
	if c.PerfBufferPages <= 0 {
		return fmt.Errorf("perf_buffer_pages must be positive, got %d", c.PerfBufferPages)
	}
	if c.LoadRetries < 0 {
		return fmt.Errorf("load_retries must not be negative, got %d", c.LoadRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must not be negative, got %s", c.RetryDelay)
	}
	if c.Dedup.Enabled && c.Dedup.Window <= 0 {
		return fmt.Errorf("dedup.window must be positive, got %s", c.Dedup.Window)
	}
	if c.Output == "" {
		return errors.New("output is required, use \"-\" for stdout")
	}
	return nil
}
