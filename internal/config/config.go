package config

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"pulsewatch-backend/internal/collector"
)

type Config struct {
	Monitor MonitorConfig                         `yaml:"monitor"`
	Alerts  AlertsConfig                          `yaml:"alerts"`
	Health  HealthConfig                          `yaml:"health"`
	Sources map[string]collector.ConnectionConfig `yaml:"sources"`
}

type MonitorConfig struct {
	TickSeconds             int `yaml:"tickSeconds"`
	MaxParallelExecutions   int `yaml:"maxParallelExecutions"`
	ExecutionTimeoutSeconds int `yaml:"executionTimeoutSeconds"`
	// LockStaleAfterSeconds is deliberately its own knob rather than reusing
	// the execution timeout; it defaults to twice the timeout.
	LockStaleAfterSeconds int `yaml:"lockStaleAfterSeconds"`
	ShutdownGraceSeconds  int `yaml:"shutdownGraceSeconds"`
}

type AlertsConfig struct {
	TickSeconds           int `yaml:"tickSeconds"`
	BatchSize             int `yaml:"batchSize"`
	EscalationMinutes     int `yaml:"escalationMinutes"`
	AutoResolutionMinutes int `yaml:"autoResolutionMinutes"`
}

type HealthConfig struct {
	StalenessMultiplier int `yaml:"stalenessMultiplier"`
}

func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			TickSeconds:             15,
			MaxParallelExecutions:   8,
			ExecutionTimeoutSeconds: 60,
			LockStaleAfterSeconds:   120,
			ShutdownGraceSeconds:    30,
		},
		Alerts: AlertsConfig{
			TickSeconds:           30,
			BatchSize:             100,
			EscalationMinutes:     30,
			AutoResolutionMinutes: 240,
		},
		Health: HealthConfig{StalenessMultiplier: 3},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Monitor.TickSeconds <= 0 {
		cfg.Monitor.TickSeconds = def.Monitor.TickSeconds
	}
	if cfg.Monitor.MaxParallelExecutions <= 0 {
		cfg.Monitor.MaxParallelExecutions = def.Monitor.MaxParallelExecutions
	}
	if cfg.Monitor.ExecutionTimeoutSeconds <= 0 {
		cfg.Monitor.ExecutionTimeoutSeconds = def.Monitor.ExecutionTimeoutSeconds
	}
	if cfg.Monitor.LockStaleAfterSeconds <= 0 {
		cfg.Monitor.LockStaleAfterSeconds = 2 * cfg.Monitor.ExecutionTimeoutSeconds
	}
	if cfg.Monitor.ShutdownGraceSeconds <= 0 {
		cfg.Monitor.ShutdownGraceSeconds = def.Monitor.ShutdownGraceSeconds
	}
	if cfg.Alerts.TickSeconds <= 0 {
		cfg.Alerts.TickSeconds = def.Alerts.TickSeconds
	}
	if cfg.Alerts.BatchSize <= 0 {
		cfg.Alerts.BatchSize = def.Alerts.BatchSize
	}
	if cfg.Alerts.EscalationMinutes <= 0 {
		cfg.Alerts.EscalationMinutes = def.Alerts.EscalationMinutes
	}
	if cfg.Alerts.AutoResolutionMinutes <= 0 {
		cfg.Alerts.AutoResolutionMinutes = def.Alerts.AutoResolutionMinutes
	}
	if cfg.Health.StalenessMultiplier <= 0 {
		cfg.Health.StalenessMultiplier = def.Health.StalenessMultiplier
	}
}

func validate(cfg *Config) error {
	if cfg.Alerts.AutoResolutionMinutes <= cfg.Alerts.EscalationMinutes {
		return fmt.Errorf("autoResolutionMinutes (%d) must exceed escalationMinutes (%d)",
			cfg.Alerts.AutoResolutionMinutes, cfg.Alerts.EscalationMinutes)
	}
	return nil
}

func (c *Config) MonitorTick() time.Duration {
	return time.Duration(c.Monitor.TickSeconds) * time.Second
}

func (c *Config) AlertTick() time.Duration {
	return time.Duration(c.Alerts.TickSeconds) * time.Second
}

func (c *Config) ExecutionTimeout() time.Duration {
	return time.Duration(c.Monitor.ExecutionTimeoutSeconds) * time.Second
}

func (c *Config) LockStaleAfter() time.Duration {
	return time.Duration(c.Monitor.LockStaleAfterSeconds) * time.Second
}

func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Monitor.ShutdownGraceSeconds) * time.Second
}

func (c *Config) EscalationTimeout() time.Duration {
	return time.Duration(c.Alerts.EscalationMinutes) * time.Minute
}

func (c *Config) AutoResolutionTimeout() time.Duration {
	return time.Duration(c.Alerts.AutoResolutionMinutes) * time.Minute
}

// Handle hands out the current configuration snapshot. Hot reload replaces
// only the alert policy; scheduling and parallelism knobs are startup-only.
type Handle struct {
	v atomic.Pointer[Config]
}

func NewHandle(cfg *Config) *Handle {
	h := &Handle{}
	h.v.Store(cfg)
	return h
}

func (h *Handle) Snapshot() *Config {
	return h.v.Load()
}

// ReplacePolicy merges the alert policy fields of next into the current
// snapshot. New alerts use the updated deadlines; alerts already raised keep
// the deadlines stamped at creation.
func (h *Handle) ReplacePolicy(next *Config) {
	cur := h.Snapshot()
	merged := *cur
	merged.Alerts.EscalationMinutes = next.Alerts.EscalationMinutes
	merged.Alerts.AutoResolutionMinutes = next.Alerts.AutoResolutionMinutes
	h.v.Store(&merged)
}
