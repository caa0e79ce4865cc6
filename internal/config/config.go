// Package config loads and validates the relay's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete relay configuration.
type Config struct {
	InstanceID string      `yaml:"instance_id"`
	Grid       GridConfig  `yaml:"grid"`
	Tasks      TasksConfig `yaml:"tasks"`
	Shedding   ShedConfig  `yaml:"shedding"`
	MQTT       MQTTConfig  `yaml:"mqtt"`
	Sim        SimConfig   `yaml:"sim"`
}

// GridConfig contains the frequency tolerances.
type GridConfig struct {
	NominalHz  float64 `yaml:"nominal_hz"`
	LowerHz    float64 `yaml:"lower_hz"`
	UpperHz    float64 `yaml:"upper_hz"`
	MaxRoC     float64 `yaml:"max_roc_hz_per_s"`
	SamplingHz float64 `yaml:"sampling_hz"` // frequency-counter clock
}

// TasksConfig contains the periodic task periods in milliseconds.
type TasksConfig struct {
	AnalyzerMS   int `yaml:"analyzer_ms"`
	SupervisorMS int `yaml:"supervisor_ms"`
	MonitorMS    int `yaml:"monitor_ms"`
	ArbiterMS    int `yaml:"arbiter_ms"`
	TelemetryMS  int `yaml:"telemetry_ms"`
}

// ShedConfig contains shedding and arbitration settings.
type ShedConfig struct {
	HysteresisThreshold int `yaml:"hysteresis_threshold"`
	SampleQueueDepth    int `yaml:"sample_queue_depth"`
}

// MQTTConfig contains broker settings. An empty broker disables
// telemetry publishing entirely.
type MQTTConfig struct {
	Broker string     `yaml:"broker"`
	Topics MQTTTopics `yaml:"topics"`
	QoS    byte       `yaml:"qos"`
}

// MQTTTopics contains topic templates.
type MQTTTopics struct {
	Telemetry string `yaml:"telemetry"`
	Health    string `yaml:"health"`
	Control   string `yaml:"control"`
}

// SimConfig contains the simulated board's waveform settings.
type SimConfig struct {
	WobbleHz       float64 `yaml:"wobble_hz"`
	WobblePeriodS  int     `yaml:"wobble_period_s"`
	SampleInterval int     `yaml:"sample_interval_ms"`
}

// AnalyzerPeriod returns the analyzer period as a Duration.
func (t TasksConfig) AnalyzerPeriod() time.Duration {
	return time.Duration(t.AnalyzerMS) * time.Millisecond
}

// SupervisorPeriod returns the supervisor period as a Duration.
func (t TasksConfig) SupervisorPeriod() time.Duration {
	return time.Duration(t.SupervisorMS) * time.Millisecond
}

// MonitorPeriod returns the monitor period as a Duration.
func (t TasksConfig) MonitorPeriod() time.Duration {
	return time.Duration(t.MonitorMS) * time.Millisecond
}

// ArbiterPeriod returns the arbiter period as a Duration.
func (t TasksConfig) ArbiterPeriod() time.Duration {
	return time.Duration(t.ArbiterMS) * time.Millisecond
}

// TelemetryPeriod returns the telemetry period as a Duration.
func (t TasksConfig) TelemetryPeriod() time.Duration {
	return time.Duration(t.TelemetryMS) * time.Millisecond
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every field at its default,
// already validated.
func Default() *Config {
	cfg := &Config{}
	// Validate fills defaults and cannot fail on an empty config once
	// the instance id is set.
	cfg.InstanceID = "relay-0"
	if err := Validate(cfg); err != nil {
		panic(err) // unreachable
	}
	return cfg
}
