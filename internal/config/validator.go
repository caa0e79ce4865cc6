package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills defaults in place.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	// Grid tolerances.
	if cfg.Grid.NominalHz == 0 {
		cfg.Grid.NominalHz = 50.0
	}
	if cfg.Grid.LowerHz == 0 {
		cfg.Grid.LowerHz = 48.5
	}
	if cfg.Grid.UpperHz == 0 {
		cfg.Grid.UpperHz = 51.5
	}
	if cfg.Grid.MaxRoC == 0 {
		cfg.Grid.MaxRoC = 60.0
	}
	if cfg.Grid.SamplingHz == 0 {
		cfg.Grid.SamplingHz = 16000
	}
	if cfg.Grid.LowerHz >= cfg.Grid.UpperHz {
		return fmt.Errorf("grid.lower_hz (%.2f) must be below grid.upper_hz (%.2f)",
			cfg.Grid.LowerHz, cfg.Grid.UpperHz)
	}
	if cfg.Grid.NominalHz < cfg.Grid.LowerHz || cfg.Grid.NominalHz > cfg.Grid.UpperHz {
		return fmt.Errorf("grid.nominal_hz (%.2f) must lie inside the band", cfg.Grid.NominalHz)
	}
	if cfg.Grid.MaxRoC <= 0 {
		return fmt.Errorf("grid.max_roc_hz_per_s must be > 0")
	}

	// Task periods.
	if cfg.Tasks.AnalyzerMS <= 0 {
		cfg.Tasks.AnalyzerMS = 100
	}
	if cfg.Tasks.SupervisorMS <= 0 {
		cfg.Tasks.SupervisorMS = 100
	}
	if cfg.Tasks.MonitorMS <= 0 {
		cfg.Tasks.MonitorMS = 50
	}
	if cfg.Tasks.ArbiterMS <= 0 {
		cfg.Tasks.ArbiterMS = 200
	}
	if cfg.Tasks.TelemetryMS <= 0 {
		cfg.Tasks.TelemetryMS = 1000
	}

	// Shedding.
	if cfg.Shedding.HysteresisThreshold <= 0 {
		cfg.Shedding.HysteresisThreshold = 5
	}
	if cfg.Shedding.SampleQueueDepth <= 0 {
		cfg.Shedding.SampleQueueDepth = 10
	}

	// MQTT topics only matter when a broker is configured.
	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topics.Telemetry == "" {
			cfg.MQTT.Topics.Telemetry = fmt.Sprintf("grid/telemetry/%s", cfg.InstanceID)
		}
		if cfg.MQTT.Topics.Health == "" {
			cfg.MQTT.Topics.Health = fmt.Sprintf("grid/health/%s", cfg.InstanceID)
		}
		if cfg.MQTT.Topics.Control == "" {
			cfg.MQTT.Topics.Control = fmt.Sprintf("grid/control/%s", cfg.InstanceID)
		}
	}

	// Simulator waveform.
	if cfg.Sim.WobbleHz == 0 {
		cfg.Sim.WobbleHz = 0.2
	}
	if cfg.Sim.WobblePeriodS <= 0 {
		cfg.Sim.WobblePeriodS = 20
	}
	if cfg.Sim.SampleInterval <= 0 {
		cfg.Sim.SampleInterval = 100
	}

	return nil
}
