// Command relayd runs the load-shedding relay against the simulated
// grid board, publishing telemetry over MQTT when a broker is
// configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"github.com/deskl0/freqrelay/internal/config"
	"github.com/deskl0/freqrelay/internal/core"
	"github.com/deskl0/freqrelay/internal/hw"
	"github.com/deskl0/freqrelay/internal/telemetry"
)

const version = "v0.1.0"

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML configuration (optional)")
		broker     = flag.String("broker", "", "MQTT broker address, overrides config (host:port)")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))

	cfg, err := loadConfig(*configPath, *broker)
	if err != nil {
		slog.Error("relayd: configuration failed", "error", err)
		os.Exit(1)
	}

	printBanner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("relayd: shutdown signal received, stopping gracefully")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		// Start failure is the one unrecoverable condition.
		slog.Error("relayd: fatal", "error", err)
		os.Exit(1)
	}

	slog.Info("relayd: stopped gracefully")
}

func loadConfig(path, brokerOverride string) (*config.Config, error) {
	var cfg *config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		cfg.InstanceID = fmt.Sprintf("relay-%s", uuid.NewString()[:8])
	}

	if brokerOverride != "" {
		cfg.MQTT.Broker = brokerOverride
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	sim := hw.NewSimulator(hw.SimConfig{
		SamplingHz:     cfg.Grid.SamplingHz,
		NominalHz:      cfg.Grid.NominalHz,
		WobbleHz:       cfg.Sim.WobbleHz,
		WobblePeriod:   time.Duration(cfg.Sim.WobblePeriodS) * time.Second,
		SampleInterval: time.Duration(cfg.Sim.SampleInterval) * time.Millisecond,
	})

	var emitter *telemetry.Emitter
	if cfg.MQTT.Broker != "" {
		emitter = telemetry.NewEmitter(cfg.MQTT.Broker, cfg.InstanceID, telemetry.Topics{
			Telemetry: cfg.MQTT.Topics.Telemetry,
			Health:    cfg.MQTT.Topics.Health,
			Control:   cfg.MQTT.Topics.Control,
		}, cfg.MQTT.QoS)

		// Telemetry absence degrades, never halts the control loop.
		if err := emitter.Connect(); err != nil {
			slog.Warn("relayd: telemetry unavailable, continuing without", "error", err)
		}
		defer emitter.Close()
	}

	relay, err := core.NewRelay(core.Config{
		InstanceID:          cfg.InstanceID,
		NominalHz:           cfg.Grid.NominalHz,
		LowerHz:             cfg.Grid.LowerHz,
		UpperHz:             cfg.Grid.UpperHz,
		MaxRoC:              cfg.Grid.MaxRoC,
		SamplingHz:          cfg.Grid.SamplingHz,
		AnalyzerPeriod:      cfg.Tasks.AnalyzerPeriod(),
		SupervisorPeriod:    cfg.Tasks.SupervisorPeriod(),
		MonitorPeriod:       cfg.Tasks.MonitorPeriod(),
		ArbiterPeriod:       cfg.Tasks.ArbiterPeriod(),
		TelemetryPeriod:     cfg.Tasks.TelemetryPeriod(),
		HysteresisThreshold: cfg.Shedding.HysteresisThreshold,
		SampleQueueDepth:    cfg.Shedding.SampleQueueDepth,
	}, sim, emitter)
	if err != nil {
		return fmt.Errorf("create relay: %w", err)
	}

	if err := sim.Start(); err != nil {
		return fmt.Errorf("start board: %w", err)
	}
	defer sim.Stop()

	if err := relay.Start(ctx); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}

	<-ctx.Done()
	relay.Stop()
	return nil
}

func printBanner(cfg *config.Config) {
	slog.Info("relayd starting",
		"version", version,
		"instance_id", cfg.InstanceID,
	)
	slog.Info("relayd tolerances",
		"nominal_hz", cfg.Grid.NominalHz,
		"band", fmt.Sprintf("%.2f-%.2f Hz", cfg.Grid.LowerHz, cfg.Grid.UpperHz),
		"max_roc", cfg.Grid.MaxRoC,
		"hysteresis_threshold", cfg.Shedding.HysteresisThreshold,
	)
	slog.Info("relayd task periods",
		"monitor_ms", cfg.Tasks.MonitorMS,
		"analyzer_ms", cfg.Tasks.AnalyzerMS,
		"supervisor_ms", cfg.Tasks.SupervisorMS,
		"arbiter_ms", cfg.Tasks.ArbiterMS,
		"telemetry_ms", cfg.Tasks.TelemetryMS,
	)
}
