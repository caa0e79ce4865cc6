package core

import (
	"context"
	"testing"
	"time"

	"github.com/deskl0/freqrelay/internal/hw"
	"github.com/deskl0/freqrelay/internal/shed"
)

func testConfig() Config {
	return Config{
		InstanceID:          "relay-test",
		NominalHz:           50.0,
		LowerHz:             48.5,
		UpperHz:             51.5,
		MaxRoC:              60.0,
		SamplingHz:          16000,
		AnalyzerPeriod:      10 * time.Millisecond,
		SupervisorPeriod:    10 * time.Millisecond,
		MonitorPeriod:       5 * time.Millisecond,
		ArbiterPeriod:       20 * time.Millisecond,
		TelemetryPeriod:     20 * time.Millisecond,
		HysteresisThreshold: 5,
		SampleQueueDepth:    10,
	}
}

// newBoundRelay builds a relay with its interrupt handlers bound but no
// periodic tasks running, so tests drive each task deterministically.
func newBoundRelay(t *testing.T) (*Relay, *hw.Simulator) {
	t.Helper()
	sim := hw.NewSimulator(hw.DefaultSimConfig())
	r, err := NewRelay(testConfig(), sim, nil)
	if err != nil {
		t.Fatalf("NewRelay failed: %v", err)
	}
	r.bindInterrupts()
	return r, sim
}

// TestRelayConstructionValidation verifies the fatal-at-start contract.
func TestRelayConstructionValidation(t *testing.T) {
	if _, err := NewRelay(testConfig(), nil, nil); err == nil {
		t.Error("Expected error for nil board")
	}

	cfg := testConfig()
	cfg.LowerHz, cfg.UpperHz = 51.5, 48.5
	if _, err := NewRelay(cfg, hw.NewSimulator(hw.DefaultSimConfig()), nil); err == nil {
		t.Error("Expected error for inverted limits")
	}
}

// TestRelayEmergencyPath verifies the fail-safe trigger latches and
// forces critical-only loads directly from dispatch context.
func TestRelayEmergencyPath(t *testing.T) {
	r, sim := newBoundRelay(t)

	sim.Trigger(hw.LineFailsafe)

	st := r.State()
	if !st.FailsafeActive() || st.SystemState() != StateFailsafe {
		t.Fatal("Emergency trigger did not latch FAILSAFE")
	}
	if d := st.Decision(); d.Requested != shed.TierCritical || d.Load != shed.TierCritical {
		t.Errorf("Loads not forced to critical: %+v", d)
	}
	if sim.Loads() != uint16(shed.TierCritical) {
		t.Errorf("Peripheral loads = %#04x, want critical only", sim.Loads())
	}
}

// TestRelayResetPath verifies the reset line restores defaults after an
// emergency.
func TestRelayResetPath(t *testing.T) {
	r, sim := newBoundRelay(t)

	sim.Trigger(hw.LineFailsafe)
	sim.Trigger(hw.LineReset)

	st := r.State()
	if st.FailsafeActive() || st.SystemState() != StateNormal {
		t.Error("Reset did not clear the latch")
	}
	if d := st.Decision(); d.Load != 0 || d.Requested != 0 {
		t.Errorf("Loads not restored to defaults: %+v", d)
	}
	if sim.Loads() != 0 {
		t.Errorf("Peripheral loads = %#04x after reset, want 0", sim.Loads())
	}
	if sim.Indicator() != IndicatorPattern(StateNormal) {
		t.Errorf("Indicator = %#02x after reset", sim.Indicator())
	}
}

// TestRelayShedTriggerPath verifies the shed button raises the alert
// flag atomically and is inert under fail-safe.
func TestRelayShedTriggerPath(t *testing.T) {
	r, sim := newBoundRelay(t)

	sim.Trigger(hw.LineShedTrigger)
	if !r.State().AlertActive() || r.State().SystemState() != StateAlert {
		t.Error("Shed trigger did not raise ALERT")
	}

	sim.Trigger(hw.LineFailsafe)
	sim.Trigger(hw.LineShedTrigger)
	if r.State().SystemState() != StateFailsafe {
		t.Error("Shed trigger disturbed FAILSAFE")
	}
}

// TestRelayFaultToFailsafe drives the full loop by hand: injected
// actuator fault, supervisor detects, monitor latches by its next
// cycle.
func TestRelayFaultToFailsafe(t *testing.T) {
	r, sim := newBoundRelay(t)

	// Push the grid out of band so loads are requested, then make one
	// actuator disagree.
	sim.ForceFrequency(47.0)
	sim.InjectActuatorFault(0x0002)
	sim.Trigger(hw.LineFreqReady)
	sim.Trigger(hw.LineFreqReady)
	r.analyzer.Tick()
	r.analyzer.Tick()
	r.supervisor.Tick()

	if !r.State().FaultDetected() {
		t.Fatal("Supervisor did not detect the actuator mismatch")
	}

	r.monitor.Tick()
	if r.State().SystemState() != StateFailsafe {
		t.Fatal("Monitor did not latch FAILSAFE on the next cycle")
	}

	// Fault latched: supervisor now requests critical-only.
	r.supervisor.Tick()
	if d := r.State().Decision(); d.Requested != shed.TierCritical {
		t.Errorf("Requested = %#04x under latched fail-safe", uint16(d.Requested))
	}
}

// TestRelayOverrideEndToEnd verifies the override flow against live
// state: manual word applied, supervisor hands off, release returns
// control.
func TestRelayOverrideEndToEnd(t *testing.T) {
	r, sim := newBoundRelay(t)

	sim.ForceFrequency(47.0)
	sim.Trigger(hw.LineFreqReady)
	r.analyzer.Tick()

	sim.SetOverrideInput(0x8005)
	r.arbiter.Tick()

	if sim.Loads() != 0x8005 {
		t.Fatalf("Override word not applied: %#04x", sim.Loads())
	}

	// Supervisor computes but must not touch the outputs.
	r.supervisor.Tick()
	if sim.Loads() != 0x8005 {
		t.Error("Supervisor overwrote the override word")
	}
	if r.State().Decision().Requested == 0 {
		t.Error("Decision engine idle during override")
	}

	// Release: the supervisor reclaims the outputs on its next period.
	sim.SetOverrideInput(0x0000)
	r.arbiter.Tick()
	r.supervisor.Tick()

	if r.State().OverrideActive() {
		t.Error("Override still active after release")
	}
	if sim.Loads() == 0x8005 {
		t.Error("Supervisor did not reclaim the load outputs")
	}
}

// TestRelayOverrideReleaseReconciles drives the sequence that matters
// on a steady grid: the supervisor has already written its bitmap, an
// operator engages and releases override without the grid moving, and
// the relay must converge back without a spurious fault or a latched
// fail-safe.
func TestRelayOverrideReleaseReconciles(t *testing.T) {
	r, sim := newBoundRelay(t)

	sim.ForceFrequency(47.0)
	sim.Trigger(hw.LineFreqReady)
	sim.Trigger(hw.LineFreqReady)
	r.analyzer.Tick()
	r.analyzer.Tick()
	r.supervisor.Tick()

	want := uint16(shed.TierCritical | shed.TierHigh)
	if sim.Loads() != want {
		t.Fatalf("Loads = %#04x before override, want %#04x", sim.Loads(), want)
	}

	sim.SetOverrideInput(0x8005)
	r.arbiter.Tick()
	r.supervisor.Tick()
	sim.SetOverrideInput(0x0000)
	r.arbiter.Tick()

	r.supervisor.Tick()
	if sim.Loads() != want {
		t.Errorf("Hardware not reconciled after release: loads = %#04x, want %#04x",
			sim.Loads(), want)
	}
	if r.State().FaultDetected() {
		t.Error("Spurious actuator fault after override release")
	}
	r.monitor.Tick()
	if r.State().SystemState() == StateFailsafe {
		t.Error("Routine override cycle latched FAILSAFE")
	}
}

// TestRelayTelemetryHistory verifies the telemetry task appends to the
// rolling history and survives a missing broker.
func TestRelayTelemetryHistory(t *testing.T) {
	r, _ := newBoundRelay(t)

	r.publishTelemetry()
	r.publishTelemetry()

	if got := r.History().Len(); got != 2 {
		t.Errorf("History length = %d, want 2", got)
	}
	e := r.History().Entries()[0]
	if e.CurrentHz != 50.0 || e.State != "NORMAL" {
		t.Errorf("Unexpected telemetry entry: %+v", e)
	}
}

// TestRelayPeriodicLoop smoke-tests the full task set against the
// running simulator.
func TestRelayPeriodicLoop(t *testing.T) {
	simCfg := hw.DefaultSimConfig()
	simCfg.SampleInterval = 5 * time.Millisecond
	sim := hw.NewSimulator(simCfg)

	r, err := NewRelay(testConfig(), sim, nil)
	if err != nil {
		t.Fatalf("NewRelay failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sim.Start(); err != nil {
		t.Fatalf("Simulator start failed: %v", err)
	}
	defer sim.Stop()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Relay start failed: %v", err)
	}
	if err := r.Start(ctx); err == nil {
		t.Error("Second Start should fail")
	}

	time.Sleep(150 * time.Millisecond)
	r.Stop()

	h := r.Health()
	if h.State != "NORMAL" {
		t.Errorf("Healthy wobbling grid ended in %s", h.State)
	}
	if h.HistoryLen == 0 {
		t.Error("Telemetry history empty after running loop")
	}
	if h.SampleStats.Sent == 0 {
		t.Error("No samples flowed through the loop")
	}
}
