package core

import (
	"log/slog"

	"github.com/deskl0/freqrelay/internal/freq"
	"github.com/deskl0/freqrelay/internal/freqbus"
)

// DefaultHysteresisThreshold is how many net unstable periods the
// monitor tolerates before raising ALERT.
const DefaultHysteresisThreshold = 5

// IndicatorWriter drives the status indicator output.
type IndicatorWriter interface {
	WriteIndicator(pattern uint8)
}

// IndicatorPattern maps an arbitration state to its indicator output.
// Pure; the indicator itself carries no state.
func IndicatorPattern(s SystemState) uint8 {
	switch s {
	case StateAlert:
		return 0x02
	case StateFailsafe:
		return 0x07
	default:
		return 0x01
	}
}

// Monitor arbitrates NORMAL / ALERT / FAILSAFE. It runs at the highest
// task priority: a detected actuator fault latches fail-safe by the
// next cycle, before any other task acts on stale state.
//
// Transient instability is smoothed by a hysteresis counter that
// increments on unstable periods and decrements (floor zero) on stable
// ones; ALERT is raised only once the counter exceeds the threshold.
type Monitor struct {
	state     *State
	snaps     *freqbus.Holder[freq.Snapshot]
	ind       IndicatorWriter
	threshold int

	counter   int
	lastEpoch uint64
	lastState SystemState
	wrote     bool
}

// NewMonitor creates a system state monitor.
func NewMonitor(state *State, snaps *freqbus.Holder[freq.Snapshot], ind IndicatorWriter, threshold int) *Monitor {
	if threshold <= 0 {
		threshold = DefaultHysteresisThreshold
	}
	return &Monitor{state: state, snaps: snaps, ind: ind, threshold: threshold}
}

// Counter returns the hysteresis counter value.
func (m *Monitor) Counter() int { return m.counter }

// Tick runs one monitor period.
func (m *Monitor) Tick() {
	if epoch := m.state.Epoch(); epoch != m.lastEpoch {
		m.lastEpoch = epoch
		m.counter = 0
		m.wrote = false
	}

	if m.state.FaultDetected() && !m.state.FailsafeActive() {
		slog.Error("core: actuator fault detected, latching fail-safe")
		m.state.LatchFailsafe()
	}

	if m.state.FailsafeActive() {
		// Sticky. Only the reset path leaves FAILSAFE.
		m.drive(StateFailsafe)
		return
	}

	if snap, ok := m.snaps.Peek(); ok {
		if snap.Stable {
			if m.counter > 0 {
				m.counter--
			}
		} else {
			m.counter++
		}
	}

	if m.counter > m.threshold {
		if !m.state.AlertActive() {
			slog.Warn("core: instability persists, entering ALERT",
				"hysteresis", m.counter,
			)
		}
		m.state.SetAlert(true)
		m.drive(StateAlert)
	} else {
		if m.state.AlertActive() {
			slog.Info("core: grid settled, returning to NORMAL")
		}
		m.state.SetAlert(false)
		m.drive(StateNormal)
	}
}

// drive updates the indicator output when the pattern changes.
func (m *Monitor) drive(s SystemState) {
	if m.wrote && s == m.lastState {
		return
	}
	m.ind.WriteIndicator(IndicatorPattern(s))
	m.lastState = s
	m.wrote = true
}
