package core

import (
	"log/slog"

	"github.com/deskl0/freqrelay/internal/freq"
	"github.com/deskl0/freqrelay/internal/shed"
)

// Interrupt paths. All of these run on the board's dispatch context:
// bounded work only, try-acquire locking, skip on contention, no retry.

// handleEmergency services the fail-safe trigger line. The sticky flags
// are atomics, so the latch itself can never be skipped; the load
// bitmaps and the peripheral write are guarded by the Shed lock and are
// skipped for this invocation when a task holds it. The next supervisor
// period converges the outputs anyway, because the engine now sees
// failsafe_active.
func (r *Relay) handleEmergency() {
	r.state.LatchFailsafe()

	if r.state.TryForceShedTo(shed.TierCritical) {
		r.board.WriteLoads(uint16(shed.TierCritical))
	} else {
		slog.Warn("core: emergency trigger hit contended shed lock, load write skipped")
	}

	slog.Error("core: emergency trigger, fail-safe latched")
}

// handleShedTrigger services the manual shed push-button. The alert
// flag is an atomic, so this mutation cannot tear against the monitor's
// read.
func (r *Relay) handleShedTrigger() {
	if r.state.FailsafeActive() {
		return
	}
	r.state.SetAlert(true)
	slog.Warn("core: manual shed trigger, alert raised")
}

// handleReset services the reset line: clears the sticky flags and
// restores every shared entity to defaults via try-acquire. A contended
// domain keeps its contents for this invocation; the flags always
// clear, and the epoch bump makes every task drop its caches.
func (r *Relay) handleReset() {
	complete := r.state.TryResetAll(r.initialSnapshot())

	if r.state.TryForceShedTo(0) {
		r.board.WriteLoads(0)
	}
	r.board.WriteIndicator(IndicatorPattern(StateNormal))

	if complete {
		slog.Info("core: reset, all shared state restored to defaults")
	} else {
		slog.Warn("core: reset hit a contended lock, partial restore this invocation")
	}
}

// initialSnapshot is the nominal-default snapshot shared entities reset
// to.
func (r *Relay) initialSnapshot() freq.Snapshot {
	return freq.Snapshot{
		Current:    r.cfg.NominalHz,
		Previous:   r.cfg.NominalHz,
		LowerLimit: r.cfg.LowerHz,
		UpperLimit: r.cfg.UpperHz,
		MaxRoC:     r.cfg.MaxRoC,
		Stable:     true,
	}
}
