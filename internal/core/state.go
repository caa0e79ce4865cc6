// Package core wires the relay together: the shared control state and
// its lock domains, the periodic tasks that arbitrate system state and
// manual override, the interrupt paths, and the orchestrator that runs
// them against a hardware board.
package core

import (
	"sync"
	"sync/atomic"

	"github.com/deskl0/freqrelay/internal/freq"
	"github.com/deskl0/freqrelay/internal/shed"
)

// SystemState is the relay's arbitration state.
type SystemState int32

const (
	StateNormal SystemState = iota
	StateAlert
	StateFailsafe
)

func (s SystemState) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateAlert:
		return "ALERT"
	case StateFailsafe:
		return "FAILSAFE"
	default:
		return "UNKNOWN"
	}
}

// Actuator is the observed actuator state, protected by the Actuator
// lock domain.
type Actuator struct {
	Status       shed.Bitmap
	Fault        bool
	PriorityMask shed.Bitmap
}

// State is the shared control state. Three independent lock domains
// guard the mutable entities: Config (frequency snapshot), Shed (load
// decision) and Actuator (feedback and fault flag). Readers always
// receive an owned copy; no caller ever holds two domain locks at once,
// so cross-domain consistency comes from snapshot-copy, not lock
// nesting.
//
// The system status flags are atomics: interrupt paths must be able to
// latch fail-safe without the possibility of blocking, and the monitor
// task must never observe a torn flag.
type State struct {
	cfgMu sync.Mutex
	snap  freq.Snapshot

	shedMu   sync.Mutex
	decision shed.Decision

	actMu    sync.Mutex
	actuator Actuator

	state    atomic.Int32
	alert    atomic.Bool
	failsafe atomic.Bool
	override atomic.Bool

	// epoch increments on every reset so tasks can discard task-local
	// caches that predate it.
	epoch atomic.Uint64
}

// NewState creates control state at nominal defaults: the given
// snapshot, zero loads, NORMAL.
func NewState(initial freq.Snapshot) *State {
	s := &State{snap: initial}
	s.state.Store(int32(StateNormal))
	return s
}

// --- Config domain ---

// PublishSnapshot stores an owned copy of the analyzer's snapshot.
func (s *State) PublishSnapshot(snap freq.Snapshot) {
	s.cfgMu.Lock()
	s.snap = snap
	s.cfgMu.Unlock()
}

// Snapshot returns an owned copy of the latest frequency snapshot.
func (s *State) Snapshot() freq.Snapshot {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.snap
}

// --- Shed domain ---

// Decision returns an owned copy of the load decision.
func (s *State) Decision() shed.Decision {
	s.shedMu.Lock()
	defer s.shedMu.Unlock()
	return s.decision
}

// SetRequested records the decision engine's requested bitmap.
func (s *State) SetRequested(b shed.Bitmap) {
	s.shedMu.Lock()
	s.decision.Requested = b
	s.decision.PriorityMask = b
	s.shedMu.Unlock()
}

// CommitLoad copies the requested bitmap into the applied load status.
func (s *State) CommitLoad(b shed.Bitmap) {
	s.shedMu.Lock()
	s.decision.Load = b
	s.shedMu.Unlock()
}

// SetLoadDirect writes the load status directly, bypassing the decision
// engine. Used by the override arbiter.
func (s *State) SetLoadDirect(b shed.Bitmap) {
	s.shedMu.Lock()
	s.decision.Load = b
	s.shedMu.Unlock()
}

// TryForceShedTo forces both requested and applied loads to b using a
// try-acquire. Returns false if the Shed lock was contended; interrupt
// context skips, never waits.
func (s *State) TryForceShedTo(b shed.Bitmap) bool {
	if !s.shedMu.TryLock() {
		return false
	}
	s.decision.Requested = b
	s.decision.Load = b
	s.decision.PriorityMask = b
	s.shedMu.Unlock()
	return true
}

// --- Actuator domain ---

// ActuatorState returns an owned copy of the actuator state.
func (s *State) ActuatorState() Actuator {
	s.actMu.Lock()
	defer s.actMu.Unlock()
	return s.actuator
}

// SetActuator records observed feedback and the fault comparison result.
func (s *State) SetActuator(status shed.Bitmap, fault bool) {
	s.actMu.Lock()
	s.actuator.Status = status
	s.actuator.Fault = fault
	s.actuator.PriorityMask = status
	s.actMu.Unlock()
}

// FaultDetected reports the latched fault comparison result.
func (s *State) FaultDetected() bool {
	s.actMu.Lock()
	defer s.actMu.Unlock()
	return s.actuator.Fault
}

// --- System status ---

// SystemState returns the current arbitration state.
func (s *State) SystemState() SystemState { return SystemState(s.state.Load()) }

// FailsafeActive reports the sticky fail-safe flag.
func (s *State) FailsafeActive() bool { return s.failsafe.Load() }

// AlertActive reports the alert flag.
func (s *State) AlertActive() bool { return s.alert.Load() }

// OverrideActive reports whether manual override owns the outputs.
func (s *State) OverrideActive() bool { return s.override.Load() }

// SetOverrideActive flips ownership of the load outputs.
func (s *State) SetOverrideActive(on bool) { s.override.Store(on) }

// SetAlert moves between NORMAL and ALERT. No effect while fail-safe is
// latched; only reset leaves FAILSAFE. The state transition is a CAS
// loop so a fail-safe latch landing mid-call is never overwritten with
// NORMAL or ALERT.
func (s *State) SetAlert(on bool) {
	if s.failsafe.Load() {
		return
	}
	s.alert.Store(on)

	target := StateNormal
	if on {
		target = StateAlert
	}
	for {
		cur := s.state.Load()
		if cur == int32(StateFailsafe) {
			s.alert.Store(false)
			return
		}
		if s.state.CompareAndSwap(cur, int32(target)) {
			return
		}
	}
}

// LatchFailsafe latches the fail-safe state. Sticky: cleared only by
// the reset path. State is stored before the flag so observers that see
// failsafe_active also see FAILSAFE.
func (s *State) LatchFailsafe() {
	s.state.Store(int32(StateFailsafe))
	s.alert.Store(false)
	s.failsafe.Store(true)
}

// Epoch returns the reset epoch. Tasks compare it against a task-local
// copy to invalidate caches after a reset.
func (s *State) Epoch() uint64 { return s.epoch.Load() }

// TryResetAll restores every shared entity to its defaults using
// try-acquire on each domain lock independently. Flags always clear;
// a contended domain keeps its contents for this invocation and the
// caller learns about it from the return value. Runs in interrupt
// dispatch context, so it never waits.
func (s *State) TryResetAll(initial freq.Snapshot) (complete bool) {
	complete = true

	if s.cfgMu.TryLock() {
		s.snap = initial
		s.cfgMu.Unlock()
	} else {
		complete = false
	}

	if s.shedMu.TryLock() {
		s.decision = shed.Decision{}
		s.shedMu.Unlock()
	} else {
		complete = false
	}

	if s.actMu.TryLock() {
		s.actuator = Actuator{}
		s.actMu.Unlock()
	} else {
		complete = false
	}

	// Clear flag before state so no observer sees failsafe_active
	// alongside a non-FAILSAFE state.
	s.failsafe.Store(false)
	s.alert.Store(false)
	s.override.Store(false)
	s.state.Store(int32(StateNormal))
	s.epoch.Add(1)

	return complete
}
