package shed

import (
	"log/slog"

	"github.com/deskl0/freqrelay/internal/freq"
	"github.com/deskl0/freqrelay/internal/freqbus"
)

// Store is the supervisor's view of the shared control state. Reads
// return owned copies; writes happen under the corresponding lock domain
// inside the implementation.
type Store interface {
	Decision() Decision
	SetRequested(Bitmap)
	CommitLoad(Bitmap)
	SetActuator(status Bitmap, fault bool)
	FailsafeActive() bool
	OverrideActive() bool
	// Epoch changes when the reset path reinitializes the shared state;
	// the supervisor drops its write cache so the next tick rewrites
	// hardware unconditionally.
	Epoch() uint64
}

// LoadBank is the load-relay peripheral: the digital output driving the
// load contactors plus the actuator feedback line.
type LoadBank interface {
	WriteLoads(bitmap uint16)
	ReadActuators() uint16
}

// Supervisor applies shedding decisions to the load outputs each period
// and raises the fault flag when the observed actuator state disagrees
// with the request.
//
// While manual override is active the supervisor still evaluates the
// decision engine and records the requested bitmap, but takes no action
// on outputs; the override arbiter owns them. On the first period after
// release the bank still holds the operator's word, so the write cache
// is invalid and the outputs are rewritten unconditionally.
type Supervisor struct {
	store Store
	snaps *freqbus.Holder[freq.Snapshot]
	bank  LoadBank

	lastWritten Bitmap
	wroteOnce   bool
	lastFault   bool
	lastEpoch   uint64
	overridden  bool
}

// NewSupervisor creates an actuator supervisor.
func NewSupervisor(store Store, snaps *freqbus.Holder[freq.Snapshot], bank LoadBank) *Supervisor {
	return &Supervisor{store: store, snaps: snaps, bank: bank}
}

// Tick runs one supervisor period.
func (s *Supervisor) Tick() {
	if epoch := s.store.Epoch(); epoch != s.lastEpoch {
		s.lastEpoch = epoch
		s.wroteOnce = false
		s.lastFault = false
	}

	snap, ok := s.snaps.Peek()
	if !ok {
		return
	}

	dec := s.store.Decision()
	req := Decide(snap, s.store.FailsafeActive())
	if req != dec.Requested {
		s.store.SetRequested(req)
		slog.Debug("shed: requested bitmap changed",
			"from", dec.Requested,
			"to", req,
		)
	}

	if s.store.OverrideActive() {
		s.overridden = true
		return
	}
	if s.overridden {
		s.overridden = false
		s.wroteOnce = false
	}

	s.store.CommitLoad(req)

	// Write hardware only on change to avoid redundant bus traffic.
	if !s.wroteOnce || req != s.lastWritten {
		s.bank.WriteLoads(uint16(req))
		s.lastWritten = req
		s.wroteOnce = true
	}

	observed := Bitmap(s.bank.ReadActuators())
	fault := observed != req
	s.store.SetActuator(observed, fault)

	if fault && !s.lastFault {
		slog.Error("shed: actuator mismatch",
			"requested", req,
			"observed", observed,
		)
	}
	s.lastFault = fault
}
