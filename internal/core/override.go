package core

import (
	"log/slog"
	"sync/atomic"

	"github.com/deskl0/freqrelay/internal/shed"
)

// OverrideBit is the designated bit in the manual input word that
// activates override mode. The rest of the word is the load pattern.
const OverrideBit uint16 = 0x8000

// OverridePort is the slice of the board the arbiter touches.
type OverridePort interface {
	ReadOverrideInput() uint16
	WriteLoads(bitmap uint16)
}

// Arbiter is the manual override task, lowest priority. It polls the
// control input word and acts only on change: with the override bit set
// it takes ownership of the load outputs and writes the input word
// straight through, bypassing the decision engine and the supervisor;
// with the bit clear it hands control back on the next supervisor
// period.
//
// Fail-safe outranks manual control: while the latch is set the input
// word is ignored and any held ownership is revoked, so the outputs
// stay at the critical-only floor until an explicit reset.
type Arbiter struct {
	state *State
	port  OverridePort

	lastInput uint16
	seeded    bool
	lastEpoch uint64
	kicked    atomic.Bool
}

// NewArbiter creates an override arbiter.
func NewArbiter(state *State, port OverridePort) *Arbiter {
	return &Arbiter{state: state, port: port}
}

// Kick forces the next Tick to treat the input as changed. Wired to the
// override button's interrupt edge; safe from interrupt dispatch
// context.
func (a *Arbiter) Kick() { a.kicked.Store(true) }

// Tick runs one arbiter period.
func (a *Arbiter) Tick() {
	if epoch := a.state.Epoch(); epoch != a.lastEpoch {
		a.lastEpoch = epoch
		a.seeded = false
	}

	if a.state.FailsafeActive() {
		if a.state.OverrideActive() {
			slog.Warn("core: manual override revoked, fail-safe latched")
			a.state.SetOverrideActive(false)
		}
		return
	}

	input := a.port.ReadOverrideInput()
	if a.seeded && input == a.lastInput && !a.kicked.Swap(false) {
		return
	}
	a.lastInput = input
	a.seeded = true

	if input&OverrideBit != 0 {
		if !a.state.OverrideActive() {
			slog.Warn("core: manual override engaged", "input", input)
		}
		a.state.SetOverrideActive(true)
		a.state.SetLoadDirect(shed.Bitmap(input))
		a.port.WriteLoads(input)
		return
	}

	if a.state.OverrideActive() {
		slog.Info("core: manual override released")
	}
	a.state.SetOverrideActive(false)
}
