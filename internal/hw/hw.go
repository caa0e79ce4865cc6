// Package hw defines the hardware peripheral contract the relay core
// programs against, plus a software simulator implementing it.
//
// The core never touches registers: it reads a frequency counter, writes
// load and indicator outputs, reads the override input word, and
// registers edge-interrupt handlers. Everything behind that surface is a
// collaborator.
package hw

// Line identifies an edge-triggered interrupt source.
type Line int

const (
	// LineFreqReady fires when the frequency counter latches a new
	// zero-crossing interval.
	LineFreqReady Line = iota
	// LineShedTrigger fires on the manual shed push-button.
	LineShedTrigger
	// LineFailsafe fires on the dedicated emergency trigger.
	LineFailsafe
	// LineReset fires on the reset signal.
	LineReset
	// LineButton fires on the override push-button edge.
	LineButton
)

func (l Line) String() string {
	switch l {
	case LineFreqReady:
		return "freq-ready"
	case LineShedTrigger:
		return "shed-trigger"
	case LineFailsafe:
		return "failsafe"
	case LineReset:
		return "reset"
	case LineButton:
		return "button"
	default:
		return "unknown"
	}
}

// Handler is an interrupt handler. It runs on the board's dispatch
// context, preempting nothing in Go terms but standing in for true
// interrupt context: it must complete in bounded time, use only
// try-acquire locking and non-blocking sends, and never retry.
type Handler func()

// Board is the full peripheral surface.
//
// Implementations must guarantee:
//   - ReadCounter/ReadActuators/ReadOverrideInput never block
//   - WriteLoads/WriteIndicator never block
//   - OnInterrupt handlers are dispatched serially per line
type Board interface {
	// ReadCounter returns the latched frequency-measurement counter:
	// timer ticks between the last two zero crossings.
	ReadCounter() uint32

	// WriteLoads drives the load relay outputs.
	WriteLoads(bitmap uint16)

	// ReadActuators returns the observed actuator feedback word.
	ReadActuators() uint16

	// WriteIndicator drives the status indicator output.
	WriteIndicator(pattern uint8)

	// ReadOverrideInput returns the manual control input word.
	ReadOverrideInput() uint16

	// OnInterrupt registers a handler for an interrupt line. Replaces
	// any previous handler for that line.
	OnInterrupt(line Line, h Handler)
}
