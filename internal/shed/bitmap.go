// Package shed implements tiered load-shedding: the pure decision engine
// that maps frequency snapshots to requested load bitmaps, and the
// actuator supervisor task that applies decisions and detects faults.
package shed

// Bitmap is a 16-bit load bitmap. Bit 0 is the critical load and is
// never shed in any tier above critical-only.
type Bitmap uint16

// Tier bit ranges. Loads shed together as a priority class.
const (
	TierCritical Bitmap = 0x0001 // bit 0
	TierHigh     Bitmap = 0x0006 // bits 1-2
	TierMedium   Bitmap = 0x0018 // bits 3-4
	TierLow      Bitmap = 0x0060 // bits 5-6

	// AllTiers is every load the relay manages.
	AllTiers = TierCritical | TierHigh | TierMedium | TierLow
)

// Decision is the shared load-shedding decision, protected by the Shed
// lock domain in the control state.
type Decision struct {
	// Load is the bitmap currently applied to the load outputs.
	Load Bitmap
	// Requested is the bitmap the decision engine asked for.
	Requested Bitmap
	// PriorityMask records which tier bits the last decision selected.
	PriorityMask Bitmap
}
