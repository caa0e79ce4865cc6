package shed

import "github.com/deskl0/freqrelay/internal/freq"

// Severity thresholds for under-frequency deviation, in Hz below the
// lower limit.
const (
	deviationSevere   = 2.0
	deviationModerate = 1.0
)

// Decide maps a frequency snapshot and the fail-safe flag to a requested
// load bitmap. Pure and deterministic: identical inputs always produce
// identical bitmaps.
//
// The baseline is zero (all loads shed) and a stable grid returns the
// baseline unmodified; deviations then select a severity tier:
//
//	under-frequency, deviation > 2.0 Hz  → critical only
//	under-frequency, 1.0 < d ≤ 2.0 Hz    → critical + high
//	under-frequency, d ≤ 1.0 Hz          → critical + high + medium
//	over-frequency                       → all tiers
//
// A rate-of-change beyond tolerance intersects the tier with
// {critical, high} regardless of the deviation. Fail-safe has absolute
// precedence: when active the result is exactly the critical bit, no
// matter what the snapshot says.
func Decide(snap freq.Snapshot, failsafe bool) Bitmap {
	if failsafe {
		return TierCritical
	}

	if snap.Stable {
		return 0
	}

	var tier Bitmap
	switch {
	case snap.Current < snap.LowerLimit:
		d := snap.LowerLimit - snap.Current
		switch {
		case d > deviationSevere:
			tier = TierCritical
		case d > deviationModerate:
			tier = TierCritical | TierHigh
		default:
			tier = TierCritical | TierHigh | TierMedium
		}
	case snap.Current > snap.UpperLimit:
		tier = AllTiers
	}

	// Fast-RoC events force tighter shedding.
	roc := snap.RoC
	if roc < 0 {
		roc = -roc
	}
	if roc > snap.MaxRoC {
		tier &= TierCritical | TierHigh
	}

	return tier
}
