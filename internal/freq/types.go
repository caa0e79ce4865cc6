package freq

import "time"

// Sample is a single grid-frequency reading in Hz, produced in interrupt
// dispatch context and consumed at most once by the Analyzer.
type Sample struct {
	Hz float64
	At time.Time
}

// Snapshot is the analyzer's published view of grid frequency. It is
// owned and mutated exclusively by the Analyzer; everyone else receives
// an owned copy.
type Snapshot struct {
	// Current and Previous are the two most recent readings in Hz.
	Current  float64
	Previous float64
	// RoC is the first difference of frequency over time, Hz/s.
	RoC float64
	// LowerLimit and UpperLimit bound the acceptable frequency band.
	LowerLimit float64
	UpperLimit float64
	// MaxRoC is the rate-of-change tolerance in Hz/s.
	MaxRoC float64
	// Stable reports whether Current is inside the band and |RoC| is
	// under tolerance.
	Stable bool
	// At is when the underlying sample was taken.
	At time.Time
}

// stable evaluates the stability invariant for the snapshot's values.
func stable(current, lower, upper, roc, maxRoC float64) bool {
	if current < lower || current > upper {
		return false
	}
	if roc < 0 {
		roc = -roc
	}
	return roc < maxRoC
}
