package shed

import (
	"testing"

	"github.com/deskl0/freqrelay/internal/freq"
)

func snap(current, roc float64) freq.Snapshot {
	s := freq.Snapshot{
		Current:    current,
		RoC:        roc,
		LowerLimit: 48.5,
		UpperLimit: 51.5,
		MaxRoC:     60.0,
	}
	abs := roc
	if abs < 0 {
		abs = -abs
	}
	s.Stable = current >= s.LowerLimit && current <= s.UpperLimit && abs < s.MaxRoC
	return s
}

// TestDecideTiers walks the severity ladder.
func TestDecideTiers(t *testing.T) {
	cases := []struct {
		name    string
		current float64
		roc     float64
		want    Bitmap
	}{
		{"stable nominal", 50.0, 0, 0},
		{"moderate under-frequency", 47.0, -10, TierCritical | TierHigh},     // deviation 1.5
		{"mild under-frequency", 48.0, -10, TierCritical | TierHigh | TierMedium}, // deviation 0.5
		{"severe under-frequency", 46.0, -10, TierCritical},                  // deviation 2.5
		{"over-frequency", 52.0, 10, AllTiers},
		{"fast roc in band", 50.0, 70, 0}, // no deviation tier to keep
		{"fast roc under-frequency", 47.0, -70, TierCritical | TierHigh},
		{"fast roc severe", 46.0, -70, TierCritical},
		{"fast roc over-frequency", 52.0, 70, TierCritical | TierHigh},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(snap(tc.current, tc.roc), false)
			if got != tc.want {
				t.Errorf("Decide(%.1f Hz, %.0f Hz/s) = %#04x, want %#04x",
					tc.current, tc.roc, uint16(got), uint16(tc.want))
			}
		})
	}
}

// TestDecideScenarioA: 47.0 Hz against a 48.5 Hz floor at -10 Hz/s is a
// 1.5 Hz deviation, shedding down to critical + high.
func TestDecideScenarioA(t *testing.T) {
	got := Decide(snap(47.0, -10), false)
	want := TierCritical | TierHigh // bit0 | bits1-2
	if got != want {
		t.Errorf("Expected %#04x, got %#04x", uint16(want), uint16(got))
	}
}

// TestDecideScenarioB: same excursion with |roc| > 60 intersects the
// tier with {critical, high}; unchanged here since it already is.
func TestDecideScenarioB(t *testing.T) {
	got := Decide(snap(47.0, -70), false)
	want := TierCritical | TierHigh
	if got != want {
		t.Errorf("Expected %#04x, got %#04x", uint16(want), uint16(got))
	}
}

// TestDecideScenarioC: deviation 2.5 selects critical only; intersecting
// with {critical, high} leaves bit 0 alone.
func TestDecideScenarioC(t *testing.T) {
	got := Decide(snap(46.0, -70), false)
	if got != TierCritical {
		t.Errorf("Expected %#04x, got %#04x", uint16(TierCritical), uint16(got))
	}
}

// TestDecideScenarioD: fail-safe overrides every snapshot with exactly
// the critical bit.
func TestDecideScenarioD(t *testing.T) {
	inputs := []freq.Snapshot{
		snap(47.0, -10),
		snap(46.0, -70),
		snap(52.0, 10),
		snap(50.0, 0), // even a stable grid
	}
	for _, in := range inputs {
		if got := Decide(in, true); got != TierCritical {
			t.Errorf("Fail-safe at %.1f Hz: expected %#04x, got %#04x",
				in.Current, uint16(TierCritical), uint16(got))
		}
	}
}

// TestDecidePure verifies determinism: identical inputs, identical
// outputs, across repeated invocations.
func TestDecidePure(t *testing.T) {
	inputs := []struct {
		s        freq.Snapshot
		failsafe bool
	}{
		{snap(50.0, 0), false},
		{snap(47.0, -10), false},
		{snap(46.0, -70), false},
		{snap(52.0, 10), false},
		{snap(47.0, -10), true},
	}

	for _, in := range inputs {
		first := Decide(in.s, in.failsafe)
		for i := 0; i < 100; i++ {
			if got := Decide(in.s, in.failsafe); got != first {
				t.Fatalf("Decide not deterministic at %.1f Hz: %#04x then %#04x",
					in.s.Current, uint16(first), uint16(got))
			}
		}
	}
}

// TestDecideCriticalNeverAboveCriticalOnly verifies bit 0 survives every
// non-empty tier selection.
func TestDecideCriticalNeverAboveCriticalOnly(t *testing.T) {
	for hz := 44.0; hz <= 56.0; hz += 0.25 {
		for _, roc := range []float64{-80, -30, 0, 30, 80} {
			got := Decide(snap(hz, roc), false)
			if got != 0 && got&TierCritical == 0 {
				t.Errorf("Tier %#04x at %.2f Hz sheds the critical load", uint16(got), hz)
			}
		}
	}
}
