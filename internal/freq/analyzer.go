package freq

import (
	"log/slog"
	"time"

	"github.com/deskl0/freqrelay/internal/freqbus"
)

// SnapshotSink receives the analyzer's published snapshots. The sink
// must store an owned copy under its own lock.
type SnapshotSink interface {
	PublishSnapshot(Snapshot)
}

// Analyzer consumes queued frequency samples each period, computes
// rate-of-change and stability, and publishes the resulting snapshot.
//
// The snapshot is published two ways: into sink (the shared control
// state, copy-under-lock) and into out (a latest-value holder that any
// number of tasks peek without draining). When no sample arrived this
// period the previous snapshot is retained unchanged; bounded staleness
// is by design, not an error.
type Analyzer struct {
	in       *freqbus.Queue[Sample]
	out      *freqbus.Holder[Snapshot]
	sink     SnapshotSink
	periodMS float64

	// snap is task-local; only Tick mutates it.
	snap Snapshot
}

// NewAnalyzer creates an analyzer. period is the task period used to
// scale the frequency first-difference into Hz/s. The initial snapshot
// holds the nominal frequency so downstream tasks never observe a zero
// reading before the first sample.
func NewAnalyzer(in *freqbus.Queue[Sample], out *freqbus.Holder[Snapshot], sink SnapshotSink, period time.Duration, nominalHz, lower, upper, maxRoC float64) *Analyzer {
	periodMS := float64(period.Milliseconds())
	if periodMS <= 0 {
		periodMS = 1
	}
	a := &Analyzer{
		in:       in,
		out:      out,
		sink:     sink,
		periodMS: periodMS,
		snap: Snapshot{
			Current:    nominalHz,
			Previous:   nominalHz,
			LowerLimit: lower,
			UpperLimit: upper,
			MaxRoC:     maxRoC,
			Stable:     stable(nominalHz, lower, upper, 0, maxRoC),
			At:         time.Now(),
		},
	}
	a.publish()
	return a
}

// Tick runs one analyzer period.
func (a *Analyzer) Tick() {
	sample, ok := a.in.TryPop()
	if !ok {
		// Stale-tolerant: keep the previous snapshot.
		return
	}

	a.snap.Previous = a.snap.Current
	a.snap.Current = sample.Hz
	a.snap.RoC = (a.snap.Current - a.snap.Previous) * (1000.0 / a.periodMS)
	a.snap.Stable = stable(a.snap.Current, a.snap.LowerLimit, a.snap.UpperLimit, a.snap.RoC, a.snap.MaxRoC)
	a.snap.At = sample.At

	if !a.snap.Stable {
		slog.Debug("freq: unstable reading",
			"hz", a.snap.Current,
			"roc", a.snap.RoC,
		)
	}

	a.publish()
}

// Snapshot returns the analyzer's current snapshot (an owned copy).
func (a *Analyzer) Snapshot() Snapshot { return a.snap }

func (a *Analyzer) publish() {
	a.sink.PublishSnapshot(a.snap)
	if err := a.out.Set(a.snap); err != nil {
		slog.Warn("freq: snapshot holder closed", "error", err)
	}
}
