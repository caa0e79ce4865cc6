package freq

import (
	"time"

	"github.com/deskl0/freqrelay/internal/freqbus"
)

// CounterReader reads the raw frequency-measurement counter. The counter
// holds the number of timer ticks between two zero crossings, so
// frequency = sampling clock / counter.
type CounterReader interface {
	ReadCounter() uint32
}

// Sampler converts raw counter readings into frequency samples and hands
// them to the Analyzer over a bounded queue.
//
// HandleFreqReady runs in interrupt dispatch context: it performs one
// read, one division and one non-blocking push, nothing else. If the
// queue is full the sample is dropped without retry so interrupt latency
// stays bounded.
type Sampler struct {
	samplingHz float64
	counter    CounterReader
	out        *freqbus.Queue[Sample]
	now        func() time.Time
}

// NewSampler creates a sampler reading from counter and pushing into out.
func NewSampler(samplingHz float64, counter CounterReader, out *freqbus.Queue[Sample]) *Sampler {
	return &Sampler{
		samplingHz: samplingHz,
		counter:    counter,
		out:        out,
		now:        time.Now,
	}
}

// HandleFreqReady is the frequency-ready interrupt handler.
func (s *Sampler) HandleFreqReady() {
	raw := s.counter.ReadCounter()
	if raw == 0 {
		// Counter not armed yet; nothing to sample.
		return
	}

	s.out.TryPush(Sample{
		Hz: s.samplingHz / float64(raw),
		At: s.now(),
	})
}

// Stats returns sent/dropped counters for the sample queue.
func (s *Sampler) Stats() freqbus.Stats { return s.out.Stats() }
