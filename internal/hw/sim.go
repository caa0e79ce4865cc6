package hw

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// SimConfig configures the simulated board.
type SimConfig struct {
	// SamplingHz is the frequency-counter clock rate.
	SamplingHz float64
	// NominalHz is the grid frequency the waveform centers on.
	NominalHz float64
	// WobbleHz is the amplitude of the background sine wobble.
	WobbleHz float64
	// WobblePeriod is the period of the background wobble.
	WobblePeriod time.Duration
	// SampleInterval is how often the counter latches a new reading and
	// the freq-ready line fires.
	SampleInterval time.Duration
}

// DefaultSimConfig returns a gently wobbling 50 Hz grid sampled ten
// times a second by a 16 kHz counter clock.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		SamplingHz:     16000,
		NominalHz:      50.0,
		WobbleHz:       0.2,
		WobblePeriod:   20 * time.Second,
		SampleInterval: 100 * time.Millisecond,
	}
}

// Simulator is a software stand-in for the relay board. It synthesizes a
// grid-frequency waveform, latches counter readings, fires the
// freq-ready interrupt line, and mirrors load writes back on the
// actuator feedback word (optionally XORed with an injected fault mask).
type Simulator struct {
	cfg SimConfig

	mu         sync.RWMutex
	counter    uint32
	loads      uint16
	indicator  uint8
	override   uint16
	faultMask  uint16
	forcedHz   float64 // 0 = follow the waveform
	handlers   map[Line]Handler
	isRunning  bool
	startTime  time.Time
	samplesOut uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSimulator creates a stopped simulator.
func NewSimulator(cfg SimConfig) *Simulator {
	return &Simulator{
		cfg:      cfg,
		handlers: make(map[Line]Handler),
		stopCh:   make(chan struct{}),
	}
}

// Start begins waveform generation and freq-ready dispatch.
func (s *Simulator) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("hw: simulator already running")
	}
	s.isRunning = true
	s.startTime = time.Now()
	s.mu.Unlock()

	slog.Info("hw: simulator starting",
		"nominal_hz", s.cfg.NominalHz,
		"sampling_hz", s.cfg.SamplingHz,
		"sample_interval", s.cfg.SampleInterval,
	)

	s.wg.Add(1)
	go s.generate()
	return nil
}

// Stop halts waveform generation. Idempotent.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	s.mu.RLock()
	emitted := s.samplesOut
	s.mu.RUnlock()

	slog.Info("hw: simulator stopped",
		"samples_emitted", emitted,
		"uptime", time.Since(s.startTime).Round(time.Second),
	)
}

func (s *Simulator) generate() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.latchSample()
			s.dispatch(LineFreqReady)
		}
	}
}

func (s *Simulator) latchSample() {
	s.mu.Lock()
	hz := s.forcedHz
	if hz == 0 {
		t := time.Since(s.startTime).Seconds()
		hz = s.cfg.NominalHz +
			s.cfg.WobbleHz*math.Sin(2*math.Pi*t/s.cfg.WobblePeriod.Seconds())
	}
	s.counter = uint32(s.cfg.SamplingHz / hz)
	s.samplesOut++
	s.mu.Unlock()
}

func (s *Simulator) dispatch(line Line) {
	s.mu.RLock()
	h := s.handlers[line]
	s.mu.RUnlock()

	if h != nil {
		h()
	}
}

// ReadCounter implements Board.
func (s *Simulator) ReadCounter() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counter
}

// WriteLoads implements Board.
func (s *Simulator) WriteLoads(bitmap uint16) {
	s.mu.Lock()
	s.loads = bitmap
	s.mu.Unlock()
}

// ReadActuators implements Board. Feedback mirrors the written loads
// XORed with the injected fault mask.
func (s *Simulator) ReadActuators() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads ^ s.faultMask
}

// WriteIndicator implements Board.
func (s *Simulator) WriteIndicator(pattern uint8) {
	s.mu.Lock()
	s.indicator = pattern
	s.mu.Unlock()
}

// ReadOverrideInput implements Board.
func (s *Simulator) ReadOverrideInput() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.override
}

// OnInterrupt implements Board.
func (s *Simulator) OnInterrupt(line Line, h Handler) {
	s.mu.Lock()
	s.handlers[line] = h
	s.mu.Unlock()
}

// --- Test and operator controls ---

// ForceFrequency pins the waveform to hz. Zero resumes the wobble.
func (s *Simulator) ForceFrequency(hz float64) {
	s.mu.Lock()
	s.forcedHz = hz
	s.mu.Unlock()
}

// SetOverrideInput sets the manual control input word.
func (s *Simulator) SetOverrideInput(word uint16) {
	s.mu.Lock()
	s.override = word
	s.mu.Unlock()
}

// InjectActuatorFault makes feedback disagree with the written loads on
// the given bits. Zero clears the fault.
func (s *Simulator) InjectActuatorFault(mask uint16) {
	s.mu.Lock()
	s.faultMask = mask
	s.mu.Unlock()
}

// Trigger fires an interrupt line once, synchronously on the caller's
// goroutine, which stands in for interrupt dispatch context.
func (s *Simulator) Trigger(line Line) {
	if line == LineFreqReady {
		s.latchSample()
	}
	s.dispatch(line)
}

// Loads returns the last written load word.
func (s *Simulator) Loads() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads
}

// Indicator returns the last written indicator pattern.
func (s *Simulator) Indicator() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indicator
}
