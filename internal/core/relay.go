package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/deskl0/freqrelay/internal/freq"
	"github.com/deskl0/freqrelay/internal/freqbus"
	"github.com/deskl0/freqrelay/internal/hw"
	"github.com/deskl0/freqrelay/internal/shed"
	"github.com/deskl0/freqrelay/internal/telemetry"
)

// Config is the relay's resolved runtime configuration.
type Config struct {
	InstanceID string

	// Grid tolerances.
	NominalHz  float64
	LowerHz    float64
	UpperHz    float64
	MaxRoC     float64
	SamplingHz float64

	// Task periods. Priority order, highest first: monitor, analyzer,
	// supervisor, telemetry, arbiter.
	AnalyzerPeriod   time.Duration
	SupervisorPeriod time.Duration
	MonitorPeriod    time.Duration
	ArbiterPeriod    time.Duration
	TelemetryPeriod  time.Duration

	HysteresisThreshold int
	SampleQueueDepth    int
}

// Relay owns the control loop: shared state, the four periodic tasks,
// the interrupt paths and the telemetry task, all bound to a hardware
// board.
//
// Goroutine topology after Start: one goroutine per periodic task plus
// whatever dispatch context the board uses for interrupt lines. Tasks
// communicate only through the shared state's lock domains and the
// snapshot holder; no task holds a lock across a blocking point.
type Relay struct {
	cfg     Config
	board   hw.Board
	emitter *telemetry.Emitter // nil when telemetry is disabled

	state   *State
	samples *freqbus.Queue[freq.Sample]
	snaps   *freqbus.Holder[freq.Snapshot]

	sampler    *freq.Sampler
	analyzer   *freq.Analyzer
	supervisor *shed.Supervisor
	monitor    *Monitor
	arbiter    *Arbiter
	history    *telemetry.History

	mu        sync.Mutex
	isRunning bool
	started   time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	degradedLogged bool
	telemetryTicks uint64
}

// healthEvery is how many telemetry periods pass between health reports.
const healthEvery = 10

// NewRelay builds the relay. Construction failure is the system's one
// unrecoverable condition; callers log and halt.
func NewRelay(cfg Config, board hw.Board, emitter *telemetry.Emitter) (*Relay, error) {
	if board == nil {
		return nil, fmt.Errorf("core: nil board")
	}
	if cfg.LowerHz >= cfg.UpperHz {
		return nil, fmt.Errorf("core: lower limit %.2f must be below upper limit %.2f", cfg.LowerHz, cfg.UpperHz)
	}
	if cfg.SampleQueueDepth <= 0 {
		cfg.SampleQueueDepth = 10
	}

	r := &Relay{
		cfg:     cfg,
		board:   board,
		emitter: emitter,
		history: telemetry.NewHistory(),
	}

	samples, err := freqbus.NewQueue[freq.Sample](cfg.SampleQueueDepth)
	if err != nil {
		return nil, fmt.Errorf("core: sample queue: %w", err)
	}
	r.samples = samples
	r.snaps = freqbus.NewHolder[freq.Snapshot]()
	r.state = NewState(r.initialSnapshot())

	r.sampler = freq.NewSampler(cfg.SamplingHz, board, samples)
	r.analyzer = freq.NewAnalyzer(samples, r.snaps, r.state, cfg.AnalyzerPeriod,
		cfg.NominalHz, cfg.LowerHz, cfg.UpperHz, cfg.MaxRoC)
	r.supervisor = shed.NewSupervisor(r.state, r.snaps, board)
	r.monitor = NewMonitor(r.state, r.snaps, board, cfg.HysteresisThreshold)
	r.arbiter = NewArbiter(r.state, board)

	return r, nil
}

// State exposes the shared control state for inspection.
func (r *Relay) State() *State { return r.state }

// History exposes the rolling telemetry history.
func (r *Relay) History() *telemetry.History { return r.history }

// bindInterrupts registers the relay's handlers on the board's
// interrupt lines.
func (r *Relay) bindInterrupts() {
	r.board.OnInterrupt(hw.LineFreqReady, r.sampler.HandleFreqReady)
	r.board.OnInterrupt(hw.LineFailsafe, r.handleEmergency)
	r.board.OnInterrupt(hw.LineShedTrigger, r.handleShedTrigger)
	r.board.OnInterrupt(hw.LineReset, r.handleReset)
	r.board.OnInterrupt(hw.LineButton, r.arbiter.Kick)

	if r.emitter != nil {
		r.emitter.OnReset = r.Reset
	}
}

// Start registers the interrupt handlers and launches the periodic
// tasks on absolute wake offsets from a common base.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return fmt.Errorf("core: relay already running")
	}
	r.isRunning = true
	r.started = time.Now()
	r.mu.Unlock()

	ctx, r.cancel = context.WithCancel(ctx)

	r.bindInterrupts()

	slog.Info("core: relay starting",
		"instance_id", r.cfg.InstanceID,
		"band", fmt.Sprintf("%.2f-%.2f Hz", r.cfg.LowerHz, r.cfg.UpperHz),
		"max_roc", r.cfg.MaxRoC,
		"hysteresis", r.cfg.HysteresisThreshold,
	)

	base := r.started

	// Offsets stagger the tasks so the monitor, the highest-priority
	// task, wakes first within any shared deadline.
	tasks := []struct {
		name   string
		period time.Duration
		offset time.Duration
		fn     func()
	}{
		{"monitor", r.cfg.MonitorPeriod, 0, r.monitor.Tick},
		{"analyzer", r.cfg.AnalyzerPeriod, 1 * time.Millisecond, r.analyzer.Tick},
		{"supervisor", r.cfg.SupervisorPeriod, 2 * time.Millisecond, r.supervisor.Tick},
		{"telemetry", r.cfg.TelemetryPeriod, 3 * time.Millisecond, r.publishTelemetry},
		{"arbiter", r.cfg.ArbiterPeriod, 4 * time.Millisecond, r.arbiter.Tick},
	}

	for _, t := range tasks {
		t := t
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			runPeriodic(ctx, t.name, base, t.period, t.offset, t.fn)
		}()
	}

	return nil
}

// Stop cancels the periodic tasks and waits for them. Idempotent.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	r.snaps.Close()

	st := r.samples.Stats()
	slog.Info("core: relay stopped",
		"samples_consumed", st.Sent,
		"samples_dropped", st.Dropped,
		"uptime", time.Since(r.started).Round(time.Second),
	)
}

// Reset drives the reset interrupt path from software (operator or
// control-plane action).
func (r *Relay) Reset() { r.handleReset() }

// publishTelemetry is the telemetry task body: append the latest
// snapshot to the rolling history and, when a broker is reachable,
// publish it. Peripheral unavailability degrades gracefully.
func (r *Relay) publishTelemetry() {
	snap, ok := r.snaps.Peek()
	if !ok {
		return
	}
	dec := r.state.Decision()
	act := r.state.ActuatorState()

	entry := telemetry.Entry{
		InstanceID: r.cfg.InstanceID,
		CurrentHz:  snap.Current,
		RoC:        snap.RoC,
		State:      r.state.SystemState().String(),
		Loads:      uint16(dec.Load),
		Fault:      act.Fault,
		At:         time.Now(),
	}

	r.history.Append(entry)

	if r.emitter == nil {
		return
	}
	if err := r.emitter.Publish(entry); err != nil {
		if !r.degradedLogged {
			slog.Warn("core: telemetry unavailable, continuing without", "error", err)
			r.degradedLogged = true
		}
		return
	}
	r.degradedLogged = false

	r.telemetryTicks++
	if r.telemetryTicks%healthEvery == 0 {
		if err := r.emitter.PublishHealth(r.Health()); err != nil {
			slog.Debug("core: health publish failed", "error", err)
		}
	}
}
