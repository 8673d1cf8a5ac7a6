package sim

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/routes"
	"controlroom.busops.org/internal/store"
	"controlroom.busops.org/internal/telemetry"
)

const (
	MinSpeedMultiplier = 0.1
	MaxSpeedMultiplier = 10.0
)

var ErrUnknownVehicle = errors.New("unknown vehicle")

// RunnerConfig configures the tick loop.
type RunnerConfig struct {
	// TickInterval is both the wall-clock period at multiplier 1 and the simulated time
	// each tick advances.
	TickInterval    time.Duration
	SpeedMultiplier float64
	Tick            TickConfig
}

// Status is a snapshot of the runner for the API.
type Status struct {
	Running         bool    `json:"running"`
	Vehicles        int     `json:"vehicles"`
	Ticks           uint64  `json:"ticks"`
	SpeedMultiplier float64 `json:"speedMultiplier"`
	TickIntervalMs  int64   `json:"tickIntervalMs"`
	StartedAt       int64   `json:"startedAt,omitempty"`
	LastTickAt      int64   `json:"lastTickAt,omitempty"`
	LastWriteError  string  `json:"lastWriteError,omitempty"`
}

// Runner owns the simulated fleet and writes it to live-telemetry on every tick. It is
// the single writer of that collection while running.
type Runner struct {
	store     store.Store
	table     *routes.Table
	generator *Generator
	random    RandomSource
	now       func() time.Time
	logger    *slog.Logger
	cfg       RunnerConfig

	mu           sync.Mutex
	vehicles     []telemetry.Vehicle
	running      bool
	stopChan     chan struct{}
	done         chan struct{}
	speedChanged chan struct{}
	ticks        uint64
	startedAt    time.Time
	lastTickAt   time.Time
	lastWriteErr error
}

func NewRunner(s store.Store, table *routes.Table, generator *Generator, rnd RandomSource, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 2 * time.Second
	}
	if cfg.Tick.BaseIncrementPerSecond <= 0 {
		cfg.Tick = DefaultTickConfig()
	}
	cfg.SpeedMultiplier = clampSpeed(cfg.SpeedMultiplier)
	now := generator.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		store:        s,
		table:        table,
		generator:    generator,
		random:       rnd,
		now:          now,
		logger:       logging.Component(logger, "simulator"),
		cfg:          cfg,
		speedChanged: make(chan struct{}, 1),
	}
}

func clampSpeed(m float64) float64 {
	if m <= 0 {
		return 1
	}
	return clamp(m, MinSpeedMultiplier, MaxSpeedMultiplier)
}

// Start generates the fleet on first use, writes it and begins ticking. Starting a
// running simulator does nothing.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	if len(r.vehicles) == 0 {
		r.vehicles = r.generator.Generate()
	}
	r.running = true
	r.startedAt = r.now()
	r.lastTickAt = r.startedAt
	r.stopChan = make(chan struct{})
	r.done = make(chan struct{})
	collection := telemetry.NewCollection(r.vehicles)
	stop, done := r.stopChan, r.done
	r.mu.Unlock()

	logging.LogOperation(r.logger, "simulation_started",
		slog.Int("vehicles", len(collection)),
		slog.Float64("speed_multiplier", r.SpeedMultiplier()))
	r.write(ctx, collection)

	go r.loop(stop, done)
	return nil
}

// Stop halts scheduling of further ticks. A write already in flight completes.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopChan)
	done := r.done
	r.mu.Unlock()

	<-done
	logging.LogOperation(r.logger, "simulation_stopped")
}

func (r *Runner) interval() time.Duration {
	return time.Duration(float64(r.cfg.TickInterval) / r.SpeedMultiplier())
}

func (r *Runner) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Step(context.Background())
		case <-r.speedChanged:
			ticker.Reset(r.interval())
		case <-stop:
			return
		}
	}
}

// Step advances the fleet by one tick and writes the whole collection.
func (r *Runner) Step(ctx context.Context) {
	r.mu.Lock()
	now := r.now()
	r.vehicles = Tick(r.vehicles, r.cfg.TickInterval, r.table, r.cfg.Tick, r.random, now)
	r.ticks++
	r.lastTickAt = now
	collection := telemetry.NewCollection(r.vehicles)
	r.mu.Unlock()

	r.write(ctx, collection)
}

func (r *Runner) write(ctx context.Context, collection telemetry.Collection) {
	err := r.store.Set(ctx, store.LiveTelemetry, collection)
	if err != nil {
		logging.LogWriteFailure(r.logger, store.LiveTelemetry, err)
	}
	r.mu.Lock()
	r.lastWriteErr = err
	r.mu.Unlock()
}

// SetSpeed changes the tick rate multiplier, clamped to [0.1, 10], and returns the value
// in effect.
func (r *Runner) SetSpeed(m float64) float64 {
	m = clampSpeed(m)
	r.mu.Lock()
	r.cfg.SpeedMultiplier = m
	r.mu.Unlock()

	select {
	case r.speedChanged <- struct{}{}:
	default:
	}
	return m
}

func (r *Runner) SpeedMultiplier() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.SpeedMultiplier
}

// SetEmergency flags or clears a vehicle emergency. The flag is kept on the simulated
// record so later ticks do not overwrite it, and is patched into the store right away.
func (r *Runner) SetEmergency(ctx context.Context, vehicleID string, emergency bool) error {
	r.mu.Lock()
	found := false
	for i := range r.vehicles {
		if r.vehicles[i].ID == vehicleID {
			r.vehicles[i].Emergency = emergency
			found = true
			break
		}
	}
	r.mu.Unlock()
	if !found {
		return ErrUnknownVehicle
	}

	path := store.Join(store.LiveTelemetry, vehicleID)
	if err := r.store.Update(ctx, path, map[string]any{"emergency": emergency}); err != nil {
		logging.LogWriteFailure(r.logger, path, err)
		return err
	}
	return nil
}

// Vehicles returns a copy of the current simulated fleet, generating it if needed.
func (r *Runner) Vehicles() []telemetry.Vehicle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.vehicles) == 0 {
		r.vehicles = r.generator.Generate()
	}
	return append([]telemetry.Vehicle(nil), r.vehicles...)
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		Running:         r.running,
		Vehicles:        len(r.vehicles),
		Ticks:           r.ticks,
		SpeedMultiplier: r.cfg.SpeedMultiplier,
		TickIntervalMs:  r.cfg.TickInterval.Milliseconds(),
	}
	if !r.startedAt.IsZero() {
		st.StartedAt = r.startedAt.UnixMilli()
		st.LastTickAt = r.lastTickAt.UnixMilli()
	}
	if r.lastWriteErr != nil {
		st.LastWriteError = r.lastWriteErr.Error()
	}
	return st
}
