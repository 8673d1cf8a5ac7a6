package gtfs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jamespfennell/gtfs"

	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/routes"
	"controlroom.busops.org/internal/store"
	"controlroom.busops.org/internal/utils"
)

// ErrRealtimeDisabled is returned by Start when no vehicle positions URL is configured.
var ErrRealtimeDisabled = errors.New("gtfs-rt vehicle positions URL not configured")

// BridgeStatus reports the outcome of the most recent poll.
type BridgeStatus struct {
	Source     string    `json:"source"`
	LastPoll   time.Time `json:"lastPoll"`
	Vehicles   int       `json:"vehicles"`
	Skipped    int       `json:"skipped"`
	LastError  string    `json:"lastError,omitempty"`
	PollsTotal int       `json:"pollsTotal"`
}

// Bridge polls a GTFS-RT vehicle positions feed and patches each vehicle into the
// live-telemetry collection, so the control room can consume an external fleet.
type Bridge struct {
	config     Config
	store      store.Store
	table      *routes.Table
	logger     *slog.Logger
	now        func() time.Time
	directions *DirectionCalculator

	statusMutex sync.RWMutex
	status      BridgeStatus

	shutdownChan chan struct{}
	wg           sync.WaitGroup
	startOnce    sync.Once
	shutdownOnce sync.Once
}

// NewBridge creates a bridge. table may be nil; when set, vehicles on known routes get
// the route's name, depot and capacity.
func NewBridge(config Config, s store.Store, table *routes.Table, logger *slog.Logger) *Bridge {
	config = config.withDefaults()
	return &Bridge{
		config:       config,
		store:        s,
		table:        table,
		logger:       logging.Component(logger, "gtfs_realtime"),
		now:          time.Now,
		directions:   NewDirectionCalculator(),
		status:       BridgeStatus{Source: config.VehiclePositionsURL},
		shutdownChan: make(chan struct{}),
	}
}

// Start runs one poll and then keeps polling every PollInterval until Shutdown.
func (b *Bridge) Start() error {
	if !b.config.realTimeDataEnabled() {
		return ErrRealtimeDisabled
	}
	b.startOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.config.FetchTimeout)
		if err := b.Poll(ctx); err != nil {
			logging.LogError(b.logger, "Initial GTFS-RT vehicle positions poll failed", err,
				slog.String("url", b.config.VehiclePositionsURL))
		}
		cancel()

		b.wg.Add(1)
		go b.pollPeriodically()
	})
	return nil
}

func (b *Bridge) pollPeriodically() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), b.config.FetchTimeout)
			ctx = logging.WithLogger(ctx, b.logger)

			logging.LogOperation(b.logger, "updating_gtfs_realtime_data")
			if err := b.Poll(ctx); err != nil {
				logging.LogError(b.logger, "Error loading GTFS-RT vehicle positions data", err,
					slog.String("url", b.config.VehiclePositionsURL))
			}
			cancel()
		case <-b.shutdownChan:
			logging.LogOperation(b.logger, "shutting_down_realtime_updates")
			return
		}
	}
}

// Shutdown stops polling and waits for an in-flight poll to finish. It is safe to call
// more than once.
func (b *Bridge) Shutdown() {
	b.shutdownOnce.Do(func() {
		close(b.shutdownChan)
		b.wg.Wait()
	})
}

// Poll fetches the feed once and applies it. A failed fetch leaves live-telemetry as it
// was and is recorded in Status.
func (b *Bridge) Poll(ctx context.Context) error {
	realtime, err := loadRealtimeData(ctx, b.config.VehiclePositionsURL, b.config.headers())
	if err != nil {
		b.record(0, 0, err)
		return err
	}
	applied, skipped, err := b.Apply(ctx, realtime)
	b.record(applied, skipped, err)
	return err
}

// Apply patches every usable vehicle of a parsed feed into live-telemetry with a single
// Update, so fields the feed does not carry are kept.
func (b *Bridge) Apply(ctx context.Context, realtime *gtfs.Realtime) (applied, skipped int, err error) {
	now := b.now()
	patch := make(map[string]any)
	seen := make(map[string]bool, len(realtime.Vehicles))

	for _, vehicle := range realtime.Vehicles {
		fields, ok := VehicleFields(vehicle, b.table, now, b.directions)
		if !ok {
			skipped++
			continue
		}
		id := fields["id"].(string)
		if err := utils.ValidateID(id); err != nil {
			b.logger.Warn("skipping feed vehicle with unusable id",
				slog.String("vehicle_id", id), slog.String("reason", err.Error()))
			skipped++
			continue
		}
		for field, value := range fields {
			patch[store.Join(id, field)] = value
		}
		seen[id] = true
		applied++
	}
	b.directions.Forget(seen)

	if skipped > 0 {
		b.logger.Warn("skipped feed vehicles without a usable id or position", slog.Int("count", skipped))
	}
	if len(patch) == 0 {
		return 0, skipped, nil
	}
	if err := b.store.Update(ctx, store.LiveTelemetry, patch); err != nil {
		logging.LogWriteFailure(b.logger, store.LiveTelemetry, err)
		return 0, skipped, err
	}
	logging.LogOperation(b.logger, "gtfs_realtime_applied",
		slog.Int("vehicles", applied),
		slog.Int("skipped", skipped))
	return applied, skipped, nil
}

func (b *Bridge) record(applied, skipped int, err error) {
	b.statusMutex.Lock()
	defer b.statusMutex.Unlock()
	b.status.LastPoll = b.now()
	b.status.PollsTotal++
	if err != nil {
		b.status.LastError = err.Error()
		return
	}
	b.status.LastError = ""
	b.status.Vehicles = applied
	b.status.Skipped = skipped
}

func (b *Bridge) Status() BridgeStatus {
	b.statusMutex.RLock()
	defer b.statusMutex.RUnlock()
	return b.status
}
