package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"controlroom.busops.org/internal/appconf"
	"controlroom.busops.org/internal/fleet"
	"controlroom.busops.org/internal/gtfs"
	"controlroom.busops.org/internal/incidents"
	"controlroom.busops.org/internal/live"
	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/passes"
	"controlroom.busops.org/internal/payments"
	"controlroom.busops.org/internal/routes"
	"controlroom.busops.org/internal/signals"
	"controlroom.busops.org/internal/sim"
	"controlroom.busops.org/internal/store"
)

// Application holds the dependencies for our HTTP handlers, helpers, and middleware.
// Simulator is nil in consume-live mode and Bridge is nil unless a GTFS-RT feed is
// configured.
type Application struct {
	Config    appconf.Config
	Logger    *slog.Logger
	Store     store.Store
	Routes    *routes.Table
	Simulator *sim.Runner
	Bridge    *gtfs.Bridge
	Feed      *live.Feed
	Incidents *incidents.Service
	Passes    *passes.Service
	Payments  *payments.Service
	Signals   *signals.Signaler
}

// New opens the store, loads the route table and wires every service for the configured
// mode. Nothing is started until Start.
func New(ctx context.Context, cfg appconf.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	table, err := LoadRoutes(cfg, logger)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	return NewWithStore(cfg, s, table, logger), nil
}

// NewWithStore wires the application around an already open store and route table.
func NewWithStore(cfg appconf.Config, s store.Store, table *routes.Table, logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	app := &Application{
		Config:   cfg,
		Logger:   logger,
		Store:    s,
		Routes:   table,
		Feed:     live.NewFeed(s, logger),
		Passes:   passes.NewService(s, logger),
		Payments: payments.NewService(s, logger),
		Signals:  signals.NewSignaler(s, logger),
	}

	var flagger incidents.EmergencyFlagger = incidents.StoreFlagger{Store: s}
	if cfg.Simulating() {
		rnd := sim.NewRandom(cfg.Seed)
		generator := &sim.Generator{
			Table:      table,
			Random:     rnd,
			Now:        time.Now,
			FleetScale: cfg.FleetScale,
		}
		app.Simulator = sim.NewRunner(s, table, generator, rnd, sim.RunnerConfig{
			TickInterval:    cfg.TickInterval,
			SpeedMultiplier: cfg.SpeedMultiplier,
		}, logger)
		// The simulator rewrites the whole collection every tick, so the flag has to
		// live on its in-memory fleet.
		flagger = app.Simulator
	} else if cfg.VehiclePositionsURL != "" {
		app.Bridge = gtfs.NewBridge(gtfs.Config{
			VehiclePositionsURL:     cfg.VehiclePositionsURL,
			RealTimeAuthHeaderKey:   cfg.RealTimeAuthHeaderKey,
			RealTimeAuthHeaderValue: cfg.RealTimeAuthHeaderValue,
		}, s, table, logger)
	}
	app.Incidents = incidents.NewService(s, flagger, logger)

	return app
}

// LoadRoutes picks the route table source: a route file, then a GTFS static feed, then
// the built-in set. A congestion zone from the configuration overrides the file's.
func LoadRoutes(cfg appconf.Config, logger *slog.Logger) (*routes.Table, error) {
	var table *routes.Table
	var err error

	switch {
	case cfg.RoutesFile != "":
		table, err = routes.LoadFile(cfg.RoutesFile)
	case cfg.GtfsStaticSource != "":
		var imported []routes.Route
		imported, err = gtfs.LoadRoutes(cfg.GtfsStaticSource, routes.Defaults{}, logger)
		if err == nil {
			table, err = routes.NewTable(imported, cfg.CongestionZone)
		}
	default:
		table = routes.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("load route table: %w", err)
	}

	if !cfg.CongestionZone.IsZero() {
		table = table.WithCongestionZone(cfg.CongestionZone)
	}
	return table, nil
}

// Start brings up the live feed and the configured telemetry source. In simulate mode
// the driver and vehicle registries are seeded from the generated fleet.
func (app *Application) Start(ctx context.Context) error {
	if app.Simulator != nil {
		if err := app.Simulator.Start(ctx); err != nil {
			return fmt.Errorf("start simulator: %w", err)
		}
		if _, err := fleet.EnsureRegistry(ctx, app.Store, app.Simulator.Vehicles(), app.Logger); err != nil {
			logging.LogError(app.Logger, "Failed to seed fleet registry", err)
		}
	}

	if app.Bridge != nil {
		if err := app.Bridge.Start(); err != nil && !errors.Is(err, gtfs.ErrRealtimeDisabled) {
			return fmt.Errorf("start gtfs-rt bridge: %w", err)
		}
	}

	// The feed keeps retrying on its own and the API reports its error state meanwhile.
	if err := app.Feed.Start(); err != nil {
		logging.LogError(app.Logger, "Live feed unavailable at startup", err)
	}

	logging.LogOperation(app.Logger, "control_room_started",
		slog.String("mode", string(app.Config.Mode)),
		slog.String("store", string(app.Config.StoreBackend)),
		slog.Int("routes", app.Routes.Len()))
	return nil
}

// Shutdown stops producers before consumers and closes the store last.
func (app *Application) Shutdown() (err error) {
	if app.Simulator != nil {
		app.Simulator.Stop()
	}
	if app.Bridge != nil {
		app.Bridge.Shutdown()
	}
	app.Feed.Stop()
	logging.HandleDeferredError(&err, app.Store.Close, app.Logger, "close_store")
	return err
}
