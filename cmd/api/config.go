package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"controlroom.busops.org/internal/appconf"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// envSource reads defaults for flags from the environment. Unparseable values are
// collected and reported once flags have been parsed.
type envSource struct {
	lookup lookupFunc
	errs   []error
}

func (e *envSource) str(key, fallback string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func (e *envSource) int(key string, fallback int) int {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (e *envSource) int64(key string, fallback int64) int64 {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (e *envSource) float(key string, fallback float64) float64 {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func (e *envSource) duration(key string, fallback time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

// loadConfig builds the configuration from the environment with command-line flags taking
// precedence. The .env file, if any, has already been merged into the environment.
func loadConfig(args []string, lookup lookupFunc, output io.Writer) (appconf.Config, error) {
	env := &envSource{lookup: lookup}
	fs := flag.NewFlagSet("controlroom", flag.ContinueOnError)
	fs.SetOutput(output)

	var cfg appconf.Config
	var envFlag, modeFlag, storeFlag, zoneFlag string

	fs.IntVar(&cfg.Port, "port", env.int("PORT", 4000), "API server port")
	fs.StringVar(&envFlag, "env", env.str("CONTROL_ROOM_ENV", "development"), "Environment (development|test|production)")
	fs.StringVar(&cfg.LogLevel, "log-level", env.str("LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	fs.IntVar(&cfg.RateLimit, "rate-limit", env.int("RATE_LIMIT", 100), "Requests per second per client, negative to disable")

	fs.StringVar(&modeFlag, "mode", env.str("MODE", string(appconf.ModeSimulate)), "Telemetry source (simulate|consume-live)")

	fs.StringVar(&storeFlag, "store", env.str("STORE_BACKEND", string(appconf.StoreMemory)), "Store backend (memory|sqlite|redis)")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", env.str("SQLITE_PATH", "controlroom.db"), "SQLite database file")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", env.str("REDIS_ADDR", "localhost:6379"), "Redis address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", env.str("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", env.int("REDIS_DB", 0), "Redis database number")
	fs.StringVar(&cfg.RedisPrefix, "redis-prefix", env.str("REDIS_PREFIX", "controlroom"), "Redis key prefix")

	fs.StringVar(&cfg.RoutesFile, "routes-file", env.str("ROUTES_FILE", ""), "Route table file (.json, .yaml or .yml)")
	fs.StringVar(&cfg.GtfsStaticSource, "gtfs-static", env.str("GTFS_STATIC_SOURCE", ""), "Path or URL of a static GTFS zip to import routes from")
	fs.StringVar(&cfg.VehiclePositionsURL, "vehicle-positions-url", env.str("VEHICLE_POSITIONS_URL", ""), "GTFS-realtime vehicle positions feed (consume-live mode)")
	fs.StringVar(&cfg.RealTimeAuthHeaderKey, "realtime-auth-header-name", env.str("REALTIME_AUTH_HEADER_NAME", ""), "Header name sent with realtime requests")
	fs.StringVar(&cfg.RealTimeAuthHeaderValue, "realtime-auth-header-value", env.str("REALTIME_AUTH_HEADER_VALUE", ""), "Header value sent with realtime requests")

	fs.DurationVar(&cfg.TickInterval, "tick-interval", env.duration("TICK_INTERVAL", 2*time.Second), "Simulator tick interval at speed 1")
	fs.Float64Var(&cfg.SpeedMultiplier, "speed", env.float("SPEED_MULTIPLIER", 1), "Simulator speed multiplier (0.1 to 10)")
	fs.Float64Var(&cfg.FleetScale, "fleet-scale", env.float("FLEET_SCALE", 1), "Fraction of each route's fleet to simulate")
	fs.Int64Var(&cfg.Seed, "seed", env.int64("SIM_SEED", 0), "Simulator random seed, 0 for time based")

	fs.StringVar(&zoneFlag, "congestion-zone", env.str("CONGESTION_ZONE", ""), "Congestion zone as minLat,minLon,maxLat,maxLon")

	if err := fs.Parse(args); err != nil {
		return appconf.Config{}, err
	}
	if len(env.errs) > 0 {
		return appconf.Config{}, fmt.Errorf("invalid environment: %w", env.errs[0])
	}

	cfg.Env = appconf.EnvFlagToEnvironment(envFlag)
	cfg.Mode = appconf.ParseMode(modeFlag)

	switch backend := appconf.StoreBackend(storeFlag); backend {
	case appconf.StoreMemory, appconf.StoreSQLite, appconf.StoreRedis:
		cfg.StoreBackend = backend
	default:
		return appconf.Config{}, fmt.Errorf("unknown store backend %q", storeFlag)
	}

	zone, err := appconf.ParseBoundingBox(zoneFlag)
	if err != nil {
		return appconf.Config{}, err
	}
	cfg.CongestionZone = zone

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return appconf.Config{}, fmt.Errorf("port %d out of range", cfg.Port)
	}
	if cfg.FleetScale <= 0 {
		return appconf.Config{}, fmt.Errorf("fleet scale must be positive")
	}
	return cfg, nil
}
