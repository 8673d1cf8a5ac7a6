package appconf

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

// Mode selects where live-telemetry comes from.
type Mode string

const (
	// ModeSimulate runs the in-process simulator, which owns the live-telemetry collection.
	ModeSimulate Mode = "simulate"
	// ModeConsumeLive only subscribes; records are written by external producers.
	ModeConsumeLive Mode = "consume-live"
)

// StoreBackend names a store implementation.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreSQLite StoreBackend = "sqlite"
	StoreRedis  StoreBackend = "redis"
)

// Config holds all the configuration settings for the control room service.
// Values are layered: .env file, then process environment, then command-line flags.
type Config struct {
	Port      int
	Env       Environment
	LogLevel  string
	RateLimit int

	Mode Mode

	StoreBackend  StoreBackend
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	RoutesFile       string
	GtfsStaticSource string

	VehiclePositionsURL     string
	RealTimeAuthHeaderKey   string
	RealTimeAuthHeaderValue string

	TickInterval    time.Duration
	SpeedMultiplier float64
	FleetScale      float64
	Seed            int64

	CongestionZone BoundingBox
}

// BoundingBox is an axis-aligned lat/lon rectangle.
type BoundingBox struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
}

// Contains reports whether the point lies inside the box, edges included. The zero box
// contains nothing.
func (b BoundingBox) Contains(lat, lon float64) bool {
	if b.IsZero() {
		return false
	}
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// ParseBoundingBox reads "minLat,minLon,maxLat,maxLon". An empty string is the zero box.
func ParseBoundingBox(s string) (BoundingBox, error) {
	if strings.TrimSpace(s) == "" {
		return BoundingBox{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("bounding box %q: want minLat,minLon,maxLat,maxLon", s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("bounding box %q: %w", s, err)
		}
		vals[i] = v
	}
	box := BoundingBox{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}
	if box.MinLat > box.MaxLat || box.MinLon > box.MaxLon {
		return BoundingBox{}, fmt.Errorf("bounding box %q: min exceeds max", s)
	}
	return box, nil
}

// IsZero reports whether no box was configured.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

func EnvFlagToEnvironment(env string) Environment {
	switch env {
	case "development":
		return Development
	case "test":
		return Test
	case "production":
		return Production
	default:
		return Development
	}
}

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// ParseMode maps a flag value to a Mode. Unknown values fall back to simulate.
func ParseMode(s string) Mode {
	if Mode(s) == ModeConsumeLive {
		return ModeConsumeLive
	}
	return ModeSimulate
}

// Simulating reports whether this process should run the simulator.
func (c Config) Simulating() bool {
	return c.Mode == ModeSimulate
}
