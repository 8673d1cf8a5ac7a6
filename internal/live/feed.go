package live

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/store"
)

// DefaultRecheckInterval is how often the feed re-derives staleness when no writes arrive.
const DefaultRecheckInterval = 30 * time.Second

// State is the feed's load state.
type State string

const (
	StateLoading State = "loading"
	StateOK      State = "ok"
	StateError   State = "error"
)

// Status reports the feed state for the API.
type Status struct {
	State     State  `json:"state"`
	Vehicles  int    `json:"vehicles"`
	Skipped   int    `json:"skipped"`
	Version   uint64 `json:"version"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Transform decodes and normalizes a live-telemetry snapshot into a list sorted by id.
// Records that cannot be decoded are skipped and counted. A collection that is not an object
// is an error.
func Transform(snap store.Snapshot, now time.Time, logger *slog.Logger) ([]Vehicle, int, error) {
	children, err := snap.Children()
	if err != nil {
		return nil, 0, err
	}
	out := make([]Vehicle, 0, len(children))
	skipped := 0
	for id, raw := range children {
		rec, err := Decode(id, raw)
		if err != nil {
			skipped++
			if logger != nil {
				logger.Warn("skipping telemetry record", slog.String("vehicle_id", id), slog.String("error", err.Error()))
			}
			continue
		}
		out = append(out, Normalize(rec, now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, skipped, nil
}

// Feed subscribes to live-telemetry and republishes the normalized vehicle list to its own
// subscribers. Only the latest snapshot is kept. On a bad snapshot the feed reports an
// error and keeps serving the last good list.
type Feed struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time

	recheck time.Duration

	mu        sync.RWMutex
	last      store.Snapshot
	vehicles  []Vehicle
	byID      map[string]int
	skipped   int
	state     State
	lastErr   error
	updatedAt time.Time
	subs      map[uint64]func([]Vehicle)
	nextSub   uint64

	// publishMu keeps subscriber calls in order.
	publishMu sync.Mutex

	unsubscribe  func()
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	startOnce    sync.Once
	stopOnce     sync.Once
}

// Option configures a Feed.
type Option func(*Feed)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

// WithRecheckInterval sets how often staleness is re-derived. Zero disables rechecks.
func WithRecheckInterval(d time.Duration) Option {
	return func(f *Feed) { f.recheck = d }
}

func NewFeed(s store.Store, logger *slog.Logger, opts ...Option) *Feed {
	f := &Feed{
		store:        s,
		logger:       logging.Component(logger, "live_feed"),
		now:          time.Now,
		recheck:      DefaultRecheckInterval,
		state:        StateLoading,
		subs:         make(map[uint64]func([]Vehicle)),
		shutdownChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start subscribes to the store. The current collection is delivered before Start returns.
// If the first read fails the feed reports the error state and the recheck loop keeps
// retrying the subscription. Callers may carry on after an error.
func (f *Feed) Start() error {
	var err error
	f.startOnce.Do(func() {
		err = f.subscribe()
		if f.recheck > 0 {
			f.wg.Add(1)
			go f.recheckPeriodically()
		}
	})
	return err
}

func (f *Feed) subscribe() error {
	unsubscribe, err := f.store.Subscribe(store.LiveTelemetry, f.onSnapshot)
	if err != nil {
		err = fmt.Errorf("subscribe %s: %w", store.LiveTelemetry, err)
		f.fail(err)
		return err
	}
	f.mu.Lock()
	f.unsubscribe = unsubscribe
	f.mu.Unlock()
	return nil
}

func (f *Feed) subscribed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.unsubscribe != nil
}

// Stop unsubscribes and ends the recheck loop.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() {
		close(f.shutdownChan)
		f.wg.Wait()
		f.mu.Lock()
		unsubscribe := f.unsubscribe
		f.unsubscribe = nil
		f.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
	})
}

func (f *Feed) onSnapshot(snap store.Snapshot) {
	f.publishMu.Lock()
	defer f.publishMu.Unlock()

	f.mu.RLock()
	older := f.state != StateLoading && snap.Version != 0 && snap.Version < f.last.Version
	f.mu.RUnlock()
	if older {
		return
	}

	vehicles, skipped, err := Transform(snap, f.now(), f.logger)
	if err != nil {
		f.fail(err)
		return
	}
	f.publish(snap, vehicles, skipped)
}

func (f *Feed) recheckPeriodically() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.recheck)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !f.subscribed() {
				_ = f.subscribe()
				continue
			}
			f.Recheck()
		case <-f.shutdownChan:
			return
		}
	}
}

// Recheck re-derives the list from the last snapshot at the current time, so vehicles go
// stale even when nothing writes to the store.
func (f *Feed) Recheck() {
	f.publishMu.Lock()
	defer f.publishMu.Unlock()

	f.mu.RLock()
	snap, loaded := f.last, f.vehicles != nil
	f.mu.RUnlock()
	if !loaded {
		return
	}

	vehicles, skipped, err := Transform(snap, f.now(), nil)
	if err != nil {
		return
	}
	f.publish(snap, vehicles, skipped)
}

// publish must be called with publishMu held.
func (f *Feed) publish(snap store.Snapshot, vehicles []Vehicle, skipped int) {
	byID := make(map[string]int, len(vehicles))
	for i, v := range vehicles {
		byID[v.ID] = i
	}

	f.mu.Lock()
	f.last = snap
	f.vehicles = vehicles
	f.byID = byID
	f.skipped = skipped
	f.state = StateOK
	f.lastErr = nil
	f.updatedAt = f.now()
	subs := make([]func([]Vehicle), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(vehicles)
	}
}

func (f *Feed) fail(err error) {
	logging.LogError(f.logger, "live telemetry unavailable", err)
	f.mu.Lock()
	f.state = StateError
	f.lastErr = err
	f.mu.Unlock()
}

// Subscribe registers fn for every new list. If a list is already loaded fn receives it
// right away. The slice is shared between subscribers and must not be modified, and fn
// must not call Subscribe.
func (f *Feed) Subscribe(fn func([]Vehicle)) (unsubscribe func()) {
	f.publishMu.Lock()
	f.mu.Lock()
	f.nextSub++
	id := f.nextSub
	f.subs[id] = fn
	current := f.vehicles
	f.mu.Unlock()
	if current != nil {
		fn(current)
	}
	f.publishMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Vehicles returns the latest list.
func (f *Feed) Vehicles() []Vehicle {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.vehicles
}

// Vehicle looks up one vehicle in the latest list.
func (f *Feed) Vehicle(id string) (Vehicle, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	i, ok := f.byID[id]
	if !ok {
		return Vehicle{}, false
	}
	return f.vehicles[i], true
}

func (f *Feed) Status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	st := Status{
		State:    f.state,
		Vehicles: len(f.vehicles),
		Skipped:  f.skipped,
		Version:  f.last.Version,
	}
	if !f.updatedAt.IsZero() {
		st.UpdatedAt = f.updatedAt.UnixMilli()
	}
	if f.lastErr != nil {
		st.Error = f.lastErr.Error()
	}
	return st
}
