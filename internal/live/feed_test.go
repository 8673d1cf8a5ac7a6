package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom.busops.org/internal/store"
	"controlroom.busops.org/internal/telemetry"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fleet(updated time.Time, ids ...string) telemetry.Collection {
	c := telemetry.Collection{}
	for _, id := range ids {
		c[id] = telemetry.Vehicle{ID: id, RouteID: "R", Latitude: 12.9, Longitude: 77.6, Capacity: 50, IsActive: true, LastUpdate: updated.UnixMilli()}
	}
	return c
}

func TestFeed(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()
	c := &clock{now: now}

	require.NoError(t, s.Set(ctx, store.LiveTelemetry, fleet(now, "b", "a")))

	f := NewFeed(s, nil, WithClock(c.Now), WithRecheckInterval(0))
	assert.Equal(t, StateLoading, f.Status().State)
	require.NoError(t, f.Start())
	defer f.Stop()

	t.Run("initial list sorted by id", func(t *testing.T) {
		vs := f.Vehicles()
		require.Len(t, vs, 2)
		assert.Equal(t, "a", vs[0].ID)
		assert.Equal(t, "b", vs[1].ID)
		assert.Equal(t, StateOK, f.Status().State)
	})

	var mu sync.Mutex
	var received [][]Vehicle
	unsubscribe := f.Subscribe(func(vs []Vehicle) {
		mu.Lock()
		received = append(received, vs)
		mu.Unlock()
	})
	defer unsubscribe()

	t.Run("subscriber gets the current list", func(t *testing.T) {
		mu.Lock()
		defer mu.Unlock()
		require.Len(t, received, 1)
		assert.Len(t, received[0], 2)
	})

	t.Run("writes are republished", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, store.Join(store.LiveTelemetry, "a"), map[string]any{"emergency": true}))
		v, ok := f.Vehicle("a")
		require.True(t, ok)
		assert.True(t, v.HasEmergency)

		mu.Lock()
		assert.Len(t, received, 2)
		mu.Unlock()
	})

	t.Run("malformed records are skipped", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.Join(store.LiveTelemetry, "junk"), map[string]any{"route_id": "R"}))
		assert.Len(t, f.Vehicles(), 2)
		assert.Equal(t, 1, f.Status().Skipped)
		_, ok := f.Vehicle("junk")
		assert.False(t, ok)
	})

	t.Run("bad collection keeps the last good list", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, store.LiveTelemetry, "offline"))
		st := f.Status()
		assert.Equal(t, StateError, st.State)
		assert.NotEmpty(t, st.Error)
		assert.Len(t, f.Vehicles(), 2)

		require.NoError(t, s.Set(ctx, store.LiveTelemetry, fleet(now, "a", "b", "c")))
		assert.Equal(t, StateOK, f.Status().State)
		assert.Len(t, f.Vehicles(), 3)
	})

	t.Run("recheck marks vehicles stale", func(t *testing.T) {
		c.Advance(6 * time.Minute)
		f.Recheck()
		for _, v := range f.Vehicles() {
			assert.True(t, v.Stale, v.ID)
			assert.False(t, v.Active, v.ID)
		}
	})

	t.Run("unsubscribed callbacks stop", func(t *testing.T) {
		unsubscribe()
		mu.Lock()
		before := len(received)
		mu.Unlock()
		require.NoError(t, s.Remove(ctx, store.Join(store.LiveTelemetry, "c")))
		mu.Lock()
		assert.Equal(t, before, len(received))
		mu.Unlock()
		assert.Len(t, f.Vehicles(), 2)
	})
}

func TestFeedStop(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	f := NewFeed(s, nil, WithRecheckInterval(time.Millisecond))
	require.NoError(t, f.Start())
	f.Stop()
	f.Stop()

	require.NoError(t, s.Set(context.Background(), store.LiveTelemetry, fleet(now, "a")))
	assert.Empty(t, f.Vehicles(), "no deliveries after stop")
}

func TestFeedClosedStore(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Close())

	f := NewFeed(s, nil)
	assert.ErrorIs(t, f.Start(), store.ErrClosed)
	defer f.Stop()
	assert.Equal(t, StateError, f.Status().State)
}

var errBackendDown = errors.New("connection refused")

// downBackend is a store.Backend that refuses every call while down is set.
type downBackend struct {
	mu    sync.Mutex
	down  bool
	blobs map[string][]byte
}

func (b *downBackend) setDown(down bool) {
	b.mu.Lock()
	b.down = down
	b.mu.Unlock()
}

func (b *downBackend) put(collection string, body []byte) {
	b.mu.Lock()
	b.blobs[collection] = body
	b.mu.Unlock()
}

func (b *downBackend) Load(_ context.Context, collection string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return nil, false, errBackendDown
	}
	body, ok := b.blobs[collection]
	return body, ok, nil
}

func (b *downBackend) Save(_ context.Context, collection string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return errBackendDown
	}
	b.blobs[collection] = body
	return nil
}

func (b *downBackend) Delete(_ context.Context, collection string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return errBackendDown
	}
	delete(b.blobs, collection)
	return nil
}

func (b *downBackend) Close() error { return nil }

func TestFeedRecoversFromUnavailableStore(t *testing.T) {
	ctx := context.Background()
	backend := &downBackend{down: true, blobs: map[string][]byte{}}
	s, err := store.NewBlobStore(ctx, backend, nil)
	require.NoError(t, err)
	defer s.Close()

	f := NewFeed(s, nil, WithRecheckInterval(5*time.Millisecond))
	err = f.Start()
	require.ErrorIs(t, err, errBackendDown)
	defer f.Stop()

	st := f.Status()
	assert.Equal(t, StateError, st.State)
	assert.Contains(t, st.Error, "connection refused")
	assert.Empty(t, f.Vehicles())

	backend.setDown(false)
	require.NoError(t, s.Set(ctx, store.LiveTelemetry, fleet(now, "a", "b")))

	assert.Eventually(t, func() bool {
		return f.Status().State == StateOK && len(f.Vehicles()) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Remove(ctx, store.Join(store.LiveTelemetry, "b")))
	assert.Len(t, f.Vehicles(), 1, "writes reach the feed once resubscribed")
}

func TestFeedRecoversFromCorruptCollection(t *testing.T) {
	ctx := context.Background()
	backend := &downBackend{blobs: map[string][]byte{store.LiveTelemetry: []byte("{not json")}}
	s, err := store.NewBlobStore(ctx, backend, nil)
	require.NoError(t, err)
	defer s.Close()

	f := NewFeed(s, nil, WithRecheckInterval(5*time.Millisecond))
	assert.Error(t, f.Start())
	defer f.Stop()
	assert.Equal(t, StateError, f.Status().State)

	body, err := json.Marshal(fleet(now, "a"))
	require.NoError(t, err)
	backend.put(store.LiveTelemetry, body)

	assert.Eventually(t, func() bool {
		_, ok := f.Vehicle("a")
		return ok && f.Status().State == StateOK
	}, time.Second, 5*time.Millisecond)
}
