package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom.busops.org/internal/appconf"
	"controlroom.busops.org/internal/store"
	"controlroom.busops.org/internal/telemetry"
)

type failingStore struct {
	store.Store
}

func (failingStore) Set(context.Context, string, any) error {
	return errors.New("offline")
}

func newTestRunner(t *testing.T, s store.Store, cfg RunnerConfig) *Runner {
	t.Helper()
	table := exampleTable(t, appconf.BoundingBox{})
	now := time.Date(2025, 3, 3, 13, 0, 0, 0, time.UTC)
	rnd := rand.New(rand.NewSource(1))
	g := &Generator{Table: table, Random: rnd, Now: func() time.Time { return now }}
	return NewRunner(s, table, g, rnd, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func liveFleet(t *testing.T, s store.Store) telemetry.Collection {
	t.Helper()
	snap, err := s.Get(context.Background(), store.LiveTelemetry)
	require.NoError(t, err)
	var c telemetry.Collection
	require.NoError(t, snap.Decode(&c))
	return c
}

func TestRunnerStartStop(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	r := newTestRunner(t, s, RunnerConfig{TickInterval: time.Hour})

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Start(context.Background()), "second start is a no-op")

	fleet := liveFleet(t, s)
	assert.Len(t, fleet, 3)
	assert.Contains(t, fleet, "R-001")

	st := r.Status()
	assert.True(t, st.Running)
	assert.Equal(t, 3, st.Vehicles)
	assert.Equal(t, int64(3600000), st.TickIntervalMs)
	assert.NotZero(t, st.StartedAt)
	assert.Empty(t, st.LastWriteError)

	r.Stop()
	r.Stop()
	assert.False(t, r.Status().Running)

	t.Run("restart keeps the fleet", func(t *testing.T) {
		before := r.Vehicles()
		require.NoError(t, r.Start(context.Background()))
		defer r.Stop()
		assert.Equal(t, before, r.Vehicles())
	})
}

func TestRunnerStep(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	r := newTestRunner(t, s, RunnerConfig{TickInterval: 2 * time.Second})

	before := r.Vehicles()
	r.Step(context.Background())
	r.Step(context.Background())

	assert.Equal(t, uint64(2), r.Status().Ticks)
	fleet := liveFleet(t, s)
	require.Len(t, fleet, len(before))
	for _, v := range before {
		moved := fleet[v.ID]
		assert.NotEqual(t, v.Progress, moved.Progress, v.ID)
	}
}

func TestRunnerTicksOnSchedule(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	r := newTestRunner(t, s, RunnerConfig{TickInterval: 20 * time.Millisecond, SpeedMultiplier: 2})

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	assert.Eventually(t, func() bool {
		return r.Status().Ticks >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRunnerSetSpeed(t *testing.T) {
	r := newTestRunner(t, store.NewMemoryStore(), RunnerConfig{})

	assert.Equal(t, 1.0, r.SpeedMultiplier(), "unset multiplier")
	assert.Equal(t, MinSpeedMultiplier, r.SetSpeed(0.01))
	assert.Equal(t, MaxSpeedMultiplier, r.SetSpeed(50))
	assert.Equal(t, 1.0, r.SetSpeed(-3))
	assert.Equal(t, 4.0, r.SetSpeed(4))
	assert.Equal(t, 4.0, r.Status().SpeedMultiplier)
	assert.Equal(t, int64(2000), r.Status().TickIntervalMs, "default tick interval")
}

func TestRunnerSetEmergency(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	r := newTestRunner(t, s, RunnerConfig{TickInterval: time.Hour})
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	require.NoError(t, r.SetEmergency(ctx, "R-002", true))
	assert.True(t, liveFleet(t, s)["R-002"].Emergency)

	r.Step(ctx)
	assert.True(t, liveFleet(t, s)["R-002"].Emergency, "ticks keep the flag")
	assert.False(t, liveFleet(t, s)["R-001"].Emergency)

	require.NoError(t, r.SetEmergency(ctx, "R-002", false))
	r.Step(ctx)
	assert.False(t, liveFleet(t, s)["R-002"].Emergency)

	assert.ErrorIs(t, r.SetEmergency(ctx, "nope", true), ErrUnknownVehicle)
}

func TestRunnerWriteFailure(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	r := newTestRunner(t, failingStore{Store: s}, RunnerConfig{TickInterval: time.Hour})

	r.Step(context.Background())
	st := r.Status()
	assert.Equal(t, "offline", st.LastWriteError)
	assert.Equal(t, uint64(1), st.Ticks, "the tick still happens")
}
