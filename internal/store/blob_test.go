package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom.busops.org/internal/appconf"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	ctx := context.Background()
	backend, err := NewSQLiteBackend(ctx, ":memory:", appconf.Test, testLogger())
	require.NoError(t, err)
	s, err := NewBlobStore(ctx, backend, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRedisStore(t *testing.T, mr *miniredis.Miniredis) *BlobStore {
	t.Helper()
	ctx := context.Background()
	backend, err := NewRedisBackend(ctx, RedisConfig{Addr: mr.Addr(), Prefix: "test"}, testLogger())
	require.NoError(t, err)
	s, err := NewBlobStore(ctx, backend, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, newSQLiteStore)
}

func TestRedisStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return newRedisStore(t, miniredis.RunT(t))
	})
}

func TestNewSQLiteBackend_RejectsFileInTestEnv(t *testing.T) {
	backend, err := NewSQLiteBackend(context.Background(), "/tmp/controlroom.db", appconf.Test, testLogger())
	assert.Error(t, err)
	assert.Nil(t, backend)
	assert.Contains(t, err.Error(), "in-memory")
}

func TestSQLiteBackend_Revisions(t *testing.T) {
	ctx := context.Background()
	backend, err := NewSQLiteBackend(ctx, ":memory:", appconf.Test, testLogger())
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	require.NoError(t, backend.Save(ctx, "passes", []byte(`{"P1":{}}`)))
	require.NoError(t, backend.Save(ctx, "passes", []byte(`{"P1":{},"P2":{}}`)))
	require.NoError(t, backend.Save(ctx, "payments", []byte(`{}`)))

	infos, err := backend.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "passes", infos[0].Name)
	assert.Equal(t, int64(2), infos[0].Revision)
	assert.Equal(t, len(`{"P1":{},"P2":{}}`), infos[0].Size)

	require.NoError(t, backend.Delete(ctx, "passes"))
	_, found, err := backend.Load(ctx, "passes")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_SharesChangesAcrossProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	writer := newRedisStore(t, mr)
	reader := newRedisStore(t, mr)

	rec := &recorder{}
	_, err := reader.Subscribe("live-telemetry", rec.record)
	require.NoError(t, err)

	require.NoError(t, writer.Set(ctx, "live-telemetry/V9", telemetry{ID: "V9", Speed: 31}))

	require.Eventually(t, func() bool {
		snaps := rec.all()
		return len(snaps) >= 2 && snaps[len(snaps)-1].Exists
	}, 2*time.Second, 10*time.Millisecond)

	var fleet map[string]telemetry
	require.NoError(t, rec.last().Decode(&fleet))
	assert.Equal(t, 31.0, fleet["V9"].Speed)

	assert.True(t, mr.Exists("test:live-telemetry"))
	infos, err := reader.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "live-telemetry", infos[0].Name)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, appconf.Config{StoreBackend: appconf.StoreMemory}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, appconf.Config{StoreBackend: appconf.StoreSQLite, SQLitePath: ":memory:", Env: appconf.Test}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &BlobStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, appconf.Config{StoreBackend: "etcd"}, testLogger())
	assert.Error(t, err)
}
