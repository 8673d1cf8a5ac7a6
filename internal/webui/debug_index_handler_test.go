package webui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom.busops.org/internal/appconf"
	"controlroom.busops.org/internal/store"
)

func TestDebugIndexHandler(t *testing.T) {
	s := store.NewMemoryStore()
	defer func() { _ = s.Close() }()
	require.NoError(t, s.Set(context.Background(), "live-telemetry/bus-1", map[string]any{"route_id": "500D"}))

	ui := New(s, nil)

	t.Run("dumps a collection", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ui.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/?dataType=live-telemetry", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
		body := rec.Body.String()
		assert.Contains(t, body, "Store - live-telemetry")
		assert.Contains(t, body, "bus-1")
		assert.Contains(t, body, "500D")
	})

	t.Run("empty collection", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ui.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/?dataType=passes", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Store - passes")
	})

	t.Run("unknown data type lists the choices", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ui.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/?dataType=agencies", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Choose a data type")
		assert.Contains(t, rec.Body.String(), "payment-disputes")
	})
}

func TestDebugIndexListsStoredCollections(t *testing.T) {
	ctx := context.Background()
	backend, err := store.NewSQLiteBackend(ctx, ":memory:", appconf.Test, nil)
	require.NoError(t, err)
	s, err := store.NewBlobStore(ctx, backend, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Set(ctx, "passes/p-1", map[string]any{"status": "pending"}))

	rec := httptest.NewRecorder()
	New(s, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "stored")
	assert.Contains(t, body, "Revision")
}
