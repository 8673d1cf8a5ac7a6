package models

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestListResponseCarriesRouteReferences(t *testing.T) {
	refs := NewEmptyReferences()
	refs.Routes = append(refs.Routes, RouteReference{ID: "500D", Name: "Hebbal - Silk Board", Depot: "HSR", Capacity: 60})

	before := time.Now().UnixMilli()
	response := NewListResponse([]string{"500D-001", "500D-002"}, refs)

	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "OK", response.Text)
	assert.GreaterOrEqual(t, response.CurrentTime, before)

	body := encode(t, response)
	assert.Equal(t, float64(2), body["version"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, false, data["limitExceeded"])
	assert.Equal(t, []interface{}{"500D-001", "500D-002"}, data["list"])

	routes := data["references"].(map[string]interface{})["routes"].([]interface{})
	require.Len(t, routes, 1)
	route := routes[0].(map[string]interface{})
	assert.Equal(t, "500D", route["id"])
	assert.Equal(t, "HSR", route["depot"])
	assert.NotContains(t, route, "color")
}

func TestEntryResponse(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	response := NewEntryResponse(NewCurrentTime(at), NewEmptyReferences())

	data := encode(t, response)["data"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{
		"readableTime": "2026-03-02T08:30:00Z",
		"time":         float64(at.UnixMilli()),
	}, data["entry"])
	assert.Equal(t, map[string]interface{}{"routes": []interface{}{}}, data["references"])
	assert.NotContains(t, data, "limitExceeded")
}

func TestNewCurrentTimeKeepsZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*60*60+30*60)
	at := time.Date(2026, 3, 2, 14, 0, 0, 0, ist)

	ct := NewCurrentTime(at)
	assert.Equal(t, "2026-03-02T14:00:00+05:30", ct.ReadableTime)
	assert.Equal(t, at.UTC().UnixMilli(), ct.Time)
}

func TestErrorResponseOmitsData(t *testing.T) {
	response := NewErrorResponse(http.StatusConflict, "pass already decided")

	body := encode(t, response)
	assert.Equal(t, float64(http.StatusConflict), body["code"])
	assert.Equal(t, "pass already decided", body["text"])
	assert.Equal(t, float64(2), body["version"])
	assert.NotContains(t, body, "data")
}
