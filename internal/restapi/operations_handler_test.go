package restapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverSignals(t *testing.T) {
	api := createTestApi(t)

	resp, model := serveApiRequest(t, api, http.MethodPost, "/api/vehicles/500D-001/messages", map[string]string{
		"text":     "Divert via Outer Ring Road",
		"priority": "urgent",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	msg := entryOf(t, model)
	assert.Equal(t, "urgent", msg["priority"])
	assert.Equal(t, "control-room", msg["from"])
	assert.Equal(t, false, msg["read"])

	resp, model = serveApiAndRetrieveEndpoint(t, api, "/api/vehicles/500D-001/messages")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := listOf(t, model)
	require.Len(t, list, 1)
	assert.Equal(t, "Divert via Outer Ring Road", list[0].(map[string]interface{})["text"])

	resp, model = serveApiRequest(t, api, http.MethodPost, "/api/vehicles/500D-002/location-request", map[string]string{"from": "supervisor"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", entryOf(t, model)["status"])
	assert.Equal(t, "supervisor", entryOf(t, model)["requested_by"])

	t.Run("unknown vehicle", func(t *testing.T) {
		resp, _ := serveApiRequest(t, api, http.MethodPost, "/api/vehicles/ghost-1/messages", map[string]string{"text": "hello"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, _ = serveApiRequest(t, api, http.MethodPost, "/api/vehicles/ghost-1/location-request", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("invalid message", func(t *testing.T) {
		fieldErrors := fieldErrorsOf(t, api, http.MethodPost, "/api/vehicles/500D-001/messages", map[string]string{
			"text":     "",
			"priority": "shouting",
		})
		assert.Contains(t, fieldErrors, "text")
		assert.Contains(t, fieldErrors, "priority")
	})
}

func TestInsightsHandler(t *testing.T) {
	api := createTestApi(t)

	resp, model := serveApiAndRetrieveEndpoint(t, api, "/api/insights/2026-03-02")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := model.Data.(map[string]interface{})
	assert.Equal(t, true, data["generated"])
	entry := entryOf(t, model)
	assert.Equal(t, "2026-03-02", entry["date"])
	assert.NotEmpty(t, entry["forecasts"])

	// Stored insights are served as they are.
	_, model = serveApiAndRetrieveEndpoint(t, api, "/api/insights/2026-03-02")
	data = model.Data.(map[string]interface{})
	assert.Equal(t, false, data["generated"])
	assert.Equal(t, entry["generated_at"], entryOf(t, model)["generated_at"])

	resp, model = serveApiAndRetrieveEndpoint(t, api, "/api/insights/today")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, api.now().Format("2006-01-02"), entryOf(t, model)["date"])

	fieldErrors := fieldErrorsOf(t, api, http.MethodGet, "/api/insights/02-03-2026", nil)
	assert.Contains(t, fieldErrors, "date")
}

func applyForPass(t *testing.T, api *RestAPI) string {
	t.Helper()
	resp, model := serveApiRequest(t, api, http.MethodPost, "/api/passes", map[string]string{
		"applicantName": "Asha Rao",
		"applicantId":   "STU-2231",
		"passType":      "student",
		"routeId":       "500D",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entry := entryOf(t, model)
	assert.Equal(t, "pending", entry["status"])
	return entry["id"].(string)
}

func TestPassDecisions(t *testing.T) {
	api := createTestApi(t)

	t.Run("approve once", func(t *testing.T) {
		id := applyForPass(t, api)

		fieldErrors := fieldErrorsOf(t, api, http.MethodPost, "/api/passes/"+id+"/approve", map[string]string{"validFrom": "2026-04-01"})
		assert.Contains(t, fieldErrors, "validUntil")

		resp, model := serveApiRequest(t, api, http.MethodPost, "/api/passes/"+id+"/approve", map[string]string{
			"validFrom":  "2026-04-01",
			"validUntil": "2026-06-30",
			"actor":      "clerk-4",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		entry := entryOf(t, model)
		assert.Equal(t, "approved", entry["status"])
		assert.Equal(t, "2026-06-30", entry["valid_until"])
		assert.Equal(t, "clerk-4", entry["decided_by"])

		resp, _ = serveApiRequest(t, api, http.MethodPost, "/api/passes/"+id+"/reject", map[string]string{"reason": "late"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("reject", func(t *testing.T) {
		id := applyForPass(t, api)
		resp, model := serveApiRequest(t, api, http.MethodPost, "/api/passes/"+id+"/reject", map[string]string{"reason": "Missing ID proof"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "rejected", entryOf(t, model)["status"])
		assert.Equal(t, "Missing ID proof", entryOf(t, model)["decision_note"])
	})

	t.Run("list by status", func(t *testing.T) {
		_, model := serveApiAndRetrieveEndpoint(t, api, "/api/passes?status=approved")
		assert.Len(t, listOf(t, model), 1)
		_, model = serveApiAndRetrieveEndpoint(t, api, "/api/passes")
		assert.Len(t, listOf(t, model), 2)
	})

	t.Run("missing pass", func(t *testing.T) {
		resp, _ := serveApiAndRetrieveEndpoint(t, api, "/api/passes/nope")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp, _ = serveApiRequest(t, api, http.MethodPost, "/api/passes/nope/suspend", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("invalid application", func(t *testing.T) {
		fieldErrors := fieldErrorsOf(t, api, http.MethodPost, "/api/passes", map[string]string{"passType": "vip"})
		assert.Contains(t, fieldErrors, "applicantName")
		assert.Contains(t, fieldErrors, "applicantId")
		assert.Contains(t, fieldErrors, "passType")
	})
}

func recordPayment(t *testing.T, api *RestAPI, amount float64, method string) string {
	t.Helper()
	resp, model := serveApiRequest(t, api, http.MethodPost, "/api/payments", map[string]interface{}{
		"vehicleId": "500D-001",
		"routeId":   "500D",
		"amount":    amount,
		"method":    method,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entry := entryOf(t, model)
	assert.Equal(t, "completed", entry["status"])
	assert.Equal(t, "INR", entry["currency"])
	return entry["id"].(string)
}

func TestPaymentsAndRefunds(t *testing.T) {
	api := createTestApi(t)

	cash := recordPayment(t, api, 25, "cash")
	upi := recordPayment(t, api, 40.5, "upi")

	resp, model := serveApiRequest(t, api, http.MethodPost, "/api/payments/"+cash+"/refund", map[string]string{"reason": "Double charge"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "refunded", entryOf(t, model)["status"])

	resp, _ = serveApiRequest(t, api, http.MethodPost, "/api/payments/"+cash+"/refund", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = serveApiRequest(t, api, http.MethodPost, "/api/payments/nope/refund", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, model = serveApiAndRetrieveEndpoint(t, api, "/api/payments/"+upi)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 40.5, entryOf(t, model)["amount"])

	_, model = serveApiAndRetrieveEndpoint(t, api, "/api/payments?vehicleId=500D-001")
	assert.Len(t, listOf(t, model), 2)
	_, model = serveApiAndRetrieveEndpoint(t, api, "/api/payments?vehicleId=500D-002")
	assert.Empty(t, listOf(t, model))

	resp, model = serveApiAndRetrieveEndpoint(t, api, "/api/payment-summary")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := entryOf(t, model)
	assert.Equal(t, float64(2), summary["count"])
	assert.Equal(t, 40.5, summary["collected"])
	assert.Equal(t, 25.0, summary["refunded"])
	assert.Equal(t, map[string]interface{}{"upi": 40.5}, summary["byMethod"])

	fieldErrors := fieldErrorsOf(t, api, http.MethodPost, "/api/payments", map[string]interface{}{
		"vehicleId": "500D-001",
		"amount":    -3,
		"method":    "barter",
	})
	assert.Contains(t, fieldErrors, "amount")
	assert.Contains(t, fieldErrors, "method")
}

func TestDisputes(t *testing.T) {
	api := createTestApi(t)
	paymentID := recordPayment(t, api, 30, "card")

	resp, model := serveApiRequest(t, api, http.MethodPost, "/api/disputes", map[string]string{
		"paymentId": paymentID,
		"reason":    "Charged twice at Hebbal",
		"raisedBy":  "passenger",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	disputeID := entryOf(t, model)["id"].(string)
	assert.Equal(t, "pending", entryOf(t, model)["status"])

	// Refunding straight from pending skips investigation.
	resp, _ = serveApiRequest(t, api, http.MethodPost, "/api/disputes/"+disputeID+"/refund", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, model = serveApiRequest(t, api, http.MethodPost, "/api/disputes/"+disputeID+"/investigate", map[string]string{"actor": "finance"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "investigating", entryOf(t, model)["status"])

	_, model = serveApiAndRetrieveEndpoint(t, api, "/api/payment-summary")
	assert.Equal(t, float64(1), entryOf(t, model)["openDisputes"])

	resp, model = serveApiRequest(t, api, http.MethodPost, "/api/disputes/"+disputeID+"/refund", map[string]string{"actor": "finance"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "refunded", entryOf(t, model)["status"])

	_, model = serveApiAndRetrieveEndpoint(t, api, "/api/payments/"+paymentID)
	assert.Equal(t, "refunded", entryOf(t, model)["status"])

	_, model = serveApiAndRetrieveEndpoint(t, api, "/api/disputes?status=refunded")
	assert.Len(t, listOf(t, model), 1)

	resp, _ = serveApiAndRetrieveEndpoint(t, api, "/api/disputes/"+disputeID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("unknown payment", func(t *testing.T) {
		resp, _ := serveApiRequest(t, api, http.MethodPost, "/api/disputes", map[string]string{
			"paymentId": "missing",
			"reason":    "never paid",
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown action", func(t *testing.T) {
		resp, _ := serveApiRequest(t, api, http.MethodPost, "/api/disputes/"+disputeID+"/escalate", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSimulationDisabledWhenConsumingLive(t *testing.T) {
	api := createTestApi(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/simulation"},
		{http.MethodPost, "/api/simulation/start"},
		{http.MethodPost, "/api/simulation/stop"},
		{http.MethodPut, "/api/simulation/speed"},
	} {
		resp, model := serveApiRequest(t, api, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode, tc.path)
		assert.Equal(t, errSimulatorDisabled.Error(), model.Text)
	}
}

func TestSimulationControl(t *testing.T) {
	api := createSimulatingTestApi(t)

	resp, model := serveApiAndRetrieveEndpoint(t, api, "/api/simulation")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, entryOf(t, model)["running"])

	resp, model = serveApiRequest(t, api, http.MethodPost, "/api/simulation/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := entryOf(t, model)
	assert.Equal(t, true, status["running"])
	assert.Greater(t, status["vehicles"].(float64), 0.0)

	// The first write lands in the store and the feed.
	_, model = serveApiAndRetrieveEndpoint(t, api, "/api/vehicles.json")
	assert.Len(t, listOf(t, model), int(status["vehicles"].(float64)))

	resp, model = serveApiRequest(t, api, http.MethodPut, "/api/simulation/speed", map[string]float64{"multiplier": 50})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10.0, entryOf(t, model)["speedMultiplier"])

	fieldErrors := fieldErrorsOf(t, api, http.MethodPut, "/api/simulation/speed", map[string]string{})
	assert.Contains(t, fieldErrors, "multiplier")
	fieldErrors = fieldErrorsOf(t, api, http.MethodPut, "/api/simulation/speed", map[string]float64{"multiplier": -1})
	assert.Contains(t, fieldErrors, "multiplier")

	resp, model = serveApiRequest(t, api, http.MethodPost, "/api/simulation/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, entryOf(t, model)["running"])

	resp, model = serveApiAndRetrieveEndpoint(t, api, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "simulate", entryOf(t, model)["mode"])
	assert.Contains(t, entryOf(t, model), "simulation")
}
