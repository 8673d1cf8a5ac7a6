package restapi

import (
	"net/http"

	"controlroom.busops.org/internal/models"
	"controlroom.busops.org/internal/payments"
	"controlroom.busops.org/internal/utils"
)

func (api *RestAPI) paymentsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := api.Payments.Payments(r.Context(), r.URL.Query().Get("vehicleId"))
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewListResponse(list, models.NewEmptyReferences()))
}

func (api *RestAPI) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var in payments.Input
	if !api.decodeJSON(w, r, &in) {
		return
	}
	p, err := api.Payments.Record(r.Context(), in)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendCreated(w, r, map[string]interface{}{"entry": p})
}

func (api *RestAPI) paymentHandler(w http.ResponseWriter, r *http.Request) {
	p, err := api.Payments.GetPayment(r.Context(), utils.ExtractIDFromParams(r, "id"))
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(p, models.NewEmptyReferences()))
}

type refundRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

func (api *RestAPI) refundPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if !api.decodeJSON(w, r, &req) {
		return
	}
	p, err := api.Payments.Refund(r.Context(), utils.ExtractIDFromParams(r, "id"), utils.SanitizeInput(req.Reason), req.Actor)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(p, models.NewEmptyReferences()))
}

func (api *RestAPI) paymentSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := api.Payments.Summarize(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendOK(w, r, map[string]interface{}{"entry": summary})
}

func (api *RestAPI) disputesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := api.Payments.Disputes(r.Context(), payments.DisputeStatus(r.URL.Query().Get("status")))
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewListResponse(list, models.NewEmptyReferences()))
}

func (api *RestAPI) openDisputeHandler(w http.ResponseWriter, r *http.Request) {
	var in payments.DisputeInput
	if !api.decodeJSON(w, r, &in) {
		return
	}
	d, err := api.Payments.OpenDispute(r.Context(), in)
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendCreated(w, r, map[string]interface{}{"entry": d})
}

func (api *RestAPI) disputeHandler(w http.ResponseWriter, r *http.Request) {
	d, err := api.Payments.GetDispute(r.Context(), utils.ExtractIDFromParams(r, "id"))
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(d, models.NewEmptyReferences()))
}

type disputeAction struct {
	Resolution string `json:"resolution"`
	Actor      string `json:"actor"`
}

// disputeActionHandler moves a dispute: investigate, resolve or refund.
func (api *RestAPI) disputeActionHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r, "id")
	action := utils.ExtractIDFromParams(r, "action")

	var req disputeAction
	if !api.decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	var d payments.Dispute
	var err error
	switch action {
	case "investigate":
		d, err = api.Payments.Investigate(ctx, id, req.Actor)
	case "resolve":
		d, err = api.Payments.ResolveDispute(ctx, id, utils.SanitizeInput(req.Resolution), req.Actor)
	case "refund":
		d, err = api.Payments.RefundDispute(ctx, id, req.Actor)
	default:
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.errorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, models.NewEntryResponse(d, models.NewEmptyReferences()))
}
