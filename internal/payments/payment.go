// Package payments records fare collections, refunds and payment disputes.
package payments

import (
	"errors"
	"math"
	"slices"

	"controlroom.busops.org/internal/utils"
)

var (
	ErrNotFound          = errors.New("payment not found")
	ErrDisputeNotFound   = errors.New("dispute not found")
	ErrAlreadyRefunded   = errors.New("payment already refunded")
	ErrInvalidTransition = errors.New("invalid dispute status transition")
)

type Method string

const (
	MethodCash   Method = "cash"
	MethodUPI    Method = "upi"
	MethodCard   Method = "card"
	MethodWallet Method = "wallet"
)

var Methods = []Method{MethodCash, MethodUPI, MethodCard, MethodWallet}

type Status string

const (
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

const DefaultCurrency = "INR"

// Payment is stored at payments/{id}. Amounts are in major currency units rounded to paise.
type Payment struct {
	ID           string  `json:"id"`
	VehicleID    string  `json:"vehicle_id"`
	DriverID     string  `json:"driver_id,omitempty"`
	RouteID      string  `json:"route_id,omitempty"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Method       Method  `json:"method"`
	Status       Status  `json:"status"`
	CreatedAt    int64   `json:"created_at"`
	RefundedAt   int64   `json:"refunded_at,omitempty"`
	RefundReason string  `json:"refund_reason,omitempty"`
	RefundedBy   string  `json:"refunded_by,omitempty"`
}

// Input is what Record needs.
type Input struct {
	VehicleID string  `json:"vehicleId"`
	DriverID  string  `json:"driverId"`
	RouteID   string  `json:"routeId"`
	Amount    float64 `json:"amount"`
	Method    Method  `json:"method"`
}

func (in Input) Validate() map[string][]string {
	fieldErrors := map[string][]string{}
	if err := utils.ValidateID(in.VehicleID); err != nil {
		fieldErrors["vehicleId"] = append(fieldErrors["vehicleId"], err.Error())
	}
	for field, id := range map[string]string{"driverId": in.DriverID, "routeId": in.RouteID} {
		if id == "" {
			continue
		}
		if err := utils.ValidateID(id); err != nil {
			fieldErrors[field] = append(fieldErrors[field], err.Error())
		}
	}
	if in.Amount <= 0 || math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		fieldErrors["amount"] = append(fieldErrors["amount"], "amount must be positive")
	}
	if !slices.Contains(Methods, in.Method) {
		fieldErrors["method"] = append(fieldErrors["method"], "unknown payment method")
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

func roundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}

// DisputeStatus moves pending, investigating, then resolved or refunded.
type DisputeStatus string

const (
	DisputePending       DisputeStatus = "pending"
	DisputeInvestigating DisputeStatus = "investigating"
	DisputeResolved      DisputeStatus = "resolved"
	DisputeRefunded      DisputeStatus = "refunded"
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputePending:       {DisputeInvestigating},
	DisputeInvestigating: {DisputeResolved, DisputeRefunded},
}

// CanTransitionTo reports whether a dispute may move from s to next. Resolved and refunded
// are terminal.
func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	return slices.Contains(disputeTransitions[s], next)
}

// Dispute is stored at payment-disputes/{id}.
type Dispute struct {
	ID         string        `json:"id"`
	PaymentID  string        `json:"payment_id"`
	Reason     string        `json:"reason"`
	RaisedBy   string        `json:"raised_by"`
	Status     DisputeStatus `json:"status"`
	Handler    string        `json:"handler,omitempty"`
	Resolution string        `json:"resolution,omitempty"`
	CreatedAt  int64         `json:"created_at"`
	UpdatedAt  int64         `json:"updated_at"`
}

type DisputeInput struct {
	PaymentID string `json:"paymentId"`
	Reason    string `json:"reason"`
	RaisedBy  string `json:"raisedBy"`
}

func (in DisputeInput) Validate() map[string][]string {
	fieldErrors := map[string][]string{}
	if err := utils.ValidateID(in.PaymentID); err != nil {
		fieldErrors["paymentId"] = append(fieldErrors["paymentId"], err.Error())
	}
	if err := utils.ValidateText(in.Reason, 500); err != nil {
		fieldErrors["reason"] = append(fieldErrors["reason"], err.Error())
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}
