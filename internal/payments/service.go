package payments

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/models"
	"controlroom.busops.org/internal/store"
)

type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
	mu     sync.Mutex
}

func NewService(s store.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  s,
		logger: logging.Component(logger, "payments"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func paymentPath(id string) string {
	return store.Join(store.Payments, id)
}

func disputePath(id string) string {
	return store.Join(store.PaymentDisputes, id)
}

// Record stores a completed payment.
func (s *Service) Record(ctx context.Context, in Input) (Payment, error) {
	if fieldErrors := in.Validate(); fieldErrors != nil {
		return Payment{}, models.NewValidationError("payment", fieldErrors)
	}
	p := Payment{
		ID:        s.newID(),
		VehicleID: in.VehicleID,
		DriverID:  in.DriverID,
		RouteID:   in.RouteID,
		Amount:    roundAmount(in.Amount),
		Currency:  DefaultCurrency,
		Method:    in.Method,
		Status:    StatusCompleted,
		CreatedAt: s.now().UnixMilli(),
	}
	if err := s.set(ctx, paymentPath(p.ID), p); err != nil {
		return Payment{}, err
	}
	logging.LogOperation(s.logger, "payment_recorded",
		slog.String("payment_id", p.ID),
		slog.Float64("amount", p.Amount),
		slog.String("method", string(p.Method)))
	return p, nil
}

// Refund moves a completed payment to refunded. There is no way back.
func (s *Service) Refund(ctx context.Context, id, reason, actor string) (Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refund(ctx, id, reason, actor)
}

// refund must be called with s.mu held.
func (s *Service) refund(ctx context.Context, id, reason, actor string) (Payment, error) {
	p, err := s.getPayment(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if p.Status == StatusRefunded {
		return p, fmt.Errorf("%w: %s", ErrAlreadyRefunded, id)
	}
	p.Status = StatusRefunded
	p.RefundedAt = s.now().UnixMilli()
	p.RefundReason = reason
	p.RefundedBy = actor
	if err := s.set(ctx, paymentPath(id), p); err != nil {
		return Payment{}, err
	}
	logging.LogOperation(s.logger, "payment_refunded", slog.String("payment_id", id))
	return p, nil
}

// OpenDispute raises a pending dispute against an existing payment.
func (s *Service) OpenDispute(ctx context.Context, in DisputeInput) (Dispute, error) {
	if fieldErrors := in.Validate(); fieldErrors != nil {
		return Dispute{}, models.NewValidationError("dispute", fieldErrors)
	}
	if _, err := s.getPayment(ctx, in.PaymentID); err != nil {
		return Dispute{}, err
	}
	now := s.now().UnixMilli()
	d := Dispute{
		ID:        s.newID(),
		PaymentID: in.PaymentID,
		Reason:    in.Reason,
		RaisedBy:  in.RaisedBy,
		Status:    DisputePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.set(ctx, disputePath(d.ID), d); err != nil {
		return Dispute{}, err
	}
	logging.LogOperation(s.logger, "dispute_opened", slog.String("dispute_id", d.ID), slog.String("payment_id", d.PaymentID))
	return d, nil
}

func (s *Service) Investigate(ctx context.Context, id, actor string) (Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveDispute(ctx, id, DisputeInvestigating, actor, "")
}

// ResolveDispute closes the dispute without refunding.
func (s *Service) ResolveDispute(ctx context.Context, id, resolution, actor string) (Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveDispute(ctx, id, DisputeResolved, actor, resolution)
}

// RefundDispute refunds the disputed payment and closes the dispute as refunded. If the
// payment cannot be refunded the dispute is left unchanged.
func (s *Service) RefundDispute(ctx context.Context, id, actor string) (Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.getDispute(ctx, id)
	if err != nil {
		return Dispute{}, err
	}
	if !d.Status.CanTransitionTo(DisputeRefunded) {
		return d, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, d.Status, DisputeRefunded)
	}
	if _, err := s.refund(ctx, d.PaymentID, "dispute "+d.ID, actor); err != nil {
		return d, err
	}
	return s.moveDispute(ctx, id, DisputeRefunded, actor, "refunded")
}

// moveDispute must be called with s.mu held.
func (s *Service) moveDispute(ctx context.Context, id string, next DisputeStatus, actor, resolution string) (Dispute, error) {
	d, err := s.getDispute(ctx, id)
	if err != nil {
		return Dispute{}, err
	}
	if !d.Status.CanTransitionTo(next) {
		return d, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, d.Status, next)
	}
	d.Status = next
	d.UpdatedAt = s.now().UnixMilli()
	if actor != "" {
		d.Handler = actor
	}
	if resolution != "" {
		d.Resolution = resolution
	}
	if err := s.set(ctx, disputePath(id), d); err != nil {
		return Dispute{}, err
	}
	logging.LogOperation(s.logger, "dispute_transition", slog.String("dispute_id", id), slog.String("status", string(next)))
	return d, nil
}

func (s *Service) set(ctx context.Context, path string, v any) error {
	if err := s.store.Set(ctx, path, v); err != nil {
		logging.LogWriteFailure(s.logger, path, err)
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (Payment, error) {
	return s.getPayment(ctx, id)
}

func (s *Service) getPayment(ctx context.Context, id string) (Payment, error) {
	p, found, err := store.GetRecord[Payment](ctx, s.store, paymentPath(id))
	if err != nil {
		return Payment{}, err
	}
	if !found {
		return Payment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

func (s *Service) GetDispute(ctx context.Context, id string) (Dispute, error) {
	return s.getDispute(ctx, id)
}

func (s *Service) getDispute(ctx context.Context, id string) (Dispute, error) {
	d, found, err := store.GetRecord[Dispute](ctx, s.store, disputePath(id))
	if err != nil {
		return Dispute{}, err
	}
	if !found {
		return Dispute{}, fmt.Errorf("%w: %s", ErrDisputeNotFound, id)
	}
	return d, nil
}

// Payments lists payments newest first, optionally for one vehicle.
func (s *Service) Payments(ctx context.Context, vehicleID string) ([]Payment, error) {
	records, skipped, err := store.ListRecords[Payment](ctx, s.store, store.Payments)
	if err != nil {
		return nil, err
	}
	s.warnSkipped("payment", skipped)
	out := make([]Payment, 0, len(records))
	for _, p := range records {
		if vehicleID == "" || p.VehicleID == vehicleID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Disputes lists disputes newest first, optionally filtered by status.
func (s *Service) Disputes(ctx context.Context, status DisputeStatus) ([]Dispute, error) {
	records, skipped, err := store.ListRecords[Dispute](ctx, s.store, store.PaymentDisputes)
	if err != nil {
		return nil, err
	}
	s.warnSkipped("dispute", skipped)
	out := make([]Dispute, 0, len(records))
	for _, d := range records {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Summary totals completed and refunded amounts.
type Summary struct {
	Count        int                `json:"count"`
	Collected    float64            `json:"collected"`
	Refunded     float64            `json:"refunded"`
	ByMethod     map[Method]float64 `json:"byMethod"`
	OpenDisputes int                `json:"openDisputes"`
}

func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	payments, err := s.Payments(ctx, "")
	if err != nil {
		return Summary{}, err
	}
	disputes, err := s.Disputes(ctx, "")
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{ByMethod: map[Method]float64{}}
	for _, p := range payments {
		sum.Count++
		if p.Status == StatusRefunded {
			sum.Refunded = roundAmount(sum.Refunded + p.Amount)
			continue
		}
		sum.Collected = roundAmount(sum.Collected + p.Amount)
		sum.ByMethod[p.Method] = roundAmount(sum.ByMethod[p.Method] + p.Amount)
	}
	for _, d := range disputes {
		if d.Status == DisputePending || d.Status == DisputeInvestigating {
			sum.OpenDisputes++
		}
	}
	return sum, nil
}

func (s *Service) warnSkipped(kind string, keys []string) {
	for _, key := range keys {
		s.logger.Warn("skipping malformed "+kind, slog.String("id", key))
	}
}
