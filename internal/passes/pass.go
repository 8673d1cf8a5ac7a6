// Package passes handles travel pass applications and their one-time decision.
package passes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/models"
	"controlroom.busops.org/internal/store"
	"controlroom.busops.org/internal/utils"
)

var (
	ErrNotFound       = errors.New("pass not found")
	ErrAlreadyDecided = errors.New("pass already decided")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Type string

const (
	TypeStudent  Type = "student"
	TypeSenior   Type = "senior"
	TypeMonthly  Type = "monthly"
	TypeEmployee Type = "employee"
)

var Types = []Type{TypeStudent, TypeSenior, TypeMonthly, TypeEmployee}

// Pass is stored at passes/{id}. Validity dates are YYYY-MM-DD and only set on approval.
type Pass struct {
	ID            string `json:"id"`
	ApplicantName string `json:"applicant_name"`
	ApplicantID   string `json:"applicant_id"`
	Contact       string `json:"contact,omitempty"`
	PassType      Type   `json:"pass_type"`
	RouteID       string `json:"route_id,omitempty"`
	Status        Status `json:"status"`
	ValidFrom     string `json:"valid_from,omitempty"`
	ValidUntil    string `json:"valid_until,omitempty"`
	DecidedBy     string `json:"decided_by,omitempty"`
	DecisionNote  string `json:"decision_note,omitempty"`
	AppliedAt     int64  `json:"applied_at"`
	DecidedAt     int64  `json:"decided_at,omitempty"`
}

// Application is the input for Apply.
type Application struct {
	ApplicantName string `json:"applicantName"`
	ApplicantID   string `json:"applicantId"`
	Contact       string `json:"contact"`
	PassType      Type   `json:"passType"`
	RouteID       string `json:"routeId"`
}

func (a Application) Validate() map[string][]string {
	fieldErrors := map[string][]string{}
	if err := utils.ValidateText(a.ApplicantName, 100); err != nil {
		fieldErrors["applicantName"] = append(fieldErrors["applicantName"], err.Error())
	}
	if err := utils.ValidateID(a.ApplicantID); err != nil {
		fieldErrors["applicantId"] = append(fieldErrors["applicantId"], err.Error())
	}
	if !slices.Contains(Types, a.PassType) {
		fieldErrors["passType"] = append(fieldErrors["passType"], "unknown pass type")
	}
	if a.RouteID != "" {
		if err := utils.ValidateID(a.RouteID); err != nil {
			fieldErrors["routeId"] = append(fieldErrors["routeId"], err.Error())
		}
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

// Validity is the window granted on approval.
type Validity struct {
	From  string `json:"validFrom"`
	Until string `json:"validUntil"`
}

func (v Validity) Validate() map[string][]string {
	fieldErrors := map[string][]string{}
	if strings.TrimSpace(v.From) == "" {
		fieldErrors["validFrom"] = append(fieldErrors["validFrom"], "validity start is required")
	} else if err := utils.ValidateDate(v.From); err != nil {
		fieldErrors["validFrom"] = append(fieldErrors["validFrom"], err.Error())
	}
	if strings.TrimSpace(v.Until) == "" {
		fieldErrors["validUntil"] = append(fieldErrors["validUntil"], "validity end is required")
	} else if err := utils.ValidateDate(v.Until); err != nil {
		fieldErrors["validUntil"] = append(fieldErrors["validUntil"], err.Error())
	}
	// YYYY-MM-DD compares correctly as a string.
	if len(fieldErrors) == 0 && v.Until < v.From {
		fieldErrors["validUntil"] = append(fieldErrors["validUntil"], "validity ends before it starts")
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

// Service applies for passes and records decisions. A decided pass is never changed again.
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
		logger: logging.Component(logger, "passes"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func path(id string) string {
	return store.Join(store.Passes, id)
}

func (s *Service) Apply(ctx context.Context, a Application) (Pass, error) {
	if fieldErrors := a.Validate(); fieldErrors != nil {
		return Pass{}, models.NewValidationError("pass application", fieldErrors)
	}
	p := Pass{
		ID:            s.newID(),
		ApplicantName: strings.TrimSpace(a.ApplicantName),
		ApplicantID:   a.ApplicantID,
		Contact:       a.Contact,
		PassType:      a.PassType,
		RouteID:       a.RouteID,
		Status:        StatusPending,
		AppliedAt:     s.now().UnixMilli(),
	}
	if err := s.save(ctx, p); err != nil {
		return Pass{}, err
	}
	logging.LogOperation(s.logger, "pass_applied", slog.String("pass_id", p.ID), slog.String("pass_type", string(p.PassType)))
	return p, nil
}

// Approve grants the pass for the validity window.
func (s *Service) Approve(ctx context.Context, id string, validity Validity, actor string) (Pass, error) {
	if fieldErrors := validity.Validate(); fieldErrors != nil {
		return Pass{}, models.NewValidationError("pass validity", fieldErrors)
	}
	return s.decide(ctx, id, StatusApproved, actor, "", func(p *Pass) {
		p.ValidFrom = validity.From
		p.ValidUntil = validity.Until
	})
}

func (s *Service) Reject(ctx context.Context, id, reason, actor string) (Pass, error) {
	return s.decide(ctx, id, StatusRejected, actor, reason, nil)
}

func (s *Service) decide(ctx context.Context, id string, status Status, actor, note string, mutate func(*Pass)) (Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.get(ctx, id)
	if err != nil {
		return Pass{}, err
	}
	if p.Status != StatusPending {
		return p, fmt.Errorf("%w: %s is %s", ErrAlreadyDecided, id, p.Status)
	}
	p.Status = status
	p.DecidedBy = actor
	p.DecisionNote = note
	p.DecidedAt = s.now().UnixMilli()
	if mutate != nil {
		mutate(&p)
	}
	if err := s.save(ctx, p); err != nil {
		return Pass{}, err
	}
	logging.LogOperation(s.logger, "pass_decided", slog.String("pass_id", id), slog.String("status", string(status)))
	return p, nil
}

func (s *Service) save(ctx context.Context, p Pass) error {
	if err := s.store.Set(ctx, path(p.ID), p); err != nil {
		logging.LogWriteFailure(s.logger, path(p.ID), err)
		return fmt.Errorf("save pass: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (Pass, error) {
	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id string) (Pass, error) {
	p, found, err := store.GetRecord[Pass](ctx, s.store, path(id))
	if err != nil {
		return Pass{}, err
	}
	if !found {
		return Pass{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// List returns passes with the given status, or all when status is empty, newest first.
func (s *Service) List(ctx context.Context, status Status) ([]Pass, error) {
	records, skipped, err := store.ListRecords[Pass](ctx, s.store, store.Passes)
	if err != nil {
		return nil, err
	}
	for _, key := range skipped {
		s.logger.Warn("skipping malformed pass", slog.String("pass_id", key))
	}
	out := make([]Pass, 0, len(records))
	for _, p := range records {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppliedAt != out[j].AppliedAt {
			return out[i].AppliedAt > out[j].AppliedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
