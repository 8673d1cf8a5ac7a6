package incidents

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

// EmergencyFlagger raises or clears the emergency flag on a vehicle's live record.
type EmergencyFlagger interface {
	SetEmergency(ctx context.Context, vehicleID string, emergency bool) error
}

// Service creates incidents and moves them through their lifecycle. Writes are whole-record
// overwrites of emergencies/{id}; concurrent writers in other processes race and the last
// one wins.
type Service struct {
	store   store.Store
	flagger EmergencyFlagger
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	mu sync.Mutex
}

func NewService(s store.Store, flagger EmergencyFlagger, logger *slog.Logger) *Service {
	return &Service{
		store:   s,
		flagger: flagger,
		logger:  logging.Component(logger, "incidents"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func path(id string) string {
	return store.Join(store.Emergencies, id)
}

// Create records a new open incident with a single reported entry on its timeline and flags
// the vehicle. A flagging failure is logged and does not fail the report.
func (s *Service) Create(ctx context.Context, r Report) (Incident, error) {
	if fieldErrors := r.Validate(); fieldErrors != nil {
		return Incident{}, models.NewValidationError("incident report", fieldErrors)
	}

	now := s.now().UnixMilli()
	inc := Incident{
		ID:          s.newID(),
		VehicleID:   r.VehicleID,
		Type:        r.Type,
		Severity:    r.Severity,
		Status:      StatusOpen,
		Description: r.Description,
		ReportedBy:  r.ReportedBy,
		Location:    r.Location,
		CreatedAt:   now,
		UpdatedAt:   now,
		Timeline: []TimelineEntry{{
			Timestamp: now,
			Event:     EventReported,
			Actor:     actorOrDefault(r.ReportedBy),
			Note:      r.Description,
		}},
	}

	s.mu.Lock()
	err := s.store.Set(ctx, path(inc.ID), inc)
	s.mu.Unlock()
	if err != nil {
		logging.LogWriteFailure(s.logger, path(inc.ID), err)
		return Incident{}, fmt.Errorf("save incident: %w", err)
	}

	logging.LogOperation(s.logger, "incident_created",
		slog.String("incident_id", inc.ID),
		slog.String("vehicle_id", inc.VehicleID),
		slog.String("severity", string(inc.Severity)))
	s.flag(ctx, inc.VehicleID, true)
	return inc, nil
}

// Assign moves the incident to assigned and records who owns it.
func (s *Service) Assign(ctx context.Context, id, assignee, actor string) (Incident, error) {
	return s.transition(ctx, id, StatusAssigned, EventAssigned, actor, assignee, func(inc *Incident) {
		if assignee != "" {
			inc.Assignee = assignee
		}
	})
}

func (s *Service) Start(ctx context.Context, id, actor string) (Incident, error) {
	return s.transition(ctx, id, StatusInProgress, EventInProgress, actor, "", nil)
}

// Resolve marks the incident resolved and clears the vehicle emergency unless another
// incident for the vehicle is still unresolved.
func (s *Service) Resolve(ctx context.Context, id, actor, resolution string) (Incident, error) {
	return s.transition(ctx, id, StatusResolved, EventResolved, actor, resolution, func(inc *Incident) {
		inc.Resolution = resolution
	})
}

func (s *Service) Close(ctx context.Context, id, actor string) (Incident, error) {
	return s.transition(ctx, id, StatusClosed, EventClosed, actor, "", nil)
}

func (s *Service) transition(ctx context.Context, id string, next Status, event, actor, note string, mutate func(*Incident)) (Incident, error) {
	s.mu.Lock()
	inc, err := s.get(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return Incident{}, err
	}
	if !inc.Status.CanTransitionTo(next) {
		s.mu.Unlock()
		return inc, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, inc.Status, next)
	}

	now := s.now().UnixMilli()
	wasUnresolved := inc.Status.Unresolved()
	inc.Status = next
	inc.UpdatedAt = now
	if mutate != nil {
		mutate(&inc)
	}
	inc.Timeline = append(inc.Timeline, TimelineEntry{
		Timestamp: now,
		Event:     event,
		Actor:     actorOrDefault(actor),
		Note:      note,
	})

	err = s.store.Set(ctx, path(id), inc)
	s.mu.Unlock()
	if err != nil {
		logging.LogWriteFailure(s.logger, path(id), err)
		return Incident{}, fmt.Errorf("save incident: %w", err)
	}

	logging.LogOperation(s.logger, "incident_transition",
		slog.String("incident_id", id),
		slog.String("status", string(next)))

	if wasUnresolved && !next.Unresolved() {
		s.clearIfLast(ctx, inc)
	}
	return inc, nil
}

func (s *Service) clearIfLast(ctx context.Context, resolved Incident) {
	all, err := s.List(ctx)
	if err != nil {
		logging.LogError(s.logger, "could not check other incidents before clearing emergency", err,
			slog.String("vehicle_id", resolved.VehicleID))
		return
	}
	for _, other := range all {
		if other.ID != resolved.ID && other.VehicleID == resolved.VehicleID && other.Status.Unresolved() {
			return
		}
	}
	s.flag(ctx, resolved.VehicleID, false)
}

func (s *Service) flag(ctx context.Context, vehicleID string, emergency bool) {
	if s.flagger == nil {
		return
	}
	if err := s.flagger.SetEmergency(ctx, vehicleID, emergency); err != nil {
		s.logger.Warn("could not update vehicle emergency flag",
			slog.String("vehicle_id", vehicleID),
			slog.Bool("emergency", emergency),
			slog.String("error", err.Error()))
	}
}

func (s *Service) Get(ctx context.Context, id string) (Incident, error) {
	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id string) (Incident, error) {
	inc, found, err := store.GetRecord[Incident](ctx, s.store, path(id))
	if err != nil {
		return Incident{}, err
	}
	if !found {
		return Incident{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inc, nil
}

// List returns every incident, newest first.
func (s *Service) List(ctx context.Context) ([]Incident, error) {
	records, skipped, err := store.ListRecords[Incident](ctx, s.store, store.Emergencies)
	if err != nil {
		return nil, err
	}
	for _, key := range skipped {
		s.logger.Warn("skipping malformed incident", slog.String("incident_id", key))
	}
	out := make([]Incident, 0, len(records))
	for _, inc := range records {
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "control-room"
	}
	return actor
}
