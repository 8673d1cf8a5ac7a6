// Package signals writes one-way control room requests for drivers: text messages and
// location requests.
package signals

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"controlroom.busops.org/internal/logging"
	"controlroom.busops.org/internal/models"
	"controlroom.busops.org/internal/store"
	"controlroom.busops.org/internal/utils"
)

const maxMessageLength = 500

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// Message is stored at messages/{vehicleId}/{messageId}.
type Message struct {
	ID        string   `json:"id"`
	VehicleID string   `json:"vehicle_id"`
	Text      string   `json:"text"`
	Priority  Priority `json:"priority"`
	From      string   `json:"from"`
	SentAt    int64    `json:"sent_at"`
	Read      bool     `json:"read"`
}

// LocationRequest is stored at location-requests/{vehicleId}. A new request replaces the
// previous one.
type LocationRequest struct {
	VehicleID   string `json:"vehicle_id"`
	RequestedBy string `json:"requested_by"`
	RequestedAt int64  `json:"requested_at"`
	Status      string `json:"status"`
}

const requestPending = "pending"

type Signaler struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewSignaler(s store.Store, logger *slog.Logger) *Signaler {
	return &Signaler{
		store:  s,
		logger: logging.Component(logger, "signals"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// SendMessage stores a message for the driver of vehicleID.
func (g *Signaler) SendMessage(ctx context.Context, vehicleID, text string, priority Priority, from string) (Message, error) {
	fieldErrors := map[string][]string{}
	if err := utils.ValidateID(vehicleID); err != nil {
		fieldErrors["vehicleId"] = append(fieldErrors["vehicleId"], err.Error())
	}
	if err := utils.ValidateText(text, maxMessageLength); err != nil {
		fieldErrors["text"] = append(fieldErrors["text"], err.Error())
	}
	if priority == "" {
		priority = PriorityNormal
	}
	if priority != PriorityNormal && priority != PriorityUrgent {
		fieldErrors["priority"] = append(fieldErrors["priority"], "priority must be normal or urgent")
	}
	if len(fieldErrors) > 0 {
		return Message{}, models.NewValidationError("message", fieldErrors)
	}

	m := Message{
		ID:        g.newID(),
		VehicleID: vehicleID,
		Text:      text,
		Priority:  priority,
		From:      sender(from),
		SentAt:    g.now().UnixMilli(),
	}
	path := store.Join(store.Messages, vehicleID, m.ID)
	if err := g.store.Set(ctx, path, m); err != nil {
		logging.LogWriteFailure(g.logger, path, err)
		return Message{}, fmt.Errorf("send message: %w", err)
	}
	logging.LogOperation(g.logger, "driver_message_sent",
		slog.String("vehicle_id", vehicleID),
		slog.String("priority", string(priority)))
	return m, nil
}

// RequestLocation asks the driver of vehicleID to report a position, replacing any earlier
// request.
func (g *Signaler) RequestLocation(ctx context.Context, vehicleID, from string) (LocationRequest, error) {
	if err := utils.ValidateID(vehicleID); err != nil {
		return LocationRequest{}, models.NewValidationError("location request", map[string][]string{"vehicleId": {err.Error()}})
	}
	req := LocationRequest{
		VehicleID:   vehicleID,
		RequestedBy: sender(from),
		RequestedAt: g.now().UnixMilli(),
		Status:      requestPending,
	}
	path := store.Join(store.LocationRequests, vehicleID)
	if err := g.store.Set(ctx, path, req); err != nil {
		logging.LogWriteFailure(g.logger, path, err)
		return LocationRequest{}, fmt.Errorf("request location: %w", err)
	}
	logging.LogOperation(g.logger, "location_requested", slog.String("vehicle_id", vehicleID))
	return req, nil
}

// Messages lists the messages sent to a vehicle, oldest first.
func (g *Signaler) Messages(ctx context.Context, vehicleID string) ([]Message, error) {
	records, _, err := store.ListRecords[Message](ctx, g.store, store.Join(store.Messages, vehicleID))
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(records))
	for _, m := range records {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SentAt != out[j].SentAt {
			return out[i].SentAt < out[j].SentAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func sender(from string) string {
	if from == "" {
		return "control-room"
	}
	return from
}
