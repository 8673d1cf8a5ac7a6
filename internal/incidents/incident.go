// Package incidents tracks vehicle emergencies from report to closure.
package incidents

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"controlroom.busops.org/internal/models"
	"controlroom.busops.org/internal/utils"
)

var (
	ErrNotFound          = errors.New("incident not found")
	ErrInvalidTransition = errors.New("invalid incident status transition")
)

type Type string

const (
	TypeBreakdown Type = "breakdown"
	TypeAccident  Type = "accident"
	TypeMedical   Type = "medical"
	TypeTraffic   Type = "traffic"
	TypeSecurity  Type = "security"
	TypeWeather   Type = "weather"
)

var Types = []Type{TypeBreakdown, TypeAccident, TypeMedical, TypeTraffic, TypeSecurity, TypeWeather}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Status moves strictly forward through open, assigned, in_progress, resolved, closed.
type Status string

const (
	StatusOpen       Status = "open"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

var statusRank = map[Status]int{
	StatusOpen:       0,
	StatusAssigned:   1,
	StatusInProgress: 2,
	StatusResolved:   3,
	StatusClosed:     4,
}

// CanTransitionTo reports whether next is strictly after s. Closed is terminal and there is
// no reopening.
func (s Status) CanTransitionTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	return ok && to > from
}

// Unresolved reports whether the incident still needs attention.
func (s Status) Unresolved() bool {
	return s != StatusResolved && s != StatusClosed
}

// Timeline events.
const (
	EventReported   = "reported"
	EventAssigned   = "assigned"
	EventInProgress = "in_progress"
	EventResolved   = "resolved"
	EventClosed     = "closed"
)

type TimelineEntry struct {
	Timestamp int64  `json:"timestamp"`
	Event     string `json:"event"`
	Actor     string `json:"actor"`
	Note      string `json:"note,omitempty"`
}

// Incident is stored at emergencies/{id}. Timestamps are unix milliseconds.
type Incident struct {
	ID          string           `json:"id"`
	VehicleID   string           `json:"vehicle_id"`
	Type        Type             `json:"type"`
	Severity    Severity         `json:"severity"`
	Status      Status           `json:"status"`
	Description string           `json:"description"`
	ReportedBy  string           `json:"reported_by"`
	Assignee    string           `json:"assignee,omitempty"`
	Location    *models.Location `json:"location,omitempty"`
	Resolution  string           `json:"resolution,omitempty"`
	CreatedAt   int64            `json:"created_at"`
	UpdatedAt   int64            `json:"updated_at"`
	Timeline    []TimelineEntry  `json:"timeline"`
}

// Report is the input for a new incident.
type Report struct {
	VehicleID   string           `json:"vehicleId"`
	Type        Type             `json:"type"`
	Severity    Severity         `json:"severity"`
	Description string           `json:"description"`
	ReportedBy  string           `json:"reportedBy"`
	Location    *models.Location `json:"location,omitempty"`
}

const maxDescription = 1000

// Validate returns field errors keyed by JSON field name, or nil.
func (r Report) Validate() map[string][]string {
	fieldErrors := map[string][]string{}
	if err := utils.ValidateID(r.VehicleID); err != nil {
		fieldErrors["vehicleId"] = append(fieldErrors["vehicleId"], err.Error())
	}
	if !slices.Contains(Types, r.Type) {
		fieldErrors["type"] = append(fieldErrors["type"], fmt.Sprintf("must be one of %s", joinValues(Types)))
	}
	if !slices.Contains(Severities, r.Severity) {
		fieldErrors["severity"] = append(fieldErrors["severity"], fmt.Sprintf("must be one of %s", joinValues(Severities)))
	}
	if strings.TrimSpace(r.Description) != "" {
		if err := utils.ValidateText(r.Description, maxDescription); err != nil {
			fieldErrors["description"] = append(fieldErrors["description"], err.Error())
		}
	}
	if r.Location != nil {
		for k, v := range utils.ValidateLocation(r.Location.Lat, r.Location.Lon) {
			fieldErrors[k] = append(fieldErrors[k], v...)
		}
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
