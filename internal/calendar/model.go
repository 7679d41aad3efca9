package calendar

import (
	"errors"
	"time"
)

var (
	ErrInvalidWindow       = errors.New("window end must be after start")
	ErrIntegrationNotFound = errors.New("calendar integration not found")
	ErrIntegrationInactive = errors.New("calendar integration is not active")
)

type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderOutlook  Provider = "outlook"
	ProviderCalendly Provider = "calendly"
)

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

func NewWindow(start, end time.Time) (Window, error) {
	if !end.After(start) {
		return Window{}, ErrInvalidWindow
	}
	return Window{Start: start, End: end}, nil
}

func (w Window) Valid() bool {
	return w.End.After(w.Start)
}

// Overlaps reports whether the two windows share any instant. Windows that
// only touch at an endpoint do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

type Integration struct {
	ID             int64     `db:"id" json:"id"`
	OrganizationID int64     `db:"organization_id" json:"organization_id"`
	Provider       Provider  `db:"provider" json:"provider"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type BusyPeriod struct {
	ID              int64     `db:"id" json:"id"`
	OrganizationID  int64     `db:"organization_id" json:"organization_id"`
	IntegrationID   int64     `db:"integration_id" json:"integration_id"`
	ExternalEventID string    `db:"external_event_id" json:"external_event_id"`
	Title           string    `db:"title" json:"title"`
	StartTime       time.Time `db:"start_time" json:"start_time"`
	EndTime         time.Time `db:"end_time" json:"end_time"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

func (b BusyPeriod) Window() Window {
	return Window{Start: b.StartTime, End: b.EndTime}
}

const busyPeriodColumns = `id, organization_id, integration_id, external_event_id, title, start_time, end_time, created_at, updated_at`

// BusyPeriodInput is one event pushed by the external calendar sync.
type BusyPeriodInput struct {
	ExternalEventID string    `json:"external_event_id" validate:"required,max=255" example:"evt_123"`
	Title           string    `json:"title" validate:"max=255" example:"Busy"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	EndTime         time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

type CreateIntegrationRequest struct {
	Provider Provider `json:"provider" binding:"required,oneof=google outlook calendly" example:"google"`
}

type ConflictReport struct {
	Window        Window       `json:"window"`
	ConflictCount int          `json:"conflict_count"`
	Conflicts     []BusyPeriod `json:"conflicts"`
}

type SyncResult struct {
	IntegrationID int64 `json:"integration_id"`
	Upserted      int   `json:"upserted"`
	Skipped       int   `json:"skipped"`
}
