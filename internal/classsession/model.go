package classsession

import (
	"time"

	"classbook/internal/domain"
)

type SessionWithAvailability struct {
	domain.ClassSession
	ConfirmedCount  int  `db:"confirmed_count" json:"confirmed_count"`
	WaitlistedCount int  `db:"waitlisted_count" json:"waitlisted_count"`
	Available       int  `db:"-" json:"available"`
	IsFull          bool `db:"-" json:"is_full"`
}

type CreateSessionRequest struct {
	Title      string    `json:"title" binding:"required" validate:"required,max=200" example:"Morning Vinyasa"`
	StartTime  time.Time `json:"start_time" binding:"required" validate:"required"`
	EndTime    time.Time `json:"end_time" binding:"required" validate:"required,gtfield=StartTime"`
	Capacity   int       `json:"capacity" binding:"required" validate:"required,min=1,max=10000" example:"12"`
	PriceCents int64     `json:"price_cents" validate:"gte=0" example:"1500"`
	Currency   string    `json:"currency" validate:"omitempty,len=3" example:"USD"`
}

type UpdateWindowRequest struct {
	StartTime time.Time `json:"start_time" binding:"required" validate:"required"`
	EndTime   time.Time `json:"end_time" binding:"required" validate:"required,gtfield=StartTime"`
}

type UpdateCapacityRequest struct {
	Capacity int `json:"capacity" binding:"required" example:"20"`
}

// CapacityChange reports a capacity update and any bookings promoted from the
// waitlist into the new seats.
type CapacityChange struct {
	Session  domain.ClassSession `json:"session"`
	Promoted int                 `json:"promoted"`
}

const defaultCurrency = "USD"
