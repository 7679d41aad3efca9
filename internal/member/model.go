package member

import "time"

type PassStatus string

const (
	PassActive    PassStatus = "active"
	PassExpired   PassStatus = "expired"
	PassCancelled PassStatus = "cancelled"
)

// Pass is a prepaid class pack. No-show credit penalties draw from it.
type Pass struct {
	ID               int64      `db:"id" json:"id"`
	OrganizationID   int64      `db:"organization_id" json:"organization_id"`
	UserID           *int64     `db:"user_id" json:"user_id,omitempty"`
	AttendeeEmail    string     `db:"attendee_email" json:"attendee_email"`
	CreditsRemaining int        `db:"credits_remaining" json:"credits_remaining"`
	Status           PassStatus `db:"status" json:"status"`
	ValidUntil       *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

const passColumns = `id, organization_id, user_id, attendee_email, credits_remaining, status, valid_until, created_at, updated_at`

type Suspension struct {
	ID             int64     `db:"id" json:"id"`
	OrganizationID int64     `db:"organization_id" json:"organization_id"`
	AttendeeEmail  string    `db:"attendee_email" json:"attendee_email"`
	BookingID      int64     `db:"booking_id" json:"booking_id"`
	SuspendedUntil time.Time `db:"suspended_until" json:"suspended_until"`
	Reason         string    `db:"reason" json:"reason"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type CreatePassRequest struct {
	AttendeeEmail string     `json:"attendee_email" binding:"required,email" example:"ann@example.com"`
	UserID        *int64     `json:"user_id,omitempty"`
	Credits       int        `json:"credits" binding:"required,gt=0" example:"10"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
}
