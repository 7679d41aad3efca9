package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingConfirmed  BookingStatus = "confirmed"
	BookingWaitlisted BookingStatus = "waitlisted"
	BookingCancelled  BookingStatus = "cancelled"
)

type BookingSource string

const (
	SourceDirect            BookingSource = "direct"
	SourceWaitlistPromotion BookingSource = "waitlist_promotion"
)

// Attendee identifies the person a booking is for. UserID is nil for guests
// and is only ever set from the authenticated caller, never from input.
type Attendee struct {
	UserID *int64 `json:"-"`
	Name   string `json:"name" validate:"required,max=200"`
	Email  string `json:"email" validate:"required,email"`
	Phone  string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// NormalizedEmail is the key used for duplicate and ownership checks.
func (a Attendee) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(a.Email))
}

type ClassSession struct {
	ID             int64     `db:"id" json:"id"`
	OrganizationID int64     `db:"organization_id" json:"organization_id"`
	Title          string    `db:"title" json:"title"`
	StartTime      time.Time `db:"start_time" json:"start_time"`
	EndTime        time.Time `db:"end_time" json:"end_time"`
	Capacity       int       `db:"capacity" json:"capacity"`
	PriceCents     int64     `db:"price_cents" json:"price_cents"`
	Currency       string    `db:"currency" json:"currency"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (s ClassSession) HasStarted(now time.Time) bool {
	return !now.Before(s.StartTime)
}

type Booking struct {
	ID             int64         `db:"id" json:"id"`
	ClassSessionID int64         `db:"class_session_id" json:"class_session_id"`
	RequestID      uuid.UUID     `db:"request_id" json:"request_id"`
	UserID         *int64        `db:"user_id" json:"user_id,omitempty"`
	AttendeeName   string        `db:"attendee_name" json:"attendee_name"`
	AttendeeEmail  string        `db:"attendee_email" json:"attendee_email"`
	AttendeePhone  *string       `db:"attendee_phone" json:"attendee_phone,omitempty"`
	Status         BookingStatus `db:"status" json:"status"`
	Source         BookingSource `db:"source" json:"source"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
	CancelledAt    *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// BookingColumns is the select list matching Booking's db tags.
const BookingColumns = `id, class_session_id, request_id, user_id, attendee_name, attendee_email,
	attendee_phone, status, source, created_at, updated_at, cancelled_at`

func (b Booking) IsActive() bool {
	return b.Status == BookingConfirmed || b.Status == BookingWaitlisted
}

// OwnedBy reports whether the booking belongs to the given user or email.
func (b Booking) OwnedBy(userID int64, email string) bool {
	if b.UserID != nil && *b.UserID == userID {
		return true
	}
	return email != "" && strings.EqualFold(b.AttendeeEmail, strings.TrimSpace(email))
}

type WaitlistEntry struct {
	ID             int64     `db:"id" json:"id"`
	ClassSessionID int64     `db:"class_session_id" json:"class_session_id"`
	BookingID      int64     `db:"booking_id" json:"booking_id"`
	RequestID      uuid.UUID `db:"request_id" json:"request_id"`
	AttendeeName   string    `db:"attendee_name" json:"attendee_name"`
	AttendeeEmail  string    `db:"attendee_email" json:"attendee_email"`
	Position       int       `db:"position" json:"position"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

const WaitlistColumns = `id, class_session_id, booking_id, request_id, attendee_name, attendee_email,
	position, created_at, updated_at`

type CheckIn struct {
	ID          int64     `db:"id" json:"id"`
	BookingID   int64     `db:"booking_id" json:"booking_id"`
	OperatorID  int64     `db:"operator_id" json:"operator_id"`
	CheckedInAt time.Time `db:"checked_in_at" json:"checked_in_at"`
}
