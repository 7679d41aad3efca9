package notification

import (
	"context"
	"time"
)

type Kind string

const (
	KindBookingConfirmation Kind = "booking_confirmation"
	KindWaitlistJoined      Kind = "waitlist_joined"
	KindWaitlistPromotion   Kind = "waitlist_promotion"
	KindBookingCancelled    Kind = "booking_cancelled"
	KindWaitlistWithdrawn   Kind = "waitlist_withdrawn"
	KindNoShow              Kind = "no_show_notification"
)

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Payload carries the template fields for every kind; unused fields stay zero.
type Payload struct {
	BookingID      int64     `json:"booking_id,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	ClassSessionID int64     `json:"class_session_id,omitempty"`
	ClassTitle     string    `json:"class_title,omitempty"`
	StartsAt       time.Time `json:"starts_at"`
	Position       int       `json:"position,omitempty"`
	PenaltyKind    string    `json:"penalty_kind,omitempty"`
	PenaltyDetail  string    `json:"penalty_detail,omitempty"`
}

// Gateway is fire-and-forget: a returned error means the notification was
// not accepted for delivery, never that a booking transition failed.
type Gateway interface {
	Notify(ctx context.Context, to Recipient, kind Kind, payload Payload) error
}
