package booking

import (
	"time"

	"classbook/internal/domain"
)

// RequestInput is a booking request for one attendee. Members book for
// themselves; the handler fills Attendee from the token when it is empty.
type RequestInput struct {
	Attendee domain.Attendee `json:"attendee"`
}

type RequestResult struct {
	Status        domain.BookingStatus  `json:"status" example:"confirmed"`
	Booking       *domain.Booking       `json:"booking"`
	WaitlistEntry *domain.WaitlistEntry `json:"waitlist_entry,omitempty"`
}

type CancelResult struct {
	Booking  *domain.Booking `json:"booking"`
	Promoted *domain.Booking `json:"promoted,omitempty"`
	// PromotionErr is set when the freed seat could not be handed to the
	// waitlist. The cancellation itself is committed regardless.
	PromotionErr error `json:"-"`
}

type Promotion struct {
	Booking *domain.Booking       `json:"booking"`
	Entry   *domain.WaitlistEntry `json:"entry"`
}

// SessionBooking is a booking with its check-in time, for organizer rosters.
type SessionBooking struct {
	domain.Booking
	CheckedInAt *time.Time `db:"checked_in_at" json:"checked_in_at,omitempty"`
}

type CancelResponse struct {
	Booking        *domain.Booking `json:"booking"`
	Promoted       *domain.Booking `json:"promoted,omitempty"`
	PromotionError string          `json:"promotion_error,omitempty"`
}

type CheckInResponse struct {
	CheckIn *domain.CheckIn `json:"check_in"`
}
