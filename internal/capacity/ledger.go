package capacity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"classbook/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrFull            = errors.New("class session is full")
	ErrSessionNotFound = errors.New("class session not found")
	ErrNotConfirmed    = errors.New("booking is not confirmed")
	ErrNotWaitlisted   = errors.New("booking is not waitlisted")
)

type Outcome string

const (
	Admitted Outcome = "admitted"
	Full     Outcome = "full"
)

// Reservation is the result of Reserve. Booking is nil when Outcome is Full.
type Reservation struct {
	Outcome Outcome
	Booking *domain.Booking
}

type Availability struct {
	Capacity  int `json:"capacity"`
	Confirmed int `json:"confirmed"`
	Remaining int `json:"remaining"`
}

// Ledger is the single source of truth for whether a class session is full.
// Every mutating method expects the caller to hold the session lock taken by
// LockSession in the same transaction.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// LockSession takes the row lock that serializes all capacity and waitlist
// changes for a class session until the transaction ends.
func (l *Ledger) LockSession(ctx context.Context, q sqlx.QueryerContext, sessionID int64) (*domain.ClassSession, error) {
	query := `
		SELECT id, organization_id, title, start_time, end_time, capacity, price_cents, currency, created_at, updated_at
		FROM class_sessions
		WHERE id = $1
		FOR UPDATE
	`

	var session domain.ClassSession
	if err := sqlx.GetContext(ctx, q, &session, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("lock class session %d: %w", sessionID, err)
	}
	return &session, nil
}

func (l *Ledger) ConfirmedCount(ctx context.Context, q sqlx.QueryerContext, sessionID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE class_session_id = $1 AND status = 'confirmed'
	`

	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count confirmed bookings: %w", err)
	}
	return count, nil
}

func (l *Ledger) Availability(ctx context.Context, q sqlx.QueryerContext, session *domain.ClassSession) (*Availability, error) {
	confirmed, err := l.ConfirmedCount(ctx, q, session.ID)
	if err != nil {
		return nil, err
	}
	remaining := session.Capacity - confirmed
	if remaining < 0 {
		remaining = 0
	}
	return &Availability{Capacity: session.Capacity, Confirmed: confirmed, Remaining: remaining}, nil
}

// Reserve creates a confirmed booking when a seat is free. A full session is
// reported through the Full outcome, not an error.
func (l *Ledger) Reserve(ctx context.Context, tx sqlx.ExtContext, session *domain.ClassSession, attendee domain.Attendee, requestID uuid.UUID) (*Reservation, error) {
	confirmed, err := l.ConfirmedCount(ctx, tx, session.ID)
	if err != nil {
		return nil, err
	}
	if confirmed >= session.Capacity {
		return &Reservation{Outcome: Full}, nil
	}

	query := `
		INSERT INTO bookings (class_session_id, request_id, user_id, attendee_name, attendee_email, attendee_phone, status, source)
		VALUES ($1, $2, $3, $4, $5, $6, 'confirmed', 'direct')
		RETURNING ` + domain.BookingColumns

	var booking domain.Booking
	err = sqlx.GetContext(ctx, tx, &booking, query,
		session.ID, requestID, attendee.UserID, attendee.Name, attendee.NormalizedEmail(), nullable(attendee.Phone))
	if err != nil {
		return nil, fmt.Errorf("insert confirmed booking: %w", err)
	}
	return &Reservation{Outcome: Admitted, Booking: &booking}, nil
}

// Admit confirms an existing waitlisted booking, applying the same capacity
// check as Reserve. It returns ErrFull when no seat is free.
func (l *Ledger) Admit(ctx context.Context, tx sqlx.ExtContext, session *domain.ClassSession, bookingID int64) (*domain.Booking, error) {
	confirmed, err := l.ConfirmedCount(ctx, tx, session.ID)
	if err != nil {
		return nil, err
	}
	if confirmed >= session.Capacity {
		return nil, ErrFull
	}

	query := `
		UPDATE bookings
		SET status = 'confirmed', source = 'waitlist_promotion', updated_at = now()
		WHERE id = $1 AND class_session_id = $2 AND status = 'waitlisted'
		RETURNING ` + domain.BookingColumns

	var booking domain.Booking
	if err := sqlx.GetContext(ctx, tx, &booking, query, bookingID, session.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotWaitlisted
		}
		return nil, fmt.Errorf("admit booking %d: %w", bookingID, err)
	}
	return &booking, nil
}

// Release cancels a confirmed booking, freeing its seat.
func (l *Ledger) Release(ctx context.Context, tx sqlx.ExtContext, bookingID int64) (*domain.Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING ` + domain.BookingColumns

	var booking domain.Booking
	if err := sqlx.GetContext(ctx, tx, &booking, query, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotConfirmed
		}
		return nil, fmt.Errorf("release booking %d: %w", bookingID, err)
	}
	return &booking, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
