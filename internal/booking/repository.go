package booking

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"classbook/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetSession(ctx context.Context, id int64) (*domain.ClassSession, error) {
	query := `
		SELECT id, organization_id, title, start_time, end_time, capacity, price_cents, currency, created_at, updated_at
		FROM class_sessions
		WHERE id = $1
	`

	var session domain.ClassSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) GetBooking(ctx context.Context, q sqlx.QueryerContext, id int64) (*domain.Booking, error) {
	query := `SELECT ` + domain.BookingColumns + ` FROM bookings WHERE id = $1`

	var booking domain.Booking
	if err := sqlx.GetContext(ctx, q, &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) HasActiveBooking(ctx context.Context, q sqlx.QueryerContext, sessionID int64, email string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE class_session_id = $1 AND attendee_email = $2 AND status IN ('confirmed', 'waitlisted')
		)
	`

	var exists bool
	err := sqlx.GetContext(ctx, q, &exists, query, sessionID, strings.ToLower(strings.TrimSpace(email)))
	return exists, err
}

func (r *repository) HasCheckIn(ctx context.Context, q sqlx.QueryerContext, bookingID int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS(SELECT 1 FROM check_ins WHERE booking_id = $1)`, bookingID)
	return exists, err
}

func (r *repository) CreateWaitlisted(ctx context.Context, tx sqlx.ExtContext, sessionID int64, attendee domain.Attendee, requestID uuid.UUID) (*domain.Booking, error) {
	query := `
		INSERT INTO bookings (class_session_id, request_id, user_id, attendee_name, attendee_email, attendee_phone, status, source)
		VALUES ($1, $2, $3, $4, $5, $6, 'waitlisted', 'direct')
		RETURNING ` + domain.BookingColumns

	var phone *string
	if attendee.Phone != "" {
		phone = &attendee.Phone
	}

	var booking domain.Booking
	err := sqlx.GetContext(ctx, tx, &booking, query,
		sessionID, requestID, attendee.UserID, attendee.Name, attendee.NormalizedEmail(), phone)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) CancelWaitlisted(ctx context.Context, tx sqlx.ExtContext, bookingID int64) (*domain.Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'waitlisted'
		RETURNING ` + domain.BookingColumns

	var booking domain.Booking
	if err := sqlx.GetContext(ctx, tx, &booking, query, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotWaitlisted
		}
		return nil, err
	}
	return &booking, nil
}

// InsertCheckIn is insert-if-absent on the unique booking_id; a conflict
// yields ErrAlreadyCheckedIn and leaves the existing row untouched.
func (r *repository) InsertCheckIn(ctx context.Context, tx sqlx.ExtContext, bookingID, operatorID int64) (*domain.CheckIn, error) {
	query := `
		INSERT INTO check_ins (booking_id, operator_id)
		VALUES ($1, $2)
		ON CONFLICT (booking_id) DO NOTHING
		RETURNING id, booking_id, operator_id, checked_in_at
	`

	var checkIn domain.CheckIn
	if err := sqlx.GetContext(ctx, tx, &checkIn, query, bookingID, operatorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlreadyCheckedIn
		}
		return nil, err
	}
	return &checkIn, nil
}

func (r *repository) ListForAttendee(ctx context.Context, userID int64, email string) ([]domain.Booking, error) {
	query := `
		SELECT ` + domain.BookingColumns + `
		FROM bookings
		WHERE user_id = $1 OR attendee_email = $2
		ORDER BY created_at DESC
	`

	bookings := []domain.Booking{}
	err := r.db.SelectContext(ctx, &bookings, query, userID, strings.ToLower(email))
	return bookings, err
}

func (r *repository) ListForSession(ctx context.Context, sessionID int64) ([]SessionBooking, error) {
	query := `
		SELECT
			b.id, b.class_session_id, b.request_id, b.user_id, b.attendee_name, b.attendee_email,
			b.attendee_phone, b.status, b.source, b.created_at, b.updated_at, b.cancelled_at,
			ci.checked_in_at
		FROM bookings b
		LEFT JOIN check_ins ci ON ci.booking_id = b.id
		WHERE b.class_session_id = $1
		ORDER BY b.created_at
	`

	bookings := []SessionBooking{}
	err := r.db.SelectContext(ctx, &bookings, query, sessionID)
	return bookings, err
}
