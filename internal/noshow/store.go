package noshow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var errAlreadyClaimed = errors.New("penalty already recorded")

// Candidate is a confirmed booking on an ended class with no check-in and no
// penalty record yet.
type Candidate struct {
	BookingID         int64     `db:"booking_id" json:"booking_id"`
	ClassSessionID    int64     `db:"class_session_id" json:"class_session_id"`
	ClassTitle        string    `db:"class_title" json:"class_title"`
	StartTime         time.Time `db:"start_time" json:"start_time"`
	EndTime           time.Time `db:"end_time" json:"end_time"`
	UserID            *int64    `db:"user_id" json:"user_id,omitempty"`
	AttendeeName      string    `db:"attendee_name" json:"attendee_name"`
	AttendeeEmail     string    `db:"attendee_email" json:"attendee_email"`
	PaymentCustomerID *string   `db:"payment_customer_id" json:"-"`
}

type PenaltyRecord struct {
	ID             int64       `db:"id" json:"id"`
	BookingID      int64       `db:"booking_id" json:"booking_id"`
	OrganizationID int64       `db:"organization_id" json:"organization_id"`
	PenaltyKind    PenaltyKind `db:"penalty_kind" json:"penalty_kind"`
	Detail         string      `db:"detail" json:"detail"`
	PaymentID      *int64      `db:"payment_id" json:"payment_id,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Candidates lists bookings on classes that ended at or before cutoff and
// started no earlier than since.
func (s *Store) Candidates(ctx context.Context, orgID int64, cutoff, since time.Time) ([]Candidate, error) {
	query := `
		SELECT
			b.id AS booking_id, s.id AS class_session_id, s.title AS class_title,
			s.start_time, s.end_time, b.user_id, b.attendee_name, b.attendee_email,
			u.payment_customer_id
		FROM bookings b
		JOIN class_sessions s ON s.id = b.class_session_id
		LEFT JOIN users u ON u.id = b.user_id
		WHERE s.organization_id = $1
		  AND s.end_time <= $2
		  AND s.start_time >= $3
		  AND b.status = 'confirmed'
		  AND NOT EXISTS (SELECT 1 FROM check_ins ci WHERE ci.booking_id = b.id)
		  AND NOT EXISTS (SELECT 1 FROM no_show_penalty_records r WHERE r.booking_id = b.id)
		ORDER BY s.end_time, b.id
	`

	candidates := []Candidate{}
	if err := s.db.SelectContext(ctx, &candidates, query, orgID, cutoff, since); err != nil {
		return nil, fmt.Errorf("list no-show candidates: %w", err)
	}
	return candidates, nil
}

// StillEligible re-checks a candidate under the session lock.
func (s *Store) StillEligible(ctx context.Context, q sqlx.QueryerContext, bookingID int64) (bool, error) {
	var eligible bool
	err := sqlx.GetContext(ctx, q, &eligible, `
		SELECT EXISTS(
			SELECT 1 FROM bookings b
			WHERE b.id = $1
			  AND b.status = 'confirmed'
			  AND NOT EXISTS (SELECT 1 FROM check_ins ci WHERE ci.booking_id = b.id)
		)
	`, bookingID)
	return eligible, err
}

// Claim inserts the penalty record if absent. errAlreadyClaimed means another
// run got there first.
func (s *Store) Claim(ctx context.Context, tx sqlx.ExtContext, orgID, bookingID int64, kind PenaltyKind) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, tx, &id, `
		INSERT INTO no_show_penalty_records (booking_id, organization_id, penalty_kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (booking_id) DO NOTHING
		RETURNING id
	`, bookingID, orgID, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errAlreadyClaimed
	}
	return id, err
}

func (s *Store) Complete(ctx context.Context, tx sqlx.ExecerContext, recordID int64, detail string, paymentID *int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE no_show_penalty_records
		SET detail = $2, payment_id = $3
		WHERE id = $1
	`, recordID, detail, paymentID)
	return err
}
