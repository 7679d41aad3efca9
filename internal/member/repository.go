package member

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreatePass(ctx context.Context, orgID int64, req CreatePassRequest) (*Pass, error) {
	pass := &Pass{}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO passes (organization_id, user_id, attendee_email, credits_remaining, status, valid_until)
		VALUES ($1, $2, $3, $4, 'active', $5)
		RETURNING `+passColumns,
		orgID, req.UserID, strings.ToLower(req.AttendeeEmail), req.Credits, req.ValidUntil,
	).StructScan(pass)

	return pass, err
}

func (r *Repository) ListPassesByEmail(ctx context.Context, email string) ([]Pass, error) {
	passes := []Pass{}
	err := r.db.SelectContext(ctx, &passes, `
		SELECT `+passColumns+`
		FROM passes
		WHERE attendee_email = $1
		ORDER BY created_at DESC
	`, strings.ToLower(email))
	return passes, err
}

// DeductCredits takes credits from the attendee's active pass that expires
// first. It returns nil without error when the attendee holds no active pass.
func (r *Repository) DeductCredits(ctx context.Context, tx sqlx.ExtContext, orgID int64, email string, credits int) (*Pass, error) {
	pass := &Pass{}
	err := sqlx.GetContext(ctx, tx, pass, `
		UPDATE passes
		SET credits_remaining = GREATEST(credits_remaining - $3, 0),
		    updated_at = NOW()
		WHERE id = (
			SELECT id FROM passes
			WHERE organization_id = $1
			  AND attendee_email = $2
			  AND status = 'active'
			  AND (valid_until IS NULL OR valid_until >= NOW())
			ORDER BY valid_until NULLS LAST, id
			LIMIT 1
			FOR UPDATE
		)
		RETURNING `+passColumns,
		orgID, strings.ToLower(email), credits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pass, nil
}

// Suspend records a suspension caused by a booking. A second call for the same
// booking is a no-op.
func (r *Repository) Suspend(ctx context.Context, tx sqlx.ExecerContext, orgID int64, email string, bookingID int64, until time.Time, reason string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO member_suspensions (organization_id, attendee_email, booking_id, suspended_until, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (booking_id) DO NOTHING
	`, orgID, strings.ToLower(email), bookingID, until, reason)
	return err
}

func (r *Repository) IsSuspended(ctx context.Context, orgID int64, email string, at time.Time) (bool, error) {
	var suspended bool
	err := r.db.GetContext(ctx, &suspended, `
		SELECT EXISTS(
			SELECT 1 FROM member_suspensions
			WHERE organization_id = $1 AND attendee_email = $2 AND suspended_until > $3
		)
	`, orgID, strings.ToLower(email), at)
	return suspended, err
}
