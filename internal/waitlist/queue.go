package waitlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"classbook/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrEntryNotFound = errors.New("waitlist entry not found")

// Queue keeps a dense 1-based FIFO per class session. Mutating methods must
// run in a transaction holding the class session lock; the unique
// (class_session_id, position) constraint is deferred so compaction can shift
// every survivor in one statement.
type Queue struct{}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(ctx context.Context, tx sqlx.ExtContext, sessionID, bookingID int64, requestID uuid.UUID, attendee domain.Attendee) (*domain.WaitlistEntry, error) {
	query := `
		INSERT INTO waitlist_entries (class_session_id, booking_id, request_id, attendee_name, attendee_email, position)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM waitlist_entries WHERE class_session_id = $1))
		RETURNING ` + domain.WaitlistColumns

	var entry domain.WaitlistEntry
	err := sqlx.GetContext(ctx, tx, &entry, query, sessionID, bookingID, requestID, attendee.Name, attendee.NormalizedEmail())
	if err != nil {
		return nil, fmt.Errorf("enqueue waitlist entry: %w", err)
	}
	return &entry, nil
}

// DequeueFront removes the entry at position 1 and shifts the rest forward.
// It returns nil when the waitlist is empty.
func (q *Queue) DequeueFront(ctx context.Context, tx sqlx.ExtContext, sessionID int64) (*domain.WaitlistEntry, error) {
	query := `
		DELETE FROM waitlist_entries
		WHERE class_session_id = $1 AND position = 1
		RETURNING ` + domain.WaitlistColumns

	var entry domain.WaitlistEntry
	if err := sqlx.GetContext(ctx, tx, &entry, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue waitlist front: %w", err)
	}

	if err := q.compact(ctx, tx, sessionID, entry.Position); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Withdraw removes an arbitrary entry and shifts the entries behind it.
func (q *Queue) Withdraw(ctx context.Context, tx sqlx.ExtContext, entryID int64) (*domain.WaitlistEntry, error) {
	query := `
		DELETE FROM waitlist_entries
		WHERE id = $1
		RETURNING ` + domain.WaitlistColumns

	var entry domain.WaitlistEntry
	if err := sqlx.GetContext(ctx, tx, &entry, query, entryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("withdraw waitlist entry %d: %w", entryID, err)
	}

	if err := q.compact(ctx, tx, entry.ClassSessionID, entry.Position); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (q *Queue) compact(ctx context.Context, tx sqlx.ExecerContext, sessionID int64, removed int) error {
	query := `
		UPDATE waitlist_entries
		SET position = position - 1, updated_at = now()
		WHERE class_session_id = $1 AND position > $2
	`

	if _, err := tx.ExecContext(ctx, query, sessionID, removed); err != nil {
		return fmt.Errorf("compact waitlist positions: %w", err)
	}
	return nil
}

func (q *Queue) GetByID(ctx context.Context, db sqlx.QueryerContext, entryID int64) (*domain.WaitlistEntry, error) {
	query := `SELECT ` + domain.WaitlistColumns + ` FROM waitlist_entries WHERE id = $1`

	var entry domain.WaitlistEntry
	if err := sqlx.GetContext(ctx, db, &entry, query, entryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (q *Queue) GetByBookingID(ctx context.Context, db sqlx.QueryerContext, bookingID int64) (*domain.WaitlistEntry, error) {
	query := `SELECT ` + domain.WaitlistColumns + ` FROM waitlist_entries WHERE booking_id = $1`

	var entry domain.WaitlistEntry
	if err := sqlx.GetContext(ctx, db, &entry, query, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (q *Queue) List(ctx context.Context, db sqlx.QueryerContext, sessionID int64) ([]domain.WaitlistEntry, error) {
	query := `SELECT ` + domain.WaitlistColumns + ` FROM waitlist_entries WHERE class_session_id = $1 ORDER BY position`

	entries := []domain.WaitlistEntry{}
	if err := sqlx.SelectContext(ctx, db, &entries, query, sessionID); err != nil {
		return nil, err
	}
	return entries, nil
}
