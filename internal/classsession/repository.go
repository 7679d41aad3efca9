package classsession

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"classbook/internal/db"
	"classbook/internal/domain"

	"github.com/jmoiron/sqlx"
)

const sessionColumns = `id, organization_id, title, start_time, end_time, capacity, price_cents, currency, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, orgID int64, req CreateSessionRequest) (*domain.ClassSession, error) {
	query := `
		INSERT INTO class_sessions (organization_id, title, start_time, end_time, capacity, price_cents, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + sessionColumns

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	var session domain.ClassSession
	err := r.db.GetContext(ctx, &session, query,
		orgID, strings.TrimSpace(req.Title), req.StartTime, req.EndTime, req.Capacity, req.PriceCents, currency)
	if err != nil {
		return nil, err
	}

	return &session, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*domain.ClassSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM class_sessions
		WHERE id = $1
	`

	var session domain.ClassSession
	err := r.db.GetContext(ctx, &session, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	return &session, nil
}

func (r *repository) ListByOrganization(ctx context.Context, orgID int64, onlyFuture bool) ([]SessionWithAvailability, error) {
	query := `
		SELECT cs.id, cs.organization_id, cs.title, cs.start_time, cs.end_time, cs.capacity,
		       cs.price_cents, cs.currency, cs.created_at, cs.updated_at,
		       COUNT(b.id) FILTER (WHERE b.status = 'confirmed') AS confirmed_count,
		       COUNT(b.id) FILTER (WHERE b.status = 'waitlisted') AS waitlisted_count
		FROM class_sessions cs
		LEFT JOIN bookings b ON b.class_session_id = cs.id
		WHERE cs.organization_id = $1
	`

	if onlyFuture {
		query += " AND cs.start_time > NOW()"
	}

	query += " GROUP BY cs.id ORDER BY cs.start_time ASC, cs.id ASC"

	sessions := []SessionWithAvailability{}
	if err := r.db.SelectContext(ctx, &sessions, query, orgID); err != nil {
		return nil, err
	}

	for i := range sessions {
		available := sessions[i].Capacity - sessions[i].ConfirmedCount
		if available < 0 {
			available = 0
		}
		sessions[i].Available = available
		sessions[i].IsFull = available == 0
	}

	return sessions, nil
}

func (r *repository) HasActiveBookings(ctx context.Context, q sqlx.QueryerContext, sessionID int64) (bool, error) {
	return db.Exists(ctx, q, `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE class_session_id = $1 AND status IN ('confirmed', 'waitlisted')
		)
	`, sessionID)
}

func (r *repository) UpdateWindow(ctx context.Context, tx sqlx.ExtContext, id int64, start, end time.Time) (*domain.ClassSession, error) {
	query := `
		UPDATE class_sessions
		SET start_time = $2, end_time = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns

	var session domain.ClassSession
	if err := sqlx.GetContext(ctx, tx, &session, query, id, start, end); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) UpdateCapacity(ctx context.Context, tx sqlx.ExtContext, id int64, capacity int) (*domain.ClassSession, error) {
	query := `
		UPDATE class_sessions
		SET capacity = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns

	var session domain.ClassSession
	if err := sqlx.GetContext(ctx, tx, &session, query, id, capacity); err != nil {
		return nil, err
	}
	return &session, nil
}
