package calendar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"classbook/internal/db"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
)

type Store struct {
	db       *sqlx.DB
	validate *validator.Validate
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, validate: validator.New()}
}

func (s *Store) CreateIntegration(ctx context.Context, orgID int64, provider Provider) (*Integration, error) {
	var in Integration
	err := s.db.GetContext(ctx, &in, `
		INSERT INTO calendar_integrations (organization_id, provider, is_active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (organization_id, provider) DO UPDATE
		SET is_active = TRUE, updated_at = NOW()
		RETURNING id, organization_id, provider, is_active, created_at, updated_at
	`, orgID, provider)
	if err != nil {
		return nil, fmt.Errorf("create calendar integration: %w", err)
	}
	return &in, nil
}

func (s *Store) GetIntegration(ctx context.Context, orgID, id int64) (*Integration, error) {
	var in Integration
	err := s.db.GetContext(ctx, &in, `
		SELECT id, organization_id, provider, is_active, created_at, updated_at
		FROM calendar_integrations
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIntegrationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (s *Store) ListIntegrations(ctx context.Context, orgID int64) ([]Integration, error) {
	integrations := []Integration{}
	err := s.db.SelectContext(ctx, &integrations, `
		SELECT id, organization_id, provider, is_active, created_at, updated_at
		FROM calendar_integrations
		WHERE organization_id = $1
		ORDER BY id
	`, orgID)
	return integrations, err
}

func (s *Store) SetActive(ctx context.Context, orgID, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE calendar_integrations
		SET is_active = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
	`, id, orgID, active)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrIntegrationNotFound
	}
	return nil
}

// UpsertBusyPeriods ingests events from the external sync. Rows are keyed by
// (integration_id, external_event_id), so re-syncing the same feed updates in
// place. Invalid events are skipped and counted.
func (s *Store) UpsertBusyPeriods(ctx context.Context, integration *Integration, periods []BusyPeriodInput) (*SyncResult, error) {
	if !integration.IsActive {
		return nil, ErrIntegrationInactive
	}

	result := &SyncResult{IntegrationID: integration.ID}

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, p := range periods {
			if err := s.validate.Struct(p); err != nil {
				result.Skipped++
				continue
			}

			title := strings.TrimSpace(p.Title)
			if title == "" {
				title = "Busy"
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO calendar_busy_periods (organization_id, integration_id, external_event_id, title, start_time, end_time)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (integration_id, external_event_id) DO UPDATE
				SET title = EXCLUDED.title,
				    start_time = EXCLUDED.start_time,
				    end_time = EXCLUDED.end_time,
				    updated_at = NOW()
			`, integration.OrganizationID, integration.ID, p.ExternalEventID, title, p.StartTime, p.EndTime)
			if err != nil {
				return fmt.Errorf("upsert busy period %s: %w", p.ExternalEventID, err)
			}
			result.Upserted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
