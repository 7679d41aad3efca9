package noshow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SettingsRepository stores each organization's Policy in the
// organization_settings.no_show jsonb column.
type SettingsRepository struct {
	db           *sqlx.DB
	defaultGrace int
}

func NewSettingsRepository(db *sqlx.DB, defaultGraceMinutes int) *SettingsRepository {
	return &SettingsRepository{db: db, defaultGrace: defaultGraceMinutes}
}

// Get returns the stored policy, or the disabled default when the
// organization has never saved one.
func (r *SettingsRepository) Get(ctx context.Context, orgID int64) (Policy, error) {
	var raw []byte
	err := r.db.GetContext(ctx, &raw, `SELECT no_show FROM organization_settings WHERE organization_id = $1`, orgID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(raw) == 0) {
		return DefaultPolicy(r.defaultGrace), nil
	}
	if err != nil {
		return Policy{}, fmt.Errorf("load no-show policy: %w", err)
	}

	var p Policy
	if err := json.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("decode no-show policy for organization %d: %w", orgID, err)
	}
	if p.Penalty == nil {
		p.Penalty = DefaultPolicy(r.defaultGrace).Penalty
	}
	return p.withDefaultGrace(r.defaultGrace), nil
}

// Put validates and stores the policy. A policy without grace minutes gets
// the configured default; the stored policy is returned.
func (r *SettingsRepository) Put(ctx context.Context, orgID int64, p Policy) (Policy, error) {
	p = p.withDefaultGrace(r.defaultGrace)
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return Policy{}, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO organization_settings (organization_id, no_show)
		VALUES ($1, $2)
		ON CONFLICT (organization_id) DO UPDATE
		SET no_show = EXCLUDED.no_show, updated_at = NOW()
	`, orgID, raw)
	if err != nil {
		return Policy{}, fmt.Errorf("save no-show policy: %w", err)
	}
	return p, nil
}

// GraceWindow is how long after a class ends check-in stays open.
func (r *SettingsRepository) GraceWindow(ctx context.Context, orgID int64) (time.Duration, error) {
	p, err := r.Get(ctx, orgID)
	if err != nil {
		return 0, err
	}
	return time.Duration(p.GraceMinutes) * time.Minute, nil
}

func (r *SettingsRepository) EnabledOrganizations(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	err := r.db.SelectContext(ctx, &ids, `
		SELECT organization_id
		FROM organization_settings
		WHERE COALESCE((no_show->>'enabled')::boolean, false)
		ORDER BY organization_id
	`)
	return ids, err
}
