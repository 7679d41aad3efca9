package calendar

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Detector finds busy periods from an organization's active calendar
// integrations that overlap a proposed class window. It is advisory: only
// class creation consults it, and existing classes are never re-checked.
type Detector struct {
	db *sqlx.DB
}

func NewDetector(db *sqlx.DB) *Detector {
	return &Detector{db: db}
}

func (d *Detector) FindConflicts(ctx context.Context, orgID int64, w Window) ([]BusyPeriod, error) {
	if !w.Valid() {
		return nil, ErrInvalidWindow
	}

	query := `
		SELECT ` + prefixed("bp", busyPeriodColumns) + `
		FROM calendar_busy_periods bp
		JOIN calendar_integrations ci ON ci.id = bp.integration_id
		WHERE bp.organization_id = $1
		  AND ci.is_active
		  AND bp.start_time < $3
		  AND bp.end_time > $2
		ORDER BY bp.start_time, bp.end_time, bp.id
	`

	conflicts := []BusyPeriod{}
	if err := d.db.SelectContext(ctx, &conflicts, query, orgID, w.Start, w.End); err != nil {
		return nil, fmt.Errorf("find calendar conflicts: %w", err)
	}
	return conflicts, nil
}

func (d *Detector) Check(ctx context.Context, orgID int64, w Window) (*ConflictReport, error) {
	conflicts, err := d.FindConflicts(ctx, orgID, w)
	if err != nil {
		return nil, err
	}
	return &ConflictReport{Window: w, ConflictCount: len(conflicts), Conflicts: conflicts}, nil
}

func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
