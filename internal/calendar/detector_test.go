package calendar

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var busyCols = []string{"id", "organization_id", "integration_id", "external_event_id", "title", "start_time", "end_time", "created_at", "updated_at"}

func TestFindConflicts(t *testing.T) {
	db, mock := setupMock(t)
	w := Window{Start: at(10, 0), End: at(11, 0)}
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT bp.id, bp.organization_id, bp.integration_id")).
		WithArgs(int64(4), w.Start, w.End).
		WillReturnRows(sqlmock.NewRows(busyCols).
			AddRow(1, 4, 2, "evt_1", "Dentist", at(9, 30), at(10, 15), now, now).
			AddRow(2, 4, 2, "evt_2", "Busy", at(10, 45), at(12, 0), now, now))

	conflicts, err := NewDetector(db).FindConflicts(context.Background(), 4, w)
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "evt_1", conflicts[0].ExternalEventID)
	assert.True(t, conflicts[1].Window().Overlaps(w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindConflicts_InvalidWindow(t *testing.T) {
	db, mock := setupMock(t)

	_, err := NewDetector(db).FindConflicts(context.Background(), 4, Window{Start: at(11, 0), End: at(10, 0)})
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheck_NoConflicts(t *testing.T) {
	db, mock := setupMock(t)
	w := Window{Start: at(10, 0), End: at(11, 0)}

	mock.ExpectQuery(regexp.QuoteMeta("FROM calendar_busy_periods bp")).
		WithArgs(int64(4), w.Start, w.End).
		WillReturnRows(sqlmock.NewRows(busyCols))

	report, err := NewDetector(db).Check(context.Background(), 4, w)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ConflictCount)
	assert.NotNil(t, report.Conflicts)
}

func TestCheck_QueryError(t *testing.T) {
	db, mock := setupMock(t)
	w := Window{Start: at(10, 0), End: at(11, 0)}

	mock.ExpectQuery(regexp.QuoteMeta("FROM calendar_busy_periods bp")).
		WillReturnError(errors.New("connection reset"))

	_, err := NewDetector(db).Check(context.Background(), 4, w)
	assert.Error(t, err)
}
