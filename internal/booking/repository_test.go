package booking

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"classbook/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingCols = []string{
	"id", "class_session_id", "request_id", "user_id", "attendee_name", "attendee_email",
	"attendee_phone", "status", "source", "created_at", "updated_at", "cancelled_at",
}

func setupRepo(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, Repository) {
	sqlDB, smock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db := sqlx.NewDb(sqlDB, "sqlmock")
	return db, smock, NewRepository(db)
}

func TestRepository_GetSession(t *testing.T) {
	_, smock, repo := setupRepo(t)
	now := time.Now()

	smock.ExpectQuery(regexp.QuoteMeta("SELECT id, organization_id, title")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "title", "start_time", "end_time", "capacity", "price_cents", "currency", "created_at", "updated_at"}).
			AddRow(7, 3, "Spin", now, now.Add(time.Hour), 12, 0, "USD", now, now))

	session, err := repo.GetSession(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Spin", session.Title)
	assert.NoError(t, smock.ExpectationsWereMet())
}

func TestRepository_GetSession_NotFound(t *testing.T) {
	_, smock, repo := setupRepo(t)
	smock.ExpectQuery(regexp.QuoteMeta("SELECT id, organization_id, title")).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetSession(context.Background(), 7)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRepository_GetBooking_NotFound(t *testing.T) {
	db, smock, repo := setupRepo(t)
	smock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_session_id")).
		WithArgs(int64(11)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetBooking(context.Background(), db, 11)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestRepository_HasActiveBooking_NormalizesEmail(t *testing.T) {
	db, smock, repo := setupRepo(t)
	smock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(")).
		WithArgs(int64(7), "ann@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	dup, err := repo.HasActiveBooking(context.Background(), db, 7, " Ann@Example.com ")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.NoError(t, smock.ExpectationsWereMet())
}

func TestRepository_CreateWaitlisted(t *testing.T) {
	db, smock, repo := setupRepo(t)
	now := time.Now()
	reqID := uuid.New()

	smock.ExpectQuery(regexp.QuoteMeta("INSERT INTO bookings")).
		WithArgs(int64(7), reqID, sqlmock.AnyArg(), "Ann", "ann@example.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(12, 7, reqID.String(), nil, "Ann", "ann@example.com", nil, "waitlisted", "direct", now, now, nil))

	b, err := repo.CreateWaitlisted(context.Background(), db, 7, domain.Attendee{Name: "Ann", Email: "ANN@example.com"}, reqID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingWaitlisted, b.Status)
	assert.Equal(t, reqID, b.RequestID)
	assert.NoError(t, smock.ExpectationsWereMet())
}

func TestRepository_CancelWaitlisted_NotWaitlisted(t *testing.T) {
	db, smock, repo := setupRepo(t)
	smock.ExpectQuery(regexp.QuoteMeta("UPDATE bookings")).
		WithArgs(int64(12)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.CancelWaitlisted(context.Background(), db, 12)
	assert.ErrorIs(t, err, ErrNotWaitlisted)
}

func TestRepository_InsertCheckIn(t *testing.T) {
	db, smock, repo := setupRepo(t)
	now := time.Now()

	smock.ExpectQuery(regexp.QuoteMeta("INSERT INTO check_ins (booking_id, operator_id)")).
		WithArgs(int64(11), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "operator_id", "checked_in_at"}).AddRow(4, 11, 1, now))

	ci, err := repo.InsertCheckIn(context.Background(), db, 11, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), ci.ID)
	assert.NoError(t, smock.ExpectationsWereMet())
}

func TestRepository_InsertCheckIn_Conflict(t *testing.T) {
	db, smock, repo := setupRepo(t)

	smock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (booking_id) DO NOTHING")).
		WithArgs(int64(11), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "operator_id", "checked_in_at"}))

	_, err := repo.InsertCheckIn(context.Background(), db, 11, 1)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
}

func TestRepository_ListForSession(t *testing.T) {
	_, smock, repo := setupRepo(t)
	now := time.Now()
	cols := append(append([]string{}, bookingCols...), "checked_in_at")

	smock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN check_ins ci ON ci.booking_id = b.id")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(11, 7, uuid.New().String(), nil, "Ann", "ann@example.com", nil, "confirmed", "direct", now, now, nil, now).
			AddRow(12, 7, uuid.New().String(), nil, "Bo", "bo@example.com", nil, "confirmed", "direct", now, now, nil, nil))

	rows, err := repo.ListForSession(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotNil(t, rows[0].CheckedInAt)
	assert.Nil(t, rows[1].CheckedInAt)
}
