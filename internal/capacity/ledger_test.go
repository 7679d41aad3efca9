package capacity

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

func setupMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func testSession(capacity int) *domain.ClassSession {
	start := time.Now().Add(24 * time.Hour)
	return &domain.ClassSession{ID: 1, OrganizationID: 3, Title: "Yoga", StartTime: start, EndTime: start.Add(time.Hour), Capacity: capacity}
}

func TestLockSession(t *testing.T) {
	db, mock := setupMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, organization_id, title, start_time")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "title", "start_time", "end_time", "capacity", "price_cents", "currency", "created_at", "updated_at"}).
			AddRow(1, 3, "Yoga", now, now.Add(time.Hour), 10, 1500, "USD", now, now))

	s, err := NewLedger().LockSession(context.Background(), db, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Capacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockSession_NotFound(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, organization_id, title, start_time")).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := NewLedger().LockSession(context.Background(), db, 9)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReserve_Admitted(t *testing.T) {
	db, mock := setupMock(t)
	now := time.Now()
	reqID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO bookings")).
		WithArgs(int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), "Ann", "ann@example.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(11, 1, reqID.String(), nil, "Ann", "ann@example.com", nil, "confirmed", "direct", now, now, nil))

	res, err := NewLedger().Reserve(context.Background(), db, testSession(2), domain.Attendee{Name: "Ann", Email: "Ann@Example.com"}, reqID)
	require.NoError(t, err)
	assert.Equal(t, Admitted, res.Outcome)
	require.NotNil(t, res.Booking)
	assert.Equal(t, int64(11), res.Booking.ID)
	assert.Equal(t, reqID, res.Booking.RequestID)
	assert.Equal(t, domain.BookingConfirmed, res.Booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_Full(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	res, err := NewLedger().Reserve(context.Background(), db, testSession(1), domain.Attendee{Name: "Bob", Email: "bob@example.com"}, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, Full, res.Outcome)
	assert.Nil(t, res.Booking)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmit(t *testing.T) {
	db, mock := setupMock(t)
	now := time.Now()
	reqID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bookings SET status = 'confirmed', source = 'waitlist_promotion'")).
		WithArgs(int64(12), int64(1)).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(12, 1, reqID.String(), nil, "Bob", "bob@example.com", nil, "confirmed", "waitlist_promotion", now, now, nil))

	b, err := NewLedger().Admit(context.Background(), db, testSession(1), 12)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceWaitlistPromotion, b.Source)
	assert.Equal(t, reqID, b.RequestID)
}

func TestAdmit_Full(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := NewLedger().Admit(context.Background(), db, testSession(1), 12)
	assert.ErrorIs(t, err, ErrFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmit_NotWaitlisted(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bookings")).
		WithArgs(int64(12), int64(1)).
		WillReturnError(sql.ErrNoRows)

	_, err := NewLedger().Admit(context.Background(), db, testSession(1), 12)
	assert.ErrorIs(t, err, ErrNotWaitlisted)
}

func TestRelease(t *testing.T) {
	db, mock := setupMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bookings SET status = 'cancelled'")).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(11, 1, uuid.NewString(), nil, "Ann", "ann@example.com", nil, "cancelled", "direct", now, now, now))

	b, err := NewLedger().Release(context.Background(), db, 11)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, b.Status)
	assert.NotNil(t, b.CancelledAt)
}

func TestRelease_NotConfirmed(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bookings SET status = 'cancelled'")).
		WithArgs(int64(11)).
		WillReturnError(sql.ErrNoRows)

	_, err := NewLedger().Release(context.Background(), db, 11)
	assert.ErrorIs(t, err, ErrNotConfirmed)
}

func TestAvailability(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	a, err := NewLedger().Availability(context.Background(), db, testSession(5))
	require.NoError(t, err)
	assert.Equal(t, &Availability{Capacity: 5, Confirmed: 3, Remaining: 2}, a)
}
