package booking

import (
	"context"
	"time"

	"classbook/internal/capacity"
	"classbook/internal/domain"
	"classbook/internal/outbox"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct{ mock.Mock }

func (m *MockRepository) GetSession(ctx context.Context, id int64) (*domain.ClassSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClassSession), args.Error(1)
}

func (m *MockRepository) GetBooking(ctx context.Context, q sqlx.QueryerContext, id int64) (*domain.Booking, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockRepository) HasActiveBooking(ctx context.Context, q sqlx.QueryerContext, sessionID int64, email string) (bool, error) {
	args := m.Called(ctx, q, sessionID, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) HasCheckIn(ctx context.Context, q sqlx.QueryerContext, bookingID int64) (bool, error) {
	args := m.Called(ctx, q, bookingID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) CreateWaitlisted(ctx context.Context, tx sqlx.ExtContext, sessionID int64, attendee domain.Attendee, requestID uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, tx, sessionID, attendee, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockRepository) CancelWaitlisted(ctx context.Context, tx sqlx.ExtContext, bookingID int64) (*domain.Booking, error) {
	args := m.Called(ctx, tx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockRepository) InsertCheckIn(ctx context.Context, tx sqlx.ExtContext, bookingID, operatorID int64) (*domain.CheckIn, error) {
	args := m.Called(ctx, tx, bookingID, operatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckIn), args.Error(1)
}

func (m *MockRepository) ListForAttendee(ctx context.Context, userID int64, email string) ([]domain.Booking, error) {
	args := m.Called(ctx, userID, email)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockRepository) ListForSession(ctx context.Context, sessionID int64) ([]SessionBooking, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).([]SessionBooking), args.Error(1)
}

type MockLedger struct{ mock.Mock }

func (m *MockLedger) LockSession(ctx context.Context, q sqlx.QueryerContext, sessionID int64) (*domain.ClassSession, error) {
	args := m.Called(ctx, q, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClassSession), args.Error(1)
}

func (m *MockLedger) ConfirmedCount(ctx context.Context, q sqlx.QueryerContext, sessionID int64) (int, error) {
	args := m.Called(ctx, q, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) Availability(ctx context.Context, q sqlx.QueryerContext, session *domain.ClassSession) (*capacity.Availability, error) {
	args := m.Called(ctx, q, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*capacity.Availability), args.Error(1)
}

func (m *MockLedger) Reserve(ctx context.Context, tx sqlx.ExtContext, session *domain.ClassSession, attendee domain.Attendee, requestID uuid.UUID) (*capacity.Reservation, error) {
	args := m.Called(ctx, tx, session, attendee, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*capacity.Reservation), args.Error(1)
}

func (m *MockLedger) Admit(ctx context.Context, tx sqlx.ExtContext, session *domain.ClassSession, bookingID int64) (*domain.Booking, error) {
	args := m.Called(ctx, tx, session, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockLedger) Release(ctx context.Context, tx sqlx.ExtContext, bookingID int64) (*domain.Booking, error) {
	args := m.Called(ctx, tx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockWaitlist struct{ mock.Mock }

func (m *MockWaitlist) Enqueue(ctx context.Context, tx sqlx.ExtContext, sessionID, bookingID int64, requestID uuid.UUID, attendee domain.Attendee) (*domain.WaitlistEntry, error) {
	args := m.Called(ctx, tx, sessionID, bookingID, requestID, attendee)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WaitlistEntry), args.Error(1)
}

func (m *MockWaitlist) DequeueFront(ctx context.Context, tx sqlx.ExtContext, sessionID int64) (*domain.WaitlistEntry, error) {
	args := m.Called(ctx, tx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WaitlistEntry), args.Error(1)
}

func (m *MockWaitlist) Withdraw(ctx context.Context, tx sqlx.ExtContext, entryID int64) (*domain.WaitlistEntry, error) {
	args := m.Called(ctx, tx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WaitlistEntry), args.Error(1)
}

func (m *MockWaitlist) GetByID(ctx context.Context, q sqlx.QueryerContext, entryID int64) (*domain.WaitlistEntry, error) {
	args := m.Called(ctx, q, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WaitlistEntry), args.Error(1)
}

func (m *MockWaitlist) GetByBookingID(ctx context.Context, q sqlx.QueryerContext, bookingID int64) (*domain.WaitlistEntry, error) {
	args := m.Called(ctx, q, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WaitlistEntry), args.Error(1)
}

func (m *MockWaitlist) List(ctx context.Context, q sqlx.QueryerContext, sessionID int64) ([]domain.WaitlistEntry, error) {
	args := m.Called(ctx, q, sessionID)
	return args.Get(0).([]domain.WaitlistEntry), args.Error(1)
}

type MockAppender struct{ mock.Mock }

func (m *MockAppender) Append(ctx context.Context, tx sqlx.ExecerContext, ev outbox.Event) error {
	return m.Called(ctx, tx, ev).Error(0)
}

type MockStanding struct{ mock.Mock }

func (m *MockStanding) IsSuspended(ctx context.Context, orgID int64, email string, at time.Time) (bool, error) {
	args := m.Called(ctx, orgID, email, at)
	return args.Bool(0), args.Error(1)
}

type MockGrace struct{ mock.Mock }

func (m *MockGrace) GraceWindow(ctx context.Context, orgID int64) (time.Duration, error) {
	args := m.Called(ctx, orgID)
	return args.Get(0).(time.Duration), args.Error(1)
}
