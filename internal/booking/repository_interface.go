package booking

import (
	"context"
	"time"

	"classbook/internal/capacity"
	"classbook/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	GetSession(ctx context.Context, id int64) (*domain.ClassSession, error)
	GetBooking(ctx context.Context, q sqlx.QueryerContext, id int64) (*domain.Booking, error)
	HasActiveBooking(ctx context.Context, q sqlx.QueryerContext, sessionID int64, email string) (bool, error)
	HasCheckIn(ctx context.Context, q sqlx.QueryerContext, bookingID int64) (bool, error)
	CreateWaitlisted(ctx context.Context, tx sqlx.ExtContext, sessionID int64, attendee domain.Attendee, requestID uuid.UUID) (*domain.Booking, error)
	CancelWaitlisted(ctx context.Context, tx sqlx.ExtContext, bookingID int64) (*domain.Booking, error)
	InsertCheckIn(ctx context.Context, tx sqlx.ExtContext, bookingID, operatorID int64) (*domain.CheckIn, error)
	ListForAttendee(ctx context.Context, userID int64, email string) ([]domain.Booking, error)
	ListForSession(ctx context.Context, sessionID int64) ([]SessionBooking, error)
}

// Ledger is implemented by *capacity.Ledger.
type Ledger interface {
	LockSession(ctx context.Context, q sqlx.QueryerContext, sessionID int64) (*domain.ClassSession, error)
	ConfirmedCount(ctx context.Context, q sqlx.QueryerContext, sessionID int64) (int, error)
	Availability(ctx context.Context, q sqlx.QueryerContext, session *domain.ClassSession) (*capacity.Availability, error)
	Reserve(ctx context.Context, tx sqlx.ExtContext, session *domain.ClassSession, attendee domain.Attendee, requestID uuid.UUID) (*capacity.Reservation, error)
	Admit(ctx context.Context, tx sqlx.ExtContext, session *domain.ClassSession, bookingID int64) (*domain.Booking, error)
	Release(ctx context.Context, tx sqlx.ExtContext, bookingID int64) (*domain.Booking, error)
}

// Waitlist is implemented by *waitlist.Queue.
type Waitlist interface {
	Enqueue(ctx context.Context, tx sqlx.ExtContext, sessionID, bookingID int64, requestID uuid.UUID, attendee domain.Attendee) (*domain.WaitlistEntry, error)
	DequeueFront(ctx context.Context, tx sqlx.ExtContext, sessionID int64) (*domain.WaitlistEntry, error)
	Withdraw(ctx context.Context, tx sqlx.ExtContext, entryID int64) (*domain.WaitlistEntry, error)
	GetByID(ctx context.Context, q sqlx.QueryerContext, entryID int64) (*domain.WaitlistEntry, error)
	GetByBookingID(ctx context.Context, q sqlx.QueryerContext, bookingID int64) (*domain.WaitlistEntry, error)
	List(ctx context.Context, q sqlx.QueryerContext, sessionID int64) ([]domain.WaitlistEntry, error)
}

type StandingChecker interface {
	IsSuspended(ctx context.Context, orgID int64, email string, at time.Time) (bool, error)
}

type GraceLookup interface {
	GraceWindow(ctx context.Context, orgID int64) (time.Duration, error)
}
