package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"classbook/internal/auth"
	"classbook/internal/capacity"
	"classbook/internal/db"
	"classbook/internal/domain"
	"classbook/internal/logger"
	"classbook/internal/metrics"
	"classbook/internal/notification"
	"classbook/internal/obs"
	"classbook/internal/outbox"
	"classbook/internal/waitlist"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrSessionNotFound    = errors.New("class session not found")
	ErrSessionStarted     = errors.New("class session has already started")
	ErrDuplicateBooking   = errors.New("attendee already has an active booking for this class session")
	ErrAttendeeSuspended  = errors.New("attendee is suspended from booking")
	ErrForbidden          = errors.New("not allowed to modify this booking")
	ErrAlreadyCancelled   = errors.New("booking is already cancelled")
	ErrAlreadyCheckedIn   = errors.New("booking is already checked in")
	ErrNotConfirmed       = errors.New("booking is not confirmed")
	ErrNotWaitlisted      = errors.New("booking is not waitlisted")
	ErrCheckInClosed      = errors.New("check-in window has closed")
	ErrCheckedIn          = errors.New("checked-in bookings cannot be cancelled")
	ErrEntryNotFound      = errors.New("waitlist entry not found")
	ErrInvalidAttendee    = errors.New("invalid attendee")
	ErrInvariantViolation = errors.New("booking invariant violation")
)

const promotionSavepoint = "waitlist_promotion"

type Service interface {
	Request(ctx context.Context, sessionID int64, in RequestInput) (*RequestResult, error)
	Cancel(ctx context.Context, bookingID int64, actor auth.Actor) (*CancelResult, error)
	CheckIn(ctx context.Context, bookingID int64, operator auth.Actor) (*domain.CheckIn, error)
	WithdrawWaitlist(ctx context.Context, entryID int64, actor auth.Actor) (*domain.Booking, error)
	PromoteWaitlist(ctx context.Context, sessionID int64) ([]Promotion, error)
	Get(ctx context.Context, bookingID int64) (*domain.Booking, error)
	ListForAttendee(ctx context.Context, actor auth.Actor) ([]domain.Booking, error)
	ListForSession(ctx context.Context, sessionID int64, actor auth.Actor) ([]SessionBooking, error)
	Waitlist(ctx context.Context, sessionID int64, actor auth.Actor) ([]domain.WaitlistEntry, error)
	Availability(ctx context.Context, sessionID int64) (*capacity.Availability, error)
}

type service struct {
	db       *sqlx.DB
	repo     Repository
	ledger   Ledger
	queue    Waitlist
	outbox   outbox.Appender
	standing StandingChecker
	grace    GraceLookup
	validate *validator.Validate
	tracer   trace.Tracer
	now      func() time.Time
}

func NewService(
	database *sqlx.DB,
	repo Repository,
	ledger Ledger,
	queue Waitlist,
	appender outbox.Appender,
	standing StandingChecker,
	grace GraceLookup,
) Service {
	return &service{
		db:       database,
		repo:     repo,
		ledger:   ledger,
		queue:    queue,
		outbox:   appender,
		standing: standing,
		grace:    grace,
		validate: validator.New(),
		tracer:   obs.Tracer("booking"),
		now:      time.Now,
	}
}

func (s *service) Request(ctx context.Context, sessionID int64, in RequestInput) (*RequestResult, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Request", trace.WithAttributes(attribute.Int64("class_session.id", sessionID)))
	defer span.End()

	if err := s.validate.Struct(in.Attendee); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttendee, err)
	}
	email := in.Attendee.NormalizedEmail()

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.HasStarted(s.now()) {
		return nil, ErrSessionStarted
	}

	suspended, err := s.standing.IsSuspended(ctx, session.OrganizationID, email, s.now())
	if err != nil {
		return nil, fmt.Errorf("check attendee standing: %w", err)
	}
	if suspended {
		return nil, ErrAttendeeSuspended
	}

	requestID := uuid.New()
	var result *RequestResult

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		locked, err := s.ledger.LockSession(ctx, tx, sessionID)
		if err != nil {
			return lockErr(err)
		}

		dup, err := s.repo.HasActiveBooking(ctx, tx, sessionID, email)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateBooking
		}

		reservation, err := s.ledger.Reserve(ctx, tx, locked, in.Attendee, requestID)
		if err != nil {
			return err
		}

		if reservation.Outcome == capacity.Admitted {
			result = &RequestResult{Status: domain.BookingConfirmed, Booking: reservation.Booking}
			return s.emit(ctx, tx, notification.KindBookingConfirmation, locked, reservation.Booking, 0)
		}

		booking, err := s.repo.CreateWaitlisted(ctx, tx, sessionID, in.Attendee, requestID)
		if err != nil {
			return fmt.Errorf("create waitlisted booking: %w", err)
		}
		entry, err := s.queue.Enqueue(ctx, tx, sessionID, booking.ID, requestID, in.Attendee)
		if err != nil {
			return fmt.Errorf("enqueue waitlist entry: %w", err)
		}

		result = &RequestResult{Status: domain.BookingWaitlisted, Booking: booking, WaitlistEntry: entry}
		return s.emit(ctx, tx, notification.KindWaitlistJoined, locked, booking, entry.Position)
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	if result.Status == domain.BookingConfirmed {
		metrics.RecordBooking("confirmed")
	} else {
		metrics.RecordBooking("waitlisted")
		metrics.RecordWaitlist("joined")
	}
	span.SetAttributes(attribute.String("booking.status", string(result.Status)))

	return result, nil
}

func (s *service) Cancel(ctx context.Context, bookingID int64, actor auth.Actor) (*CancelResult, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Cancel", trace.WithAttributes(attribute.Int64("booking.id", bookingID)))
	defer span.End()

	booking, err := s.repo.GetBooking(ctx, s.db, bookingID)
	if err != nil {
		return nil, err
	}
	session, err := s.repo.GetSession(ctx, booking.ClassSessionID)
	if err != nil {
		return nil, err
	}
	if !canModify(booking, session, actor) {
		return nil, ErrForbidden
	}

	result := &CancelResult{}

	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		locked, err := s.ledger.LockSession(ctx, tx, booking.ClassSessionID)
		if err != nil {
			return lockErr(err)
		}

		// Re-read under the lock; a concurrent cancel or promotion may have
		// changed the status since the ownership check.
		current, err := s.repo.GetBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		switch current.Status {
		case domain.BookingCancelled:
			return ErrAlreadyCancelled
		case domain.BookingWaitlisted:
			cancelled, err := s.withdrawLocked(ctx, tx, locked, current)
			if err != nil {
				return err
			}
			result.Booking = cancelled
			return nil
		}

		checkedIn, err := s.repo.HasCheckIn(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if checkedIn {
			return ErrCheckedIn
		}

		released, err := s.ledger.Release(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, capacity.ErrNotConfirmed) {
				return ErrNotConfirmed
			}
			return err
		}
		result.Booking = released

		if err := s.emit(ctx, tx, notification.KindBookingCancelled, locked, released, 0); err != nil {
			return err
		}

		result.Promoted, result.PromotionErr, err = s.promoteNextLocked(ctx, tx, locked)
		return err
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	metrics.RecordBookingCancellation()
	if result.Promoted != nil {
		metrics.RecordWaitlist("promoted")
	}
	if result.PromotionErr != nil {
		span.SetStatus(codes.Error, result.PromotionErr.Error())
	}

	return result, nil
}

// promoteNextLocked hands the freed seat to the waitlist front inside a
// savepoint. A failed promotion is rolled back to the savepoint and returned
// as perr so the cancellation can still commit; err is set only when the
// transaction itself is no longer usable. A nil booking with nil errors
// means the waitlist was empty or the session has already started; a seat
// freed after the start stays empty and the waitlist is left as is.
func (s *service) promoteNextLocked(ctx context.Context, tx *sqlx.Tx, session *domain.ClassSession) (promoted *domain.Booking, perr error, err error) {
	if session.HasStarted(s.now()) {
		return nil, nil, nil
	}

	if err := db.Savepoint(ctx, tx, promotionSavepoint); err != nil {
		return nil, nil, err
	}

	promoted, perr = s.promoteFront(ctx, tx, session)
	if perr != nil {
		if errors.Is(perr, capacity.ErrFull) || errors.Is(perr, capacity.ErrNotWaitlisted) {
			perr = fmt.Errorf("%w: promotion on session %d: %v", ErrInvariantViolation, session.ID, perr)
			metrics.RecordInvariantViolation("promotion")
			logger.Error("waitlist promotion rolled back",
				"class_session_id", session.ID,
				"error", perr,
			)
		} else {
			logger.Warn("waitlist promotion failed", "class_session_id", session.ID, "error", perr)
		}
		if err := db.RollbackToSavepoint(ctx, tx, promotionSavepoint); err != nil {
			return nil, perr, err
		}
		return nil, perr, nil
	}

	if err := db.ReleaseSavepoint(ctx, tx, promotionSavepoint); err != nil {
		return nil, nil, err
	}
	return promoted, nil, nil
}

func (s *service) promoteFront(ctx context.Context, tx *sqlx.Tx, session *domain.ClassSession) (*domain.Booking, error) {
	entry, err := s.queue.DequeueFront(ctx, tx, session.ID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	admitted, err := s.ledger.Admit(ctx, tx, session, entry.BookingID)
	if err != nil {
		return nil, err
	}

	if err := s.emit(ctx, tx, notification.KindWaitlistPromotion, session, admitted, 0); err != nil {
		return nil, err
	}
	return admitted, nil
}

func (s *service) CheckIn(ctx context.Context, bookingID int64, operator auth.Actor) (*domain.CheckIn, error) {
	ctx, span := s.tracer.Start(ctx, "booking.CheckIn", trace.WithAttributes(attribute.Int64("booking.id", bookingID)))
	defer span.End()

	booking, err := s.repo.GetBooking(ctx, s.db, bookingID)
	if err != nil {
		return nil, err
	}
	session, err := s.repo.GetSession(ctx, booking.ClassSessionID)
	if err != nil {
		return nil, err
	}
	if session.OrganizationID != operator.OrganizationID || !operator.IsOrganizer() {
		return nil, ErrForbidden
	}

	grace, err := s.grace.GraceWindow(ctx, session.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("load grace window: %w", err)
	}

	var checkIn *domain.CheckIn
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		locked, err := s.ledger.LockSession(ctx, tx, booking.ClassSessionID)
		if err != nil {
			return lockErr(err)
		}

		current, err := s.repo.GetBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if current.Status != domain.BookingConfirmed {
			return ErrNotConfirmed
		}
		if !s.now().Before(locked.EndTime.Add(grace)) {
			return ErrCheckInClosed
		}

		checkIn, err = s.repo.InsertCheckIn(ctx, tx, bookingID, operator.UserID)
		return err
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	metrics.RecordCheckIn()
	return checkIn, nil
}

func (s *service) WithdrawWaitlist(ctx context.Context, entryID int64, actor auth.Actor) (*domain.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.WithdrawWaitlist", trace.WithAttributes(attribute.Int64("waitlist_entry.id", entryID)))
	defer span.End()

	entry, err := s.queue.GetByID(ctx, s.db, entryID)
	if err != nil {
		return nil, entryErr(err)
	}
	booking, err := s.repo.GetBooking(ctx, s.db, entry.BookingID)
	if err != nil {
		return nil, err
	}
	session, err := s.repo.GetSession(ctx, entry.ClassSessionID)
	if err != nil {
		return nil, err
	}
	if !canModify(booking, session, actor) {
		return nil, ErrForbidden
	}

	var cancelled *domain.Booking
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		locked, err := s.ledger.LockSession(ctx, tx, entry.ClassSessionID)
		if err != nil {
			return lockErr(err)
		}

		current, err := s.repo.GetBooking(ctx, tx, entry.BookingID)
		if err != nil {
			return err
		}
		if current.Status != domain.BookingWaitlisted {
			return ErrNotWaitlisted
		}

		cancelled, err = s.withdrawLocked(ctx, tx, locked, current)
		return err
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	return cancelled, nil
}

func (s *service) withdrawLocked(ctx context.Context, tx *sqlx.Tx, session *domain.ClassSession, booking *domain.Booking) (*domain.Booking, error) {
	entry, err := s.queue.GetByBookingID(ctx, tx, booking.ID)
	if err != nil {
		return nil, entryErr(err)
	}
	if _, err := s.queue.Withdraw(ctx, tx, entry.ID); err != nil {
		return nil, entryErr(err)
	}

	cancelled, err := s.repo.CancelWaitlisted(ctx, tx, booking.ID)
	if err != nil {
		return nil, err
	}

	if err := s.emit(ctx, tx, notification.KindWaitlistWithdrawn, session, cancelled, 0); err != nil {
		return nil, err
	}
	metrics.RecordWaitlist("withdrawn")
	return cancelled, nil
}

// PromoteWaitlist fills every free seat from the front of the waitlist.
// Used after a capacity increase.
func (s *service) PromoteWaitlist(ctx context.Context, sessionID int64) ([]Promotion, error) {
	ctx, span := s.tracer.Start(ctx, "booking.PromoteWaitlist", trace.WithAttributes(attribute.Int64("class_session.id", sessionID)))
	defer span.End()

	var promotions []Promotion
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		locked, err := s.ledger.LockSession(ctx, tx, sessionID)
		if err != nil {
			return lockErr(err)
		}
		if locked.HasStarted(s.now()) {
			return nil
		}

		confirmed, err := s.ledger.ConfirmedCount(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		for free := locked.Capacity - confirmed; free > 0; free-- {
			entry, err := s.queue.DequeueFront(ctx, tx, sessionID)
			if err != nil {
				return err
			}
			if entry == nil {
				break
			}

			admitted, err := s.ledger.Admit(ctx, tx, locked, entry.BookingID)
			if err != nil {
				if errors.Is(err, capacity.ErrFull) || errors.Is(err, capacity.ErrNotWaitlisted) {
					metrics.RecordInvariantViolation("promotion")
					logger.Error("waitlist promotion failed", "class_session_id", sessionID, "booking_id", entry.BookingID, "error", err)
					return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
				}
				return err
			}

			if err := s.emit(ctx, tx, notification.KindWaitlistPromotion, locked, admitted, 0); err != nil {
				return err
			}
			promotions = append(promotions, Promotion{Booking: admitted, Entry: entry})
		}
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	for range promotions {
		metrics.RecordWaitlist("promoted")
	}
	return promotions, nil
}

func (s *service) Get(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	return s.repo.GetBooking(ctx, s.db, bookingID)
}

func (s *service) ListForAttendee(ctx context.Context, actor auth.Actor) ([]domain.Booking, error) {
	return s.repo.ListForAttendee(ctx, actor.UserID, actor.Email)
}

func (s *service) ListForSession(ctx context.Context, sessionID int64, actor auth.Actor) ([]SessionBooking, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OrganizationID != actor.OrganizationID {
		return nil, ErrForbidden
	}
	return s.repo.ListForSession(ctx, sessionID)
}

// Waitlist returns the queue in position order. Organizers of the session's
// organization see every attendee; anyone else sees positions only, with
// their own entries left intact.
func (s *service) Waitlist(ctx context.Context, sessionID int64, actor auth.Actor) ([]domain.WaitlistEntry, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	entries, err := s.queue.List(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if actor.IsOrganizer() && actor.OrganizationID == session.OrganizationID {
		return entries, nil
	}

	for i := range entries {
		if strings.EqualFold(entries[i].AttendeeEmail, strings.TrimSpace(actor.Email)) {
			continue
		}
		entries[i].AttendeeName = ""
		entries[i].AttendeeEmail = ""
	}
	return entries, nil
}

func (s *service) Availability(ctx context.Context, sessionID int64) (*capacity.Availability, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.ledger.Availability(ctx, s.db, session)
}

func (s *service) emit(ctx context.Context, tx sqlx.ExecerContext, kind notification.Kind, session *domain.ClassSession, booking *domain.Booking, position int) error {
	ev, err := outbox.NewEvent(kind, booking.ID,
		notification.Recipient{Email: booking.AttendeeEmail, Name: booking.AttendeeName},
		notification.Payload{
			BookingID:      booking.ID,
			RequestID:      booking.RequestID.String(),
			ClassSessionID: session.ID,
			ClassTitle:     session.Title,
			StartsAt:       session.StartTime,
			Position:       position,
		})
	if err != nil {
		return err
	}
	return s.outbox.Append(ctx, tx, ev)
}

func canModify(b *domain.Booking, session *domain.ClassSession, actor auth.Actor) bool {
	if b.OwnedBy(actor.UserID, actor.Email) {
		return true
	}
	return actor.IsOrganizer() && actor.OrganizationID == session.OrganizationID
}

func lockErr(err error) error {
	if errors.Is(err, capacity.ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	return err
}

func entryErr(err error) error {
	if errors.Is(err, waitlist.ErrEntryNotFound) {
		return ErrEntryNotFound
	}
	return err
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
