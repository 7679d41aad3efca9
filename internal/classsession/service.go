package classsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classbook/internal/auth"
	"classbook/internal/booking"
	"classbook/internal/calendar"
	"classbook/internal/capacity"
	"classbook/internal/db"
	"classbook/internal/domain"
	"classbook/internal/logger"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
)

var (
	ErrSessionNotFound  = errors.New("class session not found")
	ErrInvalidSession   = errors.New("invalid class session")
	ErrScheduleConflict = errors.New("class window conflicts with a calendar busy period")
	ErrWindowLocked     = errors.New("class window cannot change once bookings exist")
	ErrCapacityTooLow   = errors.New("capacity is below the number of confirmed bookings")
	ErrForbidden        = errors.New("class session belongs to another organization")
)

// ConflictError carries the busy periods that blocked a schedule change.
type ConflictError struct {
	Conflicts []calendar.BusyPeriod
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s (%d busy periods)", ErrScheduleConflict, len(e.Conflicts))
}

func (e *ConflictError) Unwrap() error {
	return ErrScheduleConflict
}

type ConflictFinder interface {
	FindConflicts(ctx context.Context, orgID int64, w calendar.Window) ([]calendar.BusyPeriod, error)
}

type SessionLocker interface {
	LockSession(ctx context.Context, q sqlx.QueryerContext, sessionID int64) (*domain.ClassSession, error)
	ConfirmedCount(ctx context.Context, q sqlx.QueryerContext, sessionID int64) (int, error)
}

type WaitlistPromoter interface {
	PromoteWaitlist(ctx context.Context, sessionID int64) ([]booking.Promotion, error)
}

type Service interface {
	Create(ctx context.Context, actor auth.Actor, req CreateSessionRequest) (*domain.ClassSession, error)
	Get(ctx context.Context, actor auth.Actor, id int64) (*domain.ClassSession, error)
	ListByOrganization(ctx context.Context, orgID int64, onlyFuture bool) ([]SessionWithAvailability, error)
	UpdateWindow(ctx context.Context, actor auth.Actor, id int64, req UpdateWindowRequest) (*domain.ClassSession, error)
	UpdateCapacity(ctx context.Context, actor auth.Actor, id int64, capacity int) (*CapacityChange, error)
}

type service struct {
	db        db.Beginner
	repo      Repository
	locker    SessionLocker
	conflicts ConflictFinder
	promoter  WaitlistPromoter
	validate  *validator.Validate
}

func NewService(database db.Beginner, repo Repository, locker SessionLocker, conflicts ConflictFinder, promoter WaitlistPromoter) Service {
	return &service{
		db:        database,
		repo:      repo,
		locker:    locker,
		conflicts: conflicts,
		promoter:  promoter,
		validate:  validator.New(),
	}
}

func (s *service) Create(ctx context.Context, actor auth.Actor, req CreateSessionRequest) (*domain.ClassSession, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	if err := s.checkConflicts(ctx, actor.OrganizationID, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	session, err := s.repo.Create(ctx, actor.OrganizationID, req)
	if err != nil {
		return nil, err
	}

	logger.Info("class session created",
		"session_id", session.ID,
		"organization_id", session.OrganizationID,
		"capacity", session.Capacity,
	)
	return session, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id int64) (*domain.ClassSession, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.OrganizationID != actor.OrganizationID {
		return nil, ErrForbidden
	}
	return session, nil
}

func (s *service) ListByOrganization(ctx context.Context, orgID int64, onlyFuture bool) ([]SessionWithAvailability, error) {
	return s.repo.ListByOrganization(ctx, orgID, onlyFuture)
}

// UpdateWindow moves a class that nobody has booked yet. Once a confirmed or
// waitlisted booking exists the window is fixed.
func (s *service) UpdateWindow(ctx context.Context, actor auth.Actor, id int64, req UpdateWindowRequest) (*domain.ClassSession, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}

	if err := s.checkConflicts(ctx, actor.OrganizationID, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	var updated *domain.ClassSession
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := s.locker.LockSession(ctx, tx, id); err != nil {
			return lockErr(err)
		}

		active, err := s.repo.HasActiveBookings(ctx, tx, id)
		if err != nil {
			return err
		}
		if active {
			return ErrWindowLocked
		}

		updated, err = s.repo.UpdateWindow(ctx, tx, id, req.StartTime, req.EndTime)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// UpdateCapacity changes the seat count under the session lock. A decrease may
// not drop below the confirmed bookings; an increase offers the new seats to
// the waitlist once the change is committed.
func (s *service) UpdateCapacity(ctx context.Context, actor auth.Actor, id int64, capacity int) (*CapacityChange, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidSession)
	}

	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}

	var (
		updated   *domain.ClassSession
		increased bool
	)
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := s.locker.LockSession(ctx, tx, id)
		if err != nil {
			return lockErr(err)
		}

		confirmed, err := s.locker.ConfirmedCount(ctx, tx, id)
		if err != nil {
			return err
		}
		if capacity < confirmed {
			return ErrCapacityTooLow
		}

		updated, err = s.repo.UpdateCapacity(ctx, tx, id, capacity)
		if err != nil {
			return err
		}
		increased = capacity > current.Capacity
		return nil
	})
	if err != nil {
		return nil, err
	}

	change := &CapacityChange{Session: *updated}
	if !increased {
		return change, nil
	}

	promotions, err := s.promoter.PromoteWaitlist(ctx, id)
	if err != nil {
		// The capacity change is committed; the waitlist can be promoted again
		// from the organizer endpoint.
		logger.Warn("waitlist promotion after capacity increase failed",
			"session_id", id,
			"capacity", capacity,
			"error", err,
		)
		return change, nil
	}
	change.Promoted = len(promotions)

	return change, nil
}

func (s *service) checkConflicts(ctx context.Context, orgID int64, start, end time.Time) error {
	w, err := calendar.NewWindow(start, end)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	conflicts, err := s.conflicts.FindConflicts(ctx, orgID, w)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

func lockErr(err error) error {
	if errors.Is(err, capacity.ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	return err
}
