package noshow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classbook/internal/db"
	"classbook/internal/domain"
	"classbook/internal/logger"
	"classbook/internal/member"
	"classbook/internal/metrics"
	"classbook/internal/notification"
	"classbook/internal/obs"
	"classbook/internal/outbox"
	"classbook/internal/payment"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrPenaltyApplicationFailed = errors.New("no-show penalty application failed")

type PolicySource interface {
	Get(ctx context.Context, orgID int64) (Policy, error)
}

type SessionLocker interface {
	LockSession(ctx context.Context, q sqlx.QueryerContext, sessionID int64) (*domain.ClassSession, error)
}

type CreditDeductor interface {
	DeductCredits(ctx context.Context, tx sqlx.ExtContext, orgID int64, email string, credits int) (*member.Pass, error)
}

type Suspender interface {
	Suspend(ctx context.Context, tx sqlx.ExecerContext, orgID int64, email string, bookingID int64, until time.Time, reason string) error
}

// ItemError is a failure for one booking. It never aborts the rest of a run.
type ItemError struct {
	BookingID     int64  `json:"booking_id"`
	AttendeeEmail string `json:"attendee_email"`
	Message       string `json:"error"`
	Err           error  `json:"-"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("booking %d (%s): %s", e.BookingID, e.AttendeeEmail, e.Message)
}

func (e ItemError) Unwrap() error { return e.Err }

type Summary struct {
	OrganizationID   int64       `json:"organization_id"`
	Enabled          bool        `json:"enabled"`
	Evaluated        int         `json:"evaluated"`
	Penalized        int         `json:"penalized"`
	AlreadyPenalized int         `json:"already_penalized"`
	Skipped          int         `json:"skipped"`
	Failed           int         `json:"failed"`
	Errors           []ItemError `json:"errors"`
}

type outcome int

const (
	outcomePenalized outcome = iota
	outcomeAlreadyPenalized
	outcomeSkipped
)

type Reconciler struct {
	db          *sqlx.DB
	store       *Store
	policies    PolicySource
	locker      SessionLocker
	credits     CreditDeductor
	suspensions Suspender
	payments    payment.Gateway
	outbox      outbox.Appender
	lookback    time.Duration
	tracer      trace.Tracer
	now         func() time.Time
}

func NewReconciler(
	database *sqlx.DB,
	store *Store,
	policies PolicySource,
	locker SessionLocker,
	credits CreditDeductor,
	suspensions Suspender,
	payments payment.Gateway,
	appender outbox.Appender,
	lookback time.Duration,
) *Reconciler {
	return &Reconciler{
		db:          database,
		store:       store,
		policies:    policies,
		locker:      locker,
		credits:     credits,
		suspensions: suspensions,
		payments:    payments,
		outbox:      appender,
		lookback:    lookback,
		tracer:      obs.Tracer("noshow"),
		now:         time.Now,
	}
}

// WithClock replaces the time source used for the grace cutoff and
// suspension end dates.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Run applies the organization's penalty to every eligible no-show exactly
// once. Each booking is handled in its own transaction; failures are
// collected in the summary and do not stop the run.
func (r *Reconciler) Run(ctx context.Context, orgID int64) (*Summary, error) {
	ctx, span := r.tracer.Start(ctx, "noshow.Run", trace.WithAttributes(attribute.Int64("organization.id", orgID)))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.NoShowSweepDuration.Observe(time.Since(start).Seconds())
	}()

	summary := &Summary{OrganizationID: orgID, Errors: []ItemError{}}

	policy, err := r.policies.Get(ctx, orgID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !policy.Enabled {
		return summary, nil
	}
	summary.Enabled = true

	now := r.now()
	cutoff := now.Add(-time.Duration(policy.GraceMinutes) * time.Minute)
	candidates, err := r.store.Candidates(ctx, orgID, cutoff, now.Add(-r.lookback))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	for _, c := range candidates {
		summary.Evaluated++

		result, err := r.processOne(ctx, orgID, policy, c)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, ItemError{
				BookingID:     c.BookingID,
				AttendeeEmail: c.AttendeeEmail,
				Message:       err.Error(),
				Err:           err,
			})
			metrics.RecordNoShowPenalty(string(policy.Penalty.Kind()), "failed")
			logger.Error("no-show penalty failed",
				"organization_id", orgID,
				"booking_id", c.BookingID,
				"error", err,
			)
			continue
		}

		switch result {
		case outcomePenalized:
			summary.Penalized++
			metrics.RecordNoShowPenalty(string(policy.Penalty.Kind()), "applied")
		case outcomeAlreadyPenalized:
			summary.AlreadyPenalized++
		case outcomeSkipped:
			summary.Skipped++
		}
	}

	span.SetAttributes(
		attribute.Int("noshow.evaluated", summary.Evaluated),
		attribute.Int("noshow.penalized", summary.Penalized),
		attribute.Int("noshow.failed", summary.Failed),
	)
	logger.Info("no-show reconciliation finished",
		"organization_id", orgID,
		"evaluated", summary.Evaluated,
		"penalized", summary.Penalized,
		"already_penalized", summary.AlreadyPenalized,
		"failed", summary.Failed,
	)

	return summary, nil
}

func (r *Reconciler) processOne(ctx context.Context, orgID int64, policy Policy, c Candidate) (outcome, error) {
	result := outcomeSkipped

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		// Check-in takes the same lock, so eligibility cannot change under us.
		session, err := r.locker.LockSession(ctx, tx, c.ClassSessionID)
		if err != nil {
			return err
		}

		eligible, err := r.store.StillEligible(ctx, tx, c.BookingID)
		if err != nil {
			return err
		}
		if !eligible {
			return nil
		}

		recordID, err := r.store.Claim(ctx, tx, orgID, c.BookingID, policy.Penalty.Kind())
		if errors.Is(err, errAlreadyClaimed) {
			result = outcomeAlreadyPenalized
			return nil
		}
		if err != nil {
			return err
		}

		detail, paymentID, err := r.apply(ctx, tx, orgID, policy.Penalty, c)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPenaltyApplicationFailed, err)
		}

		if err := r.store.Complete(ctx, tx, recordID, detail, paymentID); err != nil {
			return err
		}

		ev, err := outbox.NewEvent(notification.KindNoShow, c.BookingID,
			notification.Recipient{Email: c.AttendeeEmail, Name: c.AttendeeName},
			notification.Payload{
				BookingID:      c.BookingID,
				ClassSessionID: session.ID,
				ClassTitle:     session.Title,
				StartsAt:       session.StartTime,
				PenaltyKind:    string(policy.Penalty.Kind()),
				PenaltyDetail:  detail,
			})
		if err != nil {
			return err
		}
		if err := r.outbox.Append(ctx, tx, ev); err != nil {
			return err
		}

		result = outcomePenalized
		return nil
	})
	if err != nil {
		return outcomeSkipped, err
	}
	return result, nil
}

func (r *Reconciler) apply(ctx context.Context, tx *sqlx.Tx, orgID int64, penalty Penalty, c Candidate) (string, *int64, error) {
	switch p := penalty.(type) {
	case CreditLoss:
		pass, err := r.credits.DeductCredits(ctx, tx, orgID, c.AttendeeEmail, p.Credits)
		if err != nil {
			return "", nil, err
		}
		if pass == nil {
			return "no active pass; nothing deducted", nil, nil
		}
		return fmt.Sprintf("%s; %d remaining", p.Describe(), pass.CreditsRemaining), nil, nil

	case Fee:
		req := payment.ChargeRequest{
			IdempotencyKey: fmt.Sprintf("no-show:%d", c.BookingID),
			OrganizationID: orgID,
			BookingID:      c.BookingID,
			AttendeeEmail:  c.AttendeeEmail,
			AmountCents:    p.AmountCents,
			Currency:       p.Currency,
			Description:    fmt.Sprintf("No-show fee for %s on %s", c.ClassTitle, c.StartTime.Format("Jan 2, 2006")),
		}
		if c.PaymentCustomerID != nil {
			req.CustomerID = *c.PaymentCustomerID
		}
		charge, err := r.payments.Charge(ctx, req)
		if err != nil {
			return "", nil, err
		}
		return p.Describe(), &charge.ID, nil

	case Suspension:
		until := r.now().AddDate(0, 0, p.Days)
		if err := r.suspensions.Suspend(ctx, tx, orgID, c.AttendeeEmail, c.BookingID, until, "no-show"); err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s (until %s)", p.Describe(), until.Format("Jan 2, 2006")), nil, nil

	default:
		return "", nil, fmt.Errorf("unsupported penalty %T", penalty)
	}
}
