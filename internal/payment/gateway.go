package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"classbook/internal/logger"
	"classbook/internal/metrics"

	"github.com/jmoiron/sqlx"
	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

var (
	ErrInvalidCharge   = errors.New("invalid charge request")
	ErrNoPaymentMethod = errors.New("attendee has no stored payment method")
)

type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Payment, error)
}

func validate(req ChargeRequest) error {
	if req.IdempotencyKey == "" || req.AmountCents <= 0 || req.Currency == "" {
		return ErrInvalidCharge
	}
	return nil
}

// Ledger persists charges keyed by idempotency key.
type Ledger struct {
	db *sqlx.DB
}

func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) FindByKey(ctx context.Context, key string) (*Payment, error) {
	var p Payment
	err := l.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Record inserts the charge, or returns the existing row for the same key. A
// previously failed row is overwritten by the new attempt.
func (l *Ledger) Record(ctx context.Context, req ChargeRequest, provider, status string, providerChargeID *string) (*Payment, error) {
	query := `
		INSERT INTO payments (idempotency_key, organization_id, booking_id, attendee_email, amount_cents, currency,
			status, provider, provider_charge_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			status = CASE WHEN payments.status = 'failed' THEN EXCLUDED.status ELSE payments.status END,
			provider_charge_id = CASE WHEN payments.status = 'failed' THEN EXCLUDED.provider_charge_id ELSE payments.provider_charge_id END,
			updated_at = now()
		RETURNING ` + paymentColumns

	var bookingID *int64
	if req.BookingID != 0 {
		bookingID = &req.BookingID
	}

	var p Payment
	err := l.db.GetContext(ctx, &p, query,
		req.IdempotencyKey, req.OrganizationID, bookingID, req.AttendeeEmail, req.AmountCents, req.Currency,
		status, provider, providerChargeID, req.Description)
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	return &p, nil
}

// LedgerGateway records fees as pending payments to be settled outside the
// system.
type LedgerGateway struct {
	ledger *Ledger
}

func NewLedgerGateway(ledger *Ledger) *LedgerGateway {
	return &LedgerGateway{ledger: ledger}
}

func (g *LedgerGateway) Charge(ctx context.Context, req ChargeRequest) (*Payment, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	p, err := g.ledger.Record(ctx, req, "ledger", StatusPending, nil)
	if err != nil {
		metrics.RecordPayment("ledger", "error")
		return nil, err
	}
	metrics.RecordPayment("ledger", p.Status)
	return p, nil
}

type chargeFunc func(ctx context.Context, op *operations.CreateCharge) (*omise.Charge, error)

// OmiseGateway charges the attendee's stored Omise customer. A charge that
// already exists in the ledger for the key is returned without calling Omise.
type OmiseGateway struct {
	ledger *Ledger
	create chargeFunc
}

func NewOmiseClient(publicKey, secretKey string) (*omise.Client, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, err
	}
	c.SetDebug(false)
	return c, nil
}

func NewOmiseGateway(client *omise.Client, ledger *Ledger) *OmiseGateway {
	return &OmiseGateway{
		ledger: ledger,
		create: func(ctx context.Context, op *operations.CreateCharge) (*omise.Charge, error) {
			// The client keeps its context in a field, so each call works on a copy.
			c := *client
			c.WithContext(ctx)
			ch := &omise.Charge{}
			if err := c.Do(ch, op); err != nil {
				return nil, err
			}
			return ch, nil
		},
	}
}

func (g *OmiseGateway) Charge(ctx context.Context, req ChargeRequest) (*Payment, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.CustomerID == "" {
		return nil, ErrNoPaymentMethod
	}

	existing, err := g.ledger.FindByKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != StatusFailed {
		return existing, nil
	}

	ch, err := g.create(ctx, &operations.CreateCharge{
		Customer:    req.CustomerID,
		Amount:      req.AmountCents,
		Currency:    req.Currency,
		Description: req.Description,
		Metadata: map[string]interface{}{
			"booking_id":      req.BookingID,
			"idempotency_key": req.IdempotencyKey,
		},
	})
	if err != nil {
		metrics.RecordPayment("omise", "error")
		return nil, fmt.Errorf("omise create charge: %w", err)
	}

	status := StatusPending
	switch string(ch.Status) {
	case "successful":
		status = StatusSuccessful
	case "failed":
		status = StatusFailed
	}
	metrics.RecordPayment("omise", status)

	p, err := g.ledger.Record(ctx, req, "omise", status, &ch.ID)
	if err != nil {
		logger.Error("omise charge created but not recorded", "charge_id", ch.ID, "idempotency_key", req.IdempotencyKey, "error", err)
		return nil, err
	}
	if status == StatusFailed {
		return p, fmt.Errorf("omise charge %s failed", ch.ID)
	}
	return p, nil
}
