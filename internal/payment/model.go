package payment

import "time"

const (
	StatusPending    = "pending"
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
)

// ChargeRequest is one monetary charge against an attendee. IdempotencyKey
// makes repeated requests for the same charge return the original record.
type ChargeRequest struct {
	IdempotencyKey string
	OrganizationID int64
	BookingID      int64
	AttendeeEmail  string
	CustomerID     string
	AmountCents    int64
	Currency       string
	Description    string
}

// Payment is a row in the payments ledger.
type Payment struct {
	ID               int64     `db:"id" json:"id"`
	IdempotencyKey   string    `db:"idempotency_key" json:"idempotency_key"`
	OrganizationID   int64     `db:"organization_id" json:"organization_id"`
	BookingID        *int64    `db:"booking_id" json:"booking_id,omitempty"`
	AttendeeEmail    string    `db:"attendee_email" json:"attendee_email"`
	AmountCents      int64     `db:"amount_cents" json:"amount_cents"`
	Currency         string    `db:"currency" json:"currency"`
	Status           string    `db:"status" json:"status"`
	Provider         string    `db:"provider" json:"provider"`
	ProviderChargeID *string   `db:"provider_charge_id" json:"provider_charge_id,omitempty"`
	Description      string    `db:"description" json:"description"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

const paymentColumns = `id, idempotency_key, organization_id, booking_id, attendee_email, amount_cents, currency,
	status, provider, provider_charge_id, description, created_at, updated_at`
