package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classbook/internal/notification"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// Event is a side effect recorded in the same transaction as the booking
// transition that caused it. It is delivered after commit, so a rolled back
// transition never notifies anyone.
type Event struct {
	ID             uuid.UUID         `db:"id"`
	Kind           notification.Kind `db:"kind"`
	AggregateID    int64             `db:"aggregate_id"`
	RecipientEmail string            `db:"recipient_email"`
	RecipientName  string            `db:"recipient_name"`
	Payload        types.JSONText    `db:"payload"`
	Attempts       int               `db:"attempts"`
	DeliveredSinks pq.StringArray    `db:"delivered_sinks"`
	CreatedAt      time.Time         `db:"created_at"`
}

func (e Event) Recipient() notification.Recipient {
	return notification.Recipient{Email: e.RecipientEmail, Name: e.RecipientName}
}

func (e Event) deliveredTo(sink string) bool {
	for _, name := range e.DeliveredSinks {
		if name == sink {
			return true
		}
	}
	return false
}

func (e Event) DecodePayload() (notification.Payload, error) {
	var p notification.Payload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

func NewEvent(kind notification.Kind, aggregateID int64, to notification.Recipient, payload notification.Payload) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return Event{
		ID:             uuid.New(),
		Kind:           kind,
		AggregateID:    aggregateID,
		RecipientEmail: to.Email,
		RecipientName:  to.Name,
		Payload:        types.JSONText(data),
	}, nil
}

// Appender is implemented by *Store; services depend on it so tests can mock it.
type Appender interface {
	Append(ctx context.Context, tx sqlx.ExecerContext, ev Event) error
}

type Store struct{}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Append(ctx context.Context, tx sqlx.ExecerContext, ev Event) error {
	query := `
		INSERT INTO outbox_events (id, kind, aggregate_id, recipient_email, recipient_name, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := tx.ExecContext(ctx, query, ev.ID, ev.Kind, ev.AggregateID, ev.RecipientEmail, ev.RecipientName, ev.Payload)
	if err != nil {
		return fmt.Errorf("append outbox event %s: %w", ev.Kind, err)
	}
	return nil
}
