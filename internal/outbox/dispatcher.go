package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classbook/internal/db"
	"classbook/internal/events"
	"classbook/internal/logger"
	"classbook/internal/metrics"
	"classbook/internal/notification"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Sink is one delivery target. Name must be stable across restarts; it is
// stored on the event once the sink has accepted it.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

type NotificationSink struct {
	gateway notification.Gateway
}

func NewNotificationSink(gw notification.Gateway) *NotificationSink {
	return &NotificationSink{gateway: gw}
}

func (s *NotificationSink) Name() string { return "notification" }

func (s *NotificationSink) Deliver(ctx context.Context, ev Event) error {
	payload, err := ev.DecodePayload()
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return s.gateway.Notify(ctx, ev.Recipient(), ev.Kind, payload)
}

type EventPublisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

type PublisherSink struct {
	publisher EventPublisher
}

func NewPublisherSink(p EventPublisher) *PublisherSink {
	return &PublisherSink{publisher: p}
}

func (s *PublisherSink) Name() string { return "publisher" }

func (s *PublisherSink) Deliver(ctx context.Context, ev Event) error {
	return s.publisher.Publish(ctx, events.Envelope{
		ID:          ev.ID.String(),
		Type:        string(ev.Kind),
		AggregateID: ev.AggregateID,
		OccurredAt:  ev.CreatedAt,
		Data:        json.RawMessage(ev.Payload),
	})
}

// Dispatcher drains committed outbox events into the sinks. Delivery is at
// least once per sink: a retry skips sinks that already accepted the event.
// A row is marked dead after maxAttempts failures.
type Dispatcher struct {
	db          db.Beginner
	sinks       []Sink
	batchSize   int
	maxAttempts int
	interval    time.Duration
}

func NewDispatcher(database db.Beginner, batchSize, maxAttempts int, interval time.Duration, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		db:          database,
		sinks:       sinks,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		interval:    interval,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	logger.Info("outbox dispatcher started", "interval", d.interval.String())

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Error("outbox dispatch failed", "error", err)
			}
		}
	}
}

// DispatchOnce claims one batch and returns how many events were delivered.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	delivered := 0

	err := db.WithTx(ctx, d.db, func(tx *sqlx.Tx) error {
		query := `
			SELECT id, kind, aggregate_id, recipient_email, recipient_name, payload, attempts, delivered_sinks, created_at
			FROM outbox_events
			WHERE dispatched_at IS NULL AND dead_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`

		var batch []Event
		if err := tx.SelectContext(ctx, &batch, query, d.batchSize); err != nil {
			return fmt.Errorf("claim outbox events: %w", err)
		}

		for _, ev := range batch {
			if err := d.deliver(ctx, &ev); err != nil {
				logger.Warn("outbox delivery failed", "event_id", ev.ID.String(), "kind", ev.Kind, "attempt", ev.Attempts+1, "error", err)
				if err := d.markFailed(ctx, tx, ev, err); err != nil {
					return err
				}
				continue
			}
			if err := d.markDispatched(ctx, tx, ev); err != nil {
				return err
			}
			delivered++
		}

		var pending int
		if err := tx.GetContext(ctx, &pending, `SELECT COUNT(*) FROM outbox_events WHERE dispatched_at IS NULL AND dead_at IS NULL`); err != nil {
			return fmt.Errorf("count pending outbox events: %w", err)
		}
		metrics.OutboxBacklog.Set(float64(pending))
		return nil
	})

	return delivered, err
}

// deliver stops at the first failing sink. Sinks that succeeded are appended
// to ev.DeliveredSinks so markFailed can persist them.
func (d *Dispatcher) deliver(ctx context.Context, ev *Event) error {
	for _, sink := range d.sinks {
		if ev.deliveredTo(sink.Name()) {
			continue
		}
		if err := sink.Deliver(ctx, *ev); err != nil {
			return fmt.Errorf("%s: %w", sink.Name(), err)
		}
		ev.DeliveredSinks = append(ev.DeliveredSinks, sink.Name())
	}
	return nil
}

func (d *Dispatcher) markDispatched(ctx context.Context, tx *sqlx.Tx, ev Event) error {
	query := `UPDATE outbox_events SET dispatched_at = now() WHERE id = $1`

	if _, err := tx.ExecContext(ctx, query, ev.ID); err != nil {
		return fmt.Errorf("mark outbox event dispatched: %w", err)
	}
	metrics.RecordOutboxDispatch("delivered")
	return nil
}

func (d *Dispatcher) markFailed(ctx context.Context, tx *sqlx.Tx, ev Event, cause error) error {
	query := `
		UPDATE outbox_events
		SET attempts = attempts + 1,
			last_error = $2,
			dead_at = CASE WHEN attempts + 1 >= $3 THEN now() ELSE NULL END,
			delivered_sinks = $4
		WHERE id = $1
	`

	delivered := ev.DeliveredSinks
	if delivered == nil {
		delivered = pq.StringArray{}
	}
	if _, err := tx.ExecContext(ctx, query, ev.ID, cause.Error(), d.maxAttempts, delivered); err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}

	if ev.Attempts+1 >= d.maxAttempts {
		logger.Error("outbox event dead after max attempts", "event_id", ev.ID.String(), "kind", ev.Kind)
		metrics.RecordOutboxDispatch("dead")
		return nil
	}
	metrics.RecordOutboxDispatch("retry")
	return nil
}
