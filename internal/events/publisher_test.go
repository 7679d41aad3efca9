package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	out    []published
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.out = append(f.out, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "booking.booking_confirmation", RoutingKey("booking_confirmation"))
}

func TestPublish(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch, exchange: "classbook.events"}

	env := Envelope{
		ID:          "evt-1",
		Type:        "waitlist_promotion",
		AggregateID: 42,
		OccurredAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Data:        json.RawMessage(`{"booking_id":42}`),
	}

	require.NoError(t, p.Publish(context.Background(), env))
	require.Len(t, ch.out, 1)

	got := ch.out[0]
	assert.Equal(t, "classbook.events", got.exchange)
	assert.Equal(t, "booking.waitlist_promotion", got.key)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, "evt-1", got.msg.MessageId)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, int64(42), decoded.AggregateID)
	assert.JSONEq(t, `{"booking_id":42}`, string(decoded.Data))
}

func TestClose(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch}

	assert.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
