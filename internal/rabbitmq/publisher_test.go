package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/marketplace-core/internal/orders"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	published  []published
	declareErr error
	closed     bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	c.declared = append(c.declared, name+"/"+kind)
	return c.declareErr
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublishRoutesByEventType(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch)
	require.NoError(t, err)
	assert.Equal(t, []string{"marketplace.events/topic"}, ch.declared)

	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for _, ev := range []orders.Envelope{
		{EventID: "e1", EventType: orders.EventOrderCreated, CorrelationID: "o1", OccurredAt: at, Payload: json.RawMessage(`{}`)},
		{EventID: "e2", EventType: orders.EventOrderStatusChanged, CorrelationID: "o1", OccurredAt: at, Payload: json.RawMessage(`{}`)},
	} {
		require.NoError(t, p.Publish(context.Background(), ev))
	}

	require.Len(t, ch.published, 2)
	assert.Equal(t, EventsExchange, ch.published[0].exchange)
	assert.Equal(t, "order.created.v1", ch.published[0].key)
	assert.Equal(t, "order.status_changed.v1", ch.published[1].key)
	assert.Equal(t, "e1", ch.published[0].msg.MessageId)
	assert.Equal(t, uint8(amqp.Persistent), ch.published[0].msg.DeliveryMode)

	var got orders.Envelope
	require.NoError(t, json.Unmarshal(ch.published[1].msg.Body, &got))
	assert.Equal(t, "e2", got.EventID)

	assert.Error(t, p.Publish(context.Background(), orders.Envelope{EventType: "Nope"}))
	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestNewPublisherFailsWhenExchangeCannotBeDeclared(t *testing.T) {
	_, err := newPublisher(&fakeChannel{declareErr: errors.New("access refused")})
	assert.Error(t, err)
}
