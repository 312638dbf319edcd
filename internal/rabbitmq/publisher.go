// Package rabbitmq publishes order events to a topic exchange, as an
// alternative to the Kafka topics.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ariefcatur/marketplace-core/internal/orders"
)

const (
	EventsExchange               = "marketplace.events"
	OrderCreatedRoutingKey       = "order.created.v1"
	OrderStatusChangedRoutingKey = "order.status_changed.v1"
	publishTimeout               = 3 * time.Second
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	ch Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := newPublisher(ch)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(ch Channel) (*Publisher, error) {
	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}
	return &Publisher{ch: ch}, nil
}

func RoutingKey(eventType string) (string, bool) {
	switch eventType {
	case orders.EventOrderCreated:
		return OrderCreatedRoutingKey, true
	case orders.EventOrderStatusChanged:
		return OrderStatusChangedRoutingKey, true
	}
	return "", false
}

func (p *Publisher) Publish(ctx context.Context, ev orders.Envelope) error {
	key, ok := RoutingKey(ev.EventType)
	if !ok {
		return fmt.Errorf("no routing key for event type %q", ev.EventType)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.EventType, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.ch.PublishWithContext(pubCtx, EventsExchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     ev.EventID,
		CorrelationId: ev.CorrelationID,
		Timestamp:     ev.OccurredAt,
		Type:          ev.EventType,
		Body:          body,
	})
}

func (p *Publisher) Close() error { return p.ch.Close() }
