package orders

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/marketplace-core/internal/kafka"
)

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// KafkaPublisher routes each event to the producer of its topic.
type KafkaPublisher struct {
	Topics map[string]MessagePublisher // topic -> producer
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Envelope) error {
	topic, ok := TopicFor(ev.EventType)
	if !ok {
		return fmt.Errorf("no topic for event type %q", ev.EventType)
	}
	prod, ok := p.Topics[topic]
	if !ok {
		return fmt.Errorf("no producer for topic %q", topic)
	}
	return prod.Publish(ctx,
		PartitionKey(ev.CorrelationID),
		kafkax.MustMarshal(ev),
		kafkax.EventHeaders(ev.EventType, ev.EventVersion)...,
	)
}
