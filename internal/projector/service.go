// Package projector watches order events and invalidates the cached per
// seller status counts, so the summary endpoint recounts from the store.
package projector

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/marketplace-core/internal/domain"
	kafkax "github.com/ariefcatur/marketplace-core/internal/kafka"
	"github.com/ariefcatur/marketplace-core/internal/metrics"
	"github.com/ariefcatur/marketplace-core/internal/orders"
)

type SummaryInvalidator interface {
	Invalidate(ctx context.Context, sellerID string) error
}

type Service struct {
	Summaries SummaryInvalidator
	Metrics   *metrics.Metrics
	Log       *log.Entry
}

func (s *Service) logger() *log.Entry {
	if s.Log == nil {
		return log.WithField("component", "projector")
	}
	return s.Log
}

// HandleOrderEvent is installed as the consumer handler. Messages that can
// never be decoded are logged and acknowledged.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.logger().WithError(err).WithField("offset", m.Offset).Warn("undecodable order event skipped")
		s.Metrics.RecordProjected(kafkax.Header(m, kafkax.HeaderEventType), "invalid")
		return nil
	}
	return s.Apply(ctx, env)
}

type change struct {
	sellerID string
	from, to domain.OrderStatus
}

func decode(env orders.Envelope) (change, bool, error) {
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return change{}, true, err
		}
		return change{sellerID: p.SellerID, to: p.Status}, true, nil
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return change{}, true, err
		}
		return change{sellerID: p.SellerID, from: p.From, to: p.To}, true, nil
	}
	return change{}, false, nil
}

// Apply invalidates the seller's cached summary. Invalidation is
// idempotent, so redelivered and reordered events are harmless.
func (s *Service) Apply(ctx context.Context, env orders.Envelope) error {
	entry := s.logger().WithFields(log.Fields{"event_id": env.EventID, "event_type": env.EventType, "order_id": env.CorrelationID})

	c, known, err := decode(env)
	if !known {
		s.Metrics.RecordProjected(env.EventType, "ignored")
		return nil
	}
	if err != nil || c.sellerID == "" || c.to == "" {
		entry.WithError(err).Warn("malformed order event skipped")
		s.Metrics.RecordProjected(env.EventType, "invalid")
		return nil
	}

	if err := s.Summaries.Invalidate(ctx, c.sellerID); err != nil {
		s.Metrics.RecordProjected(env.EventType, "error")
		return fmt.Errorf("invalidate summary for event %s: %w", env.EventID, err)
	}
	entry.WithField("seller_id", c.sellerID).Debug("seller summary invalidated")
	s.Metrics.RecordProjected(env.EventType, "ok")
	return nil
}
