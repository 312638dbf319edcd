package orders

import (
	"context"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

// EventPublisher hands an event to a broker. Implementations must not block
// on the broker for long; publication happens after the order is committed.
type EventPublisher interface {
	Publish(ctx context.Context, ev Envelope) error
}

// OrderCache must never let an older copy of an order replace a newer one.
type OrderCache interface {
	Get(ctx context.Context, id string) (domain.Order, bool, error)
	Set(ctx context.Context, o domain.Order) error
	Delete(ctx context.Context, id string) error
}

// IdempotencyStore remembers which orders a checkout key produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, key string) ([]string, bool, error)
	Remember(ctx context.Context, userID, key string, orderIDs []string) error
}

// SummaryCache holds per seller status counts computed from the store.
// Invalidate bumps the seller's generation; Put is dropped when the
// generation moved since it was read, so a count taken before an order
// changed is never cached after the change.
type SummaryCache interface {
	Get(ctx context.Context, sellerID string) (domain.StatusCounts, bool, error)
	Generation(ctx context.Context, sellerID string) (int64, error)
	Put(ctx context.Context, sellerID string, gen int64, counts domain.StatusCounts) error
	Invalidate(ctx context.Context, sellerID string) error
}
