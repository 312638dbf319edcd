package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

type orderReader struct{ s *Store }

func (r orderReader) Get(_ context.Context, id string) (domain.Order, error) {
	e := r.s.order(id)
	if e == nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return e.read(), nil
}

func (r orderReader) list(match func(domain.Order) bool) []domain.Order {
	r.s.mu.RLock()
	entries := make([]*orderEntry, 0, len(r.s.orders))
	for _, e := range r.s.orders {
		entries = append(entries, e)
	}
	r.s.mu.RUnlock()

	out := make([]domain.Order, 0)
	for _, e := range entries {
		if o := e.read(); match(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r orderReader) ListByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	return r.list(func(o domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (r orderReader) ListBySeller(_ context.Context, sellerID string) ([]domain.Order, error) {
	return r.list(func(o domain.Order) bool { return o.SellerID == sellerID }), nil
}

func (r orderReader) CountBySeller(ctx context.Context, sellerID string) (domain.StatusCounts, error) {
	orders, _ := r.ListBySeller(ctx, sellerID)
	counts := domain.StatusCounts{}
	for _, o := range orders {
		counts[o.Status]++
	}
	return counts, nil
}

type txOrders struct{ t *tx }

func (o txOrders) reader() orderReader { return orderReader{s: o.t.s} }

func (o txOrders) Get(ctx context.Context, id string) (domain.Order, error) {
	for _, c := range o.t.created {
		if c.ID == id {
			return cloneOrder(c), nil
		}
	}
	return o.reader().Get(ctx, id)
}

func (o txOrders) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return o.reader().ListByBuyer(ctx, buyerID)
}

func (o txOrders) ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return o.reader().ListBySeller(ctx, sellerID)
}

func (o txOrders) CountBySeller(ctx context.Context, sellerID string) (domain.StatusCounts, error) {
	return o.reader().CountBySeller(ctx, sellerID)
}

// Create stages the order; it becomes visible on commit.
func (o txOrders) Create(_ context.Context, order domain.Order) error {
	if order.ID == "" {
		return &domain.ValidationError{Field: "id", Reason: "required"}
	}
	if o.t.s.order(order.ID) != nil {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	for _, c := range o.t.created {
		if c.ID == order.ID {
			return fmt.Errorf("order %s already exists", order.ID)
		}
	}
	o.t.created = append(o.t.created, cloneOrder(order))
	return nil
}

func (o txOrders) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) error {
	e := o.t.s.order(id)
	if e == nil {
		return domain.ErrOrderNotFound
	}
	if err := o.t.holdOrder(ctx, id, e); err != nil {
		return err
	}
	cur := e.read().Status
	for _, c := range o.t.statuses {
		if c.e == e {
			cur = c.to
		}
	}
	if cur != from {
		return domain.TransitionError(cur, to)
	}
	o.t.statuses = append(o.t.statuses, statusChange{e: e, to: to, at: at})
	return nil
}
