package memory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

type ledger struct{ t *tx }

// Reserve decrements stock with a CAS loop; it never blocks other products.
func (l ledger) Reserve(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return &domain.ValidationError{Field: "quantity", Reason: fmt.Sprintf("cannot reserve %d units", qty)}
	}
	e := l.t.s.product(productID)
	if e == nil {
		return domain.ErrProductNotFound
	}
	n := int64(qty)
	for {
		cur := e.stock.Load()
		if cur < n {
			return &domain.StockShortageError{ProductID: productID, Requested: qty, Available: int(cur)}
		}
		if e.stock.CompareAndSwap(cur, cur-n) {
			break
		}
	}
	l.t.compensate = append(l.t.compensate, func() { e.stock.Add(n) })
	return nil
}

// Release is applied on commit so a rolled back transaction never hands out
// units it did not end up returning.
func (l ledger) Release(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return &domain.ValidationError{Field: "quantity", Reason: fmt.Sprintf("cannot release %d units", qty)}
	}
	e := l.t.s.product(productID)
	if e == nil {
		return domain.ErrProductNotFound
	}
	l.t.releases = append(l.t.releases, stockRelease{e: e, qty: int64(qty)})
	return nil
}
