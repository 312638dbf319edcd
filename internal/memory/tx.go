package memory

import (
	"context"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

// tx keeps an undo log for effects applied eagerly (reservations, cart lines)
// and stages the ones that must stay invisible until commit (releases, new
// orders, status changes).
type tx struct {
	s *Store

	compensate []func()
	releases   []stockRelease
	carts      map[string]*heldCart
	orders     map[string]*orderEntry
	created    []domain.Order
	statuses   []statusChange
}

type heldCart struct {
	e        *cartEntry
	snapshot []domain.CartItem
}

type stockRelease struct {
	e   *productEntry
	qty int64
}

type statusChange struct {
	e  *orderEntry
	to domain.OrderStatus
	at time.Time
}

func newTx(s *Store) *tx {
	return &tx{
		s:      s,
		carts:  make(map[string]*heldCart),
		orders: make(map[string]*orderEntry),
	}
}

func (t *tx) Stock() domain.StockLedger      { return ledger{t: t} }
func (t *tx) Products() domain.ProductReader { return catalog{s: t.s} }
func (t *tx) Carts() domain.CartRepository   { return txCarts{t: t} }
func (t *tx) Orders() domain.OrderRepository { return txOrders{t: t} }

func (t *tx) holdCart(ctx context.Context, userID string, e *cartEntry) (*heldCart, error) {
	if h, ok := t.carts[userID]; ok {
		return h, nil
	}
	if err := e.owner.acquire(ctx); err != nil {
		return nil, err
	}
	h := &heldCart{e: e, snapshot: cloneItems(e.items)}
	t.carts[userID] = h
	return h, nil
}

func (t *tx) holdOrder(ctx context.Context, id string, e *orderEntry) error {
	if _, ok := t.orders[id]; ok {
		return nil
	}
	if err := e.owner.acquire(ctx); err != nil {
		return err
	}
	t.orders[id] = e
	return nil
}

func (t *tx) commit() {
	for _, r := range t.releases {
		r.e.stock.Add(r.qty)
	}
	if len(t.created) > 0 {
		t.s.mu.Lock()
		for _, o := range t.created {
			t.s.orders[o.ID] = &orderEntry{owner: newOwner(), order: o}
		}
		t.s.mu.Unlock()
	}
	for _, c := range t.statuses {
		c.e.mu.Lock()
		c.e.order.Status = c.to
		c.e.order.UpdatedAt = c.at
		c.e.mu.Unlock()
	}
	t.unlock()
}

func (t *tx) rollback() {
	for i := len(t.compensate) - 1; i >= 0; i-- {
		t.compensate[i]()
	}
	for _, h := range t.carts {
		h.e.items = h.snapshot
	}
	t.unlock()
}

func (t *tx) unlock() {
	for _, h := range t.carts {
		h.e.owner.release()
	}
	for _, e := range t.orders {
		e.owner.release()
	}
	t.carts = map[string]*heldCart{}
	t.orders = map[string]*orderEntry{}
}
