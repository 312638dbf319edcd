// Package memory is an in-process domain.Store used by tests and by
// STORE_BACKEND=memory.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

var _ domain.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	products map[string]*productEntry
	carts    map[string]*cartEntry
	orders   map[string]*orderEntry
}

func NewStore() *Store {
	return &Store{
		products: make(map[string]*productEntry),
		carts:    make(map[string]*cartEntry),
		orders:   make(map[string]*orderEntry),
	}
}

// owner is a context aware lock held by one transaction at a time.
type owner chan struct{}

func newOwner() owner { return make(owner, 1) }

func (o owner) acquire(ctx context.Context) error {
	select {
	case o <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o owner) release() { <-o }

type productEntry struct {
	mu    sync.RWMutex
	p     domain.Product
	stock atomic.Int64
}

func (e *productEntry) snapshot() domain.Product {
	e.mu.RLock()
	p := e.p
	e.mu.RUnlock()
	p.AvailableStock = int(e.stock.Load())
	return p
}

type cartEntry struct {
	owner owner
	items []domain.CartItem // guarded by owner
}

type orderEntry struct {
	owner owner
	mu    sync.RWMutex
	order domain.Order
}

func (e *orderEntry) read() domain.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneOrder(e.order)
}

func (s *Store) product(id string) *productEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products[id]
}

func (s *Store) cart(userID string, create bool) *cartEntry {
	s.mu.RLock()
	e := s.carts[userID]
	s.mu.RUnlock()
	if e != nil || !create {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e = s.carts[userID]; e == nil {
		e = &cartEntry{owner: newOwner()}
		s.carts[userID] = e
	}
	return e
}

func (s *Store) order(id string) *orderEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orders[id]
}

func (s *Store) Products() domain.ProductCatalog { return catalog{s: s} }
func (s *Store) Carts() domain.CartReader        { return cartReader{s: s} }
func (s *Store) Orders() domain.OrderReader      { return orderReader{s: s} }

func (s *Store) Ping(context.Context) error { return nil }

// InTx runs fn against a transaction that either commits all of its effects
// or compensates them.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	t := newTx(s)
	done := false
	defer func() {
		if !done {
			t.rollback()
		}
	}()
	if err := fn(ctx, t); err != nil {
		return err
	}
	t.commit()
	done = true
	return nil
}

func now() time.Time { return time.Now().UTC() }

func cloneItems(in []domain.CartItem) []domain.CartItem {
	if in == nil {
		return nil
	}
	out := make([]domain.CartItem, len(in))
	copy(out, in)
	return out
}

func cloneOrder(o domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}
