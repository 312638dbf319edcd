package memory

import (
	"context"
	"fmt"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

type cartReader struct{ s *Store }

// Get waits for any transaction holding the cart so it never sees a half
// applied change.
func (r cartReader) Get(ctx context.Context, userID string) (domain.Cart, error) {
	e := r.s.cart(userID, false)
	if e == nil {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	if err := e.owner.acquire(ctx); err != nil {
		return domain.Cart{}, err
	}
	defer e.owner.release()
	return domain.Cart{UserID: userID, Items: cloneItems(e.items)}, nil
}

type txCarts struct{ t *tx }

func (c txCarts) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if h, ok := c.t.carts[userID]; ok {
		return domain.Cart{UserID: userID, Items: cloneItems(h.e.items)}, nil
	}
	return cartReader{s: c.t.s}.Get(ctx, userID)
}

func (c txCarts) Open(ctx context.Context, userID string) (domain.Cart, error) {
	h, err := c.t.holdCart(ctx, userID, c.t.s.cart(userID, true))
	if err != nil {
		return domain.Cart{}, err
	}
	return domain.Cart{UserID: userID, Items: cloneItems(h.e.items)}, nil
}

func (c txCarts) Lock(ctx context.Context, userID string) (domain.Cart, error) {
	e := c.t.s.cart(userID, false)
	if e == nil {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	h, err := c.t.holdCart(ctx, userID, e)
	if err != nil {
		return domain.Cart{}, err
	}
	return domain.Cart{UserID: userID, Items: cloneItems(h.e.items)}, nil
}

func (c txCarts) held(userID string) (*heldCart, error) {
	h, ok := c.t.carts[userID]
	if !ok {
		return nil, fmt.Errorf("cart %s is not locked by this transaction", userID)
	}
	return h, nil
}

func (c txCarts) SaveItem(_ context.Context, userID string, item domain.CartItem) error {
	h, err := c.held(userID)
	if err != nil {
		return err
	}
	cart := domain.Cart{UserID: userID, Items: cloneItems(h.e.items)}
	cart.Put(item)
	h.e.items = cart.Items
	return nil
}

func (c txCarts) DeleteItem(_ context.Context, userID, productID string) error {
	h, err := c.held(userID)
	if err != nil {
		return err
	}
	cart := domain.Cart{UserID: userID, Items: cloneItems(h.e.items)}
	cart.Remove(productID)
	h.e.items = cart.Items
	return nil
}

func (c txCarts) Clear(_ context.Context, userID string) error {
	h, err := c.held(userID)
	if err != nil {
		return err
	}
	h.e.items = nil
	return nil
}
