package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

type carts struct{ q querier }

func (r carts) Get(ctx context.Context, userID string) (domain.Cart, error) {
	return r.load(ctx, userID, false)
}

// Open creates the cart row when missing and locks it.
func (r carts) Open(ctx context.Context, userID string) (domain.Cart, error) {
	if _, err := r.q.Exec(ctx, `INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return domain.Cart{}, fmt.Errorf("open cart: %w", err)
	}
	return r.load(ctx, userID, true)
}

func (r carts) Lock(ctx context.Context, userID string) (domain.Cart, error) {
	return r.load(ctx, userID, true)
}

func (r carts) load(ctx context.Context, userID string, forUpdate bool) (domain.Cart, error) {
	q := `SELECT user_id FROM carts WHERE user_id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	var id string
	if err := r.q.QueryRow(ctx, q, userID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, err
	}

	rows, err := r.q.Query(ctx, `
		SELECT product_id, quantity, price_at_addition_cents
		FROM cart_items WHERE user_id = $1
		ORDER BY added_at, product_id`, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer rows.Close()

	c := domain.Cart{UserID: userID}
	for rows.Next() {
		var it domain.CartItem
		var cents int64
		if err := rows.Scan(&it.ProductID, &it.Quantity, &cents); err != nil {
			return domain.Cart{}, err
		}
		it.PriceAtAddition = fromCents(cents)
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

func (r carts) SaveItem(ctx context.Context, userID string, item domain.CartItem) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity, price_at_addition_cents)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			price_at_addition_cents = EXCLUDED.price_at_addition_cents`,
		userID, item.ProductID, item.Quantity, toCents(item.PriceAtAddition))
	return err
}

func (r carts) DeleteItem(ctx context.Context, userID, productID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	return err
}

func (r carts) Clear(ctx context.Context, userID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}
