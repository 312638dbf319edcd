package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

type orders struct{ q querier }

const orderColumns = `id, buyer_id, seller_id, total_cents,
	ship_full_name, ship_phone, ship_address, ship_city,
	payment_method, status, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var cents int64
	var status string
	a := &o.ShippingAddress
	if err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &cents,
		&a.FullName, &a.Phone, &a.Address, &a.City,
		&o.PaymentMethod, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	o.TotalAmount = fromCents(cents)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

// Create inserts the order and its items; the total was fixed by the caller.
func (r orders) Create(ctx context.Context, o domain.Order) error {
	a := o.ShippingAddress
	_, err := r.q.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.BuyerID, o.SellerID, toCents(o.TotalAmount),
		a.FullName, a.Phone, a.Address, a.City,
		o.PaymentMethod, string(o.Status), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for i, it := range o.Items {
		if _, err := r.q.Exec(ctx, `
			INSERT INTO order_items (order_id, position, product_id, product_name, quantity, price_cents)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, i, it.ProductID, it.Name, it.Quantity, toCents(it.Price)); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r orders) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	list := []domain.Order{o}
	if err := r.attachItems(ctx, list); err != nil {
		return domain.Order{}, err
	}
	return list[0], nil
}

func (r orders) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return r.list(ctx, `buyer_id`, buyerID)
}

func (r orders) ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return r.list(ctx, `seller_id`, sellerID)
}

// list returns the orders matching column = value, newest first.
func (r orders) list(ctx context.Context, column, value string) ([]domain.Order, error) {
	rows, err := r.q.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE `+column+` = $1 ORDER BY created_at DESC, id DESC`, value)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r orders) attachItems(ctx context.Context, list []domain.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	index := make(map[string]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		index[o.ID] = i
		list[i].Items = []domain.OrderItem{}
	}

	rows, err := r.q.Query(ctx, `
		SELECT order_id, product_id, product_name, quantity, price_cents
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var it domain.OrderItem
		var cents int64
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.Quantity, &cents); err != nil {
			return err
		}
		it.Price = fromCents(cents)
		if i, ok := index[orderID]; ok {
			list[i].Items = append(list[i].Items, it)
		}
	}
	return rows.Err()
}

func (r orders) CountBySeller(ctx context.Context, sellerID string) (domain.StatusCounts, error) {
	rows, err := r.q.Query(ctx, `SELECT status, COUNT(*) FROM orders WHERE seller_id = $1 GROUP BY status`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := domain.StatusCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.OrderStatus(status)] = n
	}
	return counts, rows.Err()
}

// UpdateStatus only moves the row while it still holds from.
func (r orders) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) error {
	ct, err := r.q.Exec(ctx, `UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var cur string
	err = r.q.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	return domain.TransitionError(domain.OrderStatus(cur), to)
}
