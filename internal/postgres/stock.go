package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

type stock struct{ q querier }

// Reserve is a single conditional UPDATE, so two transactions can never both
// take the last units.
func (s stock) Reserve(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return &domain.ValidationError{Field: "quantity", Reason: fmt.Sprintf("cannot reserve %d units", qty)}
	}
	ct, err := s.q.Exec(ctx, `
		UPDATE products SET available_stock = available_stock - $2, updated_at = now()
		WHERE id = $1 AND available_stock >= $2`, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", productID, err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var available int
	err = s.q.QueryRow(ctx, `SELECT available_stock FROM products WHERE id = $1`, productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("read stock %s: %w", productID, err)
	}
	return &domain.StockShortageError{ProductID: productID, Requested: qty, Available: available}
}

func (s stock) Release(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return &domain.ValidationError{Field: "quantity", Reason: fmt.Sprintf("cannot release %d units", qty)}
	}
	ct, err := s.q.Exec(ctx, `
		UPDATE products SET available_stock = available_stock + $2, updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("release %s: %w", productID, err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
