// Package postgres is the pgx backed domain.Store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

var _ domain.Store = (*Store)(nil)

type Store struct{ db DB }

func NewStore(db DB) *Store { return &Store{db: db} }

func (s *Store) Products() domain.ProductCatalog { return products{q: s.db} }
func (s *Store) Carts() domain.CartReader        { return carts{q: s.db} }
func (s *Store) Orders() domain.OrderReader      { return orders{q: s.db} }

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

const (
	maxTxAttempts = 3

	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
)

// InTx runs fn inside a READ COMMITTED transaction. Row locks taken through
// the cart repository and the conditional stock updates keep concurrent
// transactions from overselling. A transaction aborted by a deadlock or a
// serialization failure is run again from the start, so fn must not keep
// state across calls.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	ptx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = ptx.Rollback(ctx) }()

	if err := fn(ctx, txRepos{q: ptx}); err != nil {
		return err
	}
	if err := ptx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlstateDeadlockDetected || pgErr.Code == sqlstateSerializationFailure
}

type txRepos struct{ q querier }

func (t txRepos) Stock() domain.StockLedger      { return stock{q: t.q} }
func (t txRepos) Products() domain.ProductReader { return products{q: t.q} }
func (t txRepos) Carts() domain.CartRepository   { return carts{q: t.q} }
func (t txRepos) Orders() domain.OrderRepository { return orders{q: t.q} }
