package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/marketplace-core/internal/domain"
	"github.com/ariefcatur/marketplace-core/internal/memory"
)

var errBoom = errors.New("boom")

func seed(t *testing.T, s *memory.Store, id string, stock int) {
	t.Helper()
	require.NoError(t, s.Products().Upsert(context.Background(), domain.Product{
		ID: id, Name: id, Price: decimal.NewFromInt(10), AvailableStock: stock, SellerID: "seller-1",
	}))
}

func stockOf(t *testing.T, s *memory.Store, id string) int {
	t.Helper()
	p, err := s.Products().Get(context.Background(), id)
	require.NoError(t, err)
	return p.AvailableStock
}

func TestReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seed(t, s, "p1", 5)

	err := s.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		require.NoError(t, tx.Stock().Reserve(ctx, "p1", 3))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stockOf(t, s, "p1"))

	err = s.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Stock().Reserve(ctx, "p1", 3)
	})
	var short *domain.StockShortageError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 2, short.Available)
	assert.Equal(t, 2, stockOf(t, s, "p1"))

	err = s.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Stock().Release(ctx, "p1", 3)
	})
	require.NoError(t, err)
	assert.Equal(t, 5, stockOf(t, s, "p1"))

	err = s.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Stock().Reserve(ctx, "missing", 1)
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestRollbackUndoesEverything(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seed(t, s, "p1", 5)
	seed(t, s, "p2", 5)

	err := s.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Carts().Open(ctx, "u1"); err != nil {
			return err
		}
		if err := tx.Stock().Reserve(ctx, "p1", 2); err != nil {
			return err
		}
		if err := tx.Stock().Release(ctx, "p2", 4); err != nil {
			return err
		}
		if err := tx.Carts().SaveItem(ctx, "u1", domain.CartItem{ProductID: "p1", Quantity: 2}); err != nil {
			return err
		}
		o := domain.NewOrder("o1", "u1", "seller-1", nil, domain.ShippingAddress{}, time.Now())
		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, 5, stockOf(t, s, "p1"))
	assert.Equal(t, 5, stockOf(t, s, "p2"))
	c, err := s.Carts().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	_, err = s.Orders().Get(ctx, "o1")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seed(t, s, "p1", 10)

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
				return tx.Stock().Reserve(ctx, "p1", 1)
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, ok.Load())
	assert.EqualValues(t, 40, short.Load())
	assert.Equal(t, 0, stockOf(t, s, "p1"))
}

func TestUpdateStatusCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	o := domain.NewOrder("o1", "buyer", "seller", nil, domain.ShippingAddress{}, time.Now())
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Orders().Create(ctx, o)
	}))

	at := time.Now().UTC()
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Orders().UpdateStatus(ctx, "o1", domain.StatusPending, domain.StatusAccepted, at)
	}))
	err := s.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Orders().UpdateStatus(ctx, "o1", domain.StatusPending, domain.StatusCancelled, at)
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := s.Orders().Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, got.Status)

	counts, err := s.Orders().CountBySeller(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.StatusAccepted])
}

func TestLockRespectsContext(t *testing.T) {
	s := memory.NewStore()
	held := make(chan struct{})
	releaseHolder := make(chan struct{})
	go func() {
		_ = s.InTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			_, err := tx.Carts().Open(ctx, "u1")
			close(held)
			<-releaseHolder
			return err
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Carts().Lock(ctx, "u1")
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(releaseHolder)
}
