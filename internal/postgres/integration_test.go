//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ariefcatur/marketplace-core/internal/cart"
	"github.com/ariefcatur/marketplace-core/internal/domain"
	"github.com/ariefcatur/marketplace-core/internal/logging"
	"github.com/ariefcatur/marketplace-core/internal/orders"
	"github.com/ariefcatur/marketplace-core/internal/postgres"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "app", "POSTGRES_DB": "marketplace"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://app:secret@%s:%s/marketplace?sslmode=disable", host, port.Port())
}

func TestPostgresStoreEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := startPostgres(ctx, t)
	require.NoError(t, postgres.RunMigrations(dsn, logging.Discard()))
	pool, err := postgres.Connect(ctx, dsn, 16)
	require.NoError(t, err)
	defer pool.Close()

	store := postgres.NewStore(pool)
	require.NoError(t, store.Products().Upsert(ctx, domain.Product{
		ID: "p1", Name: "Kopi", Price: decimal.RequireFromString("10.50"), AvailableStock: 5, SellerID: "s1",
	}))

	carts := &cart.Service{Store: store, Log: logging.Discard()}
	svc := &orders.Service{Store: store, Log: logging.Discard()}

	// ten buyers race for five units
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := []string{}
	for i := 0; i < 10; i++ {
		buyer := fmt.Sprintf("b%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := carts.AddItem(ctx, buyer, "p1", 1); err == nil {
				mu.Lock()
				winners = append(winners, buyer)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, winners, 5)

	p, err := store.Products().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.AvailableStock)

	res, err := svc.Checkout(ctx, winners[0], domain.ShippingAddress{FullName: "Budi", Phone: "0812", Address: "Jl. Merdeka 1", City: "Bandung"}, "")
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.True(t, res.Orders[0].TotalAmount.Equal(decimal.RequireFromString("10.5")))

	_, err = svc.UpdateStatus(ctx, "s1", res.Orders[0].ID, "cancelled")
	require.NoError(t, err)
	p, err = store.Products().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.AvailableStock)

	got, err := svc.Get(ctx, winners[0], res.Orders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	require.Len(t, got.Items, 1)

	counts, err := svc.SellerSummary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.StatusCancelled])
}
