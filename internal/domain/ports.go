package domain

import (
	"context"
	"time"
)

// StockLedger is the only way availableStock changes.
//
// Reserve is an atomic decrement-if-sufficient and fails with a
// *StockShortageError when fewer than qty units are left. Release is an
// unconditional increment. Both return ErrProductNotFound for unknown ids.
type StockLedger interface {
	Reserve(ctx context.Context, productID string, qty int) error
	Release(ctx context.Context, productID string, qty int) error
}

type ProductReader interface {
	Get(ctx context.Context, id string) (Product, error)
	// GetMany returns the products that exist; missing ids are absent from the map.
	GetMany(ctx context.Context, ids []string) (map[string]Product, error)
}

// ProductCatalog is the surface of the external catalog the core relies on.
type ProductCatalog interface {
	ProductReader
	List(ctx context.Context) ([]Product, error)
	Upsert(ctx context.Context, p Product) error
	Delete(ctx context.Context, id string) error
}

type CartReader interface {
	// Get returns ErrCartNotFound when the user never had a cart.
	Get(ctx context.Context, userID string) (Cart, error)
}

// CartRepository mutates carts inside a transaction. A cart obtained through
// Open or Lock stays locked until the transaction ends.
type CartRepository interface {
	CartReader
	Open(ctx context.Context, userID string) (Cart, error)
	Lock(ctx context.Context, userID string) (Cart, error)
	SaveItem(ctx context.Context, userID string, item CartItem) error
	DeleteItem(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

type OrderReader interface {
	Get(ctx context.Context, id string) (Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]Order, error)
	CountBySeller(ctx context.Context, sellerID string) (StatusCounts, error)
}

type OrderRepository interface {
	OrderReader
	Create(ctx context.Context, o Order) error
	// UpdateStatus is a compare-and-set: it fails with ErrInvalidTransition
	// when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to OrderStatus, at time.Time) error
}

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Stock() StockLedger
	Products() ProductReader
	Carts() CartRepository
	Orders() OrderRepository
}

type Store interface {
	// InTx runs fn in a single unit of work. When fn returns an error none of
	// its writes survive.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Products() ProductCatalog
	Carts() CartReader
	Orders() OrderReader
	Ping(ctx context.Context) error
}
