package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/marketplace-core/internal/domain"
	"github.com/ariefcatur/marketplace-core/internal/metrics"
)

// View is the cart representation returned to clients.
type View struct {
	Items      []Line          `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// Line is a cart line with the current catalog details of its product.
// Product is nil once the product has been deleted.
type Line struct {
	domain.CartItem
	Product *ProductSummary `json:"product,omitempty"`
}

type ProductSummary struct {
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	AvailableStock int             `json:"availableStock"`
	SellerID       string          `json:"sellerId"`
}

// NewView builds the response for c. products may miss entries.
func NewView(c domain.Cart, products map[string]domain.Product) View {
	lines := make([]Line, 0, len(c.Items))
	for _, it := range c.Items {
		line := Line{CartItem: it}
		if p, ok := products[it.ProductID]; ok {
			line.Product = &ProductSummary{
				Name:           p.Name,
				Price:          p.Price,
				AvailableStock: p.AvailableStock,
				SellerID:       p.SellerID,
			}
		}
		lines = append(lines, line)
	}
	return View{Items: lines, TotalItems: c.TotalItems(), TotalPrice: c.TotalPrice()}
}

// Service keeps cart lines and product stock in lock-step: every operation
// adjusts both inside one store transaction.
type Service struct {
	Store   domain.Store
	Pricing PricingPolicy // nil means RepriceLine
	Metrics *metrics.Metrics
	Log     *log.Entry
}

func (s *Service) price(line domain.CartItem, p domain.Product) decimal.Decimal {
	if s.Pricing == nil {
		return RepriceLine(line, p)
	}
	return s.Pricing(line, p)
}

func (s *Service) logger() *log.Entry {
	if s.Log == nil {
		return log.WithField("component", "cart")
	}
	return s.Log
}

func validQuantity(qty int) error {
	switch {
	case qty < 1:
		return &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	case qty > domain.MaxQuantity:
		return &domain.ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be at most %d", domain.MaxQuantity)}
	}
	return nil
}

// view loads the products of c's lines through r.
func (s *Service) view(ctx context.Context, r domain.ProductReader, c domain.Cart) (View, error) {
	if len(c.Items) == 0 {
		return NewView(c, nil), nil
	}
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := r.GetMany(ctx, ids)
	if err != nil {
		return View{}, err
	}
	return NewView(c, products), nil
}

// byProduct returns the lines sorted by product id. Stock rows are always
// locked in this order.
func byProduct(lines []domain.CartItem) []domain.CartItem {
	out := append([]domain.CartItem(nil), lines...)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) (v View, err error) {
	defer func() { s.Metrics.RecordCartOp("add", err) }()
	if err := validQuantity(qty); err != nil {
		return View{}, err
	}

	err = s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		c, err := tx.Carts().Open(ctx, userID)
		if err != nil {
			return err
		}
		p, err := tx.Products().Get(ctx, productID)
		if err != nil {
			return err
		}

		line, ok := c.Find(productID)
		if ok {
			line.Quantity += qty
		} else {
			line = domain.CartItem{ProductID: productID, Quantity: qty}
		}
		if err := validQuantity(line.Quantity); err != nil {
			return err
		}
		if err := tx.Stock().Reserve(ctx, productID, qty); err != nil {
			return err
		}
		line.PriceAtAddition = s.price(line, p)
		if err := tx.Carts().SaveItem(ctx, userID, line); err != nil {
			return err
		}
		c.Put(line)
		v, err = s.view(ctx, tx.Products(), c)
		return err
	})
	if err != nil {
		return View{}, err
	}
	s.Metrics.RecordReserved(qty)
	s.logger().WithFields(log.Fields{"user_id": userID, "product_id": productID, "qty": qty}).Debug("cart item added")
	return v, nil
}

// UpdateItemQuantity sets an existing line to qty, reserving or releasing the difference.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, productID string, qty int) (v View, err error) {
	defer func() { s.Metrics.RecordCartOp("update", err) }()
	if err := validQuantity(qty); err != nil {
		return View{}, err
	}

	var delta int
	err = s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		c, err := tx.Carts().Lock(ctx, userID)
		if err != nil {
			return err
		}
		line, ok := c.Find(productID)
		if !ok {
			return domain.ErrCartItemNotFound
		}
		p, err := tx.Products().Get(ctx, productID)
		if err != nil {
			return err
		}

		delta = qty - line.Quantity
		switch {
		case delta > 0:
			err = tx.Stock().Reserve(ctx, productID, delta)
		case delta < 0:
			err = tx.Stock().Release(ctx, productID, -delta)
		}
		if err != nil {
			return err
		}

		line.Quantity = qty
		line.PriceAtAddition = s.price(line, p)
		if err := tx.Carts().SaveItem(ctx, userID, line); err != nil {
			return err
		}
		c.Put(line)
		v, err = s.view(ctx, tx.Products(), c)
		return err
	})
	if err != nil {
		return View{}, err
	}
	if delta > 0 {
		s.Metrics.RecordReserved(delta)
	} else {
		s.Metrics.RecordReleased(-delta)
	}
	return v, nil
}

// RemoveItem drops the whole line and returns its units to stock. A product
// deleted from the catalog since it was carted only loses the line.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (v View, err error) {
	defer func() { s.Metrics.RecordCartOp("remove", err) }()

	var released int
	err = s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		c, err := tx.Carts().Lock(ctx, userID)
		if err != nil {
			return err
		}
		line, ok := c.Find(productID)
		if !ok {
			return domain.ErrCartItemNotFound
		}
		if err := s.release(ctx, tx, line); err != nil {
			return err
		}
		if err := tx.Carts().DeleteItem(ctx, userID, productID); err != nil {
			return err
		}
		c.Remove(productID)
		released = line.Quantity
		v, err = s.view(ctx, tx.Products(), c)
		return err
	})
	if err != nil {
		return View{}, err
	}
	s.Metrics.RecordReleased(released)
	return v, nil
}

// ClearCart returns every line to stock and empties the cart. Clearing a
// missing or empty cart succeeds.
func (s *Service) ClearCart(ctx context.Context, userID string) (v View, err error) {
	defer func() { s.Metrics.RecordCartOp("clear", err) }()

	var released int
	err = s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		released = 0
		c, err := tx.Carts().Lock(ctx, userID)
		if errors.Is(err, domain.ErrCartNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(c.Items) == 0 {
			return nil
		}
		for _, line := range byProduct(c.Items) {
			if err := s.release(ctx, tx, line); err != nil {
				return err
			}
			released += line.Quantity
		}
		return tx.Carts().Clear(ctx, userID)
	})
	if err != nil {
		return View{}, err
	}
	s.Metrics.RecordReleased(released)
	return NewView(domain.Cart{UserID: userID}, nil), nil
}

// GetCart never fails for a user without a cart.
func (s *Service) GetCart(ctx context.Context, userID string) (View, error) {
	c, err := s.Store.Carts().Get(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return NewView(domain.Cart{UserID: userID}, nil), nil
	}
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, s.Store.Products(), c)
}

func (s *Service) release(ctx context.Context, tx domain.Tx, line domain.CartItem) error {
	err := tx.Stock().Release(ctx, line.ProductID, line.Quantity)
	if errors.Is(err, domain.ErrProductNotFound) {
		s.logger().WithField("product_id", line.ProductID).Warn("released line of a deleted product")
		return nil
	}
	return err
}
