package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const PaymentCashOnDelivery = "cash_on_delivery"

// MaxQuantity caps a single cart line. Stock columns are 32 bit.
const MaxQuantity = 1_000_000

type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	AvailableStock int             `json:"availableStock"`
	SellerID       string          `json:"sellerId"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Validate checks a catalog record before it is stored. Prices are kept in
// whole cents, so more than two decimal places is rejected.
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return &ValidationError{Field: "id", Reason: "required"}
	case p.AvailableStock < 0:
		return &ValidationError{Field: "availableStock", Reason: "must not be negative"}
	case p.Price.IsNegative():
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	case !p.Price.Equal(p.Price.Truncate(2)):
		return &ValidationError{Field: "price", Reason: "at most 2 decimal places"}
	}
	return nil
}

type CartItem struct {
	ProductID       string          `json:"productId"`
	Quantity        int             `json:"quantity"`
	PriceAtAddition decimal.Decimal `json:"priceAtAddition"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.PriceAtAddition.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the reservation ledger of one user: every line holds stock.
type Cart struct {
	UserID string
	Items  []CartItem
}

func (c *Cart) Find(productID string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return CartItem{}, false
}

// Put replaces the line for item.ProductID or appends a new one.
func (c *Cart) Put(item CartItem) {
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i] = item
			return
		}
	}
	c.Items = append(c.Items, item)
}

func (c *Cart) Remove(productID string) {
	out := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	c.Items = out
}

func (c Cart) TotalItems() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

type ShippingAddress struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
}

func (a ShippingAddress) Validate() error {
	var missing []string
	for _, f := range []struct{ name, v string }{
		{"fullName", a.FullName},
		{"phone", a.Phone},
		{"address", a.Address},
		{"city", a.City},
	} {
		if strings.TrimSpace(f.v) == "" {
			missing = append(missing, "shippingAddress."+f.name)
		}
	}
	if len(missing) > 0 {
		return MissingFieldsError(missing...)
	}
	return nil
}

// OrderItem keeps the product name as it was at checkout.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID              string          `json:"id"`
	BuyerID         string          `json:"buyerId"`
	SellerID        string          `json:"sellerId"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewOrder builds a pending order; the total is fixed here and never recomputed.
func NewOrder(id, buyerID, sellerID string, items []OrderItem, addr ShippingAddress, now time.Time) Order {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return Order{
		ID:              id,
		BuyerID:         buyerID,
		SellerID:        sellerID,
		Items:           items,
		TotalAmount:     total,
		ShippingAddress: addr,
		PaymentMethod:   PaymentCashOnDelivery,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CanView reports whether userID is the buyer or the seller of o.
func (o Order) CanView(userID string) bool {
	return userID != "" && (o.BuyerID == userID || o.SellerID == userID)
}
