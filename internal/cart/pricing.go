package cart

import (
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

// PricingPolicy decides the unit price stored on a cart line after it changed.
// line already carries the new quantity; p is the current product.
type PricingPolicy func(line domain.CartItem, p domain.Product) decimal.Decimal

// RepriceLine prices the whole line at the product's current price, so a
// repeated add or a quantity change re-prices units added earlier too.
func RepriceLine(_ domain.CartItem, p domain.Product) decimal.Decimal {
	return p.Price
}

// KeepFirstPrice keeps the price of the first reservation for an existing line.
func KeepFirstPrice(line domain.CartItem, p domain.Product) decimal.Decimal {
	if line.PriceAtAddition.IsZero() {
		return p.Price
	}
	return line.PriceAtAddition
}
