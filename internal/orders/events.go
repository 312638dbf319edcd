package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"

	EventVersion = 1
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "marketplace-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID     string             `json:"order_id"`
	BuyerID     string             `json:"buyer_id"`
	SellerID    string             `json:"seller_id"`
	Status      domain.OrderStatus `json:"status"`
	Items       []ItemQty          `json:"items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
}

type OrderStatusChangedPayload struct {
	OrderID  string             `json:"order_id"`
	BuyerID  string             `json:"buyer_id"`
	SellerID string             `json:"seller_id"`
	From     domain.OrderStatus `json:"from"`
	To       domain.OrderStatus `json:"to"`
	// Restocked lists the units returned to stock; set on cancellation only.
	Restocked []ItemQty `json:"restocked,omitempty"`
}

func itemQtys(items []domain.OrderItem) []ItemQty {
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	return out
}
