package redisx

import "time"

const (
	// Checkout idempotency: idem:checkout:{user_id}:{key} -> JSON array of order ids
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Order cache: order:{order_id} -> order JSON
	KeyOrder = "order:%s"

	// Seller summary cache: hash seller_summary:{seller_id} status -> count
	KeySellerSummary = "seller_summary:%s"

	// Seller summary generation: seller_summary_gen:{seller_id} -> counter
	KeySellerSummaryGen = "seller_summary_gen:%s"
)

var (
	TTLIdempotency   = 24 * time.Hour
	TTLOrderCache    = 5 * time.Minute
	TTLSellerSummary = 30 * time.Second
)

// casAttempts bounds WATCH retries when another client touches the key.
const casAttempts = 3
