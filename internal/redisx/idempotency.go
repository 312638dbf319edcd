package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// CheckoutKeys remembers the orders produced under a client supplied
// Idempotency-Key.
type CheckoutKeys struct {
	Redis *redis.Client
}

func (k *CheckoutKeys) Lookup(ctx context.Context, userID, key string) ([]string, bool, error) {
	b, err := k.Redis.Get(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

// Remember keeps the first result for a key; later writes are ignored.
func (k *CheckoutKeys) Remember(ctx context.Context, userID, key string, orderIDs []string) error {
	b, err := json.Marshal(orderIDs)
	if err != nil {
		return err
	}
	return k.Redis.SetNX(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key), b, TTLIdempotency).Err()
}
