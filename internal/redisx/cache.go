package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

// OrderCache is a write-through cache of order documents. Set never
// replaces a cached copy that is newer than the one being written.
type OrderCache struct {
	Redis *redis.Client
}

func (c *OrderCache) Get(ctx context.Context, id string) (domain.Order, bool, error) {
	b, err := c.Redis.Get(ctx, fmt.Sprintf(KeyOrder, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, err
	}
	var o domain.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return domain.Order{}, false, fmt.Errorf("decode cached order %s: %w", id, err)
	}
	return o, true, nil
}

func (c *OrderCache) Set(ctx context.Context, o domain.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(KeyOrder, o.ID)

	set := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var cached domain.Order
			if json.Unmarshal(cur, &cached) == nil && !supersedes(o, cached) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, TTLOrderCache)
			return nil
		})
		return err
	}

	for i := 0; i < casAttempts; i++ {
		err = c.Redis.Watch(ctx, set, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (c *OrderCache) Delete(ctx context.Context, id string) error {
	return c.Redis.Del(ctx, fmt.Sprintf(KeyOrder, id)).Err()
}

// supersedes reports whether next may replace cur in the cache.
func supersedes(next, cur domain.Order) bool {
	if next.UpdatedAt.Before(cur.UpdatedAt) {
		return false
	}
	if cur.Status != domain.StatusPending && next.Status == domain.StatusPending {
		return false
	}
	return true
}
