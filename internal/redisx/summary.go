package redisx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

// SellerSummaries caches per seller order counts computed from the store.
// Every order change bumps the seller's generation counter; a count read
// under an older generation is not written.
type SellerSummaries struct {
	Redis *redis.Client
}

func (s *SellerSummaries) Get(ctx context.Context, sellerID string) (domain.StatusCounts, bool, error) {
	m, err := s.Redis.HGetAll(ctx, fmt.Sprintf(KeySellerSummary, sellerID)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(m) == 0 {
		return nil, false, nil
	}
	counts := make(domain.StatusCounts, len(m))
	for status, v := range m {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, false, fmt.Errorf("seller summary %s/%s: %w", sellerID, status, err)
		}
		counts[domain.OrderStatus(status)] = n
	}
	return counts, true, nil
}

// Generation returns the seller's current generation, zero when unset.
func (s *SellerSummaries) Generation(ctx context.Context, sellerID string) (int64, error) {
	gen, err := s.Redis.Get(ctx, fmt.Sprintf(KeySellerSummaryGen, sellerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Put stores counts taken at generation gen. It is a no-op when the
// generation has moved on.
func (s *SellerSummaries) Put(ctx context.Context, sellerID string, gen int64, counts domain.StatusCounts) error {
	genKey := fmt.Sprintf(KeySellerSummaryGen, sellerID)
	key := fmt.Sprintf(KeySellerSummary, sellerID)

	values := make([]any, 0, 2*len(counts))
	for status, n := range counts {
		values = append(values, string(status), n)
	}

	err := s.Redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			if len(values) > 0 {
				p.HSet(ctx, key, values...)
				p.Expire(ctx, key, TTLSellerSummary)
			}
			return nil
		})
		return err
	}, genKey)
	// A concurrent Invalidate won; its caller recomputes.
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate drops the cached counts and bumps the generation.
func (s *SellerSummaries) Invalidate(ctx context.Context, sellerID string) error {
	_, err := s.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, fmt.Sprintf(KeySellerSummaryGen, sellerID))
		p.Del(ctx, fmt.Sprintf(KeySellerSummary, sellerID))
		return nil
	})
	return err
}
