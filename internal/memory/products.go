package memory

import (
	"context"
	"sort"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

type catalog struct{ s *Store }

func (c catalog) Get(_ context.Context, id string) (domain.Product, error) {
	e := c.s.product(id)
	if e == nil {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return e.snapshot(), nil
}

func (c catalog) GetMany(_ context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if e := c.s.product(id); e != nil {
			out[id] = e.snapshot()
		}
	}
	return out, nil
}

func (c catalog) List(context.Context) ([]domain.Product, error) {
	c.s.mu.RLock()
	out := make([]domain.Product, 0, len(c.s.products))
	for _, e := range c.s.products {
		out = append(out, e.snapshot())
	}
	c.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Upsert replaces the product record and sets its stock counter.
func (c catalog) Upsert(_ context.Context, p domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	ts := now()
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	e, ok := c.s.products[p.ID]
	if !ok {
		e = &productEntry{}
		p.CreatedAt = ts
		c.s.products[p.ID] = e
	} else {
		p.CreatedAt = e.snapshot().CreatedAt
	}
	p.UpdatedAt = ts
	e.mu.Lock()
	e.p = p
	e.mu.Unlock()
	e.stock.Store(int64(p.AvailableStock))
	return nil
}

func (c catalog) Delete(_ context.Context, id string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(c.s.products, id)
	return nil
}
