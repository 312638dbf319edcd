// Package catalog loads product fixtures into the store at startup.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/marketplace-core/internal/domain"
)

// LoadFile reads a JSON array of products.
func LoadFile(path string) ([]domain.Product, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var products []domain.Product
	if err := json.Unmarshal(b, &products); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	for i, p := range products {
		if p.ID == "" || p.SellerID == "" {
			return nil, fmt.Errorf("catalog %s: product #%d needs id and sellerId", path, i)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("catalog %s: product %s: %w", path, p.ID, err)
		}
	}
	return products, nil
}

// Seed upserts every product, overwriting stock levels.
func Seed(ctx context.Context, c domain.ProductCatalog, products []domain.Product, logger *log.Entry) error {
	for _, p := range products {
		if err := c.Upsert(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	logger.WithField("products", len(products)).Info("catalog seeded")
	return nil
}
