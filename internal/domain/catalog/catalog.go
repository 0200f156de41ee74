// Package catalog exposes the product catalog to the pricing and order
// flows. Catalog writes are an admin concern handled elsewhere; everything
// here is read-only.
package catalog

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/gdvshop/backoffice/internal/domain/pricing"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item with its per-class pricing.
type Product struct {
	ID       string
	Name     string
	WeightKg float64
	Pricing  pricing.ProductPricing
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs returns the products matching any of the given IDs.
	// Missing IDs are simply absent from the result, not an error.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
