package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gdvshop/backoffice/internal/domain/catalog"
)

const (
	listProductsSQL = `SELECT id, name, weight_kg, price, price_pro, standard_tiers, pro_tiers
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, weight_kg, price, price_pro, standard_tiers, pro_tiers
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, weight_kg, price, price_pro, standard_tiers, pro_tiers
		FROM products WHERE id = ANY($1)`

	upsertProductSQL = `INSERT INTO products (id, name, weight_kg, price, price_pro, standard_tiers, pro_tiers)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, weight_kg = EXCLUDED.weight_kg,
			price = EXCLUDED.price, price_pro = EXCLUDED.price_pro,
			standard_tiers = EXCLUDED.standard_tiers, pro_tiers = EXCLUDED.pro_tiers`
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
// Tier tables live in JSONB columns and are decoded on read.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs. Missing IDs are
// simply absent from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Upsert inserts or replaces a product. Used by the seeder.
func (r *ProductRepository) Upsert(ctx context.Context, p catalog.Product) error {
	stdTiers, err := json.Marshal(p.Pricing.StandardTiers)
	if err != nil {
		return fmt.Errorf("marshaling standard tiers: %w", err)
	}
	proTiers, err := json.Marshal(p.Pricing.ProTiers)
	if err != nil {
		return fmt.Errorf("marshaling pro tiers: %w", err)
	}

	_, err = r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.WeightKg, p.Pricing.Price, p.Pricing.PricePro, stdTiers, proTiers,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p        catalog.Product
		stdTiers []byte
		proTiers []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.WeightKg,
		&p.Pricing.Price, &p.Pricing.PricePro, &stdTiers, &proTiers,
	)
	if err != nil {
		return p, err
	}

	if err := json.Unmarshal(stdTiers, &p.Pricing.StandardTiers); err != nil {
		return p, fmt.Errorf("decoding standard tiers for %q: %w", p.ID, err)
	}
	if err := json.Unmarshal(proTiers, &p.Pricing.ProTiers); err != nil {
		return p, fmt.Errorf("decoding pro tiers for %q: %w", p.ID, err)
	}
	return p, nil
}
