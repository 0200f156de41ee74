package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gdvshop/backoffice/internal/domain/delivery"
)

const (
	listActiveRatesSQL = `SELECT id, carrier, zone, weight_kg, price_eur, price_ar, is_active
		FROM delivery_rates
		WHERE carrier = $1 AND zone = $2 AND is_active
		ORDER BY weight_kg`

	upsertRateSQL = `INSERT INTO delivery_rates (id, carrier, zone, weight_kg, price_eur, price_ar, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			carrier = EXCLUDED.carrier, zone = EXCLUDED.zone, weight_kg = EXCLUDED.weight_kg,
			price_eur = EXCLUDED.price_eur, price_ar = EXCLUDED.price_ar, is_active = EXCLUDED.is_active`
)

var _ delivery.Repository = (*DeliveryRateRepository)(nil)

// DeliveryRateRepository implements delivery.Repository backed by PostgreSQL.
type DeliveryRateRepository struct {
	pool *pgxpool.Pool
}

// NewDeliveryRateRepository returns a DeliveryRateRepository that uses the
// given pool.
func NewDeliveryRateRepository(pool *pgxpool.Pool) *DeliveryRateRepository {
	return &DeliveryRateRepository{pool: pool}
}

// ActiveRates returns the active rates for a (carrier, zone) pair ordered by
// weight ascending, as the rate engine requires.
func (r *DeliveryRateRepository) ActiveRates(ctx context.Context, carrier string, zone delivery.Zone) ([]delivery.Rate, error) {
	rows, err := r.pool.Query(ctx, listActiveRatesSQL, carrier, string(zone))
	if err != nil {
		return nil, fmt.Errorf("listing rates for %s/%s: %w", carrier, zone, err)
	}
	return pgx.CollectRows(rows, scanRate)
}

// Upsert inserts or replaces a rate. Used by the seeder.
func (r *DeliveryRateRepository) Upsert(ctx context.Context, rate delivery.Rate) error {
	_, err := r.pool.Exec(ctx, upsertRateSQL,
		rate.ID, rate.Carrier, string(rate.Zone), rate.WeightKg, rate.PriceEUR, rate.PriceAR, rate.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting rate %q: %w", rate.ID, err)
	}
	return nil
}

func scanRate(row pgx.CollectableRow) (delivery.Rate, error) {
	var (
		rate delivery.Rate
		zone string
	)
	err := row.Scan(&rate.ID, &rate.Carrier, &zone, &rate.WeightKg, &rate.PriceEUR, &rate.PriceAR, &rate.Active)
	rate.Zone = delivery.Zone(zone)
	return rate, err
}
