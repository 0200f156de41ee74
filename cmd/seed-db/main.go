package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/gdvshop/backoffice/internal/domain/catalog"
	"github.com/gdvshop/backoffice/internal/domain/delivery"
	"github.com/gdvshop/backoffice/internal/domain/pricing"
	"github.com/gdvshop/backoffice/internal/repository"
)

type tierJSON struct {
	MinQty    int             `json:"minQty"`
	MaxQty    *int            `json:"maxQty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type productJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	WeightKg      float64         `json:"weightKg"`
	Price         decimal.Decimal `json:"price"`
	PricePro      decimal.Decimal `json:"pricePro"`
	StandardTiers []tierJSON      `json:"standardTiers"`
	ProTiers      []tierJSON      `json:"proTiers"`
}

type rateJSON struct {
	ID       string           `json:"id"`
	Carrier  string           `json:"carrier"`
	Zone     string           `json:"zone"`
	WeightKg int              `json:"weightKg"`
	PriceEUR decimal.Decimal  `json:"priceEuro"`
	PriceAR  *decimal.Decimal `json:"priceAriary"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		ratesFile    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&ratesFile, "rates-file", "db/seed/delivery_rates.json", "path to delivery rates JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, ratesFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, ratesFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedRates(ctx, repository.NewDeliveryRateRepository(pool), ratesFile); err != nil {
		return errors.Wrap(err, "seed delivery rates")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		product := catalog.Product{
			ID:       p.ID,
			Name:     p.Name,
			WeightKg: p.WeightKg,
			Pricing: pricing.ProductPricing{
				Price:         p.Price,
				PricePro:      p.PricePro,
				StandardTiers: toTable(p.StandardTiers),
				ProTiers:      toTable(p.ProTiers),
			},
		}
		if reasons := product.Pricing.StandardTiers.Validate(); len(reasons) > 0 {
			return errors.Errorf("product %s standard tiers: %v", p.ID, reasons)
		}
		if reasons := product.Pricing.ProTiers.Validate(); len(reasons) > 0 {
			return errors.Errorf("product %s pro tiers: %v", p.ID, reasons)
		}

		if err := repo.Upsert(ctx, product); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func toTable(tiers []tierJSON) pricing.Table {
	table := make(pricing.Table, 0, len(tiers))
	for _, t := range tiers {
		table = append(table, pricing.Tier{MinQty: t.MinQty, MaxQty: t.MaxQty, UnitPrice: t.UnitPrice})
	}
	return table
}

func seedRates(ctx context.Context, repo *repository.DeliveryRateRepository, ratesFile string) error {
	slog.Info("reading delivery rates file", slog.String("path", ratesFile))

	data, err := os.ReadFile(ratesFile)
	if err != nil {
		return errors.Wrap(err, "read rates file")
	}

	var rates []rateJSON
	if err := json.Unmarshal(data, &rates); err != nil {
		return errors.Wrap(err, "parse rates JSON")
	}

	slog.Info("upserting delivery rates", slog.Int("count", len(rates)))

	for _, r := range rates {
		if err := repo.Upsert(ctx, delivery.Rate{
			ID:       r.ID,
			Carrier:  r.Carrier,
			Zone:     delivery.Zone(r.Zone),
			WeightKg: r.WeightKg,
			PriceEUR: r.PriceEUR,
			PriceAR:  r.PriceAR,
			Active:   true,
		}); err != nil {
			return errors.Wrapf(err, "upsert rate %s", r.ID)
		}

		slog.Info("upserted rate",
			slog.String("carrier", r.Carrier), slog.String("zone", r.Zone), slog.Int("weightKg", r.WeightKg))
	}

	return nil
}
