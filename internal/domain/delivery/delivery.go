// Package delivery rates shipments against a sparse weight/price table.
//
// Rates are curated per (carrier, zone) pair and ordered by weight. Weights
// between tabulated tiers bill at the nearest higher tier; weights beyond the
// table extrapolate linearly from the last two tiers, flagged so callers can
// mark the quote as an estimate.
package delivery

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Zone is a destination pricing zone.
type Zone string

const (
	ZoneEurope     Zone = "EUROPE"
	ZoneMadagascar Zone = "MADAGASCAR"
)

var (
	// ErrInvalidWeight is returned for zero or negative shipment weights.
	ErrInvalidWeight = errors.New("shipment weight must be positive")
	// ErrNoRatesConfigured is returned when no active rates exist for the
	// requested carrier and zone.
	ErrNoRatesConfigured = errors.New("no delivery pricing configured for carrier and zone")
	// ErrNoExtrapolationBasis is returned when the billed weight exceeds the
	// table and fewer than two tiers exist to extrapolate from.
	ErrNoExtrapolationBasis = errors.New("not enough rate tiers to extrapolate beyond table")
)

// Rate is one tabulated price point for a (carrier, zone) pair.
type Rate struct {
	ID       string
	Carrier  string
	Zone     Zone
	WeightKg int
	PriceEUR decimal.Decimal
	PriceAR  *decimal.Decimal
	Active   bool
}

// Repository provides the active rates for a carrier and zone,
// ordered by WeightKg ascending.
type Repository interface {
	ActiveRates(ctx context.Context, carrier string, zone Zone) ([]Rate, error)
}

// Quote is a rated shipment.
type Quote struct {
	Destination    Zone
	BilledWeightKg int
	PriceEUR       decimal.Decimal
	PriceAR        *decimal.Decimal

	// Extrapolated is true when the billed weight exceeded the rate table
	// and the price was projected from the last two tiers.
	Extrapolated bool
}

// Engine rates shipments from repository-backed tables.
type Engine struct {
	rates Repository
}

// NewEngine creates an Engine backed by the given rate repository.
func NewEngine(rates Repository) *Engine {
	return &Engine{rates: rates}
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ClassifyDestination maps a free-text country to a pricing zone. The match
// is accent-stripped, case-folded and substring-based: anything mentioning
// madagascar goes to ZoneMadagascar, everything else to ZoneEurope.
func ClassifyDestination(country string) Zone {
	folded, _, err := transform.String(accentFolder, country)
	if err != nil {
		folded = country
	}
	if strings.Contains(strings.ToLower(folded), "madagascar") {
		return ZoneMadagascar
	}
	return ZoneEurope
}

// BilledWeightKg rounds a shipment weight up to the next whole kilogram,
// with a floor of 1 kg. Zero and negative weights are invalid input.
func BilledWeightKg(weightKg float64) (int, error) {
	if weightKg <= 0 || math.IsNaN(weightKg) || math.IsInf(weightKg, 0) {
		return 0, ErrInvalidWeight
	}
	billed := int(math.Ceil(weightKg))
	if billed < 1 {
		billed = 1
	}
	return billed, nil
}

// QuoteShipment rates a shipment of weightKg kilograms to the given country
// via carrier.
//
// Lookup order: exact weight tier, then the nearest higher tier as-is, then
// linear extrapolation past the last two tiers. Extrapolation of the
// secondary currency happens only when both endpoint tiers carry it.
func (e *Engine) QuoteShipment(ctx context.Context, country string, weightKg float64, carrier string) (*Quote, error) {
	billed, err := BilledWeightKg(weightKg)
	if err != nil {
		return nil, err
	}

	zone := ClassifyDestination(country)

	rates, err := e.rates.ActiveRates(ctx, carrier, zone)
	if err != nil {
		return nil, errors.Wrap(err, "load rates")
	}
	if len(rates) == 0 {
		return nil, ErrNoRatesConfigured
	}

	// Exact tier, or the nearest higher tier. Rates are ordered by weight
	// ascending, so the first tier at or above the billed weight wins.
	for _, r := range rates {
		if r.WeightKg >= billed {
			return &Quote{
				Destination:    zone,
				BilledWeightKg: billed,
				PriceEUR:       r.PriceEUR,
				PriceAR:        r.PriceAR,
			}, nil
		}
	}

	return extrapolate(rates, zone, billed)
}

// extrapolate projects the price past the table's last tier using the slope
// of the last two tiers. Requires at least two tiers; with fewer the engine
// fails rather than guesses.
func extrapolate(rates []Rate, zone Zone, billed int) (*Quote, error) {
	if len(rates) < 2 {
		return nil, ErrNoExtrapolationBasis
	}

	last := rates[len(rates)-1]
	prev := rates[len(rates)-2]

	// Duplicate-weight tiers give a zero slope base. Bad curation, but it
	// must degrade to an error, not a division panic.
	if last.WeightKg == prev.WeightKg {
		return nil, ErrNoExtrapolationBasis
	}

	deltaKg := decimal.NewFromInt(int64(last.WeightKg - prev.WeightKg))
	extraKg := decimal.NewFromInt(int64(billed - last.WeightKg))

	perKgEUR := last.PriceEUR.Sub(prev.PriceEUR).Div(deltaKg)
	priceEUR := last.PriceEUR.Add(perKgEUR.Mul(extraKg)).Round(2)

	q := &Quote{
		Destination:    zone,
		BilledWeightKg: billed,
		PriceEUR:       priceEUR,
		Extrapolated:   true,
	}

	if last.PriceAR != nil && prev.PriceAR != nil {
		perKgAR := last.PriceAR.Sub(*prev.PriceAR).Div(deltaKg)
		priceAR := last.PriceAR.Add(perKgAR.Mul(extraKg)).Round(2)
		q.PriceAR = &priceAR
	}

	return q, nil
}
