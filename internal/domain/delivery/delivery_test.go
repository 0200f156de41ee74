package delivery

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRateRepo struct {
	rates []Rate
	err   error
}

func (m *mockRateRepo) ActiveRates(_ context.Context, _ string, _ Zone) ([]Rate, error) {
	return m.rates, m.err
}

func eur(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ar(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func rate(weightKg int, priceEUR string, priceAR *decimal.Decimal) Rate {
	return Rate{
		Carrier:  "colissimo",
		Zone:     ZoneMadagascar,
		WeightKg: weightKg,
		PriceEUR: eur(priceEUR),
		PriceAR:  priceAR,
		Active:   true,
	}
}

func TestClassifyDestination(t *testing.T) {
	assert.Equal(t, ZoneMadagascar, ClassifyDestination("Madagascar"))
	assert.Equal(t, ZoneMadagascar, ClassifyDestination("MADAGASCAR"))
	assert.Equal(t, ZoneMadagascar, ClassifyDestination("Màdagascar"))
	assert.Equal(t, ZoneMadagascar, ClassifyDestination("Antananarivo, madagascar"))
	assert.Equal(t, ZoneEurope, ClassifyDestination("France"))
	assert.Equal(t, ZoneEurope, ClassifyDestination("Deutschland"))
	assert.Equal(t, ZoneEurope, ClassifyDestination(""))
}

func TestBilledWeightKg(t *testing.T) {
	billed, err := BilledWeightKg(0.2)
	require.NoError(t, err)
	assert.Equal(t, 1, billed)

	billed, err = BilledWeightKg(2.0)
	require.NoError(t, err)
	assert.Equal(t, 2, billed)

	billed, err = BilledWeightKg(2.1)
	require.NoError(t, err)
	assert.Equal(t, 3, billed)

	_, err = BilledWeightKg(0)
	assert.ErrorIs(t, err, ErrInvalidWeight)

	_, err = BilledWeightKg(-1.5)
	assert.ErrorIs(t, err, ErrInvalidWeight)
}

func TestQuoteShipment_ExactTierBoundary(t *testing.T) {
	repo := &mockRateRepo{rates: []Rate{
		rate(1, "10.00", nil),
		rate(2, "14.00", nil),
		rate(5, "25.00", nil),
	}}
	engine := NewEngine(repo)

	q, err := engine.QuoteShipment(context.Background(), "Madagascar", 2.0, "colissimo")
	require.NoError(t, err)
	assert.Equal(t, ZoneMadagascar, q.Destination)
	assert.Equal(t, 2, q.BilledWeightKg)
	assert.True(t, eur("14.00").Equal(q.PriceEUR))
	assert.False(t, q.Extrapolated)
}

func TestQuoteShipment_NearestHigherTier(t *testing.T) {
	repo := &mockRateRepo{rates: []Rate{
		rate(1, "10.00", nil),
		rate(5, "25.00", nil),
	}}
	engine := NewEngine(repo)

	// 2.3 kg bills as 3 kg, which lands on the 5 kg tier.
	q, err := engine.QuoteShipment(context.Background(), "Madagascar", 2.3, "colissimo")
	require.NoError(t, err)
	assert.Equal(t, 3, q.BilledWeightKg)
	assert.True(t, eur("25.00").Equal(q.PriceEUR))
	assert.False(t, q.Extrapolated)
}

func TestQuoteShipment_Extrapolation(t *testing.T) {
	repo := &mockRateRepo{rates: []Rate{
		rate(5, "25.00", ar("110000")),
		rate(10, "40.00", ar("180000")),
	}}
	engine := NewEngine(repo)

	// 13 kg: per extra kg = (40-25)/(10-5) = 3.00; 40 + 3*3 = 49.00.
	q, err := engine.QuoteShipment(context.Background(), "Madagascar", 13, "colissimo")
	require.NoError(t, err)
	assert.True(t, q.Extrapolated)
	assert.True(t, eur("49.00").Equal(q.PriceEUR))
	assert.True(t, q.PriceEUR.GreaterThan(eur("40.00")))

	// Secondary currency: (180000-110000)/5 = 14000; 180000 + 3*14000.
	require.NotNil(t, q.PriceAR)
	assert.True(t, eur("222000").Equal(*q.PriceAR))
}

func TestQuoteShipment_SecondaryCurrencyOmittedWhenIncomplete(t *testing.T) {
	repo := &mockRateRepo{rates: []Rate{
		rate(5, "25.00", nil),
		rate(10, "40.00", ar("180000")),
	}}
	engine := NewEngine(repo)

	q, err := engine.QuoteShipment(context.Background(), "Madagascar", 13, "colissimo")
	require.NoError(t, err)
	assert.True(t, q.Extrapolated)
	assert.Nil(t, q.PriceAR)
}

func TestQuoteShipment_NoRatesConfigured(t *testing.T) {
	engine := NewEngine(&mockRateRepo{})

	_, err := engine.QuoteShipment(context.Background(), "France", 2, "colissimo")
	assert.ErrorIs(t, err, ErrNoRatesConfigured)
}

func TestQuoteShipment_SingleTierCannotExtrapolate(t *testing.T) {
	engine := NewEngine(&mockRateRepo{rates: []Rate{rate(5, "25.00", nil)}})

	_, err := engine.QuoteShipment(context.Background(), "Madagascar", 9, "colissimo")
	assert.ErrorIs(t, err, ErrNoExtrapolationBasis)
}

func TestQuoteShipment_DuplicateWeightTiersCannotExtrapolate(t *testing.T) {
	engine := NewEngine(&mockRateRepo{rates: []Rate{
		rate(5, "25.00", nil),
		rate(5, "30.00", nil),
	}})

	_, err := engine.QuoteShipment(context.Background(), "Madagascar", 9, "colissimo")
	assert.ErrorIs(t, err, ErrNoExtrapolationBasis)
}

func TestQuoteShipment_InvalidWeight(t *testing.T) {
	engine := NewEngine(&mockRateRepo{rates: []Rate{rate(5, "25.00", nil)}})

	_, err := engine.QuoteShipment(context.Background(), "France", -2, "colissimo")
	assert.ErrorIs(t, err, ErrInvalidWeight)
}

func TestQuoteShipment_RepositoryError(t *testing.T) {
	engine := NewEngine(&mockRateRepo{err: errors.New("db down")})

	_, err := engine.QuoteShipment(context.Background(), "France", 2, "colissimo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load rates")
}
