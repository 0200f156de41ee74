package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var decimalHundred = decimal.NewFromInt(100)

// FakeProvider returns deterministic local sessions without calling any
// gateway. Used for development and tests when no Stripe key is configured.
type FakeProvider struct {
	// BaseURL is prepended to generated checkout URLs,
	// e.g. "http://localhost:8080/fake-checkout".
	BaseURL string
}

var _ Provider = (*FakeProvider)(nil)

// CreateCheckoutSession returns a synthetic session keyed by the order ID so
// repeated calls for the same order produce the same URL.
func (p *FakeProvider) CreateCheckoutSession(_ context.Context, params CreateSessionParams) (*Session, error) {
	if !params.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	// Deterministic per order: UUIDv5 over the order ID.
	id := "fake_" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(params.OrderID)).String()
	return &Session{
		ID:  id,
		URL: fmt.Sprintf("%s/%s?amount=%s&currency=%s", p.BaseURL, id, params.Amount.StringFixed(2), params.Currency),
	}, nil
}
