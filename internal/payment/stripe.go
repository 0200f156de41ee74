package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// StripeProvider implements Provider using Stripe hosted Checkout.
type StripeProvider struct {
	successURL string
	cancelURL  string
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider configures the global Stripe client and returns a
// provider that redirects completed and abandoned sessions to the given URLs.
func NewStripeProvider(apiKey, successURL, cancelURL string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateCheckoutSession creates a single-line-item hosted checkout session.
// The major-unit amount is converted to the minor unit Stripe expects.
// The order ID is used as the idempotency key, so retrying session creation
// for the same order returns the original session.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
	if !params.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	amountMinor := params.Amount.Mul(decimalHundred).Round(0).IntPart()

	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(amountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(params.ItemName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.successURL),
		CancelURL:  stripe.String(p.cancelURL),
	}
	sessionParams.Context = ctx
	sessionParams.SetIdempotencyKey(params.OrderID)
	sessionParams.AddMetadata("order_id", params.OrderID)
	for k, v := range params.Metadata {
		sessionParams.AddMetadata(k, v)
	}

	s, err := session.New(sessionParams)
	if err != nil {
		return nil, errors.Wrap(err, "create stripe checkout session")
	}

	return &Session{ID: s.ID, URL: s.URL}, nil
}
