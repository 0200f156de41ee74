// Package payment abstracts the hosted checkout-session gateway.
//
// Amounts are expressed in major currency units with two-decimal rounding
// (fractional euros, not integer cents); implementations convert to their
// provider's unit internally. Callers must preserve this convention.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a session is requested for a
// non-positive amount.
var ErrInvalidAmount = errors.New("checkout amount must be positive")

// CreateSessionParams describes the checkout session to create.
type CreateSessionParams struct {
	// Amount in major currency units, rounded to 2 decimal places.
	Amount   decimal.Decimal
	Currency string

	// OrderID doubles as the provider idempotency key so retries against
	// the same order return the same session.
	OrderID  string
	ItemName string
	Metadata map[string]string
}

// Session is a reserved hosted checkout session.
type Session struct {
	ID  string
	URL string
}

// Provider creates hosted checkout sessions.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params CreateSessionParams) (*Session, error)
}
