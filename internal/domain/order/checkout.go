package order

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/gdvshop/backoffice/internal/payment"
)

// CheckoutService reserves payment sessions for committed orders.
//
// Session creation is deliberately separate from order creation: the order
// commits first and stays valid if the gateway call fails, and EnsureSession
// can be retried against the existing order.
type CheckoutService struct {
	orders   Repository
	provider payment.Provider

	// ReferencePrefix names the checkout line item after the order reference.
	referencePrefix string
	defaultCurrency string
}

// NewCheckoutService creates a CheckoutService.
func NewCheckoutService(orders Repository, provider payment.Provider, referencePrefix, defaultCurrency string) *CheckoutService {
	if referencePrefix == "" {
		referencePrefix = "GDV"
	}
	if defaultCurrency == "" {
		defaultCurrency = "eur"
	}
	return &CheckoutService{
		orders:          orders,
		provider:        provider,
		referencePrefix: referencePrefix,
		defaultCurrency: defaultCurrency,
	}
}

// EnsureSession returns the checkout session for an order, creating it on
// first call. The call is idempotent: a stored session is returned as-is,
// and the provider idempotency key (the order ID) covers the window where a
// session was created but not yet stored.
func (s *CheckoutService) EnsureSession(ctx context.Context, orderID, currency string) (*payment.Session, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.PaymentSessionID != nil && o.CheckoutURL != nil {
		return &payment.Session{ID: *o.PaymentSessionID, URL: *o.CheckoutURL}, nil
	}

	if !o.TotalAmount.IsPositive() {
		return nil, ErrNotPayable
	}

	if currency == "" {
		currency = s.defaultCurrency
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, payment.CreateSessionParams{
		Amount:   o.TotalAmount,
		Currency: currency,
		OrderID:  o.ID,
		ItemName: o.Reference(s.referencePrefix),
		Metadata: map[string]string{"customer_id": o.CustomerID},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}

	if err := s.orders.SetPaymentSession(ctx, o.ID, sess.ID, sess.URL); err != nil {
		// The session exists at the gateway; the next EnsureSession call
		// recreates it under the same idempotency key.
		return nil, errors.Wrap(err, "store payment session")
	}

	return sess, nil
}
