package box

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/gdvshop/backoffice/internal/payment"
)

// Service drives the box purchase payment flow.
type Service struct {
	boxes    Repository
	provider payment.Provider

	defaultCurrency string
}

// NewService creates a box Service.
func NewService(boxes Repository, provider payment.Provider, defaultCurrency string) *Service {
	if defaultCurrency == "" {
		defaultCurrency = "eur"
	}
	return &Service{boxes: boxes, provider: provider, defaultCurrency: defaultCurrency}
}

// Get returns a single command box.
func (s *Service) Get(ctx context.Context, id string) (*CommandBox, error) {
	return s.boxes.GetByID(ctx, id)
}

// ByCustomer lists a customer's command boxes.
func (s *Service) ByCustomer(ctx context.Context, customerID string) ([]CommandBox, error) {
	return s.boxes.ListByCustomer(ctx, customerID)
}

// EnsureSession returns the checkout session for a pending box, creating it
// on first call. Idempotent like the order checkout path: a stored session
// is returned as-is and the provider idempotency key is the box ID.
func (s *Service) EnsureSession(ctx context.Context, boxID, currency string) (*payment.Session, error) {
	b, err := s.boxes.GetByID(ctx, boxID)
	if err != nil {
		return nil, err
	}

	if b.PaymentSessionID != nil && b.CheckoutURL != nil {
		return &payment.Session{ID: *b.PaymentSessionID, URL: *b.CheckoutURL}, nil
	}

	if b.Status != StatusPending || !b.Total().IsPositive() {
		return nil, ErrNotPayable
	}

	if currency == "" {
		currency = s.defaultCurrency
	}

	metadata := map[string]string{"customer_id": b.CustomerID, "box_id": b.ID}
	if b.OrderID != nil {
		metadata["order_id"] = *b.OrderID
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, payment.CreateSessionParams{
		Amount:   b.Total(),
		Currency: currency,
		OrderID:  b.ID,
		ItemName: b.ItemName(),
		Metadata: metadata,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}

	if err := s.boxes.SetPaymentSession(ctx, b.ID, sess.ID, sess.URL); err != nil {
		return nil, errors.Wrap(err, "store payment session")
	}

	return sess, nil
}

// MarkPaid records gateway settlement for a box purchase.
func (s *Service) MarkPaid(ctx context.Context, boxID, sessionID string) error {
	b, err := s.boxes.GetByID(ctx, boxID)
	if err != nil {
		return err
	}
	if b.PaymentSessionID == nil || *b.PaymentSessionID != sessionID {
		return ErrSessionMismatch
	}
	return s.boxes.UpdateStatus(ctx, boxID, StatusPaid)
}
