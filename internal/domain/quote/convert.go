package quote

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/gdvshop/backoffice/internal/domain/customer"
	"github.com/gdvshop/backoffice/internal/domain/order"
)

// ConversionService turns a validated quote into a one-line order at the
// admin-set final price and reserves a checkout session for it.
type ConversionService struct {
	quotes    Repository
	customers customer.Repository
	addresses customer.AddressRepository
	orders    *order.Service
	checkout  *order.CheckoutService
}

// NewConversionService creates a ConversionService.
func NewConversionService(
	quotes Repository,
	customers customer.Repository,
	addresses customer.AddressRepository,
	orders *order.Service,
	checkout *order.CheckoutService,
) *ConversionService {
	return &ConversionService{
		quotes:    quotes,
		customers: customers,
		addresses: addresses,
		orders:    orders,
		checkout:  checkout,
	}
}

// ConvertParams holds the input for converting a quote.
type ConvertParams struct {
	QuoteID           string
	CustomerID        string
	ShippingAddressID *string
	OrderType         string
	Currency          string
}

// ConversionResult identifies the created order and where to pay for it.
type ConversionResult struct {
	OrderID     string
	CheckoutURL string
}

// Convert runs the conversion preconditions in order, each failing with its
// own error: quote exists, caller owns it, status passes the convertibility
// scan, a positive final price is set, a product reference resolves from the
// snapshot, and a shipping address resolves (explicit, then default, then
// first on file).
//
// The order commits first, then the quote is marked converted, then the
// session is requested. MarkConverted is the point of no return: a session
// failure after it yields a SessionError naming the order so the caller can
// retry session creation idempotently, rather than re-running a conversion
// that would mint a second order.
func (s *ConversionService) Convert(ctx context.Context, params ConvertParams) (*ConversionResult, error) {
	q, err := s.quotes.GetByID(ctx, params.QuoteID)
	if err != nil {
		return nil, err
	}

	cust, err := s.customers.GetByID(ctx, params.CustomerID)
	if err != nil {
		return nil, err
	}
	if !q.OwnedBy(cust.ID, cust.Email) {
		return nil, ErrNotOwner
	}

	if q.OrderID != nil {
		return nil, ErrAlreadyConverted
	}
	if !q.Convertible() {
		return nil, &NotConvertibleError{RawStatus: q.RawStatus}
	}

	if q.FinalPrice == nil || !q.FinalPrice.IsPositive() {
		return nil, ErrMissingFinalPrice
	}

	productID, ok := q.ProductID()
	if !ok {
		return nil, ErrNoProductRef
	}
	quantity := q.QuantityOrDefault()

	addr, err := s.resolveAddress(ctx, cust.ID, params.ShippingAddressID)
	if err != nil {
		return nil, err
	}

	orderType := params.OrderType
	if orderType == "" {
		orderType = "devis"
	}

	o, err := s.orders.CreateFixedPrice(ctx, order.FixedPriceParams{
		CustomerID:        cust.ID,
		ProductID:         productID,
		Quantity:          quantity,
		UnitPrice:         *q.FinalPrice,
		ShippingAddressID: &addr.ID,
		Type:              orderType,
	})
	if err != nil {
		return nil, err
	}

	if err := s.quotes.MarkConverted(ctx, q.ID, o.ID); err != nil {
		if errors.Is(err, ErrAlreadyConverted) {
			// Lost a race after committing our order. Surface the
			// conflict; the duplicate order stays visible for an admin
			// to cancel, matching the no-rollback rule for failures
			// past order creation.
			return nil, errors.Wrapf(err, "order %s created", o.ID)
		}
		return nil, errors.Wrap(err, "mark quote converted")
	}

	sess, err := s.checkout.EnsureSession(ctx, o.ID, params.Currency)
	if err != nil {
		return nil, &SessionError{OrderID: o.ID, Err: err}
	}

	return &ConversionResult{OrderID: o.ID, CheckoutURL: sess.URL}, nil
}

// ByCustomer lists a customer's quotes.
func (s *ConversionService) ByCustomer(ctx context.Context, customerID string) ([]Quote, error) {
	return s.quotes.ListByCustomer(ctx, customerID)
}

func (s *ConversionService) resolveAddress(ctx context.Context, customerID string, explicit *string) (*customer.Address, error) {
	if explicit != nil && *explicit != "" {
		addr, err := s.addresses.GetByID(ctx, *explicit)
		if err != nil {
			if errors.Is(err, customer.ErrAddressNotFound) {
				return nil, ErrNoShippingAddress
			}
			return nil, errors.Wrap(err, "get address")
		}
		if addr.CustomerID != customerID {
			return nil, ErrAddressNotOwned
		}
		return addr, nil
	}

	addrs, err := s.addresses.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	if len(addrs) == 0 {
		return nil, ErrNoShippingAddress
	}
	for i := range addrs {
		if addrs[i].IsDefault {
			return &addrs[i], nil
		}
	}
	return &addrs[0], nil
}
