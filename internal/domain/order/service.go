package order

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gdvshop/backoffice/internal/domain/catalog"
	"github.com/gdvshop/backoffice/internal/domain/customer"
	"github.com/gdvshop/backoffice/internal/domain/pricing"
)

// Config tunes order creation. Zero values fall back to the defaults below.
type Config struct {
	// ReferencePrefix is the first segment of order references, e.g. "GDV".
	ReferencePrefix string
	// MinQtyStandard and MinQtyPro are the per-class minimum quantities
	// accepted on any order line.
	MinQtyStandard int
	MinQtyPro      int
}

func (c Config) withDefaults() Config {
	if c.ReferencePrefix == "" {
		c.ReferencePrefix = "GDV"
	}
	if c.MinQtyStandard <= 0 {
		c.MinQtyStandard = 1
	}
	if c.MinQtyPro <= 0 {
		c.MinQtyPro = 10
	}
	return c
}

func (c Config) minQty(class pricing.CustomerClass) int {
	if class == pricing.ClassPro {
		return c.MinQtyPro
	}
	return c.MinQtyStandard
}

// Service encapsulates order lifecycle business logic.
type Service struct {
	products  catalog.Repository
	customers customer.Repository
	orders    Repository
	cfg       Config

	now   func() time.Time
	newID func() string
}

// NewService creates an order Service with the required domain dependencies.
func NewService(products catalog.Repository, customers customer.Repository, orders Repository, cfg Config) *Service {
	return &Service{
		products:  products,
		customers: customers,
		orders:    orders,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// LineInput is a requested order line before pricing.
type LineInput struct {
	ProductID string
	Quantity  int
}

// CreateParams holds the input for creating a direct order.
type CreateParams struct {
	CustomerID        string
	Lines             []LineInput
	ShippingAddressID *string
	Type              string

	// IdempotencyKey makes retries safe: a second create with the same
	// key returns the order from the first.
	IdempotencyKey string
}

// Create validates the request, resolves tiered prices for the customer's
// class, and persists order, lines and the confirmation intent in one
// atomic unit. The confirmation email itself is sent later by the outbox
// worker; its failure never reverses the order.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Order, error) {
	if params.IdempotencyKey != "" {
		existing, err := s.orders.GetByIdempotencyKey(ctx, params.CustomerID, params.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, "idempotency lookup")
		}
	}

	if len(params.Lines) == 0 {
		return nil, ErrEmptyLines
	}

	cust, err := s.customers.GetByID(ctx, params.CustomerID)
	if err != nil {
		return nil, err
	}
	class := cust.Class()

	// Minimum quantity rule, batched: every failing line is reported.
	minQty := s.cfg.minQty(class)
	var violations []MinQuantityViolation
	ids := make([]string, len(params.Lines))
	for i, line := range params.Lines {
		if line.Quantity < minQty {
			violations = append(violations, MinQuantityViolation{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Minimum:   minQty,
			})
		}
		ids[i] = line.ProductID
	}
	if len(violations) > 0 {
		return nil, &MinQuantityError{Violations: violations}
	}

	// Batch fetch; any missing product fails the whole request with every
	// missing ID named.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	productMap := make(map[string]catalog.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	var missing []string
	for _, line := range params.Lines {
		if _, ok := productMap[line.ProductID]; !ok {
			missing = append(missing, line.ProductID)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingProductsError{ProductIDs: missing}
	}

	lines := make([]Line, len(params.Lines))
	for i, line := range params.Lines {
		q := productMap[line.ProductID].Pricing.UnitPrice(line.Quantity, class)
		lines[i] = Line{
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			UnitPrice:     q.UnitPrice,
			PriceFallback: q.UsedFallback,
		}
	}

	o := &Order{
		ID:                s.newID(),
		CustomerID:        params.CustomerID,
		Lines:             lines,
		TotalAmount:       SumLines(lines),
		Status:            StatusCreated,
		OrderDate:         s.now(),
		Type:              params.Type,
		ShippingAddressID: params.ShippingAddressID,
		PaymentStatus:     PaymentUnpaid,
		IdempotencyKey:    params.IdempotencyKey,
	}

	conf := &Confirmation{
		Email:           cust.Email,
		FirstName:       cust.FirstName,
		ReferencePrefix: s.cfg.ReferencePrefix,
	}
	if err := s.orders.Create(ctx, o, conf); err != nil {
		// Two concurrent submits with the same key can both miss the
		// lookup above; the loser re-reads the winner's order.
		if params.IdempotencyKey != "" && errors.Is(err, ErrIdempotencyConflict) {
			return s.orders.GetByIdempotencyKey(ctx, params.CustomerID, params.IdempotencyKey)
		}
		return nil, errors.Wrap(err, "create order")
	}

	return o, nil
}

// FixedPriceParams holds the input for a single-line order at an externally
// fixed unit price, used by quote conversion.
type FixedPriceParams struct {
	CustomerID        string
	ProductID         string
	Quantity          int
	UnitPrice         decimal.Decimal
	ShippingAddressID *string
	Type              string
}

// CreateFixedPrice creates a one-line order at the given unit price,
// bypassing tier resolution. The product must exist and the resulting total
// must be positive; an order with a non-positive total is never persisted.
func (s *Service) CreateFixedPrice(ctx context.Context, params FixedPriceParams) (*Order, error) {
	if params.Quantity < 1 {
		return nil, &MinQuantityError{Violations: []MinQuantityViolation{{
			ProductID: params.ProductID,
			Quantity:  params.Quantity,
			Minimum:   1,
		}}}
	}

	cust, err := s.customers.GetByID(ctx, params.CustomerID)
	if err != nil {
		return nil, err
	}

	if _, err := s.products.GetByID(ctx, params.ProductID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &MissingProductsError{ProductIDs: []string{params.ProductID}}
		}
		return nil, errors.Wrap(err, "get product")
	}

	lines := []Line{{
		ProductID: params.ProductID,
		Quantity:  params.Quantity,
		UnitPrice: params.UnitPrice,
	}}
	total := SumLines(lines)
	if !total.IsPositive() {
		return nil, ErrNotPayable
	}

	o := &Order{
		ID:                s.newID(),
		CustomerID:        params.CustomerID,
		Lines:             lines,
		TotalAmount:       total,
		Status:            StatusCreated,
		OrderDate:         s.now(),
		Type:              params.Type,
		ShippingAddressID: params.ShippingAddressID,
		PaymentStatus:     PaymentUnpaid,
	}

	conf := &Confirmation{
		Email:           cust.Email,
		FirstName:       cust.FirstName,
		ReferencePrefix: s.cfg.ReferencePrefix,
	}
	if err := s.orders.Create(ctx, o, conf); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	return o, nil
}

// Get returns a single order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// Receive marks a created order as received and stamps the acting admin.
func (s *Service) Receive(ctx context.Context, orderID, adminID string) (*Order, error) {
	return s.transition(ctx, orderID, "receive", StatusReceived, &adminID, func(st Status) bool {
		return st == StatusCreated
	})
}

// Deliver marks a received order as delivered.
func (s *Service) Deliver(ctx context.Context, orderID, adminID string) (*Order, error) {
	return s.transition(ctx, orderID, "deliver", StatusDelivered, &adminID, func(st Status) bool {
		return st == StatusReceived
	})
}

// Cancel cancels an order from any non-terminal state and stamps the acting
// admin. Cancellation is history-preserving: the order keeps its lines and
// total and can only continue as a new order via Resend.
func (s *Service) Cancel(ctx context.Context, orderID, adminID string) (*Order, error) {
	return s.transition(ctx, orderID, "cancel", StatusCancelled, &adminID, func(st Status) bool {
		return !st.Terminal()
	})
}

// RequestRefund moves any non-cancelled order to refund_requested. The
// caller must be the order's owning customer; TotalAmount is untouched.
func (s *Service) RequestRefund(ctx context.Context, orderID, customerID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, ErrNotOwner
	}
	if o.Status == StatusCancelled {
		return nil, &InvalidTransitionError{Op: "request refund", Status: o.Status}
	}

	if err := s.orders.UpdateStatus(ctx, orderID, StatusRefundRequested, nil); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = StatusRefundRequested
	return o, nil
}

// Resend creates a brand-new order from a cancelled one, copying customer,
// lines and total, with status reset to created. The cancelled order is
// left untouched.
func (s *Service) Resend(ctx context.Context, orderID string) (*Order, error) {
	src, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if src.Status != StatusCancelled {
		return nil, &InvalidTransitionError{Op: "resend", Status: src.Status}
	}

	lines := make([]Line, len(src.Lines))
	copy(lines, src.Lines)

	o := &Order{
		ID:                s.newID(),
		CustomerID:        src.CustomerID,
		Lines:             lines,
		TotalAmount:       src.TotalAmount,
		Status:            StatusCreated,
		OrderDate:         s.now(),
		Type:              src.Type,
		ShippingAddressID: src.ShippingAddressID,
		PaymentStatus:     PaymentUnpaid,
	}
	if err := s.orders.Create(ctx, o, nil); err != nil {
		return nil, errors.Wrap(err, "create resent order")
	}

	return o, nil
}

// MarkPaid records a settlement event from the payment gateway. The session
// must match the one reserved for the order.
func (s *Service) MarkPaid(ctx context.Context, orderID, sessionID string) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.PaymentSessionID == nil || *o.PaymentSessionID != sessionID {
		return ErrSessionMismatch
	}
	return s.orders.MarkPaid(ctx, orderID, sessionID)
}

// ByCustomer lists a customer's orders.
func (s *Service) ByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

// ByStatus lists orders in the given status.
func (s *Service) ByStatus(ctx context.Context, status Status) ([]Order, error) {
	return s.orders.ListByStatus(ctx, status)
}

// ListPage returns one page of all orders with stable pagination. Pages are
// 1-based; page and limit fall back to 1 and 20.
func (s *Service) ListPage(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	items, total, err := s.orders.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &Page{
		Orders:     items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

func (s *Service) transition(ctx context.Context, orderID, op string, to Status, adminID *string, allowed func(Status) bool) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !allowed(o.Status) {
		return nil, &InvalidTransitionError{Op: op, Status: o.Status}
	}

	if err := s.orders.UpdateStatus(ctx, orderID, to, adminID); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = to
	if adminID != nil {
		o.AdminID = adminID
	}
	return o, nil
}
