// Package order drives an order through its lifecycle: creation with tiered
// pricing, status transitions, resend of cancelled orders, refund requests
// and payment session reservation.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the closed set of order states. Legacy free-text values from the
// store are mapped onto it by ParseLegacyStatus.
type Status string

const (
	StatusCreated         Status = "created"
	StatusReceived        Status = "received"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
	StatusRefundRequested Status = "refund_requested"
)

// Terminal reports whether no further transition leaves this status.
// A cancelled order is terminal for transitions; it only continues as a
// brand-new order through Resend.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// legacyStatuses maps the free-text values found in historical rows to the
// closed enum. Lookup is over the lowercased, trimmed raw value.
var legacyStatuses = map[string]Status{
	"envoyer":          StatusCreated,
	"reçu":             StatusReceived,
	"recu":             StatusReceived,
	"livré":            StatusDelivered,
	"livre":            StatusDelivered,
	"annulé":           StatusCancelled,
	"annule":           StatusCancelled,
	"remboursement":    StatusRefundRequested,
	"refund_requested": StatusRefundRequested,
	"created":          StatusCreated,
	"received":         StatusReceived,
	"delivered":        StatusDelivered,
	"cancelled":        StatusCancelled,
}

// ParseLegacyStatus maps a stored status string, canonical or legacy
// free-text, onto the Status enum.
func ParseLegacyStatus(raw string) (Status, error) {
	s, ok := legacyStatuses[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return s, nil
}

// PaymentStatus tracks the payment side of an order independently from
// fulfilment.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Line is a single order line. UnitPrice is fixed at creation time from the
// tier tables (or the quote's final price) and never recomputed afterwards.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal

	// PriceFallback is true when no tier matched and the flat class price
	// was used. Kept for audit, not surfaced as an error.
	PriceFallback bool
}

// Total returns quantity x unit price rounded to 2 decimal places.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

// Order is a customer order. TotalAmount is derived from the lines and must
// equal their sum at every observable state; orders are never hard-deleted,
// terminal states carry the history.
type Order struct {
	ID         string
	Number     int64
	CustomerID string
	Lines      []Line

	TotalAmount decimal.Decimal
	Status      Status
	OrderDate   time.Time
	Type        string

	// AdminID records who received or cancelled the order.
	AdminID           *string
	ShippingAddressID *string

	PaymentStatus    PaymentStatus
	PaymentSessionID *string
	CheckoutURL      *string

	// IdempotencyKey is the client-provided creation token, if any.
	IdempotencyKey string
}

// Reference renders the human-readable order reference,
// e.g. GDV-2025-007 for order number 7 placed in 2025.
func (o *Order) Reference(prefix string) string {
	return FormatReference(prefix, o.OrderDate, o.Number)
}

// FormatReference builds "{PREFIX}-{year}-{number zero-padded to 3 digits}".
func FormatReference(prefix string, date time.Time, number int64) string {
	return fmt.Sprintf("%s-%d-%03d", prefix, date.Year(), number)
}

// SumLines returns the total of all line totals, rounded to 2 decimal
// places. CreateOrder derives TotalAmount from this and transitions never
// touch it.
func SumLines(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum.Round(2)
}

// Confirmation is the notification intent enqueued atomically with an order
// write. The outbox worker later renders and sends it.
type Confirmation struct {
	Email           string
	FirstName       string
	ReferencePrefix string
}

// Page is one page of a paginated order listing.
type Page struct {
	Orders     []Order
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// Repository defines persistence for orders.
//
// Create must persist the order, its lines and the confirmation intent (when
// non-nil) in a single transaction, assign the order number, and leave the
// assigned number on o. A half-written order must never become visible.
type Repository interface {
	Create(ctx context.Context, o *Order, conf *Confirmation) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByIdempotencyKey(ctx context.Context, customerID, key string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, adminID *string) error
	SetPaymentSession(ctx context.Context, id, sessionID, checkoutURL string) error
	MarkPaid(ctx context.Context, id, sessionID string) error
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	ListByStatus(ctx context.Context, status Status) ([]Order, error)
	// List returns one page of orders plus the total count.
	List(ctx context.Context, offset, limit int) ([]Order, int64, error)
}
