// Package box handles packaged-offering (box) line items. A CommandBox has
// the shape of an order line but is payable on its own.
package box

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status of a box purchase.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

var (
	ErrNotFound = errors.New("command box not found")
	// ErrNotPayable is returned when checkout is requested for a box that
	// is not pending or whose total is not positive.
	ErrNotPayable = errors.New("command box is not payable")
	// ErrSessionMismatch is returned when a settlement names a session
	// other than the one stored on the box.
	ErrSessionMismatch = errors.New("payment session does not match box")
)

// CommandBox links a customer (and optionally an order) to a packaged
// offering with its own price and quantity.
type CommandBox struct {
	ID         string
	CustomerID string
	OrderID    *string

	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Status    Status

	PaymentSessionID *string
	CheckoutURL      *string
}

// Total returns quantity x unit price rounded to 2 decimal places.
func (b *CommandBox) Total() decimal.Decimal {
	return b.UnitPrice.Mul(decimal.NewFromInt(int64(b.Quantity))).Round(2)
}

// ItemName renders the checkout line item label.
func (b *CommandBox) ItemName() string {
	return fmt.Sprintf("Box %s x%d", b.Name, b.Quantity)
}

// Repository defines persistence for command boxes.
type Repository interface {
	GetByID(ctx context.Context, id string) (*CommandBox, error)
	ListByCustomer(ctx context.Context, customerID string) ([]CommandBox, error)
	SetPaymentSession(ctx context.Context, id, sessionID, checkoutURL string) error
	UpdateStatus(ctx context.Context, id string, status Status) error
}
