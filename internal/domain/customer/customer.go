// Package customer holds customer and address entities and their
// repository contracts. Account management itself lives elsewhere; the
// order and quote flows only read these.
package customer

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/gdvshop/backoffice/internal/domain/pricing"
)

var (
	// ErrNotFound is returned when a requested customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrAddressNotFound is returned when a requested address does not exist.
	ErrAddressNotFound = errors.New("address not found")
)

// Customer is an account able to place orders and submit quotes.
type Customer struct {
	ID        string
	Email     string
	FirstName string
	LastName  string

	// Pro marks wholesale accounts. It drives tier table selection and
	// minimum order quantities.
	Pro bool
}

// Class returns the pricing class for this account.
func (c Customer) Class() pricing.CustomerClass {
	if c.Pro {
		return pricing.ClassPro
	}
	return pricing.ClassStandard
}

// Address is a shipping address on file for a customer.
type Address struct {
	ID         string
	CustomerID string
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Country    string
	IsDefault  bool
}

// Repository provides customer lookups.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
}

// AddressRepository provides address lookups. ListByCustomer orders the
// default address first, then by creation time.
type AddressRepository interface {
	GetByID(ctx context.Context, id string) (*Address, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Address, error)
}
