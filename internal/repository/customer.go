package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gdvshop/backoffice/internal/domain/customer"
)

const (
	getCustomerByIDSQL = `SELECT id, email, first_name, last_name, is_pro
		FROM customers WHERE id = $1`

	getAddressByIDSQL = `SELECT id, customer_id, line1, line2, city, postal_code, country, is_default
		FROM addresses WHERE id = $1`

	listAddressesByCustomerSQL = `SELECT id, customer_id, line1, line2, city, postal_code, country, is_default
		FROM addresses WHERE customer_id = $1
		ORDER BY is_default DESC, created_at`
)

var (
	_ customer.Repository        = (*CustomerRepository)(nil)
	_ customer.AddressRepository = (*AddressRepository)(nil)
)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// GetByID returns a single customer by its identifier.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}
	return &c, nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Pro)
	return c, err
}

// AddressRepository implements customer.AddressRepository backed by
// PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// GetByID returns a single address by its identifier.
func (r *AddressRepository) GetByID(ctx context.Context, id string) (*customer.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrAddressNotFound
		}
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	return &a, nil
}

// ListByCustomer returns a customer's addresses, default first.
func (r *AddressRepository) ListByCustomer(ctx context.Context, customerID string) ([]customer.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses for %q: %w", customerID, err)
	}
	return pgx.CollectRows(rows, scanAddress)
}

func scanAddress(row pgx.CollectableRow) (customer.Address, error) {
	var a customer.Address
	err := row.Scan(&a.ID, &a.CustomerID, &a.Line1, &a.Line2, &a.City, &a.PostalCode, &a.Country, &a.IsDefault)
	return a, err
}
