package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gdvshop/backoffice/internal/domain/box"
)

const (
	getBoxByIDSQL = `SELECT id, customer_id, order_id, name, unit_price, quantity, status, payment_session_id, checkout_url
		FROM command_boxes WHERE id = $1`

	listBoxesByCustomerSQL = `SELECT id, customer_id, order_id, name, unit_price, quantity, status, payment_session_id, checkout_url
		FROM command_boxes WHERE customer_id = $1 ORDER BY id`

	setBoxPaymentSessionSQL = `UPDATE command_boxes
		SET payment_session_id = $2, checkout_url = $3 WHERE id = $1`

	updateBoxStatusSQL = `UPDATE command_boxes SET status = $2 WHERE id = $1`
)

var _ box.Repository = (*BoxRepository)(nil)

// BoxRepository implements box.Repository backed by PostgreSQL.
type BoxRepository struct {
	pool *pgxpool.Pool
}

// NewBoxRepository returns a BoxRepository that uses the given pool.
func NewBoxRepository(pool *pgxpool.Pool) *BoxRepository {
	return &BoxRepository{pool: pool}
}

// GetByID returns a single command box by its identifier.
func (r *BoxRepository) GetByID(ctx context.Context, id string) (*box.CommandBox, error) {
	rows, err := r.pool.Query(ctx, getBoxByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting box %q: %w", id, err)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBox)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, box.ErrNotFound
		}
		return nil, fmt.Errorf("getting box %q: %w", id, err)
	}
	return &b, nil
}

// ListByCustomer returns a customer's command boxes.
func (r *BoxRepository) ListByCustomer(ctx context.Context, customerID string) ([]box.CommandBox, error) {
	rows, err := r.pool.Query(ctx, listBoxesByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing boxes for %q: %w", customerID, err)
	}
	return pgx.CollectRows(rows, scanBox)
}

// SetPaymentSession stores the reserved checkout session on the box.
func (r *BoxRepository) SetPaymentSession(ctx context.Context, id, sessionID, checkoutURL string) error {
	tag, err := r.pool.Exec(ctx, setBoxPaymentSessionSQL, id, sessionID, checkoutURL)
	if err != nil {
		return fmt.Errorf("storing payment session for box %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return box.ErrNotFound
	}
	return nil
}

// UpdateStatus sets the box status.
func (r *BoxRepository) UpdateStatus(ctx context.Context, id string, status box.Status) error {
	tag, err := r.pool.Exec(ctx, updateBoxStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of box %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return box.ErrNotFound
	}
	return nil
}

func scanBox(row pgx.CollectableRow) (box.CommandBox, error) {
	var (
		b      box.CommandBox
		status string
	)
	err := row.Scan(&b.ID, &b.CustomerID, &b.OrderID, &b.Name, &b.UnitPrice, &b.Quantity, &status, &b.PaymentSessionID, &b.CheckoutURL)
	b.Status = box.Status(status)
	return b, err
}
