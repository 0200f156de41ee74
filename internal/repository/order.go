package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gdvshop/backoffice/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, customer_id, total_amount, status, order_date, order_type,
			admin_id, shipping_address_id, payment_status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING number`

	createOrderLineSQL = `INSERT INTO order_lines (order_id, position, product_id, quantity, unit_price, price_fallback)
		VALUES ($1, $2, $3, $4, $5, $6)`

	createOutboxEntrySQL = `INSERT INTO notification_outbox (id, email, first_name, order_reference)
		VALUES ($1, $2, $3, $4)`

	orderColumns = `id, number, customer_id, total_amount, status, order_date, order_type,
		admin_id, shipping_address_id, payment_status, payment_session_id, checkout_url, idempotency_key`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByIdemKeySQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE customer_id = $1 AND idempotency_key = $2`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, admin_id = COALESCE($3, admin_id)
		WHERE id = $1`

	setPaymentSessionSQL = `UPDATE orders
		SET payment_session_id = $2, checkout_url = $3, payment_status = 'pending'
		WHERE id = $1`

	markOrderPaidSQL = `UPDATE orders SET payment_status = 'paid'
		WHERE id = $1 AND payment_session_id = $2`

	listOrdersByCustomerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE customer_id = $1 ORDER BY order_date DESC`

	listOrdersByStatusSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE status = $1 ORDER BY order_date DESC`

	listOrdersPageSQL = `SELECT ` + orderColumns + ` FROM orders
		ORDER BY order_date DESC, id OFFSET $1 LIMIT $2`

	countOrdersSQL = `SELECT count(*) FROM orders`

	getLinesByOrdersSQL = `SELECT order_id, product_id, quantity, unit_price, price_fallback
		FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, position`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order, its lines and the confirmation intent in one
// transaction and leaves the sequence-assigned number on o. The outbox row
// carries the rendered reference, which needs the number, so it is written
// last inside the same transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, conf *order.Confirmation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	err = tx.QueryRow(ctx, createOrderSQL,
		o.ID, o.CustomerID, o.TotalAmount, string(o.Status), o.OrderDate, o.Type,
		o.AdminID, o.ShippingAddressID, string(o.PaymentStatus), o.IdempotencyKey,
	).Scan(&o.Number)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "orders_idempotency_uniq" {
			return order.ErrIdempotencyConflict
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for i, line := range o.Lines {
		_, err = tx.Exec(ctx, createOrderLineSQL,
			o.ID, i, line.ProductID, line.Quantity, line.UnitPrice, line.PriceFallback,
		)
		if err != nil {
			return fmt.Errorf("creating line %d of order %q: %w", i, o.ID, err)
		}
	}

	if conf != nil {
		reference := order.FormatReference(conf.ReferencePrefix, o.OrderDate, o.Number)
		_, err = tx.Exec(ctx, createOutboxEntrySQL,
			uuid.New().String(), conf.Email, conf.FirstName, reference,
		)
		if err != nil {
			return fmt.Errorf("enqueueing confirmation for order %q: %w", o.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order with its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetByIdempotencyKey returns the order created under the given key, if any.
func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, customerID, key string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIdemKeySQL, customerID, key)
}

func (r *OrderRepository) getOne(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	if err := r.attachLines(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatus sets the order status, stamping the acting admin when given.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, adminID *string) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status), adminID)
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// SetPaymentSession stores the reserved checkout session on the order.
func (r *OrderRepository) SetPaymentSession(ctx context.Context, id, sessionID, checkoutURL string) error {
	tag, err := r.pool.Exec(ctx, setPaymentSessionSQL, id, sessionID, checkoutURL)
	if err != nil {
		return fmt.Errorf("storing payment session for order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// MarkPaid flips the payment status, guarded by the stored session id.
func (r *OrderRepository) MarkPaid(ctx context.Context, id, sessionID string) error {
	tag, err := r.pool.Exec(ctx, markOrderPaidSQL, id, sessionID)
	if err != nil {
		return fmt.Errorf("marking order %q paid: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrSessionMismatch
	}
	return nil
}

// ListByCustomer returns a customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByCustomerSQL, customerID)
}

// ListByStatus returns orders in the given status, newest first.
func (r *OrderRepository) ListByStatus(ctx context.Context, status order.Status) ([]order.Order, error) {
	return r.list(ctx, listOrdersByStatusSQL, string(status))
}

// List returns one page of all orders plus the total count.
func (r *OrderRepository) List(ctx context.Context, offset, limit int) ([]order.Order, int64, error) {
	items, err := r.list(ctx, listOrdersPageSQL, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx, countOrdersSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}
	return items, total, nil
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	refs := make([]*order.Order, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	if err := r.attachLines(ctx, refs); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *OrderRepository) attachLines(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.pool.Query(ctx, getLinesByOrdersSQL, ids)
	if err != nil {
		return fmt.Errorf("loading order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			line    order.Line
		)
		if err := rows.Scan(&orderID, &line.ProductID, &line.Quantity, &line.UnitPrice, &line.PriceFallback); err != nil {
			return fmt.Errorf("scanning order line: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Lines = append(o.Lines, line)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		rawStatus     string
		paymentStatus string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.TotalAmount, &rawStatus, &o.OrderDate, &o.Type,
		&o.AdminID, &o.ShippingAddressID, &paymentStatus, &o.PaymentSessionID, &o.CheckoutURL, &o.IdempotencyKey,
	)
	if err != nil {
		return o, err
	}

	// Historical rows carry free-text French statuses; map them to the enum
	// on the way out.
	o.Status, err = order.ParseLegacyStatus(rawStatus)
	if err != nil {
		return o, fmt.Errorf("order %q: %w", o.ID, err)
	}
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	return o, nil
}
