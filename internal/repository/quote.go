package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gdvshop/backoffice/internal/domain/quote"
)

const (
	getQuoteByIDSQL = `SELECT id, customer_id, email, product_snapshot, final_price, status, order_id, created_at
		FROM quotes WHERE id = $1`

	listQuotesByCustomerSQL = `SELECT id, customer_id, email, product_snapshot, final_price, status, order_id, created_at
		FROM quotes WHERE customer_id = $1 ORDER BY created_at DESC`

	markQuoteConvertedSQL = `UPDATE quotes SET status = $3, order_id = $2
		WHERE id = $1 AND order_id IS NULL`

	quoteExistsSQL = `SELECT EXISTS (SELECT 1 FROM quotes WHERE id = $1)`
)

var _ quote.Repository = (*QuoteRepository)(nil)

// QuoteRepository implements quote.Repository backed by PostgreSQL.
type QuoteRepository struct {
	pool *pgxpool.Pool
}

// NewQuoteRepository returns a QuoteRepository that uses the given pool.
func NewQuoteRepository(pool *pgxpool.Pool) *QuoteRepository {
	return &QuoteRepository{pool: pool}
}

// GetByID returns a single quote by its identifier.
func (r *QuoteRepository) GetByID(ctx context.Context, id string) (*quote.Quote, error) {
	rows, err := r.pool.Query(ctx, getQuoteByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting quote %q: %w", id, err)
	}

	q, err := pgx.CollectExactlyOneRow(rows, scanQuote)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, quote.ErrNotFound
		}
		return nil, fmt.Errorf("getting quote %q: %w", id, err)
	}
	return &q, nil
}

// ListByCustomer returns a customer's quotes, newest first.
func (r *QuoteRepository) ListByCustomer(ctx context.Context, customerID string) ([]quote.Quote, error) {
	rows, err := r.pool.Query(ctx, listQuotesByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing quotes for %q: %w", customerID, err)
	}
	return pgx.CollectRows(rows, scanQuote)
}

// MarkConverted sets the terminal status and order back-reference. The
// guard on order_id makes concurrent conversions race on this UPDATE: the
// loser affects zero rows and gets ErrAlreadyConverted. Zero rows for a
// quote that does not exist at all is ErrNotFound instead.
func (r *QuoteRepository) MarkConverted(ctx context.Context, quoteID, orderID string) error {
	tag, err := r.pool.Exec(ctx, markQuoteConvertedSQL, quoteID, orderID, quote.StatusConverted)
	if err != nil {
		return fmt.Errorf("marking quote %q converted: %w", quoteID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, quoteExistsSQL, quoteID).Scan(&exists); err != nil {
			return fmt.Errorf("checking quote %q: %w", quoteID, err)
		}
		if !exists {
			return quote.ErrNotFound
		}
		return quote.ErrAlreadyConverted
	}
	return nil
}

func scanQuote(row pgx.CollectableRow) (quote.Quote, error) {
	var (
		q        quote.Quote
		snapshot []byte
	)
	err := row.Scan(&q.ID, &q.CustomerID, &q.Email, &snapshot, &q.FinalPrice, &q.RawStatus, &q.OrderID, &q.CreatedAt)
	if err != nil {
		return q, err
	}

	if err := json.Unmarshal(snapshot, &q.ProductSnapshot); err != nil {
		return q, fmt.Errorf("decoding snapshot for quote %q: %w", q.ID, err)
	}
	return q, nil
}
