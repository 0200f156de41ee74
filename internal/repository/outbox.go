package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gdvshop/backoffice/internal/notification"
)

const (
	dequeuePendingSQL = `SELECT id, email, first_name, order_reference, attempts, created_at
		FROM notification_outbox
		WHERE sent_at IS NULL AND next_attempt_at <= now()
		ORDER BY created_at
		LIMIT $1`

	markSentSQL = `UPDATE notification_outbox SET sent_at = now() WHERE id = $1`

	markFailedSQL = `UPDATE notification_outbox
		SET attempts = attempts + 1,
			last_error = $2,
			next_attempt_at = now() + make_interval(mins => least(attempts + 1, 30))
		WHERE id = $1`
)

var _ notification.Outbox = (*OutboxRepository)(nil)

// OutboxRepository implements notification.Outbox backed by PostgreSQL.
// Rows are enqueued by OrderRepository.Create inside the order transaction.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository returns an OutboxRepository that uses the given pool.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// DequeuePending returns entries ready to send, oldest first. Failed entries
// come back once their linear backoff elapses.
func (r *OutboxRepository) DequeuePending(ctx context.Context, limit int) ([]notification.Entry, error) {
	rows, err := r.pool.Query(ctx, dequeuePendingSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeuing notifications: %w", err)
	}
	return pgx.CollectRows(rows, scanOutboxEntry)
}

// MarkSent stamps the entry as delivered.
func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, markSentSQL, id)
	if err != nil {
		return fmt.Errorf("marking notification %q sent: %w", id, err)
	}
	return nil
}

// MarkFailed bumps the attempt counter and pushes the next attempt out.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := r.pool.Exec(ctx, markFailedSQL, id, reason)
	if err != nil {
		return fmt.Errorf("marking notification %q failed: %w", id, err)
	}
	return nil
}

func scanOutboxEntry(row pgx.CollectableRow) (notification.Entry, error) {
	var e notification.Entry
	err := row.Scan(&e.ID, &e.Email, &e.FirstName, &e.OrderReference, &e.Attempts, &e.CreatedAt)
	return e, err
}
