// Package notification delivers order-confirmation emails through a
// transactional outbox: the order write enqueues an intent, a worker drains
// pending entries and sends them, at-least-once. Delivery failures are
// logged and retried; they never reverse a committed order.
package notification

import (
	"context"
	"fmt"
	"time"
)

// Message is a rendered email ready to send.
type Message struct {
	To       string
	Subject  string
	TextBody string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Entry is one pending outbox row.
type Entry struct {
	ID             string
	Email          string
	FirstName      string
	OrderReference string
	Attempts       int
	CreatedAt      time.Time
}

// Render builds the confirmation message for this entry.
func (e Entry) Render() Message {
	greeting := "Bonjour"
	if e.FirstName != "" {
		greeting = "Bonjour " + e.FirstName
	}
	return Message{
		To:      e.Email,
		Subject: fmt.Sprintf("Confirmation de commande %s", e.OrderReference),
		TextBody: fmt.Sprintf(
			"%s,\n\nNous avons bien reçu votre commande %s.\nNous vous tiendrons informé de son avancement.\n\nMerci de votre confiance.",
			greeting, e.OrderReference,
		),
	}
}

// Outbox is the persistent queue of pending confirmations.
type Outbox interface {
	// DequeuePending returns up to limit entries ready to send, oldest
	// first, excluding entries already attempted too recently.
	DequeuePending(ctx context.Context, limit int) ([]Entry, error)
	MarkSent(ctx context.Context, id string) error
	// MarkFailed bumps the attempt counter and records the error for the
	// next drain to retry.
	MarkFailed(ctx context.Context, id string, reason string) error
}
