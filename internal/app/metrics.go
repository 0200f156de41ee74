package app

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gdvshop/backoffice/internal/notification"
	"github.com/gdvshop/backoffice/internal/payment"
)

// metrics holds the application-level counters. HTTP-level metrics come from
// otelhttp; these track business events the route alone cannot distinguish.
type metrics struct {
	checkoutSessions metric.Int64Counter
	emailsSent       metric.Int64Counter
	emailsFailed     metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter("github.com/gdvshop/backoffice")

	sessions, err := meter.Int64Counter("checkout_sessions_created_total",
		metric.WithDescription("Hosted checkout sessions created with the payment provider"))
	if err != nil {
		return nil, errors.Wrap(err, "checkout sessions counter")
	}
	sent, err := meter.Int64Counter("confirmation_emails_sent_total",
		metric.WithDescription("Order confirmation emails delivered"))
	if err != nil {
		return nil, errors.Wrap(err, "emails sent counter")
	}
	failed, err := meter.Int64Counter("confirmation_emails_failed_total",
		metric.WithDescription("Order confirmation email delivery failures"))
	if err != nil {
		return nil, errors.Wrap(err, "emails failed counter")
	}

	return &metrics{checkoutSessions: sessions, emailsSent: sent, emailsFailed: failed}, nil
}

// instrumentedProvider counts checkout sessions created through the wrapped
// payment provider.
type instrumentedProvider struct {
	next payment.Provider
	m    *metrics
}

var _ payment.Provider = (*instrumentedProvider)(nil)

func (p *instrumentedProvider) CreateCheckoutSession(ctx context.Context, params payment.CreateSessionParams) (*payment.Session, error) {
	s, err := p.next.CreateCheckoutSession(ctx, params)
	if err == nil {
		p.m.checkoutSessions.Add(ctx, 1,
			metric.WithAttributes(attribute.String("currency", params.Currency)))
	}
	return s, err
}

// instrumentedSender counts confirmation email deliveries and failures.
type instrumentedSender struct {
	next notification.Sender
	m    *metrics
}

var _ notification.Sender = (*instrumentedSender)(nil)

func (s *instrumentedSender) Send(ctx context.Context, msg notification.Message) error {
	if err := s.next.Send(ctx, msg); err != nil {
		s.m.emailsFailed.Add(ctx, 1)
		return err
	}
	s.m.emailsSent.Add(ctx, 1)
	return nil
}
