package notification

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection parameters. Username and Password are
// optional for servers that allow unauthenticated relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers messages over SMTP via go-mail.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers one message, dialing per call. Confirmation volume is low
// enough that a persistent connection is not worth its failure modes.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return errors.Wrap(err, "from address")
	}
	if err := m.To(msg.To); err != nil {
		return errors.Wrap(err, "to address")
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.TextBody)

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return errors.Wrap(err, "smtp client")
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return errors.Wrap(err, "send email")
	}
	return nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(30 * time.Second),
	}

	// TLS mode follows the port convention: implicit TLS on 465,
	// mandatory STARTTLS on 587, opportunistic elsewhere (25, local
	// catchers like 1025).
	switch s.cfg.Port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}
	return opts
}
