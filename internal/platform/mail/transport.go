package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	gomail "gopkg.in/mail.v2"
)

// Transport delivers a message from the given sender.
type Transport interface {
	Deliver(ctx context.Context, from string, msg Message) error
}

// SMTPTransport delivers mail to an SMTP server without authentication,
// the setup used with local mail catchers.
type SMTPTransport struct {
	dialer *gomail.Dialer
}

// NewSMTPTransport creates a transport for addr in host:port form.
func NewSMTPTransport(addr string) (*SMTPTransport, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp port %q: %w", portStr, err)
	}

	return &SMTPTransport{dialer: gomail.NewDialer(host, port, "", "")}, nil
}

// Deliver implements Transport
func (t *SMTPTransport) Deliver(ctx context.Context, from string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", msg.Cc...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := t.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp delivery failed: %w", err)
	}
	return nil
}

// LogTransport writes messages to the log instead of delivering them.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Deliver implements Transport
func (t *LogTransport) Deliver(_ context.Context, from string, msg Message) error {
	t.logger.Info("mail delivered",
		"from", from,
		"to", msg.To,
		"cc", msg.Cc,
		"subject", msg.Subject,
		"html", msg.HTML)
	return nil
}
