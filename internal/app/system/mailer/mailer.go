// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// ErrDisabled is returned by Send when mail delivery is turned off.
var ErrDisabled = errors.New("mailer: delivery disabled")

// DefaultSendTimeout bounds one SMTP dial-and-send when the caller's context
// has no earlier deadline.
const DefaultSendTimeout = 15 * time.Second

// Config holds the configuration for creating a Mailer.
type Config struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
	UseSSL   bool // implicit TLS (port 465); STARTTLS is negotiated automatically otherwise
	Timeout  time.Duration
}

// Mailer sends emails over SMTP with gomail.
type Mailer struct {
	cfg    Config
	dialer *gomail.Dialer
	log    *zap.Logger
}

// New creates a Mailer. A disabled Mailer accepts every Send and returns ErrDisabled.
func New(cfg Config, log *zap.Logger) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSendTimeout
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.SSL = cfg.UseSSL
	if cfg.UseSSL {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	}
	return &Mailer{cfg: cfg, dialer: d, log: log}
}

// Enabled reports whether Send will attempt delivery.
func (m *Mailer) Enabled() bool {
	return m.cfg.Enabled
}

// FromName returns the configured sender display name, used as the site name
// in message bodies.
func (m *Mailer) FromName() string {
	return m.cfg.FromName
}

// Email is one outgoing message. TextBody is required; HTMLBody adds an
// alternative part.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Send delivers email, giving up when ctx is done or the configured timeout passes.
func (m *Mailer) Send(ctx context.Context, email Email) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	msg, err := m.build(email)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	wait := m.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < wait {
			wait = d
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
		err = context.DeadlineExceeded
	}

	if err != nil {
		m.log.Error("failed to send email",
			zap.String("to", email.To),
			zap.String("subject", email.Subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.log.Info("email sent",
		zap.String("to", email.To),
		zap.String("subject", email.Subject))
	return nil
}

func (m *Mailer) build(email Email) (*gomail.Message, error) {
	to := strings.TrimSpace(email.To)
	subject := strings.TrimSpace(email.Subject)
	switch {
	case m.cfg.From == "":
		return nil, errors.New("mailer: from address is not configured")
	case to == "":
		return nil, errors.New("mailer: recipient is required")
	case subject == "":
		return nil, errors.New("mailer: subject is required")
	}

	msg := gomail.NewMessage()
	if m.cfg.FromName != "" {
		msg.SetAddressHeader("From", m.cfg.From, m.cfg.FromName)
	} else {
		msg.SetHeader("From", m.cfg.From)
	}
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)

	msg.SetBody("text/plain", email.TextBody)
	if strings.TrimSpace(email.HTMLBody) != "" {
		msg.AddAlternative("text/html", email.HTMLBody)
	}
	return msg, nil
}
