// Package mailer delivers sign-in emails. SMTPSender talks to a real relay;
// LogSender writes messages to the log for local development.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mail "github.com/go-mail/mail"
)

// TLS modes accepted by SMTPSender.
const (
	TLSModeAuto     = "auto"     // STARTTLS when offered
	TLSModeStartTLS = "starttls" // STARTTLS required
	TLSModeSSL      = "ssl"      // implicit TLS, usually port 465
	TLSModeNone     = "none"
)

// DefaultSMTPTimeout bounds dialing and each SMTP command.
const DefaultSMTPTimeout = 10 * time.Second

var ErrInvalidTLSMode = errors.New("mailer: unknown smtp tls mode")

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLSMode  string
	Timeout  time.Duration

	// InsecureSkipVerify is for development relays with self-signed certs.
	InsecureSkipVerify bool
}

// SMTPSender sends plain text mail through an SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("mailer: smtp host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = TLSModeAuto
	}
	switch cfg.TLSMode {
	case TLSModeAuto, TLSModeStartTLS, TLSModeSSL, TLSModeNone:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTLSMode, cfg.TLSMode)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSMTPTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{cfg: cfg, logger: logger.With("component", "smtp_sender", "host", cfg.Host, "port", cfg.Port)}, nil
}

func (s *SMTPSender) message(to, subject, body string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}

func (s *SMTPSender) dialer() *mail.Dialer {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.Timeout = s.cfg.Timeout
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify, //nolint:gosec // dev relays only
	}

	switch s.cfg.TLSMode {
	case TLSModeSSL:
		d.SSL = true
	case TLSModeStartTLS:
		d.StartTLSPolicy = mail.MandatoryStartTLS
	case TLSModeNone:
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}
	return d
}

// Send delivers one message. The SMTP exchange itself is bounded by the
// configured timeout; ctx is checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Debug("sending email", "to", to, "subject", subject, "tls_mode", s.cfg.TLSMode)
	if err := s.dialer().DialAndSend(s.message(to, subject, body)); err != nil {
		s.logger.Error("smtp send failed", "to", to, "error", err)
		return fmt.Errorf("smtp send: %w", err)
	}

	s.logger.Info("email sent", "to", to)
	return nil
}
