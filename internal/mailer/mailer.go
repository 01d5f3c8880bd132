// ABOUTME: Outgoing mail for password reset codes
// ABOUTME: SMTP sender for production, log sender for development and tests

package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// Sender delivers a password reset code to an email address. Delivery is
// fire and forget from the API's point of view: a failure is logged and
// surfaced, but the stored code stays valid either way.
type Sender interface {
	SendResetCode(ctx context.Context, to, code string) error
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends reset codes over SMTP with PLAIN auth.
type SMTPSender struct {
	cfg    Config
	logger *slog.Logger
}

// NewSMTP creates an SMTP-backed sender.
func NewSMTP(cfg Config) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		logger: slog.Default().With("component", "mailer"),
	}
}

// resetCodeMessage builds the RFC 5322 message for a reset code.
func resetCodeMessage(from, to, code string) []byte {
	subject := "Your OTP for Verification"
	body := fmt.Sprintf("Your OTP for verification is: %s. It is valid for 10 minutes.", code)
	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", from, to, subject, body))
}

// SendResetCode delivers the code to the given address.
func (s *SMTPSender) SendResetCode(ctx context.Context, to, code string) error {
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, resetCodeMessage(s.cfg.From, to, code)); err != nil {
		return fmt.Errorf("sending reset code mail: %w", err)
	}

	s.logger.Info("sent reset code mail", "to", to)
	return nil
}

// LogSender writes reset codes to the log instead of mailing them.
// Used when SMTP is disabled in config, and in tests.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-backed sender.
func NewLogSender() *LogSender {
	return &LogSender{logger: slog.Default().With("component", "mailer")}
}

// SendResetCode logs the code.
func (s *LogSender) SendResetCode(ctx context.Context, to, code string) error {
	s.logger.Info("reset code (smtp disabled)", "to", to, "code", code)
	return nil
}

var (
	_ Sender = (*SMTPSender)(nil)
	_ Sender = (*LogSender)(nil)
)
