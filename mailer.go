package identity

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/goliatone/go-errors"
)

// SMTPConfig holds the settings for the SMTP backed Mailer.
type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	ExpiryMinutes int
}

type smtpMailer struct {
	cfg    SMTPConfig
	logger Logger
}

// NewSMTPMailer returns a Mailer that delivers codes over SMTP with TLS.
// Every transport failure is wrapped as mail-unavailable so the registrar
// can apply the development bypass uniformly.
func NewSMTPMailer(cfg SMTPConfig) Mailer {
	return &smtpMailer{
		cfg:    cfg,
		logger: defLogger{},
	}
}

func (m *smtpMailer) WithLogger(logger Logger) *smtpMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *smtpMailer) SendOTP(ctx context.Context, toAddress, code string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "context cancelled before mail dispatch")
	}

	if m.cfg.Username == "" || m.cfg.Password == "" {
		return transportUnavailable(nil, "smtp credentials are not configured")
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}

	body := m.message(from, toAddress, code)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return transportUnavailable(err, "failed to connect to smtp server")
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return transportUnavailable(err, "failed to create smtp client")
	}
	defer client.Close()

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return transportUnavailable(err, "smtp authentication failed")
	}

	if err := client.Mail(from); err != nil {
		return transportUnavailable(err, "smtp sender rejected")
	}

	if err := client.Rcpt(toAddress); err != nil {
		return transportUnavailable(err, "smtp recipient rejected")
	}

	w, err := client.Data()
	if err != nil {
		return transportUnavailable(err, "failed to open smtp data stream")
	}

	if _, err := w.Write([]byte(body)); err != nil {
		return transportUnavailable(err, "failed to write smtp message")
	}

	if err := w.Close(); err != nil {
		return transportUnavailable(err, "failed to finish smtp message")
	}

	if err := client.Quit(); err != nil {
		m.logger.Warn("smtp quit error", "error", err)
	}

	return nil
}

func (m *smtpMailer) message(from, to, code string) string {
	expiry := m.cfg.ExpiryMinutes
	if expiry <= 0 {
		expiry = DefaultOTPExpiration
	}

	lines := []string{
		"From: " + from,
		"To: " + to,
		"Subject: Your verification code",
		"",
		"Your verification code:",
		code,
		"",
		fmt.Sprintf("This code expires in %d minutes.", expiry),
		"If you did not request this, you can ignore this email.",
	}

	return strings.Join(lines, "\r\n")
}

func transportUnavailable(err error, msg string) error {
	if err == nil {
		return errors.New(msg, errors.CategoryOperation).
			WithTextCode(TextCodeMailUnavailable)
	}

	return errors.Wrap(err, errors.CategoryOperation, msg).
		WithTextCode(TextCodeMailUnavailable)
}
