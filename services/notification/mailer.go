package notification

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"campsite/config"
)

// SMTPMailer delivers email over SMTP.
type SMTPMailer struct {
	dialer      *gomail.Dialer
	fromAddress string
	fromDisplay string
}

// NewSMTPMailer builds a mailer from the application config.
func NewSMTPMailer() *SMTPMailer {
	cfg := config.AppConfig
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailLoginUsername, cfg.EmailLoginPassword)
	return &SMTPMailer{
		dialer:      dialer,
		fromAddress: cfg.EmailFromAddress,
		fromDisplay: cfg.EmailDisplayUsername,
	}
}

// Send composes and delivers one HTML message.
func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.fromAddress, m.fromDisplay)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("Send: deliver to %s: %w", to, err)
	}
	return nil
}

var _ Mailer = (*SMTPMailer)(nil)
