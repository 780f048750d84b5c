package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Service sends operational email. Only security notifications exist in this
// deployment; anything user-facing belongs to the excluded API layer.
type Service interface {
	SendSecurityAlert(ctx context.Context, subject, body string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
	to     []string
}

func NewSMTPService(cfg Config) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		to:     cfg.To,
	}
}

func (s *smtpService) SendSecurityAlert(ctx context.Context, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", s.to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send security alert: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
