package email

import (
	"context"
	"errors"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"dailybrief/internal/config"
	"dailybrief/internal/ports"
)

// Sender delivers composed briefings over SMTP.
type Sender struct {
	dialer *gomail.Dialer
	from   string
}

var _ ports.Mailer = (*Sender)(nil)

// NewSender validates credentials up front so a misconfigured transport
// fails at startup rather than at send time.
func NewSender(cfg config.SMTPConfig) (*Sender, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, errors.New("email: smtp host and port are required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("email: smtp credentials are not set")
	}
	from := cfg.FromEmail
	if from == "" {
		from = cfg.Username
	}
	return &Sender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}, nil
}

// Send delivers one message. The HTML body is attached as an alternative
// part when present, so clients fall back to the text body.
func (s *Sender) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", textBody)
	if htmlBody != "" {
		msg.AddAlternative("text/html", htmlBody)
	}

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}
