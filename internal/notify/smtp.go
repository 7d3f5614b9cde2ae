package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	// ImplicitTLS dials TLS directly (ex. port 465) instead of upgrading with STARTTLS.
	ImplicitTLS bool `json:"implicit_tls"`
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender returns false when the credentials needed to send are missing.
func NewSMTPSender(config SMTPConfig) (SMTPSender, bool) {
	if config.Username == "" || config.Password == "" {
		return SMTPSender{}, false
	}
	if config.Host == "" {
		config.Host = "smtp.gmail.com"
	}
	if config.Port == 0 {
		config.Port = 465
		config.ImplicitTLS = true
	}
	return SMTPSender{config: config}, true
}

func (s SMTPSender) Name() string {
	return fmt.Sprintf("smtp %s:%d", s.config.Host, s.config.Port)
}

func (s SMTPSender) send(mail *email.Email, auth smtp.Auth) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if s.config.ImplicitTLS {
		return mail.SendWithTLS(addr, auth, &tls.Config{ServerName: s.config.Host})
	}
	return mail.Send(addr, auth)
}

func (s SMTPSender) Send(ctx context.Context, msg Message) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	mail := email.NewEmail()
	mail.From = msg.From
	if mail.From == "" {
		mail.From = s.config.Username
	}
	mail.To = msg.To
	mail.Subject = msg.Subject
	mail.HTML = []byte(msg.HTML)
	mail.Text = []byte(msg.Text)

	err = s.send(
		mail,
		smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = s.send(mail, nil)
	}
	if err != nil {
		return fmt.Errorf("send to %s: %w", recipientList(msg.To), err)
	}
	return nil
}
