package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// MailConfig holds SMTP configuration for invite delivery.
type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"` // 465 for implicit TLS, 587 for STARTTLS
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	// BaseURL is the public URL of the frontend; the invite link is
	// BaseURL/invites/<token>.
	BaseURL string `yaml:"base_url"`
}

// Validate validates the mail configuration.
func (c *MailConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("SMTP port is required")
	}
	if c.From == "" {
		return fmt.Errorf("from address is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	return nil
}

// Mailer sends invite email over SMTP. Sends are throttled; a throttled
// or failed send is reported to the caller, who logs it and moves on.
type Mailer struct {
	config  MailConfig
	limiter *RateLimiter
}

// NewMailer creates a mailer. A disabled config yields a mailer whose
// sends are silent no-ops.
func NewMailer(config MailConfig, limit RateLimitConfig) (*Mailer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mail config: %w", err)
	}
	return &Mailer{
		config:  config,
		limiter: NewRateLimiter(limit),
	}, nil
}

// SendInvite emails an invite link to the invitee.
func (m *Mailer) SendInvite(ctx context.Context, email, workspaceName, token string, expiresAt time.Time) error {
	if !m.config.Enabled {
		return nil
	}
	if !m.limiter.Allow() {
		return fmt.Errorf("mail rate limit exceeded")
	}

	subject := fmt.Sprintf("You have been invited to %s", workspaceName)
	link := strings.TrimRight(m.config.BaseURL, "/") + "/invites/" + token
	body := fmt.Sprintf(
		"You have been invited to join the workspace %s.\r\n\r\n"+
			"Accept the invitation:\r\n%s\r\n\r\n"+
			"This invitation expires on %s.\r\n",
		workspaceName, link, expiresAt.Format(time.RFC1123))

	msg := m.buildMessage(email, subject, body)
	if err := m.sendMail(ctx, email, msg); err != nil {
		m.limiter.Release()
		return err
	}
	return nil
}

func (m *Mailer) buildMessage(to, subject, body string) []byte {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}

func (m *Mailer) sendMail(ctx context.Context, rcpt string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	tlsConfig := &tls.Config{ServerName: m.config.Host}

	var client *smtp.Client
	var err error
	if m.config.Port == 465 {
		client, err = m.connectImplicitTLS(addr, tlsConfig)
	} else {
		client, err = m.connectSTARTTLS(ctx, addr, tlsConfig)
	}
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer client.Close()

	if m.config.Username != "" && m.config.Password != "" {
		auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(m.config.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(rcpt); err != nil {
		return fmt.Errorf("add recipient %s: %w", rcpt, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return client.Quit()
}

// connectImplicitTLS connects using implicit TLS (port 465).
func (m *Mailer) connectImplicitTLS(addr string, tlsConfig *tls.Config) (*smtp.Client, error) {
	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return nil, err
	}
	return smtp.NewClient(conn, m.config.Host)
}

// connectSTARTTLS connects using STARTTLS (port 587 or 25).
func (m *Mailer) connectSTARTTLS(ctx context.Context, addr string, tlsConfig *tls.Config) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	client, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, err
		}
	}

	return client, nil
}
