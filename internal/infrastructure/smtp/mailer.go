package smtp

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/storefront-api/internal/config"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends email over SMTP with PLAIN auth.
type Mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	send     sendFunc
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     strings.TrimSpace(cfg.SMTPHost),
		port:     strings.TrimSpace(cfg.SMTPPort),
		from:     cfg.EmailFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		send:     smtp.SendMail,
	}
}

func (m *Mailer) Name() string { return "smtp" }

// Configured requires host, port, credentials and a sender address.
func (m *Mailer) Configured() bool {
	return m.host != "" && m.port != "" && m.username != "" && m.password != "" && m.from != ""
}

func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	return m.send(net.JoinHostPort(m.host, m.port), auth, m.from, []string{to}, formatMessage(m.from, to, subject, body))
}

func formatMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
