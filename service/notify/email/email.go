// Package email sends approval requests over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/service/notify"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Config describes the SMTP relay and envelope.
type Config struct {
	Addr     string
	From     string
	To       []string
	Username string
	Password string
}

// Notifier sends one plain-text mail per request.
type Notifier struct {
	config Config
	send   SendFunc
}

// New creates a notifier; a nil send uses smtp.SendMail.
func New(config Config, send SendFunc) *Notifier {
	if send == nil {
		send = smtp.SendMail
	}
	return &Notifier{config: config, send: send}
}

// Channel returns approval.ChannelEmail.
func (n *Notifier) Channel() approval.Channel { return approval.ChannelEmail }

// Notify sends the mail. The SMTP exchange itself is not context aware; ctx
// is only checked before dialing.
func (n *Notifier) Notify(ctx context.Context, msg *notify.Message) error {
	if n.config.Addr == "" || len(n.config.To) == 0 || n.config.From == "" {
		return fmt.Errorf("email notifier requires addr, from and to")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if n.config.Username != "" {
		host, _, err := net.SplitHostPort(n.config.Addr)
		if err != nil {
			host = n.config.Addr
		}
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, host)
	}
	if err := n.send(n.config.Addr, auth, n.config.From, n.config.To, Compose(n.config.From, n.config.To, msg)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// Compose renders an RFC 5322 message.
func Compose(from string, to []string, msg *notify.Message) []byte {
	builder := &strings.Builder{}
	header := func(k, v string) { builder.WriteString(k + ": " + v + "\r\n") }
	header("From", from)
	header("To", strings.Join(to, ", "))
	header("Subject", "[overseer] "+sanitize(msg.Title))
	header("Date", msg.CreatedAt.UTC().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@overseer>", sanitize(msg.RequestID)))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	builder.WriteString("\r\n")
	builder.WriteString(strings.ReplaceAll(msg.Text(), "\n", "\r\n"))
	if msg.CallbackURL != "" {
		builder.WriteString("\r\n\r\nReply by POSTing to " + msg.CallbackURL)
	}
	builder.WriteString("\r\n")
	return []byte(builder.String())
}

func sanitize(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
