// Package smtp delivers alert mails through an SMTP relay.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/internal"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/notifications"
)

const dialTimeout = 10 * time.Second

// Config holds the relay address, its optional credentials and the sender.
type Config struct {
	FromName     string
	FromAddress  string
	SMTPUsername string
	SMTPPassword string
	SMTPServer   string
	SMTPPort     int
}

// Email implements notifications.NotificationService over SMTP. The
// ToAddress of a notification may hold a comma separated list of recipients.
type Email struct {
	config *Config
	from   mail.Address
	auth   smtp.Auth
}

// New validates the *Config and prepares PLAIN auth when credentials are set.
func (se *Email) New(rawConfig any) error {
	config, ok := rawConfig.(*Config)
	if !ok {
		return fmt.Errorf("invalid SMTP configuration")
	}
	if config.SMTPServer == "" || config.SMTPPort <= 0 {
		return fmt.Errorf("smtp server and port are required")
	}
	from, err := mail.ParseAddress(config.FromAddress)
	if err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if config.FromName != "" {
		from.Name = config.FromName
	}
	se.config = config
	se.from = *from
	se.auth = nil
	if config.SMTPUsername != "" && config.SMTPPassword != "" {
		se.auth = smtp.PlainAuth("", config.SMTPUsername, config.SMTPPassword, config.SMTPServer)
	}
	return nil
}

// SendNotification delivers the notification in a single SMTP session. The
// session is aborted when ctx is done.
func (se *Email) SendNotification(ctx context.Context, n *notifications.Notification) error {
	msg, err := se.composeBody(n)
	if err != nil {
		return err
	}
	rcpts, _ := mail.ParseAddressList(n.ToAddress)

	addr := net.JoinHostPort(se.config.SMTPServer, strconv.Itoa(se.config.SMTPPort))
	conn, err := (&net.Dialer{Timeout: dialTimeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, se.config.SMTPServer)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := se.deliver(client, rcpts, msg); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (se *Email) deliver(client *smtp.Client, rcpts []*mail.Address, msg []byte) error {
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: se.config.SMTPServer}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if se.auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(se.auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := client.Mail(se.from.Address); err != nil {
		return fmt.Errorf("sender rejected: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt.Address); err != nil {
			return fmt.Errorf("recipient %s rejected: %w", rcpt.Address, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// composeBody renders the message as multipart/alternative with a plain text
// and an HTML part, both quoted-printable. Empty parts are left out.
func (se *Email) composeBody(n *notifications.Notification) ([]byte, error) {
	to, err := mail.ParseAddressList(n.ToAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", n.ToAddress, err)
	}
	if n.ToName != "" && len(to) == 1 {
		to[0].Name = n.ToName
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct{ contentType, content string }{
		{"text/plain", n.PlainBody},
		{"text/html", n.Body},
	} {
		if part.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType + `; charset="UTF-8"`},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	recipients := make([]string, len(to))
	for i, addr := range to {
		recipients[i] = addr.String()
	}
	var msg bytes.Buffer
	header := func(key, value string) { fmt.Fprintf(&msg, "%s: %s\r\n", key, value) }
	header("From", se.from.String())
	header("To", strings.Join(recipients, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", n.Subject))
	header("Date", time.Now().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", internal.RandomHex(16), domainOf(se.from.Address)))
	header("MIME-Version", "1.0")
	header("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary()))
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func domainOf(address string) string {
	if i := strings.LastIndexByte(address, '@'); i >= 0 {
		return address[i+1:]
	}
	return "localhost"
}
