package publisher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// EmailPublisher sends the digest as an HTML email via SMTP.
type EmailPublisher struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string

	// send delivers a built message; replaced in tests.
	send func(ctx context.Context, msg *mail.Msg) error
}

func NewEmailPublisher(host string, port int, username, password, from string, to []string) *EmailPublisher {
	p := &EmailPublisher{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
	}
	p.send = p.dialAndSend
	return p
}

func (p *EmailPublisher) Publish(ctx context.Context, digest *Digest) error {
	subject := fmt.Sprintf("arXiv digest: %s - %s", digest.CategoriesString(), digest.Date.Format("2006-01-02"))
	body, err := buildHTMLBody(digest)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return p.deliver(ctx, subject, mail.TypeTextHTML, body)
}

func (p *EmailPublisher) Notify(ctx context.Context, text string) error {
	return p.deliver(ctx, "paperbot notice", mail.TypeTextPlain, text)
}

func (p *EmailPublisher) deliver(ctx context.Context, subject string, ct mail.ContentType, body string) error {
	msg, err := p.buildMessage(subject, ct, body)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	if err := p.send(ctx, msg); err != nil {
		return fmt.Errorf("email: failed to send: %w", err)
	}
	return nil
}

func (p *EmailPublisher) buildMessage(subject string, ct mail.ContentType, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(p.from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(p.to...); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(ct, body)
	msg.SetGenHeader(mail.HeaderXMailer, "paperbot")
	return msg, nil
}

func (p *EmailPublisher) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(p.port),
		mail.WithTimeout(30 * time.Second),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if p.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(p.username),
			mail.WithPassword(p.password),
		)
	}

	client, err := mail.NewClient(p.host, opts...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

const emailStyle = `<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 700px; margin: 0 auto; padding: 20px; color: #333; }
a { color: #0f3460; }
hr { border: none; border-top: 1px solid #ddd; margin: 20px 0; }
em { color: #555; }
</style>`

// buildHTMLBody renders the digest Markdown into a standalone HTML page.
func buildHTMLBody(digest *Digest) (string, error) {
	fragment, err := renderHTML(digest.Markdown())
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\">")
	sb.WriteString(emailStyle)
	sb.WriteString("</head><body>")
	sb.WriteString(fragment)
	sb.WriteString("</body></html>")
	return sb.String(), nil
}
