package communications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPDispatcher delivers email messages over plain SMTP. Non-email
// channels fall through to the secondary dispatcher, usually a logger or an
// SMS gateway adapter.
type SMTPDispatcher struct {
	Addr     string
	From     string
	Fallback Dispatcher
}

// Dispatch implements Dispatcher.
func (d SMTPDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if msg.Channel != TypeEmail {
		if d.Fallback != nil {
			return d.Fallback.Dispatch(ctx, msg)
		}
		return fmt.Errorf("communications: no dispatcher for channel %q", msg.Channel)
	}
	if msg.To == "" {
		return fmt.Errorf("communications: message for client %s has no recipient", msg.ClientID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", d.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)

	if err := smtp.SendMail(d.Addr, nil, d.From, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("communications: smtp send: %w", err)
	}
	return nil
}
