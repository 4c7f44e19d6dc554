package comms

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"

	// maxPersonalizations is SendGrid's per-request personalization cap.
	maxPersonalizations = 1000
)

// Recipient is a single mail destination.
type Recipient struct {
	Name    string
	Address string
}

// Email is a plain-text message delivered individually to every recipient.
type Email struct {
	Subject string
	Body    string
	ReplyTo *Recipient
	To      []Recipient
}

// PartialDeliveryError reports a send that failed after some recipients
// were already mailed.
type PartialDeliveryError struct {
	Delivered int
	Err       error
}

func (e *PartialDeliveryError) Error() string {
	return fmt.Sprintf("delivered to %d recipients before failing: %v", e.Delivered, e.Err)
}

func (e *PartialDeliveryError) Unwrap() error {
	return e.Err
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	key  string
	from *sgmail.Email
}

// NewSendGridMailer creates a mailer that sends as fromName <fromAddress>.
func NewSendGridMailer(key, fromName, fromAddress string) *SendGridMailer {
	return &SendGridMailer{key: key, from: sgmail.NewEmail(fromName, fromAddress)}
}

// Send delivers e with one personalization per recipient so that no
// recipient sees another's address.
func (m *SendGridMailer) Send(ctx context.Context, e Email) error {
	for start := 0; start < len(e.To); start += maxPersonalizations {
		end := min(start+maxPersonalizations, len(e.To))
		if err := m.send(ctx, e, e.To[start:end]); err != nil {
			if start > 0 {
				return &PartialDeliveryError{Delivered: start, Err: err}
			}
			return err
		}
	}
	return nil
}

func (m *SendGridMailer) send(ctx context.Context, e Email, to []Recipient) error {
	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.Subject = e.Subject
	if e.ReplyTo != nil {
		msg.SetReplyTo(sgmail.NewEmail(e.ReplyTo.Name, e.ReplyTo.Address))
	}
	for _, r := range to {
		p := sgmail.NewPersonalization()
		p.AddTos(sgmail.NewEmail(r.Name, r.Address))
		msg.AddPersonalizations(p)
	}
	msg.AddContent(sgmail.NewContent("text/plain", e.Body))

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(msg)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending mail: sendgrid responded %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// LogMailer records mail in the log instead of sending it. It is used when
// no SendGrid key is configured.
type LogMailer struct{}

// Send logs e.
func (LogMailer) Send(_ context.Context, e Email) error {
	slog.Info("mail not sent, no provider configured", "subject", e.Subject, "recipients", len(e.To))
	return nil
}
