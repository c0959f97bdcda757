package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const sendEndpoint = "/v3/mail/send"

// Email is a single HTML message to one recipient
type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// SendError carries the SendGrid response for a rejected message
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sendgrid: unexpected status %d: %s", e.StatusCode, e.Body)
}

// SendGridSender delivers email through the SendGrid v3 mail API
type SendGridSender struct {
	apiKey string
	host   string
	from   *mail.Email
	logger *zap.Logger
}

// NewSendGridSender creates a sender from the email config.
func NewSendGridSender(cfg config.EmailConfig, logger *zap.Logger) (*SendGridSender, error) {
	if cfg.SendGridAPIKey == "" {
		return nil, errors.New("sendgrid: api key is required")
	}
	if cfg.SenderEmail == "" {
		return nil, errors.New("sendgrid: sender email is required")
	}
	return &SendGridSender{
		apiKey: cfg.SendGridAPIKey,
		host:   cfg.APIHost,
		from:   mail.NewEmail(cfg.SenderName, cfg.SenderEmail),
		logger: logger,
	}, nil
}

// Send posts the message and treats any non-2xx response as a failure.
func (s *SendGridSender) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return errors.New("sendgrid: recipient is required")
	}

	message := mail.NewV3MailInit(
		s.from,
		email.Subject,
		mail.NewEmail(email.ToName, email.To),
		mail.NewContent("text/html", email.HTML),
	)

	request := sendgrid.GetRequest(s.apiKey, sendEndpoint, s.host)
	request.Method = rest.Post
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid: send to %s: %w", email.To, err)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return &SendError{StatusCode: response.StatusCode, Body: response.Body}
	}

	s.logger.Debug("Email accepted by SendGrid",
		zap.String("to", email.To),
		zap.Int("status", response.StatusCode))
	return nil
}
