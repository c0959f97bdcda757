package billing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// ErrInvalidWebhookSignature is returned when a payload fails verification
var ErrInvalidWebhookSignature = errors.New("stripe: invalid webhook signature")

// EventCheckoutSessionCompleted is the event emitted when a customer pays
const EventCheckoutSessionCompleted = stripe.EventTypeCheckoutSessionCompleted

// WebhookVerifier checks Stripe-Signature headers against the signing secret
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier creates a verifier for the given signing secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// ConstructEvent verifies the payload and decodes the event. Events sent with
// a different API version than the SDK pins are still accepted.
func (v *WebhookVerifier) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if len(payload) == 0 || signature == "" || v.secret == "" {
		return stripe.Event{}, ErrInvalidWebhookSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return event, nil
}

// DecodeCheckoutSession extracts the Checkout Session carried by an event.
func DecodeCheckoutSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	if event.Data == nil {
		return nil, errors.New("stripe: event has no data")
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("stripe: failed to unmarshal checkout session: %w", err)
	}
	return &sess, nil
}
