package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signPayload(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

const completedEvent = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "api_version": "2020-08-27",
  "data": {"object": {"id": "cs_test_1", "object": "checkout.session", "metadata": {"invoice_id": "42"}}}
}`

func TestWebhookVerifier_ConstructEvent(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret)
	payload := []byte(completedEvent)

	event, err := v.ConstructEvent(payload, signPayload(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventCheckoutSessionCompleted, event.Type)

	sess, err := DecodeCheckoutSession(event)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "42", sess.Metadata["invoice_id"])
}

func TestWebhookVerifier_RejectsBadSignature(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret)
	payload := []byte(completedEvent)

	_, err := v.ConstructEvent(payload, signPayload(payload, "whsec_other"))
	assert.ErrorIs(t, err, ErrInvalidWebhookSignature)

	_, err = v.ConstructEvent(payload, "")
	assert.ErrorIs(t, err, ErrInvalidWebhookSignature)

	_, err = NewWebhookVerifier("").ConstructEvent(payload, "t=1,v1=abc")
	assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
}
