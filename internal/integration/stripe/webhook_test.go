package stripe

import (
	"testing"
	"time"

	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test"

var testPayload = []byte(`{
	"id": "evt_123",
	"object": "event",
	"type": "customer.subscription.updated",
	"created": 1767225600,
	"api_version": "2020-08-27",
	"data": {"object": {"id": "sub_123", "object": "subscription", "status": "active"}}
}`)

func signedHeader(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}

func TestVerifyEvent(t *testing.T) {
	event, err := VerifyEvent(testPayload, signedHeader(testPayload, testWebhookSecret), testWebhookSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_123", event.ID)
	assert.Equal(t, "customer.subscription.updated", string(event.Type))
	assert.Equal(t, int64(1767225600), event.Created)
}

func TestVerifyEventRejected(t *testing.T) {
	tampered := append([]byte(nil), testPayload...)
	tampered[len(tampered)-3] = ' '

	tests := []struct {
		name      string
		payload   []byte
		signature string
	}{
		{"missing signature", testPayload, ""},
		{"empty payload", nil, signedHeader(testPayload, testWebhookSecret)},
		{"wrong secret", testPayload, signedHeader(testPayload, "whsec_other")},
		{"tampered payload", tampered, signedHeader(testPayload, testWebhookSecret)},
		{"garbage header", testPayload, "t=1,v1=deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := VerifyEvent(tt.payload, tt.signature, testWebhookSecret)
			require.Error(t, err)
			assert.Nil(t, event)
			assert.True(t, ierr.IsSignature(err))
		})
	}
}

func TestParseWebhookEventUsesConfiguredSecret(t *testing.T) {
	c := newTestClient(t)
	require.Equal(t, testWebhookSecret, c.WebhookSecret())

	event, err := c.ParseWebhookEvent(testPayload, signedHeader(testPayload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "evt_123", event.ID)
}
