package paymentsvc

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/payment"
)

const testSecret = "whsec_test"

func sign(payload []byte, secret string) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func TestStripeGateway_ParseEvent(t *testing.T) {
	gw := NewStripeGateway(&core.Config{Stripe: core.StripeConfig{WebhookSecret: testSecret}})

	succeeded := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_1",
			"object": "payment_intent",
			"amount": 4999,
			"currency": "usd",
			"metadata": {"userId": "user_1", "courseId": "c1"}
		}}
	}`)
	refunded := []byte(`{"id": "evt_2", "object": "event", "type": "charge.refunded", "data": {"object": {"id": "ch_1", "object": "charge"}}}`)

	t.Run("payment intent", func(t *testing.T) {
		evt, err := gw.ParseEvent(succeeded, sign(succeeded, testSecret))
		require.NoError(t, err)
		assert.Equal(t, payment.Event{
			ID:   "evt_1",
			Type: payment.EventPaymentSucceeded,
			Intent: &payment.Intent{
				ID:       "pi_1",
				Amount:   4999,
				Currency: "usd",
				Metadata: map[string]string{payment.MetaUserID: "user_1", payment.MetaCourseID: "c1"},
			},
		}, evt)
	})

	t.Run("other event", func(t *testing.T) {
		evt, err := gw.ParseEvent(refunded, sign(refunded, testSecret))
		require.NoError(t, err)
		assert.Equal(t, "charge.refunded", evt.Type)
		assert.Nil(t, evt.Intent)
	})

	t.Run("bad signature", func(t *testing.T) {
		_, err := gw.ParseEvent(succeeded, sign(succeeded, "whsec_other"))
		assert.Error(t, err)
	})

	t.Run("no signature", func(t *testing.T) {
		_, err := gw.ParseEvent(succeeded, "")
		assert.Error(t, err)
	})
}
