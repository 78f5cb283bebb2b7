package paymentsvc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/payment"
)

type stripeGateway struct {
	webhookSecret string
}

var _ payment.Gateway = (*stripeGateway)(nil)

// NewStripeGateway sets the global Stripe key and returns a Gateway backed by Stripe.
func NewStripeGateway(conf *core.Config) payment.Gateway {
	stripe.Key = conf.Stripe.SecretKey
	return &stripeGateway{webhookSecret: conf.Stripe.WebhookSecret}
}

func (gw stripeGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (payment.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return payment.Intent{}, errors.Wrap(err, "creating stripe payment intent")
	}
	return toIntent(pi), nil
}

func (gw stripeGateway) ParseEvent(payload []byte, signature string) (payment.Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, gw.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return payment.Event{}, errors.Wrap(err, "verifying stripe event")
	}

	out := payment.Event{ID: evt.ID, Type: string(evt.Type)}
	if strings.HasPrefix(out.Type, "payment_intent.") && evt.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return payment.Event{}, errors.Wrapf(err, "decoding %s", out.Type)
		}
		intent := toIntent(&pi)
		out.Intent = &intent
	}
	return out, nil
}

func toIntent(pi *stripe.PaymentIntent) payment.Intent {
	return payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}
