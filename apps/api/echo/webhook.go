package echoapi

import (
	"io/ioutil"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core/payment"
)

// maxWebhookBytes bounds the size of a webhook payload.
const maxWebhookBytes = 64 << 10

type webhookApi struct {
	svc payment.Service
}

func registerWebhookAPI(app *echo.Echo, svc payment.Service) {
	api := webhookApi{svc: svc}

	app.POST("/webhooks/stripe", api.stripe)
}

func (api *webhookApi) stripe(ctx echo.Context) error {
	req := ctx.Request()
	payload, err := ioutil.ReadAll(http.MaxBytesReader(ctx.Response(), req.Body, maxWebhookBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "payload too large")
	}

	if err := api.svc.HandleEvent(req.Context(), payload, req.Header.Get("Stripe-Signature")); err != nil {
		return errors.Wrap(err, "handling stripe event")
	}
	return ok(ctx, "Webhook received.", nil)
}
