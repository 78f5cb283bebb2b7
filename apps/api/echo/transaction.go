package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/enrollment"
	"github.com/trezcool/soma/core/payment"
)

type transactionApi struct {
	enrollmentSvc enrollment.Service
	paymentSvc    payment.Service
	validate      *validator.Validate
	logger        core.Logger
}

func registerTransactionAPI(
	app *echo.Echo,
	authed []echo.MiddlewareFunc,
	enrollmentSvc enrollment.Service,
	paymentSvc payment.Service,
	validate *validator.Validate,
	logger core.Logger,
) {
	api := transactionApi{
		enrollmentSvc: enrollmentSvc,
		paymentSvc:    paymentSvc,
		validate:      validate,
		logger:        logger,
	}

	tg := app.Group("/transactions")
	tg.POST("/payment-intent", api.createPaymentIntent, authed...)
	tg.POST("/create-transaction", api.create, authed...)
	tg.GET("/list", api.query, authed...)
}

type paymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

func (api *transactionApi) createPaymentIntent(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data payment.NewPaymentIntent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPaymentIntent")
	}

	intent, err := api.paymentSvc.CreatePaymentIntent(ctx.Request().Context(), callerID, data)
	if err != nil {
		var gErr *payment.GatewayError
		if errors.As(err, &gErr) {
			api.logger.Error("creating payment intent", err, core.LogPerson{ID: callerID})
			return respond(ctx, http.StatusBadGateway, "Create payment intent failed!", nil)
		}
		return errors.Wrap(err, "creating payment intent")
	}
	return ok(ctx, "Create payment intent successfully!", paymentIntentResponse{ClientSecret: intent.ClientSecret})
}

func (api *transactionApi) create(ctx echo.Context) error {
	var data enrollment.NewTransaction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTransaction")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if _, err := requireSelf(ctx, data.UserID); err != nil {
		return err
	}

	res, err := api.enrollmentSvc.Purchase(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "purchasing course")
	}
	return ok(ctx, "Purchased Course successfully", res)
}

func (api *transactionApi) query(ctx echo.Context) error {
	txs, err := api.enrollmentSvc.QueryTransactions(ctx.Request().Context(), core.CleanString(ctx.QueryParam("userId")))
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}
	if txs == nil {
		txs = []enrollment.Transaction{}
	}
	return ok(ctx, "Transactions retrieved successfully.", txs)
}
