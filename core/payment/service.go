package payment

import (
	"context"
	"fmt"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/enrollment"
)

var (
	// errors
	ErrInvalidEvent = core.NewValidationError(errors.New("invalid webhook event"))
)

// GatewayError reports a failed call to the payment processor.
type GatewayError struct {
	Err error
}

func (err *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway: %v", err.Err)
}

type (
	// Purchaser records paid purchases.
	Purchaser interface {
		Purchase(ctx context.Context, nt enrollment.NewTransaction) (enrollment.PurchaseResult, error)
	}

	Service interface {
		// CreatePaymentIntent starts a payment for userID. Amounts under the processor minimum are raised to it.
		CreatePaymentIntent(ctx context.Context, userID string, npi NewPaymentIntent) (Intent, error)
		// HandleEvent processes a signed webhook payload.
		HandleEvent(ctx context.Context, payload []byte, signature string) error
	}

	service struct {
		gateway   Gateway
		purchaser Purchaser
		logger    core.Logger
		currency  string
		minAmount int64
	}
)

var _ Service = (*service)(nil)

func NewService(gateway Gateway, purchaser Purchaser, logger core.Logger, conf *core.Config) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(gateway, "gateway"),
		vala.IsNotNil(purchaser, "purchaser"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		gateway:   gateway,
		purchaser: purchaser,
		logger:    logger,
		currency:  conf.Stripe.Currency,
		minAmount: conf.Stripe.MinAmount,
	}
}

func (svc *service) CreatePaymentIntent(ctx context.Context, userID string, npi NewPaymentIntent) (Intent, error) {
	amount := npi.Amount
	if amount < svc.minAmount {
		amount = svc.minAmount
	}

	metadata := map[string]string{MetaUserID: userID}
	if courseID := core.CleanString(npi.CourseID); courseID != "" {
		metadata[MetaCourseID] = courseID
	}

	intent, err := svc.gateway.CreatePaymentIntent(ctx, amount, svc.currency, metadata)
	if err != nil {
		return Intent{}, &GatewayError{Err: err}
	}
	return intent, nil
}

func (svc *service) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	evt, err := svc.gateway.ParseEvent(payload, signature)
	if err != nil {
		svc.logger.Warn("rejected webhook event", err)
		return ErrInvalidEvent
	}
	if evt.Type != EventPaymentSucceeded || evt.Intent == nil {
		return nil
	}

	intent := evt.Intent
	userID, courseID := intent.Metadata[MetaUserID], intent.Metadata[MetaCourseID]
	if userID == "" || courseID == "" {
		svc.logger.Info(fmt.Sprintf("payment intent %s carries no purchase", intent.ID))
		return nil
	}

	_, err = svc.purchaser.Purchase(ctx, enrollment.NewTransaction{
		UserID:          userID,
		CourseID:        courseID,
		TransactionID:   intent.ID,
		Amount:          intent.Amount,
		PaymentProvider: enrollment.ProviderStripe,
	})
	switch {
	case err == nil:
		return nil
	case errors.Cause(err) == enrollment.ErrAlreadyEnrolled:
		svc.logger.Info(fmt.Sprintf("payment intent %s: user %s already enrolled in %s", intent.ID, userID, courseID))
		return nil
	}
	return errors.Wrapf(err, "recording payment intent %s", intent.ID)
}
