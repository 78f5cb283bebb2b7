package payment

import (
	"context"
)

// Event types
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
)

// Metadata keys
const (
	MetaUserID   = "userId"
	MetaCourseID = "courseId"
)

type (
	Intent struct {
		ID           string
		ClientSecret string
		Amount       int64 // cents
		Currency     string
		Metadata     map[string]string
	}

	Event struct {
		ID     string
		Type   string
		Intent *Intent // set for payment_intent.* events
	}

	// Gateway is the payment processor.
	Gateway interface {
		CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (Intent, error)
		// ParseEvent verifies the signature of a webhook payload and decodes it.
		ParseEvent(payload []byte, signature string) (Event, error)
	}
)

// NewPaymentIntent is a payment request. A missing or non-positive Amount means the processor minimum.
type NewPaymentIntent struct {
	Amount   int64  `json:"amount"`
	CourseID string `json:"courseId"`
}
