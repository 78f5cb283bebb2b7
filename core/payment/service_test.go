package payment_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/enrollment"
	"github.com/trezcool/soma/core/payment"
	"github.com/trezcool/soma/tests"
)

type fakeGateway struct {
	err      error
	event    payment.Event
	eventErr error

	amount   int64
	currency string
	metadata map[string]string
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, amount int64, currency string, metadata map[string]string) (payment.Intent, error) {
	if g.err != nil {
		return payment.Intent{}, g.err
	}
	g.amount, g.currency, g.metadata = amount, currency, metadata
	return payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret", Amount: amount, Currency: currency, Metadata: metadata}, nil
}

func (g *fakeGateway) ParseEvent(_ []byte, _ string) (payment.Event, error) {
	return g.event, g.eventErr
}

type fakePurchaser struct {
	err   error
	calls []enrollment.NewTransaction
}

func (p *fakePurchaser) Purchase(_ context.Context, nt enrollment.NewTransaction) (enrollment.PurchaseResult, error) {
	p.calls = append(p.calls, nt)
	return enrollment.PurchaseResult{}, p.err
}

func newService(gw *fakeGateway, pur *fakePurchaser) payment.Service {
	conf := testutil.NewConfig()
	return payment.NewService(gw, pur, testutil.NewLogger(conf), conf)
}

func TestService_CreatePaymentIntent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		npi        payment.NewPaymentIntent
		wantAmount int64
		wantMeta   map[string]string
	}{
		{name: "missing amount", wantAmount: 50, wantMeta: map[string]string{payment.MetaUserID: "user_1"}},
		{name: "negative amount", npi: payment.NewPaymentIntent{Amount: -10}, wantAmount: 50, wantMeta: map[string]string{payment.MetaUserID: "user_1"}},
		{name: "under minimum", npi: payment.NewPaymentIntent{Amount: 49}, wantAmount: 50, wantMeta: map[string]string{payment.MetaUserID: "user_1"}},
		{
			name: "with course", npi: payment.NewPaymentIntent{Amount: 4999, CourseID: " c1 "}, wantAmount: 4999,
			wantMeta: map[string]string{payment.MetaUserID: "user_1", payment.MetaCourseID: "c1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			intent, err := newService(gw, &fakePurchaser{}).CreatePaymentIntent(ctx, "user_1", tt.npi)
			require.NoError(t, err)
			assert.Equal(t, "pi_1_secret", intent.ClientSecret)
			assert.Equal(t, tt.wantAmount, gw.amount)
			assert.Equal(t, "usd", gw.currency)
			assert.Equal(t, tt.wantMeta, gw.metadata)
		})
	}

	t.Run("gateway failure", func(t *testing.T) {
		cause := errors.New("card_declined")
		_, err := newService(&fakeGateway{err: cause}, &fakePurchaser{}).CreatePaymentIntent(ctx, "user_1", payment.NewPaymentIntent{})
		var gwErr *payment.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, cause, gwErr.Err)
	})
}

func TestService_HandleEvent(t *testing.T) {
	ctx := context.Background()
	succeeded := func(meta map[string]string) payment.Event {
		return payment.Event{
			ID:     "evt_1",
			Type:   payment.EventPaymentSucceeded,
			Intent: &payment.Intent{ID: "pi_1", Amount: 4999, Currency: "usd", Metadata: meta},
		}
	}
	purchase := map[string]string{payment.MetaUserID: "user_1", payment.MetaCourseID: "c1"}

	tests := []struct {
		name        string
		gw          *fakeGateway
		purchaseErr error
		wantCalls   int
		wantErr     bool
	}{
		{name: "bad signature", gw: &fakeGateway{eventErr: errors.New("bad sig")}, wantErr: true},
		{name: "other event", gw: &fakeGateway{event: payment.Event{ID: "evt_1", Type: "charge.refunded"}}},
		{name: "no purchase metadata", gw: &fakeGateway{event: succeeded(map[string]string{payment.MetaUserID: "user_1"})}},
		{name: "purchase", gw: &fakeGateway{event: succeeded(purchase)}, wantCalls: 1},
		{name: "already enrolled", gw: &fakeGateway{event: succeeded(purchase)}, purchaseErr: enrollment.ErrAlreadyEnrolled, wantCalls: 1},
		{
			name: "purchase failure", gw: &fakeGateway{event: succeeded(purchase)}, purchaseErr: errors.New("db down"),
			wantCalls: 1, wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pur := &fakePurchaser{err: tt.purchaseErr}
			err := newService(tt.gw, pur).HandleEvent(ctx, []byte(`{}`), "t=1,v1=sig")
			assert.Equal(t, tt.wantErr, err != nil)
			require.Len(t, pur.calls, tt.wantCalls)
			if tt.wantCalls > 0 {
				assert.Equal(t, enrollment.NewTransaction{
					UserID:          "user_1",
					CourseID:        "c1",
					TransactionID:   "pi_1",
					Amount:          4999,
					PaymentProvider: enrollment.ProviderStripe,
				}, pur.calls[0])
			}
		})
	}

	t.Run("bad signature is a validation error", func(t *testing.T) {
		err := newService(&fakeGateway{eventErr: errors.New("bad sig")}, &fakePurchaser{}).HandleEvent(ctx, nil, "")
		_, ok := errors.Cause(err).(*core.ValidationError)
		assert.True(t, ok)
	})
}
