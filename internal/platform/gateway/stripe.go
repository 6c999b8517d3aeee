package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const ProviderStripe = "stripe"

// StripeAdapter creates PaymentIntents and re-verifies them server-side.
// A client-asserted "succeeded" is never trusted: verification always
// re-fetches the intent from Stripe.
type StripeAdapter struct {
	api            *client.API
	publishableKey string
}

func NewStripeAdapter(secretKey, publishableKey string) *StripeAdapter {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeAdapter{api: api, publishableKey: publishableKey}
}

func (a *StripeAdapter) Provider() string { return ProviderStripe }

// PublishableKey is exposed to clients via the config endpoint.
func (a *StripeAdapter) PublishableKey() string { return a.publishableKey }

func (a *StripeAdapter) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(req.Amount)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		Metadata: map[string]string{
			"order_id":     req.OrderID.String(),
			"order_number": req.OrderNumber,
		},
	}
	params.Context = ctx

	pi, err := a.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripeErr("create payment intent", err)
	}
	return &Intent{
		Provider:    ProviderStripe,
		ProviderRef: pi.ID,
		ClientToken: pi.ClientSecret,
		Amount:      float64(pi.Amount) / 100,
		Currency:    strings.ToUpper(string(pi.Currency)),
	}, nil
}

// VerifyCallback fetches the PaymentIntent and accepts it only when Stripe
// itself reports it succeeded.
func (a *StripeAdapter) VerifyCallback(ctx context.Context, cb Callback) (*Verification, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := a.api.PaymentIntents.Get(cb.ProviderRef, params)
	if err != nil {
		return nil, wrapStripeErr("fetch payment intent", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%w: intent %s is %s", ErrVerificationFailed, pi.ID, pi.Status)
	}
	return &Verification{
		ProviderRef: pi.ID,
		Amount:      float64(pi.Amount) / 100,
	}, nil
}

func wrapStripeErr(op string, err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) && sErr.HTTPStatusCode < 500 {
		// Provider rejected the request; not an availability problem.
		return fmt.Errorf("%w: %s: %s", ErrVerificationFailed, op, sErr.Msg)
	}
	return fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, op, err)
}
