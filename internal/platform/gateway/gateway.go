// Package gateway holds the integration boundary to external payment
// providers. Adapters create provider-side transactions and verify
// completion callbacks; they never touch the ledger.
package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrGatewayUnavailable wraps transport failures and provider 5xx
	// responses at intent creation. No local state has changed; the caller
	// retries the whole create step at will.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrSignatureMismatch is a hard verification failure: the callback's
	// signature does not match the recomputed one. Never retried.
	ErrSignatureMismatch = errors.New("gateway signature mismatch")

	// ErrVerificationFailed covers every other verification failure
	// (provider reports the transaction not succeeded, amount mismatch).
	ErrVerificationFailed = errors.New("gateway verification failed")
)

// IntentRequest asks a provider for a new transaction against an order.
type IntentRequest struct {
	OrderID     uuid.UUID
	OrderNumber string
	// Amount in major currency units; adapters convert to minor units.
	Amount   float64
	Currency string
}

// Intent is the provider-side transaction handle returned to the client.
type Intent struct {
	Provider    string  `json:"provider"`
	ProviderRef string  `json:"provider_ref"`
	ClientToken string  `json:"client_token"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

// Callback is a completion report for a provider transaction, either
// client-relayed or webhook-delivered.
type Callback struct {
	// ProviderRef is the provider transaction id issued at intent creation.
	ProviderRef string
	// PaymentRef is the provider's payment id, where distinct from the
	// transaction id (Razorpay).
	PaymentRef string
	// Signature authenticates the callback for HMAC-verified providers.
	Signature string
}

// Verification is the adapter's judgement of a callback. Amount is the
// provider-confirmed amount in major units; zero means the provider did not
// report one and the recorded attempt amount stands.
type Verification struct {
	ProviderRef string
	Amount      float64
}

type Adapter interface {
	Provider() string
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	VerifyCallback(ctx context.Context, cb Callback) (*Verification, error)
}

// MinorUnits converts a major-unit amount to the integer minor units the
// providers bill in.
func MinorUnits(amount float64) int64 {
	return int64(amount*100 + 0.5)
}
