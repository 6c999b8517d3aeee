package gateway

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const ProviderManual = "manual"

// ManualAdapter is the null adapter for counter payments (cash, cheque,
// wallet). There is no provider round trip: an intent is a local reference
// and every callback verifies.
type ManualAdapter struct{}

func NewManualAdapter() *ManualAdapter { return &ManualAdapter{} }

func (ManualAdapter) Provider() string { return ProviderManual }

func (ManualAdapter) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	ref := "man_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	return &Intent{
		Provider:    ProviderManual,
		ProviderRef: ref,
		Amount:      req.Amount,
		Currency:    strings.ToUpper(req.Currency),
	}, nil
}

func (ManualAdapter) VerifyCallback(_ context.Context, cb Callback) (*Verification, error) {
	return &Verification{ProviderRef: cb.ProviderRef}, nil
}
