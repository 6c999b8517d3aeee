package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
)

const ProviderRazorpay = "razorpay"

// RazorpayAdapter creates provider orders through the Razorpay SDK and
// verifies completion callbacks by recomputing the HMAC-SHA256 signature
// over "order_id|payment_id" with the shared secret.
type RazorpayAdapter struct {
	client *razorpay.Client
	keyID  string
	secret string
}

func NewRazorpayAdapter(keyID, keySecret string) *RazorpayAdapter {
	return &RazorpayAdapter{
		client: razorpay.NewClient(keyID, keySecret),
		keyID:  keyID,
		secret: keySecret,
	}
}

func (a *RazorpayAdapter) Provider() string { return ProviderRazorpay }

// KeyID is the public key the checkout client needs.
func (a *RazorpayAdapter) KeyID() string { return a.keyID }

func (a *RazorpayAdapter) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	data := map[string]interface{}{
		"amount":   MinorUnits(req.Amount),
		"currency": strings.ToUpper(req.Currency),
		"receipt":  req.OrderNumber,
		"notes": map[string]interface{}{
			"order_id": req.OrderID.String(),
		},
	}
	body, err := a.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %v", ErrGatewayUnavailable, err)
	}
	ref, _ := body["id"].(string)
	if ref == "" {
		return nil, fmt.Errorf("%w: create order: response carries no id", ErrGatewayUnavailable)
	}
	return &Intent{
		Provider:    ProviderRazorpay,
		ProviderRef: ref,
		ClientToken: a.keyID,
		Amount:      req.Amount,
		Currency:    strings.ToUpper(req.Currency),
	}, nil
}

// VerifyCallback recomputes the signature the Razorpay checkout returned.
// A mismatch is a hard failure; the amount is not reported by the
// signature scheme, so the recorded attempt amount stands.
func (a *RazorpayAdapter) VerifyCallback(_ context.Context, cb Callback) (*Verification, error) {
	if cb.ProviderRef == "" || cb.PaymentRef == "" || cb.Signature == "" {
		return nil, fmt.Errorf("%w: order id, payment id and signature are required", ErrVerificationFailed)
	}
	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write([]byte(cb.ProviderRef + "|" + cb.PaymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(cb.Signature)) {
		return nil, fmt.Errorf("%w: order %s payment %s", ErrSignatureMismatch, cb.ProviderRef, cb.PaymentRef)
	}
	return &Verification{ProviderRef: cb.ProviderRef}, nil
}
