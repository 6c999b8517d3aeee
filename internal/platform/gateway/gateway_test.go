package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount float64
		want   int64
	}{
		{100, 10000},
		{99.99, 9999},
		{0.1, 10},
		{123.45, 12345},
		{19.99, 1999},
	}
	for _, c := range cases {
		if got := MinorUnits(c.amount); got != c.want {
			t.Errorf("MinorUnits(%v) = %d, want %d", c.amount, got, c.want)
		}
	}
}

func razorpaySignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpayVerifyCallback(t *testing.T) {
	a := NewRazorpayAdapter("rzp_test_key", "rzp_test_secret")

	cb := Callback{
		ProviderRef: "order_N5Xk2x",
		PaymentRef:  "pay_N5Xm9q",
		Signature:   razorpaySignature("rzp_test_secret", "order_N5Xk2x", "pay_N5Xm9q"),
	}
	v, err := a.VerifyCallback(context.Background(), cb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ProviderRef != "order_N5Xk2x" {
		t.Errorf("provider ref: got %s", v.ProviderRef)
	}
	if v.Amount != 0 {
		t.Errorf("signature scheme reports no amount, got %v", v.Amount)
	}
}

func TestRazorpayVerifyCallback_Tampered(t *testing.T) {
	a := NewRazorpayAdapter("rzp_test_key", "rzp_test_secret")

	cb := Callback{
		ProviderRef: "order_N5Xk2x",
		PaymentRef:  "pay_N5Xm9q",
		Signature:   razorpaySignature("rzp_test_secret", "order_N5Xk2x", "pay_forged"),
	}
	if _, err := a.VerifyCallback(context.Background(), cb); !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("got %v, want ErrSignatureMismatch", err)
	}
}

func TestRazorpayVerifyCallback_WrongSecret(t *testing.T) {
	a := NewRazorpayAdapter("rzp_test_key", "rzp_test_secret")

	cb := Callback{
		ProviderRef: "order_N5Xk2x",
		PaymentRef:  "pay_N5Xm9q",
		Signature:   razorpaySignature("some_other_secret", "order_N5Xk2x", "pay_N5Xm9q"),
	}
	if _, err := a.VerifyCallback(context.Background(), cb); !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("got %v, want ErrSignatureMismatch", err)
	}
}

func TestRazorpayVerifyCallback_MissingFields(t *testing.T) {
	a := NewRazorpayAdapter("rzp_test_key", "rzp_test_secret")

	cases := []Callback{
		{PaymentRef: "pay_1", Signature: "sig"},
		{ProviderRef: "order_1", Signature: "sig"},
		{ProviderRef: "order_1", PaymentRef: "pay_1"},
	}
	for _, cb := range cases {
		if _, err := a.VerifyCallback(context.Background(), cb); !errors.Is(err, ErrVerificationFailed) {
			t.Errorf("%+v: got %v, want ErrVerificationFailed", cb, err)
		}
	}
}

func TestRazorpayAdapter_Metadata(t *testing.T) {
	a := NewRazorpayAdapter("rzp_test_key", "rzp_test_secret")
	if a.Provider() != ProviderRazorpay {
		t.Errorf("provider: got %s", a.Provider())
	}
	if a.KeyID() != "rzp_test_key" {
		t.Errorf("key id: got %s", a.KeyID())
	}
}

func TestManualAdapter(t *testing.T) {
	a := NewManualAdapter()
	ctx := context.Background()

	if a.Provider() != ProviderManual {
		t.Errorf("provider: got %s", a.Provider())
	}

	intent, err := a.CreateIntent(ctx, IntentRequest{
		OrderID:     uuid.New(),
		OrderNumber: "ORD-20260830-ABCD1234",
		Amount:      42.50,
		Currency:    "inr",
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if !strings.HasPrefix(intent.ProviderRef, "man_") {
		t.Errorf("provider ref: got %s", intent.ProviderRef)
	}
	if intent.Currency != "INR" {
		t.Errorf("currency not normalized: got %s", intent.Currency)
	}
	if intent.Amount != 42.50 {
		t.Errorf("amount: got %v", intent.Amount)
	}

	v, err := a.VerifyCallback(ctx, Callback{ProviderRef: intent.ProviderRef})
	if err != nil {
		t.Fatalf("manual callbacks always verify: %v", err)
	}
	if v.ProviderRef != intent.ProviderRef {
		t.Errorf("provider ref: got %s", v.ProviderRef)
	}
}
