// Package reconcile orchestrates gateway callbacks against the payment
// ledger. It is the only component that moves a gateway payment from
// PENDING to CONFIRMED or FAILED.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pharmacore/pharmacy/internal/domain/order"
	"github.com/pharmacore/pharmacy/internal/domain/payment"
	"github.com/pharmacore/pharmacy/internal/platform/gateway"
)

type Service struct {
	orders   order.Repository
	ledger   *payment.Service
	stripe   gateway.Adapter
	razorpay gateway.Adapter
	currency string
	log      zerolog.Logger
}

func NewService(orders order.Repository, ledger *payment.Service, stripe, razorpay gateway.Adapter, currency string, log zerolog.Logger) *Service {
	return &Service{
		orders:   orders,
		ledger:   ledger,
		stripe:   stripe,
		razorpay: razorpay,
		currency: currency,
		log:      log.With().Str("component", "reconcile").Logger(),
	}
}

// CreateStripeIntent opens a Stripe PaymentIntent for the order and records
// the PENDING attempt. A zero amount requests the whole remaining balance.
func (s *Service) CreateStripeIntent(ctx context.Context, orderID uuid.UUID, amount float64) (*gateway.Intent, error) {
	return s.createIntent(ctx, s.stripe, payment.MethodCreditCard, orderID, amount)
}

// CreateRazorpayOrder opens a Razorpay order for the order and records the
// PENDING attempt.
func (s *Service) CreateRazorpayOrder(ctx context.Context, orderID uuid.UUID, amount float64) (*gateway.Intent, error) {
	return s.createIntent(ctx, s.razorpay, payment.MethodUPI, orderID, amount)
}

func (s *Service) createIntent(ctx context.Context, adapter gateway.Adapter, method payment.Method, orderID uuid.UUID, amount float64) (*gateway.Intent, error) {
	if adapter == nil {
		return nil, fmt.Errorf("%w: gateway not configured", gateway.ErrGatewayUnavailable)
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.FulfillmentStatus == order.StatusCancelled {
		return nil, fmt.Errorf("%w: order %s is cancelled", order.ErrInvalidTransition, o.OrderNumber)
	}
	balance, err := s.ledger.RemainingBalance(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		amount = balance
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: order %s has no outstanding balance", payment.ErrInvalidAmount, o.OrderNumber)
	}
	if amount > balance {
		return nil, fmt.Errorf("%w: %.2f exceeds remaining balance %.2f", payment.ErrInvalidAmount, amount, balance)
	}

	intent, err := adapter.CreateIntent(ctx, gateway.IntentRequest{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Amount:      amount,
		Currency:    s.currency,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("provider", adapter.Provider()).Str("order", o.OrderNumber).
			Msg("intent creation failed")
		return nil, err
	}
	if _, err := s.ledger.CreatePending(ctx, o.ID, intent.Amount, method, adapter.Provider(), intent.ProviderRef); err != nil {
		// The abandoned provider transaction expires on its own; nothing
		// local references it.
		return nil, err
	}
	s.log.Info().Str("provider", adapter.Provider()).Str("provider_ref", intent.ProviderRef).
		Str("order", o.OrderNumber).Float64("amount", intent.Amount).Msg("intent created")
	return intent, nil
}

// ConfirmStripe settles a Stripe attempt. The client-reported success is
// only a hint: the adapter re-fetches the intent from Stripe and the
// attempt is confirmed solely on the provider's answer.
func (s *Service) ConfirmStripe(ctx context.Context, providerRef string, transactionID *string) (*payment.Payment, error) {
	if s.stripe == nil {
		return nil, fmt.Errorf("%w: gateway not configured", gateway.ErrGatewayUnavailable)
	}
	v, err := s.stripe.VerifyCallback(ctx, gateway.Callback{ProviderRef: providerRef})
	if err != nil {
		return nil, s.failVerification(ctx, providerRef, err)
	}
	p, err := s.ledger.GetByGatewayRef(ctx, providerRef)
	if err != nil {
		return nil, err
	}
	if v.Amount > 0 && order.RoundMoney(v.Amount) != p.Amount {
		mismatch := fmt.Errorf("%w: provider settled %.2f, attempt recorded %.2f",
			gateway.ErrVerificationFailed, v.Amount, p.Amount)
		return nil, s.failVerification(ctx, providerRef, mismatch)
	}
	return s.confirm(ctx, s.stripe.Provider(), providerRef, transactionID)
}

// VerifyRazorpay settles a Razorpay attempt after checking the checkout
// signature. A tampered signature fails the attempt permanently.
func (s *Service) VerifyRazorpay(ctx context.Context, razorpayOrderID, razorpayPaymentID, signature string) (*payment.Payment, error) {
	if s.razorpay == nil {
		return nil, fmt.Errorf("%w: gateway not configured", gateway.ErrGatewayUnavailable)
	}
	_, err := s.razorpay.VerifyCallback(ctx, gateway.Callback{
		ProviderRef: razorpayOrderID,
		PaymentRef:  razorpayPaymentID,
		Signature:   signature,
	})
	if err != nil {
		return nil, s.failVerification(ctx, razorpayOrderID, err)
	}
	return s.confirm(ctx, s.razorpay.Provider(), razorpayOrderID, &razorpayPaymentID)
}

func (s *Service) confirm(ctx context.Context, provider, providerRef string, transactionID *string) (*payment.Payment, error) {
	p, duplicate, err := s.ledger.ConfirmByGatewayRef(ctx, providerRef, transactionID)
	if err != nil {
		s.log.Error().Err(err).Str("provider", provider).Str("provider_ref", providerRef).
			Msg("confirmation rejected")
		return nil, err
	}
	evt := s.log.Info().Str("provider", provider).Str("provider_ref", providerRef).
		Str("order_id", p.OrderID.String()).Float64("amount", p.Amount)
	if duplicate {
		evt.Msg("duplicate callback replayed; already confirmed")
	} else {
		evt.Str("receipt", deref(p.ReceiptNumber)).Msg("payment confirmed")
	}
	return p, nil
}

// failVerification marks the attempt FAILED for hard verification
// failures. Gateway unavailability leaves the attempt pending so the
// caller can retry verification later.
func (s *Service) failVerification(ctx context.Context, providerRef string, verr error) error {
	if errors.Is(verr, gateway.ErrGatewayUnavailable) {
		s.log.Warn().Err(verr).Str("provider_ref", providerRef).Msg("verification unavailable")
		return verr
	}
	if _, err := s.ledger.FailByGatewayRef(ctx, providerRef, verr.Error()); err != nil && !errors.Is(err, payment.ErrNotFound) {
		s.log.Error().Err(err).Str("provider_ref", providerRef).Msg("failed to record verification failure")
	}
	s.log.Warn().Err(verr).Str("provider_ref", providerRef).Msg("verification failed")
	return verr
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
