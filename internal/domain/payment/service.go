package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pharmacore/pharmacy/internal/domain/order"
)

// Service is the payment ledger for medicine orders. Balances are always
// recomputed from the ledger rows; the order's payment status is a
// projection the service rewrites after every mutation, never an
// independent source of truth.
//
// All mutations for one order are serialized twice over: a per-order
// in-process lock keeps local attempts from interleaving, and every
// mutation runs in a storage transaction that takes the order's row lock,
// so attempts reaching the database from elsewhere serialize as well.
type Service struct {
	payments Repository
	orders   order.Repository
	locks    *orderLocks
}

func NewService(payments Repository, orders order.Repository) *Service {
	return &Service{payments: payments, orders: orders, locks: newOrderLocks()}
}

// RecordRequest is the payload for recording a payment attempt.
type RecordRequest struct {
	OrderID        uuid.UUID `json:"order_id"`
	Amount         float64   `json:"amount"`
	Method         string    `json:"method"`
	MethodAttributes
	CollectedBy    *string `json:"collected_by,omitempty"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
}

// RecordPayment validates and records a payment attempt. Manual methods
// confirm immediately and receive a receipt number; gateway methods are
// recorded PENDING and confirmed only through reconciliation. An
// idempotency key makes manual recording safe against double submission:
// a replay returns the original payment.
func (s *Service) RecordPayment(ctx context.Context, req RecordRequest) (*Payment, error) {
	method, err := ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}
	if err := req.MethodAttributes.Validate(method); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	o, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	amount := order.RoundMoney(req.Amount)

	// A replayed idempotency key returns the original recording before any
	// balance math runs; the first submission may already have consumed the
	// whole balance.
	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		if prev, err := s.payments.GetByIdempotencyKey(ctx, o.ID, *req.IdempotencyKey); err == nil {
			return prev, nil
		}
	}

	// First check outside the lock so an attempt that could never succeed
	// is rejected without touching the ledger.
	balance, err := s.RemainingBalance(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if amount > balance {
		return nil, fmt.Errorf("%w: %.2f exceeds remaining balance %.2f", ErrInvalidAmount, amount, balance)
	}

	unlock := s.locks.Lock(o.ID)
	defer unlock()

	var p *Payment
	var attemptErr error
	err = s.payments.InTx(ctx, func(ctx context.Context) error {
		if err := s.payments.LockOrder(ctx, o.ID); err != nil {
			return err
		}
		// Re-check the key under the lock: two submissions may race past the
		// fast path above.
		if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
			if prev, err := s.payments.GetByIdempotencyKey(ctx, o.ID, *req.IdempotencyKey); err == nil {
				p = prev
				return nil
			}
		}

		p = &Payment{
			OrderID:          o.ID,
			Amount:           amount,
			Method:           method,
			MethodAttributes: req.MethodAttributes,
			CollectedBy:      req.CollectedBy,
			IdempotencyKey:   req.IdempotencyKey,
		}

		// Re-check under the lock: another attempt may have settled while
		// this one was validating. The FAILED row is kept for the audit
		// trail, so the rejection is surfaced outside the transaction.
		balance, err := s.remainingBalanceLocked(ctx, o)
		if err != nil {
			return err
		}
		if amount > balance {
			p.Status = StatusFailed
			reason := "overpayment: balance changed concurrently"
			p.FailureReason = &reason
			attemptErr = fmt.Errorf("%w: %.2f exceeds remaining balance %.2f", ErrOverpayment, amount, balance)
			return s.payments.Create(ctx, p)
		}

		if method.Gateway() {
			p.Status = StatusPending
		} else {
			now := time.Now().UTC()
			receipt := NewReceiptNumber()
			p.Status = StatusConfirmed
			p.ReceiptNumber = &receipt
			p.PaymentDate = &now
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return err
		}
		if p.Status == StatusConfirmed {
			return s.recomputeOrderStatus(ctx, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if attemptErr != nil {
		return nil, attemptErr
	}
	return p, nil
}

// CreatePending records a PENDING gateway attempt carrying the provider
// reference issued at intent creation. Called by the reconciliation
// service after the provider transaction exists.
func (s *Service) CreatePending(ctx context.Context, orderID uuid.UUID, amount float64, method Method, gatewayName, gatewayRef string) (*Payment, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	amount = order.RoundMoney(amount)
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	unlock := s.locks.Lock(o.ID)
	defer unlock()

	var p *Payment
	err = s.payments.InTx(ctx, func(ctx context.Context) error {
		if err := s.payments.LockOrder(ctx, o.ID); err != nil {
			return err
		}
		balance, err := s.remainingBalanceLocked(ctx, o)
		if err != nil {
			return err
		}
		if amount > balance {
			return fmt.Errorf("%w: %.2f exceeds remaining balance %.2f", ErrInvalidAmount, amount, balance)
		}
		p = &Payment{
			OrderID:     o.ID,
			Amount:      amount,
			Method:      method,
			Status:      StatusPending,
			GatewayName: &gatewayName,
			GatewayRef:  &gatewayRef,
		}
		return s.payments.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ConfirmByGatewayRef transitions the payment holding the provider
// reference to CONFIRMED. Replaying a reference already confirmed is an
// idempotent success returning the existing payment; the duplicate flag
// tells the caller no new settlement happened. A concurrent settlement
// that consumed the balance marks this attempt FAILED with ErrOverpayment.
// transactionID, when present, is the provider's payment id recorded for
// the audit trail.
func (s *Service) ConfirmByGatewayRef(ctx context.Context, ref string, transactionID *string) (p *Payment, duplicate bool, err error) {
	p, err = s.payments.GetByGatewayRef(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	o, err := s.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return nil, false, err
	}

	unlock := s.locks.Lock(o.ID)
	defer unlock()

	var attemptErr error
	err = s.payments.InTx(ctx, func(ctx context.Context) error {
		if err := s.payments.LockOrder(ctx, o.ID); err != nil {
			return err
		}
		// Re-read under the lock; a duplicate webhook may have raced us here.
		p, err = s.payments.GetByGatewayRef(ctx, ref)
		if err != nil {
			return err
		}
		switch p.Status {
		case StatusConfirmed, StatusRefunded:
			duplicate = true
			return nil
		case StatusFailed:
			attemptErr = fmt.Errorf("%w: %s", ErrAttemptFailed, ref)
			return nil
		}

		balance, err := s.remainingBalanceLocked(ctx, o)
		if err != nil {
			return err
		}
		if p.Amount > balance {
			reason := "overpayment: balance changed concurrently"
			p.Status = StatusFailed
			p.FailureReason = &reason
			attemptErr = fmt.Errorf("%w: %.2f exceeds remaining balance %.2f", ErrOverpayment, p.Amount, balance)
			return s.payments.Update(ctx, p)
		}

		now := time.Now().UTC()
		receipt := NewReceiptNumber()
		p.Status = StatusConfirmed
		p.ReceiptNumber = &receipt
		p.PaymentDate = &now
		if transactionID != nil && *transactionID != "" {
			p.TransactionID = transactionID
		}
		if err := s.payments.Update(ctx, p); err != nil {
			return err
		}
		return s.recomputeOrderStatus(ctx, o)
	})
	if err != nil {
		return nil, false, err
	}
	if attemptErr != nil {
		return nil, false, attemptErr
	}
	return p, duplicate, nil
}

// FailByGatewayRef marks a pending gateway attempt FAILED. Confirmed
// payments are left untouched: a late failure signal for a settled payment
// is a provider inconsistency to reconcile manually, not a state change.
func (s *Service) FailByGatewayRef(ctx context.Context, ref, reason string) (*Payment, error) {
	p, err := s.payments.GetByGatewayRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(p.OrderID)
	defer unlock()

	orderID := p.OrderID
	err = s.payments.InTx(ctx, func(ctx context.Context) error {
		if err := s.payments.LockOrder(ctx, orderID); err != nil {
			return err
		}
		var gerr error
		p, gerr = s.payments.GetByGatewayRef(ctx, ref)
		if gerr != nil {
			return gerr
		}
		if p.Status != StatusPending {
			return nil
		}
		p.Status = StatusFailed
		p.FailureReason = &reason
		return s.payments.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ConfirmManual confirms a PENDING payment without a gateway callback, for
// attempts settled out of band. The acting staff member is recorded.
func (s *Service) ConfirmManual(ctx context.Context, paymentID uuid.UUID, confirmedBy string) (*Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(o.ID)
	defer unlock()

	var attemptErr error
	err = s.payments.InTx(ctx, func(ctx context.Context) error {
		if err := s.payments.LockOrder(ctx, o.ID); err != nil {
			return err
		}
		var gerr error
		p, gerr = s.payments.GetByID(ctx, paymentID)
		if gerr != nil {
			return gerr
		}
		if p.Status == StatusConfirmed {
			return nil
		}
		if p.Status != StatusPending {
			attemptErr = fmt.Errorf("%w: payment is %s", ErrAttemptFailed, p.Status)
			return nil
		}
		balance, err := s.remainingBalanceLocked(ctx, o)
		if err != nil {
			return err
		}
		if p.Amount > balance {
			reason := "overpayment: balance changed concurrently"
			p.Status = StatusFailed
			p.FailureReason = &reason
			attemptErr = fmt.Errorf("%w: %.2f exceeds remaining balance %.2f", ErrOverpayment, p.Amount, balance)
			return s.payments.Update(ctx, p)
		}
		now := time.Now().UTC()
		receipt := NewReceiptNumber()
		p.Status = StatusConfirmed
		p.ReceiptNumber = &receipt
		p.PaymentDate = &now
		p.CollectedBy = &confirmedBy
		if err := s.payments.Update(ctx, p); err != nil {
			return err
		}
		return s.recomputeOrderStatus(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	if attemptErr != nil {
		return nil, attemptErr
	}
	return p, nil
}

// Refund reduces a confirmed payment's effective contribution and raises
// the order's remaining balance accordingly. Partial refunds accumulate;
// the payment becomes REFUNDED once fully refunded.
func (s *Service) Refund(ctx context.Context, paymentID uuid.UUID, amount float64, reason string) (*Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(o.ID)
	defer unlock()

	err = s.payments.InTx(ctx, func(ctx context.Context) error {
		if err := s.payments.LockOrder(ctx, o.ID); err != nil {
			return err
		}
		var gerr error
		p, gerr = s.payments.GetByID(ctx, paymentID)
		if gerr != nil {
			return gerr
		}
		if p.Status != StatusConfirmed && p.Status != StatusRefunded {
			return fmt.Errorf("%w: status is %s", ErrNotRefundable, p.Status)
		}
		amount = order.RoundMoney(amount)
		refundable := order.RoundMoney(p.Amount - p.RefundAmount)
		if amount <= 0 || amount > refundable {
			return fmt.Errorf("%w: refund %.2f exceeds refundable %.2f", ErrInvalidAmount, amount, refundable)
		}
		now := time.Now().UTC()
		p.RefundAmount = order.RoundMoney(p.RefundAmount + amount)
		p.RefundReason = &reason
		p.RefundedAt = &now
		if p.RefundAmount >= p.Amount {
			p.Status = StatusRefunded
		}
		if err := s.payments.Update(ctx, p); err != nil {
			return err
		}
		return s.recomputeOrderStatus(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *Service) GetByGatewayRef(ctx context.Context, ref string) (*Payment, error) {
	return s.payments.GetByGatewayRef(ctx, ref)
}

func (s *Service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Payment, error) {
	return s.payments.ListByOrder(ctx, orderID)
}

// TotalPaid is the sum of confirmed amounts net of refunds.
func (s *Service) TotalPaid(ctx context.Context, orderID uuid.UUID) (float64, error) {
	net, _, err := s.NetPaid(ctx, orderID)
	return net, err
}

// RemainingBalance is finalAmount minus the net confirmed sum, recomputed
// from the ledger on every call.
func (s *Service) RemainingBalance(ctx context.Context, orderID uuid.UUID) (float64, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return s.remainingBalanceLocked(ctx, o)
}

func (s *Service) remainingBalanceLocked(ctx context.Context, o *order.Order) (float64, error) {
	net, _, err := s.NetPaid(ctx, o.ID)
	if err != nil {
		return 0, err
	}
	return order.RoundMoney(o.FinalAmount - net), nil
}

// NetPaid sums the effective ledger contributions for the order. Part of
// the order.Ledger contract.
func (s *Service) NetPaid(ctx context.Context, orderID uuid.UUID) (float64, bool, error) {
	payments, err := s.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return 0, false, err
	}
	var net float64
	var hadRefund bool
	for _, p := range payments {
		net += p.NetAmount()
		if p.RefundAmount > 0 {
			hadRefund = true
		}
	}
	return order.RoundMoney(net), hadRefund, nil
}

// SettleRemainder records a CONFIRMED cash payment for the order's whole
// remaining balance, attributed to the acting staff member. Part of the
// order.Ledger contract behind the manual mark-paid action.
func (s *Service) SettleRemainder(ctx context.Context, orderID uuid.UUID, collectedBy string) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(o.ID)
	defer unlock()

	return s.payments.InTx(ctx, func(ctx context.Context) error {
		if err := s.payments.LockOrder(ctx, o.ID); err != nil {
			return err
		}
		balance, err := s.remainingBalanceLocked(ctx, o)
		if err != nil {
			return err
		}
		if balance <= 0 {
			return nil
		}
		now := time.Now().UTC()
		receipt := NewReceiptNumber()
		p := &Payment{
			OrderID:       o.ID,
			Amount:        balance,
			Method:        MethodCash,
			Status:        StatusConfirmed,
			ReceiptNumber: &receipt,
			PaymentDate:   &now,
		}
		if collectedBy != "" {
			p.CollectedBy = &collectedBy
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return err
		}
		return s.recomputeOrderStatus(ctx, o)
	})
}

// recomputeOrderStatus projects the ledger onto the order's payment
// status. Must be called with the order lock held.
func (s *Service) recomputeOrderStatus(ctx context.Context, o *order.Order) error {
	net, hadRefund, err := s.NetPaid(ctx, o.ID)
	if err != nil {
		return err
	}
	status := order.DerivePaymentStatus(net, o.FinalAmount, hadRefund)
	if status == o.PaymentStatus {
		return nil
	}
	o.PaymentStatus = status
	return s.orders.UpdatePaymentStatus(ctx, o.ID, status)
}
