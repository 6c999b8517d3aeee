package payment

import "errors"

var (
	// ErrNotFound is returned when a payment does not exist.
	ErrNotFound = errors.New("payment not found")

	// ErrInvalidAmount rejects a non-positive amount, or one exceeding the
	// order's remaining balance (or the refundable amount, for refunds).
	// Nothing is written to the ledger.
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrInvalidMethod rejects an unknown method or missing method
	// attributes.
	ErrInvalidMethod = errors.New("invalid payment method")

	// ErrOverpayment marks an attempt that passed the initial balance check
	// but lost the race: by the time it held the order lock, another payment
	// had settled and the balance no longer covers it. The attempt is
	// recorded as FAILED; the caller re-reads the balance and retries.
	ErrOverpayment = errors.New("payment would exceed remaining balance")

	// ErrNotRefundable is returned when refunding a payment that was never
	// confirmed.
	ErrNotRefundable = errors.New("payment is not refundable")

	// ErrAttemptFailed is returned when confirming an attempt that already
	// failed verification. A failed attempt stays failed; the payer starts
	// a new one.
	ErrAttemptFailed = errors.New("payment attempt already failed")
)
