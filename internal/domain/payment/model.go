package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Method is the payment channel. Card, UPI and net-banking settle through a
// gateway; the rest are recorded manually at the counter.
type Method string

const (
	MethodCash       Method = "CASH"
	MethodCreditCard Method = "CREDIT_CARD"
	MethodDebitCard  Method = "DEBIT_CARD"
	MethodUPI        Method = "UPI"
	MethodNetBanking Method = "NET_BANKING"
	MethodCheque     Method = "CHEQUE"
	MethodWallet     Method = "WALLET"
	MethodOther      Method = "OTHER"
)

// ParseMethod normalizes a method string from a request payload.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodCash, MethodCreditCard, MethodDebitCard, MethodUPI,
		MethodNetBanking, MethodCheque, MethodWallet, MethodOther:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrInvalidMethod, s)
}

// Gateway reports whether the method requires an external provider round
// trip before it may be confirmed.
func (m Method) Gateway() bool {
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodUPI, MethodNetBanking:
		return true
	}
	return false
}

// Status is the lifecycle of one payment attempt.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// MethodAttributes carries the method-specific fields. Each method names
// its own required subset; Validate enforces it at the boundary instead of
// inferring intent from which optional fields happen to be present.
type MethodAttributes struct {
	CardLast4     *string    `db:"card_last4" json:"card_last4,omitempty"`
	ChequeNumber  *string    `db:"cheque_number" json:"cheque_number,omitempty"`
	ChequeDate    *time.Time `db:"cheque_date" json:"cheque_date,omitempty"`
	UPIID         *string    `db:"upi_id" json:"upi_id,omitempty"`
	BankName      *string    `db:"bank_name" json:"bank_name,omitempty"`
	TransactionID *string    `db:"transaction_id" json:"transaction_id,omitempty"`
}

// Validate checks the required attributes for the given method.
func (a MethodAttributes) Validate(m Method) error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidMethod, m, field)
	}
	switch m {
	case MethodCreditCard, MethodDebitCard:
		if a.CardLast4 == nil || len(*a.CardLast4) != 4 {
			return missing("card_last4 (4 digits)")
		}
	case MethodCheque:
		if a.ChequeNumber == nil || *a.ChequeNumber == "" {
			return missing("cheque_number")
		}
	case MethodUPI:
		if a.UPIID == nil || *a.UPIID == "" {
			return missing("upi_id")
		}
	case MethodNetBanking:
		if a.BankName == nil || *a.BankName == "" {
			return missing("bank_name")
		}
	}
	return nil
}

// Payment is one row of the append-only ledger for an order. Confirmed
// payments are immutable except for the refund fields.
type Payment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ReceiptNumber   *string   `db:"receipt_number" json:"receipt_number,omitempty"`
	OrderID         uuid.UUID `db:"order_id" json:"order_id"`
	Amount          float64   `db:"amount" json:"amount"`
	Method          Method    `db:"method" json:"method"`
	MethodAttributes
	Status         Status     `db:"status" json:"status"`
	RefundAmount   float64    `db:"refund_amount" json:"refund_amount"`
	RefundReason   *string    `db:"refund_reason" json:"refund_reason,omitempty"`
	RefundedAt     *time.Time `db:"refunded_at" json:"refunded_at,omitempty"`
	GatewayName    *string    `db:"gateway_name" json:"gateway_name,omitempty"`
	GatewayRef     *string    `db:"gateway_ref" json:"gateway_ref,omitempty"`
	FailureReason  *string    `db:"failure_reason" json:"failure_reason,omitempty"`
	CollectedBy    *string    `db:"collected_by" json:"collected_by,omitempty"`
	IdempotencyKey *string    `db:"idempotency_key" json:"idempotency_key,omitempty"`
	PaymentDate    *time.Time `db:"payment_date" json:"payment_date,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// NetAmount is the payment's effective contribution to the order balance.
func (p *Payment) NetAmount() float64 {
	switch p.Status {
	case StatusConfirmed, StatusRefunded:
		return p.Amount - p.RefundAmount
	}
	return 0
}

// NewReceiptNumber issues a unique receipt identifier. UUID-backed so a
// collision is not a practical concern; the DB unique index enforces the
// invariant regardless.
func NewReceiptNumber() string {
	return "RCP-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
