package order

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FulfillmentStatus is the pharmacy-workflow state of an order. It is
// independent of how much of the order has been paid.
type FulfillmentStatus string

const (
	StatusPending        FulfillmentStatus = "PENDING"
	StatusConfirmed      FulfillmentStatus = "CONFIRMED"
	StatusProcessing     FulfillmentStatus = "PROCESSING"
	StatusReadyForPickup FulfillmentStatus = "READY_FOR_PICKUP"
	StatusDelivered      FulfillmentStatus = "DELIVERED"
	StatusCancelled      FulfillmentStatus = "CANCELLED"
)

// statusRank orders the forward path. Terminal states carry no rank.
var statusRank = map[FulfillmentStatus]int{
	StatusPending:        0,
	StatusConfirmed:      1,
	StatusProcessing:     2,
	StatusReadyForPickup: 3,
	StatusDelivered:      4,
}

// ParseFulfillmentStatus normalizes a status string from a request path or
// query parameter.
func ParseFulfillmentStatus(s string) (FulfillmentStatus, error) {
	st := FulfillmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusReadyForPickup, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
}

// Terminal reports whether no further fulfillment transition is legal.
func (s FulfillmentStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether target is a legal next state. Only the
// single forward step and cancellation of any non-terminal state are
// legal; skipping ahead or moving backward is not. A transition to the
// current state is handled by callers as an idempotent no-op, not here.
func (s FulfillmentStatus) CanTransitionTo(target FulfillmentStatus) bool {
	if s.Terminal() {
		return false
	}
	if target == StatusCancelled {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[target]
	if !ok {
		return false
	}
	return to == from+1
}

// PaymentStatus is a pure projection over the order's payment ledger; it is
// never set independently of the ledger.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "PENDING"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentPaid          PaymentStatus = "PAID"
	PaymentRefunded      PaymentStatus = "REFUNDED"
)

// DerivePaymentStatus computes the payment status from the net confirmed
// amount on the ledger. hadRefund distinguishes a never-paid order from one
// whose payments were fully refunded.
func DerivePaymentStatus(netPaid, finalAmount float64, hadRefund bool) PaymentStatus {
	netPaid = RoundMoney(netPaid)
	switch {
	case netPaid <= 0 && hadRefund:
		return PaymentRefunded
	case netPaid <= 0:
		return PaymentPending
	case netPaid < RoundMoney(finalAmount):
		return PaymentPartiallyPaid
	default:
		return PaymentPaid
	}
}

// RoundMoney rounds a monetary amount to two decimal places, halves away
// from zero. Ledger sums go through this so float accumulation never leaks
// into balance comparisons.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// Order maps to the medicine_orders table.
type Order struct {
	ID                uuid.UUID         `db:"id" json:"id"`
	OrderNumber       string            `db:"order_number" json:"order_number"`
	PatientID         uuid.UUID         `db:"patient_id" json:"patient_id"`
	Items             []*OrderItem      `db:"-" json:"items,omitempty"`
	TotalAmount       float64           `db:"total_amount" json:"total_amount"`
	DiscountAmount    float64           `db:"discount_amount" json:"discount_amount"`
	FinalAmount       float64           `db:"final_amount" json:"final_amount"`
	FulfillmentStatus FulfillmentStatus `db:"fulfillment_status" json:"fulfillment_status"`
	PaymentStatus     PaymentStatus     `db:"payment_status" json:"payment_status"`
	Notes             *string           `db:"notes" json:"notes,omitempty"`
	OrderedAt         time.Time         `db:"ordered_at" json:"ordered_at"`
	ProcessedAt       *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
	DeliveredAt       *time.Time        `db:"delivered_at" json:"delivered_at,omitempty"`
	CancelledAt       *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// OrderItem maps to the medicine_order_items table.
type OrderItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrderID        uuid.UUID `db:"order_id" json:"order_id"`
	MedicationID   uuid.UUID `db:"medication_id" json:"medication_id"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	Quantity       int       `db:"quantity" json:"quantity"`
	UnitPrice      float64   `db:"unit_price" json:"unit_price"`
	Dosage         *string   `db:"dosage" json:"dosage,omitempty"`
	Frequency      *string   `db:"frequency" json:"frequency,omitempty"`
	Duration       *string   `db:"duration" json:"duration,omitempty"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty"`
}

// LineTotal is quantity times unit price, rounded.
func (it *OrderItem) LineTotal() float64 {
	return RoundMoney(float64(it.Quantity) * it.UnitPrice)
}

// NewOrderNumber generates a human-readable unique order number.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
