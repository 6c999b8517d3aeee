package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger is the narrow view of the payment ledger the fulfillment side
// needs: the net confirmed amount for the cancellation guard, and the
// settle-remainder shortcut behind the manual "pay" action. Implemented by
// the payment service; wired in main to avoid an import cycle.
type Ledger interface {
	NetPaid(ctx context.Context, orderID uuid.UUID) (net float64, hadRefund bool, err error)
	SettleRemainder(ctx context.Context, orderID uuid.UUID, collectedBy string) error
}

type Service struct {
	orders Repository
	ledger Ledger
}

func NewService(orders Repository) *Service {
	return &Service{orders: orders}
}

// SetLedger attaches the payment ledger. Until it is attached the
// cancellation payment guard and MarkPaid are unavailable.
func (s *Service) SetLedger(l Ledger) { s.ledger = l }

// CreateRequest is the order placement payload.
type CreateRequest struct {
	PatientID      uuid.UUID     `json:"patient_id"`
	Items          []ItemRequest `json:"items"`
	DiscountAmount float64       `json:"discount_amount"`
	Notes          *string       `json:"notes,omitempty"`
}

type ItemRequest struct {
	MedicationID   uuid.UUID `json:"medication_id"`
	MedicationName string    `json:"medication_name"`
	Quantity       int       `json:"quantity"`
	UnitPrice      float64   `json:"unit_price"`
	Dosage         *string   `json:"dosage,omitempty"`
	Frequency      *string   `json:"frequency,omitempty"`
	Duration       *string   `json:"duration,omitempty"`
	Instructions   *string   `json:"instructions,omitempty"`
}

// Create validates the request, computes the immutable monetary fields and
// persists the order in PENDING with an unpaid ledger projection.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidOrder)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}
	if req.DiscountAmount < 0 {
		return nil, fmt.Errorf("%w: discount_amount must not be negative", ErrInvalidOrder)
	}

	now := time.Now().UTC()
	o := &Order{
		OrderNumber:       NewOrderNumber(now),
		PatientID:         req.PatientID,
		DiscountAmount:    RoundMoney(req.DiscountAmount),
		FulfillmentStatus: StatusPending,
		PaymentStatus:     PaymentPending,
		Notes:             req.Notes,
		OrderedAt:         now,
	}
	for _, ir := range req.Items {
		if ir.MedicationID == uuid.Nil {
			return nil, fmt.Errorf("%w: item medication_id is required", ErrInvalidOrder)
		}
		if ir.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be positive", ErrInvalidOrder)
		}
		if ir.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: item unit_price must not be negative", ErrInvalidOrder)
		}
		o.Items = append(o.Items, &OrderItem{
			MedicationID:   ir.MedicationID,
			MedicationName: ir.MedicationName,
			Quantity:       ir.Quantity,
			UnitPrice:      ir.UnitPrice,
			Dosage:         ir.Dosage,
			Frequency:      ir.Frequency,
			Duration:       ir.Duration,
			Instructions:   ir.Instructions,
		})
	}
	for _, it := range o.Items {
		o.TotalAmount = RoundMoney(o.TotalAmount + it.LineTotal())
	}
	if o.DiscountAmount > o.TotalAmount {
		return nil, fmt.Errorf("%w: discount exceeds order total", ErrInvalidOrder)
	}
	o.FinalAmount = RoundMoney(o.TotalAmount - o.DiscountAmount)

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return s.orders.GetByNumber(ctx, orderNumber)
}

func (s *Service) ListByStatus(ctx context.Context, status FulfillmentStatus, limit, offset int) ([]*Order, int, error) {
	return s.orders.ListByStatus(ctx, status, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Order, int, error) {
	return s.orders.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListPaymentPending(ctx context.Context, limit, offset int) ([]*Order, int, error) {
	return s.orders.ListPaymentPending(ctx, limit, offset)
}

// Confirm moves PENDING to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.transition(ctx, id, StatusConfirmed)
}

// Process moves CONFIRMED to PROCESSING and stamps processed_at.
func (s *Service) Process(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.transition(ctx, id, StatusProcessing)
}

// MarkReady moves PROCESSING to READY_FOR_PICKUP.
func (s *Service) MarkReady(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.transition(ctx, id, StatusReadyForPickup)
}

// Deliver moves READY_FOR_PICKUP to DELIVERED and stamps delivered_at.
func (s *Service) Deliver(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.transition(ctx, id, StatusDelivered)
}

// Cancel moves any non-terminal state to CANCELLED. An order whose net
// confirmed payments cover the final amount cannot be cancelled until the
// payments are refunded.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.transition(ctx, id, StatusCancelled)
}

// SetStatus applies a direct status change. Only forward transitions and
// cancellation are legal; re-issuing the current status is a no-op success
// so retried requests do not fail.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, target FulfillmentStatus) (*Order, error) {
	return s.transition(ctx, id, target)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target FulfillmentStatus) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.FulfillmentStatus == target {
		// Retried request; already there.
		return o, nil
	}
	if !o.FulfillmentStatus.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.FulfillmentStatus, target)
	}
	if target == StatusCancelled && s.ledger != nil {
		net, _, err := s.ledger.NetPaid(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if RoundMoney(net) >= o.FinalAmount && o.FinalAmount > 0 {
			return nil, ErrRefundRequired
		}
	}

	now := time.Now().UTC()
	o.FulfillmentStatus = target
	switch target {
	case StatusProcessing:
		o.ProcessedAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// MarkPaid settles the order's remaining balance with a manual CASH ledger
// entry recorded against the acting staff member. The paid state is still
// derived from the ledger; this never flips a flag directly.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, collectedBy string) (*Order, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("payment ledger not configured")
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.FulfillmentStatus == StatusCancelled {
		return nil, fmt.Errorf("%w: cannot pay a cancelled order", ErrInvalidTransition)
	}
	if err := s.ledger.SettleRemainder(ctx, o.ID, collectedBy); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, id)
}
