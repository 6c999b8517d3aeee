package order

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
	// Update persists fulfillment status, workflow timestamps and notes.
	// Monetary fields are immutable after creation and are never written.
	Update(ctx context.Context, o *Order) error
	// UpdatePaymentStatus persists the derived payment status projection.
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error
	ListByStatus(ctx context.Context, status FulfillmentStatus, limit, offset int) ([]*Order, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Order, int, error)
	// ListPaymentPending returns orders whose payment status is PENDING or
	// PARTIALLY_PAID, excluding cancelled orders.
	ListPaymentPending(ctx context.Context, limit, offset int) ([]*Order, int, error)
	GetItems(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error)
}
