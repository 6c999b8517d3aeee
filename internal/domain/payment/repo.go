package payment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	// GetByGatewayRef finds the payment holding a provider reference; the
	// reference is unique across the ledger and is the reconciliation
	// idempotency key.
	GetByGatewayRef(ctx context.Context, ref string) (*Payment, error)
	// GetByIdempotencyKey finds an earlier manual recording with the same
	// caller-supplied key for the order, if any.
	GetByIdempotencyKey(ctx context.Context, orderID uuid.UUID, key string) (*Payment, error)
	// Update persists status, receipt, refund and failure fields. Amount,
	// order and method are append-only and never rewritten.
	Update(ctx context.Context, p *Payment) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Payment, error)
	// InTx runs fn inside one storage transaction; reads and writes made
	// through the context within fn commit or roll back together.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	// LockOrder takes the order row's write lock for the duration of the
	// surrounding transaction, serializing ledger mutations for the order
	// across server instances.
	LockOrder(ctx context.Context, orderID uuid.UUID) error
}
