package order

import "errors"

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrInvalidTransition is returned for an illegal fulfillment status
	// change (backward move, transition out of a terminal state, or an
	// unknown status).
	ErrInvalidTransition = errors.New("invalid fulfillment transition")

	// ErrRefundRequired blocks cancellation of an order whose confirmed
	// payments cover the full amount. The payments must be refunded first.
	ErrRefundRequired = errors.New("order is fully paid; refund payments before cancelling")

	// ErrInvalidOrder is returned when an order fails creation validation.
	ErrInvalidOrder = errors.New("invalid order")
)
