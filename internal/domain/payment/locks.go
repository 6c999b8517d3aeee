package payment

import (
	"sync"

	"github.com/google/uuid"
)

// orderLocks serializes ledger mutations per order so two concurrent
// attempts cannot both pass the balance check. Cross-order operations do
// not contend.
type orderLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the order's mutex and returns its unlock function.
func (l *orderLocks) Lock(orderID uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[orderID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[orderID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
