package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/restopos/backend/internal/domain/ledger"
)

// KeyedMutex serializes mutations per product within one process. Each
// product gets a one-slot channel semaphore so acquisition can race against
// the wait budget and context cancellation.
type KeyedMutex struct {
	mu          sync.Mutex
	semaphores  map[uuid.UUID]chan struct{}
	waitTimeout time.Duration
}

// NewKeyedMutex creates a KeyedMutex with the given wait timeout
func NewKeyedMutex(waitTimeout time.Duration) *KeyedMutex {
	if waitTimeout <= 0 {
		waitTimeout = 5 * time.Second
	}
	return &KeyedMutex{
		semaphores:  make(map[uuid.UUID]chan struct{}),
		waitTimeout: waitTimeout,
	}
}

// Acquire blocks until the product's lock is held, the wait budget runs out,
// or the context is cancelled. Timeouts surface as LockTimeoutError so
// callers know the failure is transient.
func (m *KeyedMutex) Acquire(ctx context.Context, productID uuid.UUID) (func(), error) {
	sem := m.semaphore(productID)

	timer := time.NewTimer(m.waitTimeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-sem })
		}, nil
	case <-timer.C:
		return nil, ledger.NewLockTimeoutError(productID, m.waitTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) semaphore(productID uuid.UUID) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	sem, ok := m.semaphores[productID]
	if !ok {
		sem = make(chan struct{}, 1)
		m.semaphores[productID] = sem
	}
	return sem
}
