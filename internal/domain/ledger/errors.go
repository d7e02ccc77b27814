package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InsufficientStockError is returned when a consumption request exceeds the
// total active stock of a product. The operation that produced it committed
// nothing; the caller decides whether to retry, partially fulfill by policy,
// or surface the shortfall.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested decimal.Decimal
	Available decimal.Decimal
	Shortfall decimal.Decimal
}

// Error implements the error interface
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %s, available %s (shortfall %s)",
		e.ProductID, e.Requested, e.Available, e.Shortfall)
}

// NewInsufficientStockError creates an InsufficientStockError
func NewInsufficientStockError(productID uuid.UUID, requested, available decimal.Decimal) *InsufficientStockError {
	return &InsufficientStockError{
		ProductID: productID,
		Requested: requested,
		Available: available,
		Shortfall: requested.Sub(available),
	}
}

// ExpiredBatchError is returned when a receiving attempt carries an expiry
// date already in the past. Expired stock can never enter the ledger.
type ExpiredBatchError struct {
	ProductID  uuid.UUID
	ExpiryDate time.Time
}

// Error implements the error interface
func (e *ExpiredBatchError) Error() string {
	return fmt.Sprintf("cannot receive expired stock for product %s: expiry date %s is in the past",
		e.ProductID, e.ExpiryDate.Format("2006-01-02"))
}

// NewExpiredBatchError creates an ExpiredBatchError
func NewExpiredBatchError(productID uuid.UUID, expiryDate time.Time) *ExpiredBatchError {
	return &ExpiredBatchError{ProductID: productID, ExpiryDate: expiryDate}
}

// HasActiveBatchesError is returned when a product removal is attempted while
// active batches remain and force is not set.
type HasActiveBatchesError struct {
	ProductID   uuid.UUID
	ActiveCount int64
}

// Error implements the error interface
func (e *HasActiveBatchesError) Error() string {
	return fmt.Sprintf("product %s still has %d active batches; retire them or force removal",
		e.ProductID, e.ActiveCount)
}

// NewHasActiveBatchesError creates a HasActiveBatchesError
func NewHasActiveBatchesError(productID uuid.UUID, activeCount int64) *HasActiveBatchesError {
	return &HasActiveBatchesError{ProductID: productID, ActiveCount: activeCount}
}

// LockTimeoutError is returned when the per-product lock cannot be acquired
// within the configured wait. It is transient; callers retry with backoff.
type LockTimeoutError struct {
	ProductID uuid.UUID
	Waited    time.Duration
}

// Error implements the error interface
func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for product %s lock", e.Waited, e.ProductID)
}

// NewLockTimeoutError creates a LockTimeoutError
func NewLockTimeoutError(productID uuid.UUID, waited time.Duration) *LockTimeoutError {
	return &LockTimeoutError{ProductID: productID, Waited: waited}
}
