package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductLocker serializes mutations per product. Consumption plans are made
// against a snapshot of the batch set, so two writers on the same product
// must never interleave between plan and apply. The default implementation is
// an in-process keyed mutex; deployments with several POS nodes swap in the
// Redis-backed locker.
type ProductLocker interface {
	// Acquire blocks until the product's lock is held or the wait budget is
	// exhausted. On success the returned release function must be called.
	Acquire(ctx context.Context, productID uuid.UUID) (release func(), err error)
}

// ProductCatalog is the ledger's view of the product master data. The catalog
// owns product existence and the reorder threshold; the ledger only reads
// them.
type ProductCatalog interface {
	// Exists reports whether the product is known to the catalog
	Exists(ctx context.Context, productID uuid.UUID) (bool, error)
	// MinQuantity returns the product's reorder threshold
	MinQuantity(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
}

// StaticCatalog is a ProductCatalog backed by an in-memory map, used when no
// external catalog service is wired. Unknown products fall back to the
// default threshold and are treated as existing.
type StaticCatalog struct {
	thresholds map[uuid.UUID]decimal.Decimal
	defaultMin decimal.Decimal
}

// NewStaticCatalog creates a StaticCatalog with the given default threshold.
func NewStaticCatalog(defaultMin decimal.Decimal) *StaticCatalog {
	return &StaticCatalog{
		thresholds: make(map[uuid.UUID]decimal.Decimal),
		defaultMin: defaultMin,
	}
}

// SetThreshold registers a per-product reorder threshold.
func (c *StaticCatalog) SetThreshold(productID uuid.UUID, min decimal.Decimal) {
	c.thresholds[productID] = min
}

// Exists always reports true; a static catalog has no product master to check.
func (c *StaticCatalog) Exists(_ context.Context, _ uuid.UUID) (bool, error) {
	return true, nil
}

// MinQuantity returns the registered threshold or the default.
func (c *StaticCatalog) MinQuantity(_ context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	if min, ok := c.thresholds[productID]; ok {
		return min, nil
	}
	return c.defaultMin, nil
}

var _ ProductCatalog = (*StaticCatalog)(nil)

// Metrics receives operational measurements from the service. The telemetry
// package provides the OpenTelemetry-backed implementation; NoOpMetrics is
// used in tests.
type Metrics interface {
	// RecordReceive records a receiving event
	RecordReceive(ctx context.Context, quantity, cost decimal.Decimal)
	// RecordConsumption records a successful consumption
	RecordConsumption(ctx context.Context, reason string, quantity, cost decimal.Decimal)
	// RecordInsufficientStock counts rejected consumption attempts
	RecordInsufficientStock(ctx context.Context)
	// RecordLockWait records how long a mutation waited for its product lock
	RecordLockWait(ctx context.Context, wait time.Duration)
}

// NoOpMetrics discards all measurements.
type NoOpMetrics struct{}

// RecordReceive does nothing.
func (NoOpMetrics) RecordReceive(context.Context, decimal.Decimal, decimal.Decimal) {}

// RecordConsumption does nothing.
func (NoOpMetrics) RecordConsumption(context.Context, string, decimal.Decimal, decimal.Decimal) {}

// RecordInsufficientStock does nothing.
func (NoOpMetrics) RecordInsufficientStock(context.Context) {}

// RecordLockWait does nothing.
func (NoOpMetrics) RecordLockWait(context.Context, time.Duration) {}

var _ Metrics = NoOpMetrics{}
