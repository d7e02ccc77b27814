package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/restopos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// BatchRepository defines the interface for batch persistence. The batch
// table is the ledger's single source of truth; every other view is derived
// from it.
type BatchRepository interface {
	// FindByID finds a batch by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// FindActiveByProduct returns the product's active batches in FIFO order:
	// received_at ascending, ties broken by id ascending. This ordering is
	// the contract the consumption engine depends on.
	FindActiveByProduct(ctx context.Context, productID uuid.UUID) ([]*Batch, error)

	// FindByProduct returns all batches for a product, active or not
	FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]*Batch, error)

	// FindExpiringSoon finds active batches expiring between now and the horizon
	FindExpiringSoon(ctx context.Context, horizon time.Duration) ([]*Batch, error)

	// FindExpired finds active batches whose expiry date has passed
	FindExpired(ctx context.Context) ([]*Batch, error)

	// Create persists a new batch
	Create(ctx context.Context, batch *Batch) error

	// Save updates a batch with optimistic version checking
	Save(ctx context.Context, batch *Batch) error

	// SaveAll updates multiple batches with optimistic version checking
	SaveAll(ctx context.Context, batches []*Batch) error

	// CountActiveByProduct counts a product's active batches
	CountActiveByProduct(ctx context.Context, productID uuid.UUID) (int64, error)

	// SumActiveQuantity sums remaining quantity over a product's active batches
	SumActiveQuantity(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
}

// ConsumptionRecordRepository defines the interface for the append-only audit
// trail. Records are created, never updated or deleted.
type ConsumptionRecordRepository interface {
	// FindByID finds a record with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*ConsumptionRecord, error)

	// FindByProduct returns a product's records, newest first
	FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]*ConsumptionRecord, error)

	// FindByDateRange returns records within [start, end)
	FindByDateRange(ctx context.Context, start, end time.Time, filter shared.Filter) ([]*ConsumptionRecord, error)

	// Create appends a record with its lines
	Create(ctx context.Context, record *ConsumptionRecord) error

	// SumConsumedByProduct sums total quantity consumed for a product
	SumConsumedByProduct(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)

	// SumCostByProductAndRange sums cost of goods for a product within [start, end)
	SumCostByProductAndRange(ctx context.Context, productID uuid.UUID, start, end time.Time) (decimal.Decimal, error)
}

// SummaryRepository persists the derived summary cache. Rows are only ever
// written by the projector inside the same transaction as the batch mutation
// they reflect.
type SummaryRepository interface {
	// FindByProduct finds the cached summary for a product
	FindByProduct(ctx context.Context, productID uuid.UUID) (*ProductSummary, error)

	// Upsert writes the recomputed summary
	Upsert(ctx context.Context, summary ProductSummary) error

	// ListNeedingAttention lists summaries that are low, out of stock,
	// expiring or expired, for the fast badge/listing path
	ListNeedingAttention(ctx context.Context, filter shared.Filter) ([]*ProductSummary, error)

	// Delete removes the cache row for a product
	Delete(ctx context.Context, productID uuid.UUID) error
}
