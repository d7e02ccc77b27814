package ledger

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"github.com/restopos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Batch represents one receiving event for one product. It is the aggregate
// root of the ledger: summaries and statuses are always derived from the
// batch set, never edited directly.
type Batch struct {
	shared.BaseAggregateRoot
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_batches_product_received,priority:1"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Remaining units
	OriginalQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Units received, immutable
	UnitCost         decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Cost per unit at receipt, immutable
	ExpiryDate       *time.Time      // Nil means the batch never expires
	ReceivedAt       time.Time       `gorm:"type:timestamptz;not null;index:idx_batches_product_received,priority:2"`
	Supplier         string          `gorm:"type:varchar(100)"`
	Notes            string          `gorm:"type:varchar(255)"`
	Active           bool            `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (Batch) TableName() string {
	return "batches"
}

// NewBatch creates a new batch for a receiving event.
// Receiving already-expired stock is rejected outright.
func NewBatch(
	productID uuid.UUID,
	quantity decimal.Decimal,
	unitCost decimal.Decimal,
	expiryDate *time.Time,
	supplier, notes string,
) (*Batch, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Unit cost cannot be negative")
	}
	now := time.Now()
	if expiryDate != nil && expiryDate.Before(startOfDay(now)) {
		return nil, NewExpiredBatchError(productID, *expiryDate)
	}

	batch := &Batch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         productID,
		Quantity:          quantity,
		OriginalQuantity:  quantity,
		UnitCost:          unitCost.Round(4),
		ExpiryDate:        expiryDate,
		ReceivedAt:        now,
		Supplier:          supplier,
		Notes:             notes,
		Active:            true,
	}
	batch.AddDomainEvent(NewBatchReceivedEvent(batch))
	return batch, nil
}

// IsExpired returns true if the batch has an expiry date in the past
func (b *Batch) IsExpired(now time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.Before(now)
}

// ExpiresWithin returns true if the batch expires between now and the horizon
func (b *Batch) ExpiresWithin(now time.Time, horizon time.Duration) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return !b.ExpiryDate.Before(now) && b.ExpiryDate.Before(now.Add(horizon))
}

// Deduct removes quantity from the batch. The batch never clamps: asking for
// more than remains is a caller defect and is surfaced as an error. A batch
// that reaches zero is deactivated in the same step.
func (b *Batch) Deduct(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Deduction quantity must be positive")
	}
	if !b.Active {
		return shared.NewDomainError("BATCH_INACTIVE", "Cannot deduct from an inactive batch")
	}
	if quantity.GreaterThan(b.Quantity) {
		return shared.NewDomainError("OVERDRAW", "Deduction exceeds remaining batch quantity")
	}

	b.Quantity = b.Quantity.Sub(quantity)
	if b.Quantity.IsZero() {
		b.Active = false
	}
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// Retire marks the batch inactive regardless of remaining quantity.
// Used for write-offs; the row is kept for audit.
func (b *Batch) Retire() {
	if !b.Active {
		return
	}
	b.Active = false
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	b.AddDomainEvent(NewBatchRetiredEvent(b))
}

// ConsumedQuantity returns how many units have left this batch
func (b *Batch) ConsumedQuantity() decimal.Decimal {
	return b.OriginalQuantity.Sub(b.Quantity)
}

// PercentConsumed returns the consumed share of the original quantity (0-100)
func (b *Batch) PercentConsumed() decimal.Decimal {
	if b.OriginalQuantity.IsZero() {
		return decimal.Zero
	}
	return b.ConsumedQuantity().Div(b.OriginalQuantity).Mul(decimal.NewFromInt(100)).Round(2)
}

// RemainingValue returns the value of the remaining units
func (b *Batch) RemainingValue() decimal.Decimal {
	return b.Quantity.Mul(b.UnitCost)
}

// HasStock returns true if the batch is active with units remaining
func (b *Batch) HasStock() bool {
	return b.Active && b.Quantity.GreaterThan(decimal.Zero)
}

// Before reports whether b precedes other in FIFO order: received_at
// ascending, ties broken by bytewise batch ID so the order is deterministic.
func (b *Batch) Before(other *Batch) bool {
	if !b.ReceivedAt.Equal(other.ReceivedAt) {
		return b.ReceivedAt.Before(other.ReceivedAt)
	}
	return bytes.Compare(b.ID[:], other.ID[:]) < 0
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
