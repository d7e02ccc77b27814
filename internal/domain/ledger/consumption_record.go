package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/restopos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Reason categorizes why stock was consumed
type Reason string

const (
	// ReasonSale is a deduction at order-completion time
	ReasonSale Reason = "sale"
	// ReasonManualAdjustment is a correction from a physical count or operator action
	ReasonManualAdjustment Reason = "manual_adjustment"
	// ReasonSpoilage is stock lost to spoilage or shrinkage
	ReasonSpoilage Reason = "spoilage"
)

// String returns the string representation
func (r Reason) String() string {
	return string(r)
}

// IsValid returns true if the reason is one of the known values
func (r Reason) IsValid() bool {
	switch r {
	case ReasonSale, ReasonManualAdjustment, ReasonSpoilage:
		return true
	}
	return false
}

// AllReasons returns every valid consumption reason
func AllReasons() []Reason {
	return []Reason{ReasonSale, ReasonManualAdjustment, ReasonSpoilage}
}

// ConsumptionRecord is the immutable audit trail of one deduction event.
// One record is appended per successful consume call, however many batches
// it touched. Records are never mutated; historical cost-of-goods is
// reconstructed from them.
type ConsumptionRecord struct {
	shared.BaseEntity
	ProductID       uuid.UUID         `gorm:"type:uuid;not null;index:idx_consumption_product_time,priority:1"`
	Reason          Reason            `gorm:"type:varchar(30);not null;index"`
	TotalQuantity   decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	TotalCost       decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	BlendedUnitCost decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	OccurredAt      time.Time         `gorm:"type:timestamptz;not null;index:idx_consumption_product_time,priority:2"`
	Lines           []ConsumptionLine `gorm:"foreignKey:RecordID;references:ID"`
}

// TableName returns the table name for GORM
func (ConsumptionRecord) TableName() string {
	return "consumption_records"
}

// ConsumptionLine records the share one batch contributed to a consumption
type ConsumptionLine struct {
	shared.BaseEntity
	RecordID uuid.UUID       `gorm:"type:uuid;not null;index"`
	BatchID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitCost decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LineCost decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (ConsumptionLine) TableName() string {
	return "consumption_lines"
}

// NewConsumptionRecord builds the audit record for a fully satisfied plan
func NewConsumptionRecord(productID uuid.UUID, reason Reason, plan *ConsumptionPlan) (*ConsumptionRecord, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if !reason.IsValid() {
		return nil, shared.NewDomainError("INVALID_REASON", "Unknown consumption reason: "+string(reason))
	}
	if plan == nil || !plan.FullySatisfied {
		return nil, shared.NewDomainError("INVALID_PLAN", "Consumption records are only written for satisfied plans")
	}

	record := &ConsumptionRecord{
		BaseEntity:      shared.NewBaseEntity(),
		ProductID:       productID,
		Reason:          reason,
		TotalQuantity:   plan.TotalQuantity,
		TotalCost:       plan.TotalCost,
		BlendedUnitCost: plan.BlendedUnitCost,
		OccurredAt:      time.Now(),
		Lines:           make([]ConsumptionLine, 0, len(plan.Lines)),
	}
	for _, line := range plan.Lines {
		record.Lines = append(record.Lines, ConsumptionLine{
			BaseEntity: shared.NewBaseEntity(),
			RecordID:   record.ID,
			BatchID:    line.BatchID,
			Quantity:   line.Quantity,
			UnitCost:   line.UnitCost,
			LineCost:   line.LineCost,
		})
	}
	return record, nil
}
