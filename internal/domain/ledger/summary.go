package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductSummary is the derived per-product aggregate: a pure function of the
// product's batch set, persisted only as a cache row for fast listing. It is
// never the source of truth and must always be recomputable from batches
// alone.
type ProductSummary struct {
	ProductID      uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OnHandQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AverageCost    decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Quantity-weighted over active batches
	MinQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Reorder threshold, owned by the catalog
	ExpiringCount  int             `gorm:"not null"`
	ExpiredCount   int             `gorm:"not null"`
	ComputedAt     time.Time       `gorm:"type:timestamptz;not null"`
}

// TableName returns the table name for GORM
func (ProductSummary) TableName() string {
	return "product_summaries"
}

// TotalValue returns the on-hand valuation at average cost
func (s ProductSummary) TotalValue() decimal.Decimal {
	return s.OnHandQuantity.Mul(s.AverageCost).Round(4)
}

// ProjectSummary recomputes a product summary from its batch set. The
// projection is idempotent: two calls with the same inputs yield identical
// results, which is what makes the cache row safe to rebuild after
// corruption.
func ProjectSummary(
	productID uuid.UUID,
	batches []*Batch,
	minQuantity decimal.Decimal,
	horizon time.Duration,
	now time.Time,
) ProductSummary {
	onHand := decimal.Zero
	totalValue := decimal.Zero
	expiring := 0
	expired := 0

	for _, b := range batches {
		if !b.Active {
			continue
		}
		onHand = onHand.Add(b.Quantity)
		if b.Quantity.GreaterThan(decimal.Zero) {
			totalValue = totalValue.Add(b.Quantity.Mul(b.UnitCost))
		}
		if b.IsExpired(now) {
			expired++
		} else if b.ExpiresWithin(now, horizon) {
			expiring++
		}
	}

	averageCost := decimal.Zero
	if onHand.GreaterThan(decimal.Zero) {
		averageCost = totalValue.Div(onHand).Round(4)
	}

	return ProductSummary{
		ProductID:      productID,
		OnHandQuantity: onHand,
		AverageCost:    averageCost,
		MinQuantity:    minQuantity,
		ExpiringCount:  expiring,
		ExpiredCount:   expired,
		ComputedAt:     now,
	}
}
