package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/restopos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeBatch = "Batch"

// Event type constants
const (
	EventTypeBatchReceived       = "BatchReceived"
	EventTypeStockConsumed       = "StockConsumed"
	EventTypeStockAdjusted       = "StockAdjusted"
	EventTypeBatchRetired        = "BatchRetired"
	EventTypeBatchExpired        = "BatchExpired"
	EventTypeStockBelowThreshold = "StockBelowThreshold"
)

// BatchReceivedEvent is raised when a receiving event creates a new batch
type BatchReceivedEvent struct {
	shared.BaseDomainEvent
	BatchID    uuid.UUID       `json:"batch_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	Supplier   string          `json:"supplier,omitempty"`
}

// NewBatchReceivedEvent creates a new BatchReceivedEvent
func NewBatchReceivedEvent(batch *Batch) *BatchReceivedEvent {
	return &BatchReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchReceived, AggregateTypeBatch, batch.ID),
		BatchID:         batch.ID,
		ProductID:       batch.ProductID,
		Quantity:        batch.OriginalQuantity,
		UnitCost:        batch.UnitCost,
		ExpiryDate:      batch.ExpiryDate,
		Supplier:        batch.Supplier,
	}
}

// EventType returns the event type name
func (e *BatchReceivedEvent) EventType() string {
	return EventTypeBatchReceived
}

// StockConsumedEvent is raised once per successful consumption, however many
// batches the deduction spanned
type StockConsumedEvent struct {
	shared.BaseDomainEvent
	RecordID        uuid.UUID       `json:"record_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	Reason          string          `json:"reason"`
	TotalQuantity   decimal.Decimal `json:"total_quantity"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	BlendedUnitCost decimal.Decimal `json:"blended_unit_cost"`
	BatchesTouched  int             `json:"batches_touched"`
}

// NewStockConsumedEvent creates a new StockConsumedEvent
func NewStockConsumedEvent(record *ConsumptionRecord) *StockConsumedEvent {
	return &StockConsumedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockConsumed, AggregateTypeBatch, record.ID),
		RecordID:        record.ID,
		ProductID:       record.ProductID,
		Reason:          record.Reason.String(),
		TotalQuantity:   record.TotalQuantity,
		TotalCost:       record.TotalCost,
		BlendedUnitCost: record.BlendedUnitCost,
		BatchesTouched:  len(record.Lines),
	}
}

// EventType returns the event type name
func (e *StockConsumedEvent) EventType() string {
	return EventTypeStockConsumed
}

// StockAdjustedEvent is raised by physical-count reconciliation
type StockAdjustedEvent struct {
	shared.BaseDomainEvent
	ProductID      uuid.UUID       `json:"product_id"`
	QuantityBefore decimal.Decimal `json:"quantity_before"`
	QuantityAfter  decimal.Decimal `json:"quantity_after"`
	Delta          decimal.Decimal `json:"delta"`
}

// NewStockAdjustedEvent creates a new StockAdjustedEvent
func NewStockAdjustedEvent(productID uuid.UUID, before, after decimal.Decimal) *StockAdjustedEvent {
	return &StockAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockAdjusted, AggregateTypeBatch, productID),
		ProductID:       productID,
		QuantityBefore:  before,
		QuantityAfter:   after,
		Delta:           after.Sub(before),
	}
}

// EventType returns the event type name
func (e *StockAdjustedEvent) EventType() string {
	return EventTypeStockAdjusted
}

// BatchRetiredEvent is raised when a batch is written off with quantity remaining
type BatchRetiredEvent struct {
	shared.BaseDomainEvent
	BatchID           uuid.UUID       `json:"batch_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
}

// NewBatchRetiredEvent creates a new BatchRetiredEvent
func NewBatchRetiredEvent(batch *Batch) *BatchRetiredEvent {
	return &BatchRetiredEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeBatchRetired, AggregateTypeBatch, batch.ID),
		BatchID:           batch.ID,
		ProductID:         batch.ProductID,
		QuantityRemaining: batch.Quantity,
		UnitCost:          batch.UnitCost,
	}
}

// EventType returns the event type name
func (e *BatchRetiredEvent) EventType() string {
	return EventTypeBatchRetired
}

// BatchExpiredEvent is raised by the expiry monitor for active batches past
// their expiry date. Alerting only; classification stays query-driven.
type BatchExpiredEvent struct {
	shared.BaseDomainEvent
	BatchID           uuid.UUID       `json:"batch_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	ExpiryDate        time.Time       `json:"expiry_date"`
	QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
}

// NewBatchExpiredEvent creates a new BatchExpiredEvent
func NewBatchExpiredEvent(batch *Batch) *BatchExpiredEvent {
	expiry := time.Time{}
	if batch.ExpiryDate != nil {
		expiry = *batch.ExpiryDate
	}
	return &BatchExpiredEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeBatchExpired, AggregateTypeBatch, batch.ID),
		BatchID:           batch.ID,
		ProductID:         batch.ProductID,
		ExpiryDate:        expiry,
		QuantityRemaining: batch.Quantity,
	}
}

// EventType returns the event type name
func (e *BatchExpiredEvent) EventType() string {
	return EventTypeBatchExpired
}

// StockBelowThresholdEvent is raised when a mutation leaves a product at or
// below its reorder threshold
type StockBelowThresholdEvent struct {
	shared.BaseDomainEvent
	ProductID       uuid.UUID       `json:"product_id"`
	OnHandQuantity  decimal.Decimal `json:"on_hand_quantity"`
	MinimumQuantity decimal.Decimal `json:"minimum_quantity"`
}

// NewStockBelowThresholdEvent creates a new StockBelowThresholdEvent
func NewStockBelowThresholdEvent(summary ProductSummary) *StockBelowThresholdEvent {
	return &StockBelowThresholdEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockBelowThreshold, AggregateTypeBatch, summary.ProductID),
		ProductID:       summary.ProductID,
		OnHandQuantity:  summary.OnHandQuantity,
		MinimumQuantity: summary.MinQuantity,
	}
}

// EventType returns the event type name
func (e *StockBelowThresholdEvent) EventType() string {
	return EventTypeStockBelowThreshold
}
