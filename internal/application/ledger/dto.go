package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/restopos/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// ReceiveBatchRequest is the input for receiving stock into the ledger
type ReceiveBatchRequest struct {
	ProductID  uuid.UUID       `json:"product_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity" validate:"required"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	Supplier   string          `json:"supplier,omitempty" validate:"max=100"`
	Notes      string          `json:"notes,omitempty" validate:"max=255"`
}

// ConsumeRequest is the input for deducting stock
type ConsumeRequest struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
	Reason    ledger.Reason   `json:"reason" validate:"required"`
}

// SetQuantityRequest reconciles the ledger to a physically counted quantity
type SetQuantityRequest struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Notes     string          `json:"notes,omitempty" validate:"max=255"`
}

// BatchResponse is the API view of a batch
type BatchResponse struct {
	ID               uuid.UUID       `json:"id"`
	ProductID        uuid.UUID       `json:"product_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	OriginalQuantity decimal.Decimal `json:"original_quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty"`
	ReceivedAt       time.Time       `json:"received_at"`
	Supplier         string          `json:"supplier,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Active           bool            `json:"active"`
	PercentConsumed  decimal.Decimal `json:"percent_consumed"`
	RemainingValue   decimal.Decimal `json:"remaining_value"`
}

// ToBatchResponse converts a batch to its API view
func ToBatchResponse(batch *ledger.Batch) BatchResponse {
	return BatchResponse{
		ID:               batch.ID,
		ProductID:        batch.ProductID,
		Quantity:         batch.Quantity,
		OriginalQuantity: batch.OriginalQuantity,
		UnitCost:         batch.UnitCost,
		ExpiryDate:       batch.ExpiryDate,
		ReceivedAt:       batch.ReceivedAt,
		Supplier:         batch.Supplier,
		Notes:            batch.Notes,
		Active:           batch.Active,
		PercentConsumed:  batch.PercentConsumed(),
		RemainingValue:   batch.RemainingValue(),
	}
}

// ToBatchResponses converts a batch slice to API views
func ToBatchResponses(batches []*ledger.Batch) []BatchResponse {
	responses := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		responses = append(responses, ToBatchResponse(b))
	}
	return responses
}

// ConsumptionLineResponse is the API view of one batch's share of a consumption
type ConsumptionLineResponse struct {
	BatchID  uuid.UUID       `json:"batch_id"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	LineCost decimal.Decimal `json:"line_cost"`
}

// ConsumptionResponse is the API view of a consumption record
type ConsumptionResponse struct {
	RecordID        uuid.UUID                 `json:"record_id"`
	ProductID       uuid.UUID                 `json:"product_id"`
	Reason          string                    `json:"reason"`
	TotalQuantity   decimal.Decimal           `json:"total_quantity"`
	TotalCost       decimal.Decimal           `json:"total_cost"`
	BlendedUnitCost decimal.Decimal           `json:"blended_unit_cost"`
	OccurredAt      time.Time                 `json:"occurred_at"`
	Lines           []ConsumptionLineResponse `json:"lines"`
}

// ToConsumptionResponse converts a record to its API view
func ToConsumptionResponse(record *ledger.ConsumptionRecord) ConsumptionResponse {
	lines := make([]ConsumptionLineResponse, 0, len(record.Lines))
	for _, line := range record.Lines {
		lines = append(lines, ConsumptionLineResponse{
			BatchID:  line.BatchID,
			Quantity: line.Quantity,
			UnitCost: line.UnitCost,
			LineCost: line.LineCost,
		})
	}
	return ConsumptionResponse{
		RecordID:        record.ID,
		ProductID:       record.ProductID,
		Reason:          record.Reason.String(),
		TotalQuantity:   record.TotalQuantity,
		TotalCost:       record.TotalCost,
		BlendedUnitCost: record.BlendedUnitCost,
		OccurredAt:      record.OccurredAt,
		Lines:           lines,
	}
}

// ToConsumptionResponses converts a record slice to API views
func ToConsumptionResponses(records []*ledger.ConsumptionRecord) []ConsumptionResponse {
	responses := make([]ConsumptionResponse, 0, len(records))
	for _, r := range records {
		responses = append(responses, ToConsumptionResponse(r))
	}
	return responses
}

// SummaryResponse is the API view of a product summary with its derived status
type SummaryResponse struct {
	ProductID      uuid.UUID       `json:"product_id"`
	OnHandQuantity decimal.Decimal `json:"on_hand_quantity"`
	AverageCost    decimal.Decimal `json:"average_cost"`
	TotalValue     decimal.Decimal `json:"total_value"`
	MinQuantity    decimal.Decimal `json:"min_quantity"`
	ExpiringCount  int             `json:"expiring_count"`
	ExpiredCount   int             `json:"expired_count"`
	QuantityStatus string          `json:"quantity_status"`
	ExpiryStatus   string          `json:"expiry_status"`
	ComputedAt     time.Time       `json:"computed_at"`
}

// ToSummaryResponse converts a summary and its classification to the API view
func ToSummaryResponse(summary ledger.ProductSummary) SummaryResponse {
	status := ledger.Classify(summary)
	return SummaryResponse{
		ProductID:      summary.ProductID,
		OnHandQuantity: summary.OnHandQuantity,
		AverageCost:    summary.AverageCost,
		TotalValue:     summary.TotalValue(),
		MinQuantity:    summary.MinQuantity,
		ExpiringCount:  summary.ExpiringCount,
		ExpiredCount:   summary.ExpiredCount,
		QuantityStatus: status.Quantity.String(),
		ExpiryStatus:   status.Expiry.String(),
		ComputedAt:     summary.ComputedAt,
	}
}

// AdjustmentResponse reports the outcome of a physical-count reconciliation
type AdjustmentResponse struct {
	ProductID      uuid.UUID       `json:"product_id"`
	QuantityBefore decimal.Decimal `json:"quantity_before"`
	QuantityAfter  decimal.Decimal `json:"quantity_after"`
	Delta          decimal.Decimal `json:"delta"`
	// Set when the adjustment lowered stock and produced an audit record
	Consumption *ConsumptionResponse `json:"consumption,omitempty"`
	// Set when the adjustment raised stock via a correction batch
	CorrectionBatch *BatchResponse `json:"correction_batch,omitempty"`
}

// RemovalResponse reports the outcome of removing a product from the ledger
type RemovalResponse struct {
	ProductID          uuid.UUID       `json:"product_id"`
	BatchesRetired     int             `json:"batches_retired"`
	QuantityWrittenOff decimal.Decimal `json:"quantity_written_off"`
}
