package telemetry

import (
	"context"
	"time"

	appledger "github.com/restopos/backend/internal/application/ledger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// LedgerMetrics records stock ledger activity: receipts, consumptions,
// rejected draws and lock contention.
type LedgerMetrics struct {
	batchesReceivedTotal  *Counter
	quantityReceivedTotal *FloatCounter
	valueReceivedTotal    *FloatCounter

	consumptionsTotal     *Counter
	quantityConsumedTotal *FloatCounter
	costConsumedTotal     *FloatCounter

	insufficientStockTotal *Counter
	lockWaitSeconds        *Histogram
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	lm := &LedgerMetrics{}

	var err error
	lm.batchesReceivedTotal, err = NewCounter(
		meter,
		"pos_ledger_batches_received_total",
		"Total number of batches received into stock",
		"{batches}",
	)
	if err != nil {
		return nil, err
	}

	lm.quantityReceivedTotal, err = NewFloatCounter(
		meter,
		"pos_ledger_quantity_received_total",
		"Total quantity received into stock",
		"{units}",
	)
	if err != nil {
		return nil, err
	}

	lm.valueReceivedTotal, err = NewFloatCounter(
		meter,
		"pos_ledger_value_received_total",
		"Total value of stock received, at unit cost",
		"{currency}",
	)
	if err != nil {
		return nil, err
	}

	lm.consumptionsTotal, err = NewCounter(
		meter,
		"pos_ledger_consumptions_total",
		"Total number of successful consumption operations",
		"{consumptions}",
	)
	if err != nil {
		return nil, err
	}

	lm.quantityConsumedTotal, err = NewFloatCounter(
		meter,
		"pos_ledger_quantity_consumed_total",
		"Total quantity consumed from stock",
		"{units}",
	)
	if err != nil {
		return nil, err
	}

	lm.costConsumedTotal, err = NewFloatCounter(
		meter,
		"pos_ledger_cost_consumed_total",
		"Total cost of goods consumed",
		"{currency}",
	)
	if err != nil {
		return nil, err
	}

	lm.insufficientStockTotal, err = NewCounter(
		meter,
		"pos_ledger_insufficient_stock_total",
		"Consumption attempts rejected for insufficient stock",
		"{attempts}",
	)
	if err != nil {
		return nil, err
	}

	lm.lockWaitSeconds, err = NewHistogram(meter, HistogramOpts{
		Name:        "pos_ledger_lock_wait_seconds",
		Description: "Time spent waiting for a product lock",
		Unit:        "s",
		Boundaries:  LockWaitBuckets,
	})
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordReceive records a receiving event.
func (lm *LedgerMetrics) RecordReceive(ctx context.Context, quantity, cost decimal.Decimal) {
	lm.batchesReceivedTotal.Inc(ctx)
	lm.quantityReceivedTotal.Add(ctx, quantity.InexactFloat64())
	lm.valueReceivedTotal.Add(ctx, quantity.Mul(cost).InexactFloat64())
}

// RecordConsumption records a successful consumption labeled by reason.
func (lm *LedgerMetrics) RecordConsumption(ctx context.Context, reason string, quantity, cost decimal.Decimal) {
	lm.consumptionsTotal.Inc(ctx, AttrReason.String(reason))
	lm.quantityConsumedTotal.Add(ctx, quantity.InexactFloat64(), AttrReason.String(reason))
	lm.costConsumedTotal.Add(ctx, cost.InexactFloat64(), AttrReason.String(reason))
}

// RecordInsufficientStock counts a rejected consumption attempt.
func (lm *LedgerMetrics) RecordInsufficientStock(ctx context.Context) {
	lm.insufficientStockTotal.Inc(ctx)
}

// RecordLockWait records how long a mutation waited for its product lock.
func (lm *LedgerMetrics) RecordLockWait(ctx context.Context, wait time.Duration) {
	lm.lockWaitSeconds.RecordDuration(ctx, wait)
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// Ensure LedgerMetrics implements the application metrics port
var _ appledger.Metrics = (*LedgerMetrics)(nil)
