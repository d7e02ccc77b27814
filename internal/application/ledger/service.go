package ledger

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/restopos/backend/internal/domain/ledger"
	"github.com/restopos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// DefaultExpiryHorizon is the window within which a batch counts as expiring soon
	DefaultExpiryHorizon = 7 * 24 * time.Hour
)

// LedgerService composes the batch store, the FIFO consumption engine, the
// summary projector and the classifier into the external-facing operations.
// Every mutation follows the same discipline: acquire the product lock, run
// plan and apply inside one transaction, reproject the summary in that same
// transaction, publish domain events only after commit.
type LedgerService struct {
	scope     TransactionScope
	catalog   ProductCatalog
	locker    ProductLocker
	publisher shared.EventPublisher
	metrics   Metrics
	validate  *validator.Validate
	logger    *zap.Logger
	horizon   time.Duration
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	scope TransactionScope,
	catalog ProductCatalog,
	locker ProductLocker,
	horizon time.Duration,
	logger *zap.Logger,
) *LedgerService {
	if horizon <= 0 {
		horizon = DefaultExpiryHorizon
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		scope:    scope,
		catalog:  catalog,
		locker:   locker,
		metrics:  NoOpMetrics{},
		validate: validator.New(),
		logger:   logger,
		horizon:  horizon,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetMetrics sets the metrics recorder
func (s *LedgerService) SetMetrics(metrics Metrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// ReceiveBatch records a receiving event as a new batch and reprojects the
// product summary. Receiving already-expired stock is rejected before
// anything is written.
func (s *LedgerService) ReceiveBatch(ctx context.Context, req ReceiveBatchRequest) (*BatchResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("VALIDATION_FAILED", err.Error())
	}
	if err := s.requireProduct(ctx, req.ProductID); err != nil {
		return nil, err
	}

	release, err := s.acquireLock(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		batch   *ledger.Batch
		summary ledger.ProductSummary
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var txErr error
		batch, txErr = ledger.NewBatch(req.ProductID, req.Quantity, req.UnitCost, req.ExpiryDate, req.Supplier, req.Notes)
		if txErr != nil {
			return txErr
		}
		if txErr = repos.BatchRepo().Create(ctx, batch); txErr != nil {
			return txErr
		}
		summary, txErr = s.reproject(ctx, repos, req.ProductID)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordReceive(ctx, batch.OriginalQuantity, batch.OriginalQuantity.Mul(batch.UnitCost))
	s.logger.Info("batch received",
		zap.String("product_id", req.ProductID.String()),
		zap.String("batch_id", batch.ID.String()),
		zap.String("quantity", batch.OriginalQuantity.String()),
		zap.String("unit_cost", batch.UnitCost.String()),
	)

	s.publishAggregateEvents(ctx, batch)
	s.publishThresholdEvent(ctx, summary)

	response := ToBatchResponse(batch)
	return &response, nil
}

// Consume deducts stock oldest-first for the given reason. The deduction is
// all-or-nothing: when active stock cannot cover the request, nothing is
// written and the shortfall is reported via InsufficientStockError.
func (s *LedgerService) Consume(ctx context.Context, req ConsumeRequest) (*ConsumptionResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("VALIDATION_FAILED", err.Error())
	}
	if !req.Reason.IsValid() {
		return nil, shared.NewDomainError("INVALID_REASON", "Unknown consumption reason: "+req.Reason.String())
	}

	release, err := s.acquireLock(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		record  *ledger.ConsumptionRecord
		summary ledger.ProductSummary
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		record = nil
		batches, txErr := repos.BatchRepo().FindActiveByProduct(ctx, req.ProductID)
		if txErr != nil {
			return txErr
		}

		plan, txErr := ledger.PlanConsumption(req.Quantity, batches)
		if txErr != nil {
			return txErr
		}
		if !plan.FullySatisfied {
			return ledger.NewInsufficientStockError(req.ProductID, req.Quantity, plan.TotalQuantity)
		}

		if txErr = ledger.ApplyPlan(batches, plan); txErr != nil {
			return txErr
		}
		touched := batchesInPlan(batches, plan)
		if txErr = repos.BatchRepo().SaveAll(ctx, touched); txErr != nil {
			return txErr
		}

		record, txErr = ledger.NewConsumptionRecord(req.ProductID, req.Reason, plan)
		if txErr != nil {
			return txErr
		}
		if txErr = repos.RecordRepo().Create(ctx, record); txErr != nil {
			return txErr
		}

		summary, txErr = s.reproject(ctx, repos, req.ProductID)
		return txErr
	})
	if err != nil {
		if _, ok := err.(*ledger.InsufficientStockError); ok {
			s.metrics.RecordInsufficientStock(ctx)
		}
		return nil, err
	}

	s.metrics.RecordConsumption(ctx, record.Reason.String(), record.TotalQuantity, record.TotalCost)
	s.logger.Info("stock consumed",
		zap.String("product_id", req.ProductID.String()),
		zap.String("reason", record.Reason.String()),
		zap.String("quantity", record.TotalQuantity.String()),
		zap.String("blended_unit_cost", record.BlendedUnitCost.String()),
		zap.Int("batches_touched", len(record.Lines)),
	)

	s.publishEvents(ctx, ledger.NewStockConsumedEvent(record))
	s.publishThresholdEvent(ctx, summary)

	response := ToConsumptionResponse(record)
	return &response, nil
}

// DeductForSale consumes stock for one order line at completion time.
func (s *LedgerService) DeductForSale(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*ConsumptionResponse, error) {
	return s.Consume(ctx, ConsumeRequest{
		ProductID: productID,
		Quantity:  quantity,
		Reason:    ledger.ReasonSale,
	})
}

// DeductManual consumes stock for an operator-supplied reason, such as
// spoilage or a shrinkage write-off.
func (s *LedgerService) DeductManual(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal, reason ledger.Reason) (*ConsumptionResponse, error) {
	return s.Consume(ctx, ConsumeRequest{
		ProductID: productID,
		Quantity:  quantity,
		Reason:    reason,
	})
}

// SetAbsoluteQuantity reconciles the ledger to a physically counted quantity.
// A decrease is a FIFO consumption with reason manual_adjustment, so the
// written-off units carry the cost of the batches they actually left. An
// increase is a correction batch priced at the product's current average
// cost, since the counted surplus has no receiving event of its own.
func (s *LedgerService) SetAbsoluteQuantity(ctx context.Context, req SetQuantityRequest) (*AdjustmentResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("VALIDATION_FAILED", err.Error())
	}
	if req.Quantity.IsNegative() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Target quantity cannot be negative")
	}

	release, err := s.acquireLock(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		result          AdjustmentResponse
		record          *ledger.ConsumptionRecord
		correction      *ledger.Batch
		summary         ledger.ProductSummary
		adjustmentEvent *ledger.StockAdjustedEvent
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		record = nil
		correction = nil
		adjustmentEvent = nil

		batches, txErr := repos.BatchRepo().FindActiveByProduct(ctx, req.ProductID)
		if txErr != nil {
			return txErr
		}
		before := ledger.AvailableQuantity(batches)
		result = AdjustmentResponse{
			ProductID:      req.ProductID,
			QuantityBefore: before,
			QuantityAfter:  req.Quantity,
			Delta:          req.Quantity.Sub(before),
		}

		switch {
		case req.Quantity.Equal(before):
			// Count matches the ledger; nothing to reconcile.
			summary, txErr = s.reproject(ctx, repos, req.ProductID)
			return txErr

		case req.Quantity.LessThan(before):
			plan, planErr := ledger.PlanConsumption(before.Sub(req.Quantity), batches)
			if planErr != nil {
				return planErr
			}
			if !plan.FullySatisfied {
				return ledger.NewInsufficientStockError(req.ProductID, before.Sub(req.Quantity), plan.TotalQuantity)
			}
			if txErr = ledger.ApplyPlan(batches, plan); txErr != nil {
				return txErr
			}
			if txErr = repos.BatchRepo().SaveAll(ctx, batchesInPlan(batches, plan)); txErr != nil {
				return txErr
			}
			record, txErr = ledger.NewConsumptionRecord(req.ProductID, ledger.ReasonManualAdjustment, plan)
			if txErr != nil {
				return txErr
			}
			if txErr = repos.RecordRepo().Create(ctx, record); txErr != nil {
				return txErr
			}

		default:
			// Surplus units get a correction batch at the current average
			// cost so the valuation stays continuous.
			unitCost := averageCost(batches)
			correction, txErr = ledger.NewBatch(req.ProductID, req.Quantity.Sub(before), unitCost, nil, "", "stock count correction")
			if txErr != nil {
				return txErr
			}
			if txErr = repos.BatchRepo().Create(ctx, correction); txErr != nil {
				return txErr
			}
		}

		adjustmentEvent = ledger.NewStockAdjustedEvent(req.ProductID, before, req.Quantity)
		summary, txErr = s.reproject(ctx, repos, req.ProductID)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock adjusted to physical count",
		zap.String("product_id", req.ProductID.String()),
		zap.String("quantity_before", result.QuantityBefore.String()),
		zap.String("quantity_after", result.QuantityAfter.String()),
		zap.String("delta", result.Delta.String()),
	)

	if record != nil {
		consumption := ToConsumptionResponse(record)
		result.Consumption = &consumption
		s.metrics.RecordConsumption(ctx, record.Reason.String(), record.TotalQuantity, record.TotalCost)
		s.publishEvents(ctx, ledger.NewStockConsumedEvent(record))
	}
	if correction != nil {
		batchResponse := ToBatchResponse(correction)
		result.CorrectionBatch = &batchResponse
		s.publishAggregateEvents(ctx, correction)
	}
	if adjustmentEvent != nil {
		s.publishEvents(ctx, adjustmentEvent)
	}
	s.publishThresholdEvent(ctx, summary)

	return &result, nil
}

// RetireBatch marks a single batch inactive regardless of remaining quantity.
// Used for targeted write-offs: the batch row and its history survive, only
// its stock leaves the ledger.
func (s *LedgerService) RetireBatch(ctx context.Context, batchID uuid.UUID) (*BatchResponse, error) {
	if batchID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_BATCH", "Batch ID cannot be empty")
	}

	// The product is only known after the read, so the lock is taken on the
	// batch's owner before the mutating transaction runs.
	var productID uuid.UUID
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		batch, txErr := repos.BatchRepo().FindByID(ctx, batchID)
		if txErr != nil {
			return txErr
		}
		productID = batch.ProductID
		return nil
	})
	if err != nil {
		return nil, err
	}

	release, err := s.acquireLock(ctx, productID)
	if err != nil {
		return nil, err
	}
	defer release()

	var retired *ledger.Batch
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		batch, txErr := repos.BatchRepo().FindByID(ctx, batchID)
		if txErr != nil {
			return txErr
		}
		if batch.Active {
			batch.Retire()
			if txErr = repos.BatchRepo().Save(ctx, batch); txErr != nil {
				return txErr
			}
		}
		retired = batch

		_, txErr = s.reproject(ctx, repos, batch.ProductID)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("batch retired",
		zap.String("batch_id", batchID.String()),
		zap.String("product_id", retired.ProductID.String()),
		zap.String("quantity_written_off", retired.Quantity.String()),
	)
	s.publishAggregateEvents(ctx, retired)

	response := ToBatchResponse(retired)
	return &response, nil
}

// RemoveProduct takes a product out of the ledger. Without force the removal
// is refused while active batches remain; with force the remaining batches
// are retired as a write-off. Batch rows are never deleted, the audit trail
// stays intact.
func (s *LedgerService) RemoveProduct(ctx context.Context, productID uuid.UUID, force bool) (*RemovalResponse, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}

	release, err := s.acquireLock(ctx, productID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		result  RemovalResponse
		retired []*ledger.Batch
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		retired = nil
		batches, txErr := repos.BatchRepo().FindActiveByProduct(ctx, productID)
		if txErr != nil {
			return txErr
		}

		if len(batches) > 0 && !force {
			return ledger.NewHasActiveBatchesError(productID, int64(len(batches)))
		}

		writtenOff := decimal.Zero
		for _, batch := range batches {
			writtenOff = writtenOff.Add(batch.Quantity)
			batch.Retire()
		}
		if len(batches) > 0 {
			if txErr = repos.BatchRepo().SaveAll(ctx, batches); txErr != nil {
				return txErr
			}
		}
		retired = batches

		if txErr = repos.SummaryRepo().Delete(ctx, productID); txErr != nil {
			return txErr
		}

		result = RemovalResponse{
			ProductID:          productID,
			BatchesRetired:     len(batches),
			QuantityWrittenOff: writtenOff,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product removed from ledger",
		zap.String("product_id", productID.String()),
		zap.Int("batches_retired", result.BatchesRetired),
		zap.String("quantity_written_off", result.QuantityWrittenOff.String()),
		zap.Bool("forced", force),
	)

	for _, batch := range retired {
		s.publishAggregateEvents(ctx, batch)
	}

	return &result, nil
}

// GetSummary returns the cached summary for a product, falling back to a
// live projection when no cache row exists yet.
func (s *LedgerService) GetSummary(ctx context.Context, productID uuid.UUID) (*SummaryResponse, error) {
	var summary ledger.ProductSummary
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		cached, txErr := repos.SummaryRepo().FindByProduct(ctx, productID)
		if txErr == nil {
			summary = *cached
			return nil
		}
		if !shared.IsNotFound(txErr) {
			return txErr
		}
		summary, txErr = s.project(ctx, repos, productID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	response := ToSummaryResponse(summary)
	return &response, nil
}

// GetStatus classifies a product on both status axes
func (s *LedgerService) GetStatus(ctx context.Context, productID uuid.UUID) (*ledger.StockStatus, error) {
	summaryResponse, err := s.GetSummary(ctx, productID)
	if err != nil {
		return nil, err
	}
	status := ledger.StockStatus{
		Quantity: ledger.QuantityStatus(summaryResponse.QuantityStatus),
		Expiry:   ledger.ExpiryStatus(summaryResponse.ExpiryStatus),
	}
	return &status, nil
}

// RebuildSummary recomputes the summary cache row from the batch set. Used
// for corruption recovery; the projection is idempotent so rebuilding is
// always safe.
func (s *LedgerService) RebuildSummary(ctx context.Context, productID uuid.UUID) (*SummaryResponse, error) {
	release, err := s.acquireLock(ctx, productID)
	if err != nil {
		return nil, err
	}
	defer release()

	var summary ledger.ProductSummary
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var txErr error
		summary, txErr = s.reproject(ctx, repos, productID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	response := ToSummaryResponse(summary)
	return &response, nil
}

// ListActiveBatches returns a product's active batches in FIFO order
func (s *LedgerService) ListActiveBatches(ctx context.Context, productID uuid.UUID) ([]BatchResponse, error) {
	var batches []*ledger.Batch
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var txErr error
		batches, txErr = repos.BatchRepo().FindActiveByProduct(ctx, productID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return ToBatchResponses(batches), nil
}

// ListConsumptions returns a product's consumption history, newest first
func (s *LedgerService) ListConsumptions(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]ConsumptionResponse, error) {
	var records []*ledger.ConsumptionRecord
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var txErr error
		records, txErr = repos.RecordRepo().FindByProduct(ctx, productID, filter)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return ToConsumptionResponses(records), nil
}

// ListNeedingAttention returns summaries that are low, out of stock, expiring
// or expired
func (s *LedgerService) ListNeedingAttention(ctx context.Context, filter shared.Filter) ([]SummaryResponse, error) {
	var summaries []*ledger.ProductSummary
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var txErr error
		summaries, txErr = repos.SummaryRepo().ListNeedingAttention(ctx, filter)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	responses := make([]SummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		responses = append(responses, ToSummaryResponse(*summary))
	}
	return responses, nil
}

// project computes a summary from the batch set without persisting it
func (s *LedgerService) project(ctx context.Context, repos TransactionalRepositories, productID uuid.UUID) (ledger.ProductSummary, error) {
	batches, err := repos.BatchRepo().FindActiveByProduct(ctx, productID)
	if err != nil {
		return ledger.ProductSummary{}, err
	}
	minQuantity, err := s.catalog.MinQuantity(ctx, productID)
	if err != nil {
		return ledger.ProductSummary{}, err
	}
	return ledger.ProjectSummary(productID, batches, minQuantity, s.horizon, time.Now()), nil
}

// reproject recomputes the summary and writes the cache row in the current
// transaction
func (s *LedgerService) reproject(ctx context.Context, repos TransactionalRepositories, productID uuid.UUID) (ledger.ProductSummary, error) {
	summary, err := s.project(ctx, repos, productID)
	if err != nil {
		return ledger.ProductSummary{}, err
	}
	if err := repos.SummaryRepo().Upsert(ctx, summary); err != nil {
		return ledger.ProductSummary{}, err
	}
	return summary, nil
}

func (s *LedgerService) requireProduct(ctx context.Context, productID uuid.UUID) error {
	exists, err := s.catalog.Exists(ctx, productID)
	if err != nil {
		return err
	}
	if !exists {
		return shared.NewDomainError("PRODUCT_NOT_FOUND", "Product is not in the catalog: "+productID.String())
	}
	return nil
}

func (s *LedgerService) acquireLock(ctx context.Context, productID uuid.UUID) (func(), error) {
	start := time.Now()
	release, err := s.locker.Acquire(ctx, productID)
	s.metrics.RecordLockWait(ctx, time.Since(start))
	if err != nil {
		return nil, err
	}
	return release, nil
}

func (s *LedgerService) publishAggregateEvents(ctx context.Context, batch *ledger.Batch) {
	if s.publisher == nil {
		return
	}
	events := batch.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	// Errors are logged by the event bus, not propagated.
	_ = s.publisher.Publish(ctx, events...)
	batch.ClearDomainEvents()
}

func (s *LedgerService) publishEvents(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	_ = s.publisher.Publish(ctx, events...)
}

func (s *LedgerService) publishThresholdEvent(ctx context.Context, summary ledger.ProductSummary) {
	status := ledger.Classify(summary)
	if status.Quantity == ledger.QuantityStatusInStock {
		return
	}
	s.publishEvents(ctx, ledger.NewStockBelowThresholdEvent(summary))
}

// batchesInPlan filters the batch slice down to those the plan touched
func batchesInPlan(batches []*ledger.Batch, plan *ledger.ConsumptionPlan) []*ledger.Batch {
	planned := make(map[uuid.UUID]struct{}, len(plan.Lines))
	for _, line := range plan.Lines {
		planned[line.BatchID] = struct{}{}
	}
	touched := make([]*ledger.Batch, 0, len(plan.Lines))
	for _, batch := range batches {
		if _, ok := planned[batch.ID]; ok {
			touched = append(touched, batch)
		}
	}
	return touched
}

// averageCost returns the quantity-weighted average unit cost over batches
// with stock, zero when none have stock
func averageCost(batches []*ledger.Batch) decimal.Decimal {
	quantity := decimal.Zero
	value := decimal.Zero
	for _, batch := range batches {
		if batch.HasStock() {
			quantity = quantity.Add(batch.Quantity)
			value = value.Add(batch.Quantity.Mul(batch.UnitCost))
		}
	}
	if quantity.IsZero() {
		return decimal.Zero
	}
	return value.Div(quantity).Round(4)
}
