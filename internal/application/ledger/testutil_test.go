package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/restopos/backend/internal/domain/ledger"
	"github.com/restopos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		events: make([]shared.DomainEvent, 0),
	}
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEvents() []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, len(m.events))
	copy(result, m.events)
	return result
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

func (m *MockEventPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make([]shared.DomainEvent, 0)
}

// memBatchRepo is an in-memory BatchRepository for service tests
type memBatchRepo struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*ledger.Batch
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{batches: make(map[uuid.UUID]*ledger.Batch)}
}

func (r *memBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return batch, nil
}

func (r *memBatchRepo) FindActiveByProduct(_ context.Context, productID uuid.UUID) ([]*ledger.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*ledger.Batch, 0)
	for _, batch := range r.batches {
		if batch.ProductID == productID && batch.Active {
			result = append(result, batch)
		}
	}
	ledger.SortFIFO(result)
	return result, nil
}

func (r *memBatchRepo) FindByProduct(_ context.Context, productID uuid.UUID, _ shared.Filter) ([]*ledger.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*ledger.Batch, 0)
	for _, batch := range r.batches {
		if batch.ProductID == productID {
			result = append(result, batch)
		}
	}
	ledger.SortFIFO(result)
	return result, nil
}

func (r *memBatchRepo) FindExpiringSoon(_ context.Context, horizon time.Duration) ([]*ledger.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	result := make([]*ledger.Batch, 0)
	for _, batch := range r.batches {
		if batch.Active && batch.ExpiresWithin(now, horizon) {
			result = append(result, batch)
		}
	}
	return result, nil
}

func (r *memBatchRepo) FindExpired(_ context.Context) ([]*ledger.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	result := make([]*ledger.Batch, 0)
	for _, batch := range r.batches {
		if batch.Active && batch.IsExpired(now) {
			result = append(result, batch)
		}
	}
	return result, nil
}

func (r *memBatchRepo) Create(_ context.Context, batch *ledger.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.ID] = batch
	return nil
}

func (r *memBatchRepo) Save(_ context.Context, batch *ledger.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.ID] = batch
	return nil
}

func (r *memBatchRepo) SaveAll(ctx context.Context, batches []*ledger.Batch) error {
	for _, batch := range batches {
		if err := r.Save(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (r *memBatchRepo) CountActiveByProduct(_ context.Context, productID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, batch := range r.batches {
		if batch.ProductID == productID && batch.Active {
			count++
		}
	}
	return count, nil
}

func (r *memBatchRepo) SumActiveQuantity(_ context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, batch := range r.batches {
		if batch.ProductID == productID && batch.Active {
			total = total.Add(batch.Quantity)
		}
	}
	return total, nil
}

var _ ledger.BatchRepository = (*memBatchRepo)(nil)

// memRecordRepo is an in-memory ConsumptionRecordRepository for service tests
type memRecordRepo struct {
	mu      sync.Mutex
	records []*ledger.ConsumptionRecord
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{records: make([]*ledger.ConsumptionRecord, 0)}
}

func (r *memRecordRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.ConsumptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memRecordRepo) FindByProduct(_ context.Context, productID uuid.UUID, _ shared.Filter) ([]*ledger.ConsumptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*ledger.ConsumptionRecord, 0)
	for _, record := range r.records {
		if record.ProductID == productID {
			result = append(result, record)
		}
	}
	return result, nil
}

func (r *memRecordRepo) FindByDateRange(_ context.Context, start, end time.Time, _ shared.Filter) ([]*ledger.ConsumptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*ledger.ConsumptionRecord, 0)
	for _, record := range r.records {
		if !record.OccurredAt.Before(start) && record.OccurredAt.Before(end) {
			result = append(result, record)
		}
	}
	return result, nil
}

func (r *memRecordRepo) Create(_ context.Context, record *ledger.ConsumptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *memRecordRepo) SumConsumedByProduct(_ context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, record := range r.records {
		if record.ProductID == productID {
			total = total.Add(record.TotalQuantity)
		}
	}
	return total, nil
}

func (r *memRecordRepo) SumCostByProductAndRange(_ context.Context, productID uuid.UUID, start, end time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, record := range r.records {
		if record.ProductID == productID && !record.OccurredAt.Before(start) && record.OccurredAt.Before(end) {
			total = total.Add(record.TotalCost)
		}
	}
	return total, nil
}

var _ ledger.ConsumptionRecordRepository = (*memRecordRepo)(nil)

// memSummaryRepo is an in-memory SummaryRepository for service tests
type memSummaryRepo struct {
	mu        sync.Mutex
	summaries map[uuid.UUID]ledger.ProductSummary
}

func newMemSummaryRepo() *memSummaryRepo {
	return &memSummaryRepo{summaries: make(map[uuid.UUID]ledger.ProductSummary)}
}

func (r *memSummaryRepo) FindByProduct(_ context.Context, productID uuid.UUID) (*ledger.ProductSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summary, ok := r.summaries[productID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &summary, nil
}

func (r *memSummaryRepo) Upsert(_ context.Context, summary ledger.ProductSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[summary.ProductID] = summary
	return nil
}

func (r *memSummaryRepo) ListNeedingAttention(_ context.Context, _ shared.Filter) ([]*ledger.ProductSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*ledger.ProductSummary, 0)
	for _, summary := range r.summaries {
		s := summary
		if ledger.Classify(s).NeedsAttention() {
			result = append(result, &s)
		}
	}
	return result, nil
}

func (r *memSummaryRepo) Delete(_ context.Context, productID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.summaries, productID)
	return nil
}

var _ ledger.SummaryRepository = (*memSummaryRepo)(nil)

// testLocker serializes per product with plain mutexes
type testLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newTestLocker() *testLocker {
	return &testLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *testLocker) Acquire(_ context.Context, productID uuid.UUID) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[productID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[productID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

var _ ProductLocker = (*testLocker)(nil)

func sharedFilter() shared.Filter {
	return shared.NewFilter()
}

// fixture bundles a fully wired service over in-memory state
type fixture struct {
	service   *LedgerService
	batches   *memBatchRepo
	records   *memRecordRepo
	summaries *memSummaryRepo
	catalog   *StaticCatalog
	publisher *MockEventPublisher
}

func newFixture(defaultMin string) *fixture {
	batches := newMemBatchRepo()
	records := newMemRecordRepo()
	summaries := newMemSummaryRepo()
	catalog := NewStaticCatalog(decimal.RequireFromString(defaultMin))
	publisher := NewMockEventPublisher()

	scope := NewNoOpTransactionScope(batches, records, summaries)
	service := NewLedgerService(scope, catalog, newTestLocker(), DefaultExpiryHorizon, nil)
	service.SetEventPublisher(publisher)

	return &fixture{
		service:   service,
		batches:   batches,
		records:   records,
		summaries: summaries,
		catalog:   catalog,
		publisher: publisher,
	}
}
