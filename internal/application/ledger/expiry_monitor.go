package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/restopos/backend/internal/domain/ledger"
	"github.com/restopos/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ExpiryMonitor periodically scans for active batches past their expiry date
// and publishes BatchExpired events for them. The monitor only alerts; it
// never deactivates stock on its own, write-offs stay an operator decision.
type ExpiryMonitor struct {
	batchRepo ledger.BatchRepository
	eventBus  shared.EventPublisher
	logger    *zap.Logger

	mu      sync.Mutex
	alerted map[uuid.UUID]struct{}
}

// NewExpiryMonitor creates a new ExpiryMonitor
func NewExpiryMonitor(
	batchRepo ledger.BatchRepository,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *ExpiryMonitor {
	return &ExpiryMonitor{
		batchRepo: batchRepo,
		eventBus:  eventBus,
		logger:    logger,
		alerted:   make(map[uuid.UUID]struct{}),
	}
}

// ExpiryScanStats contains statistics about one expiry scan
type ExpiryScanStats struct {
	TotalExpired int       `json:"total_expired"`
	NewlyAlerted int       `json:"newly_alerted"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Scan finds expired active batches and publishes an event for each batch
// not already alerted. Batches alerted in a previous scan are skipped so
// operators are not re-notified on every tick.
func (m *ExpiryMonitor) Scan(ctx context.Context) (*ExpiryScanStats, error) {
	stats := &ExpiryScanStats{
		ProcessedAt: time.Now(),
	}

	expired, err := m.batchRepo.FindExpired(ctx)
	if err != nil {
		m.logger.Error("Failed to find expired batches", zap.Error(err))
		return nil, err
	}

	stats.TotalExpired = len(expired)
	if stats.TotalExpired == 0 {
		m.logger.Debug("No expired batches found")
		return stats, nil
	}

	m.mu.Lock()
	fresh := make([]*ledger.Batch, 0, len(expired))
	seen := make(map[uuid.UUID]struct{}, len(expired))
	for _, batch := range expired {
		seen[batch.ID] = struct{}{}
		if _, ok := m.alerted[batch.ID]; !ok {
			fresh = append(fresh, batch)
			m.alerted[batch.ID] = struct{}{}
		}
	}
	// Drop batches that are no longer expired-and-active (consumed or
	// retired since the last scan) so the set cannot grow unbounded.
	for id := range m.alerted {
		if _, ok := seen[id]; !ok {
			delete(m.alerted, id)
		}
	}
	m.mu.Unlock()

	for _, batch := range fresh {
		if m.eventBus != nil {
			event := ledger.NewBatchExpiredEvent(batch)
			if err := m.eventBus.Publish(ctx, event); err != nil {
				m.logger.Warn("Failed to publish BatchExpired event",
					zap.String("batch_id", batch.ID.String()),
					zap.Error(err),
				)
				continue
			}
		}
		stats.NewlyAlerted++
		m.logger.Warn("batch holds expired stock",
			zap.String("batch_id", batch.ID.String()),
			zap.String("product_id", batch.ProductID.String()),
			zap.String("quantity_remaining", batch.Quantity.String()),
		)
	}

	m.logger.Info("Completed expiry scan",
		zap.Int("total_expired", stats.TotalExpired),
		zap.Int("newly_alerted", stats.NewlyAlerted),
	)

	return stats, nil
}

// Run scans on the given interval until the context is cancelled
func (m *ExpiryMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("expiry monitor started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("expiry monitor stopped")
			return
		case <-ticker.C:
			if _, err := m.Scan(ctx); err != nil {
				m.logger.Error("expiry scan failed", zap.Error(err))
			}
		}
	}
}
