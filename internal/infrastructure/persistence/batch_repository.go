package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/restopos/backend/internal/domain/ledger"
	"github.com/restopos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Batch, error) {
	var batch ledger.Batch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// FindActiveByProduct returns the product's active batches in FIFO order.
// The ordering here and in SortFIFO must stay identical.
func (r *GormBatchRepository) FindActiveByProduct(ctx context.Context, productID uuid.UUID) ([]*ledger.Batch, error) {
	var batches []*ledger.Batch
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND active = ?", productID, true).
		Order("received_at ASC, id ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// FindByProduct returns all batches for a product, active or not
func (r *GormBatchRepository) FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]*ledger.Batch, error) {
	var batches []*ledger.Batch
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&ledger.Batch{}).
			Where("product_id = ?", productID),
		filter,
	)
	if err := query.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// FindExpiringSoon finds active batches expiring between now and the horizon
func (r *GormBatchRepository) FindExpiringSoon(ctx context.Context, horizon time.Duration) ([]*ledger.Batch, error) {
	var batches []*ledger.Batch
	now := time.Now()
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("expiry_date IS NOT NULL").
		Where("expiry_date >= ? AND expiry_date < ?", now, now.Add(horizon)).
		Order("expiry_date ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// FindExpired finds active batches whose expiry date has passed
func (r *GormBatchRepository) FindExpired(ctx context.Context) ([]*ledger.Batch, error) {
	var batches []*ledger.Batch
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("expiry_date IS NOT NULL AND expiry_date < ?", time.Now()).
		Order("expiry_date ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// Create persists a new batch
func (r *GormBatchRepository) Create(ctx context.Context, batch *ledger.Batch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

// Save updates a batch's mutable fields with an optimistic version check.
// Quantity, active flag and version are the only columns a batch mutation
// can touch; cost and original quantity are immutable by construction.
func (r *GormBatchRepository) Save(ctx context.Context, batch *ledger.Batch) error {
	result := r.db.WithContext(ctx).
		Model(&ledger.Batch{}).
		Where("id = ? AND version = ?", batch.ID, batch.Version-1).
		Updates(map[string]interface{}{
			"quantity":   batch.Quantity,
			"active":     batch.Active,
			"version":    batch.Version,
			"updated_at": batch.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// SaveAll updates multiple batches with optimistic version checking
func (r *GormBatchRepository) SaveAll(ctx context.Context, batches []*ledger.Batch) error {
	for _, batch := range batches {
		if err := r.Save(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

// CountActiveByProduct counts a product's active batches
func (r *GormBatchRepository) CountActiveByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&ledger.Batch{}).
		Where("product_id = ? AND active = ?", productID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumActiveQuantity sums remaining quantity over a product's active batches
func (r *GormBatchRepository) SumActiveQuantity(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&ledger.Batch{}).
		Select("COALESCE(SUM(quantity), 0) AS total").
		Where("product_id = ? AND active = ?", productID, true).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// applyFilter applies filter options to the query
func (r *GormBatchRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("received_at ASC, id ASC")
	}

	for key, value := range filter.Filters {
		switch key {
		case "active":
			query = query.Where("active = ?", value)
		case "has_stock":
			if value == true {
				query = query.Where("quantity > 0")
			}
		case "expired":
			if value == true {
				query = query.Where("expiry_date IS NOT NULL AND expiry_date < ?", time.Now())
			}
		}
	}

	return query
}

// Ensure GormBatchRepository implements BatchRepository
var _ ledger.BatchRepository = (*GormBatchRepository)(nil)
