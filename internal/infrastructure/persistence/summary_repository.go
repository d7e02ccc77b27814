package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/restopos/backend/internal/domain/ledger"
	"github.com/restopos/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSummaryRepository implements SummaryRepository using GORM
type GormSummaryRepository struct {
	db *gorm.DB
}

// NewGormSummaryRepository creates a new GormSummaryRepository
func NewGormSummaryRepository(db *gorm.DB) *GormSummaryRepository {
	return &GormSummaryRepository{db: db}
}

// FindByProduct finds the cached summary for a product
func (r *GormSummaryRepository) FindByProduct(ctx context.Context, productID uuid.UUID) (*ledger.ProductSummary, error) {
	var summary ledger.ProductSummary
	if err := r.db.WithContext(ctx).First(&summary, "product_id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &summary, nil
}

// Upsert writes the recomputed summary
func (r *GormSummaryRepository) Upsert(ctx context.Context, summary ledger.ProductSummary) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			UpdateAll: true,
		}).
		Create(&summary).Error
}

// ListNeedingAttention lists summaries that are low, out of stock, expiring
// or expired. The predicate mirrors Classify; keep them in sync.
func (r *GormSummaryRepository) ListNeedingAttention(ctx context.Context, filter shared.Filter) ([]*ledger.ProductSummary, error) {
	var summaries []*ledger.ProductSummary
	query := r.db.WithContext(ctx).
		Model(&ledger.ProductSummary{}).
		Where("on_hand_quantity <= min_quantity OR expired_count > 0 OR expiring_count > 0").
		Order("on_hand_quantity ASC")
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	if err := query.Find(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

// Delete removes the cache row for a product
func (r *GormSummaryRepository) Delete(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&ledger.ProductSummary{}, "product_id = ?", productID).Error
}

// Ensure GormSummaryRepository implements SummaryRepository
var _ ledger.SummaryRepository = (*GormSummaryRepository)(nil)
