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

// GormConsumptionRecordRepository implements ConsumptionRecordRepository
// using GORM. The table is append-only: no update or delete methods exist.
type GormConsumptionRecordRepository struct {
	db *gorm.DB
}

// NewGormConsumptionRecordRepository creates a new GormConsumptionRecordRepository
func NewGormConsumptionRecordRepository(db *gorm.DB) *GormConsumptionRecordRepository {
	return &GormConsumptionRecordRepository{db: db}
}

// FindByID finds a record with its lines
func (r *GormConsumptionRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.ConsumptionRecord, error) {
	var record ledger.ConsumptionRecord
	if err := r.db.WithContext(ctx).Preload("Lines").First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByProduct returns a product's records, newest first
func (r *GormConsumptionRecordRepository) FindByProduct(ctx context.Context, productID uuid.UUID, filter shared.Filter) ([]*ledger.ConsumptionRecord, error) {
	var records []*ledger.ConsumptionRecord
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&ledger.ConsumptionRecord{}).
			Preload("Lines").
			Where("product_id = ?", productID),
		filter,
	)
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// FindByDateRange returns records within [start, end)
func (r *GormConsumptionRecordRepository) FindByDateRange(ctx context.Context, start, end time.Time, filter shared.Filter) ([]*ledger.ConsumptionRecord, error) {
	var records []*ledger.ConsumptionRecord
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&ledger.ConsumptionRecord{}).
			Preload("Lines").
			Where("occurred_at >= ? AND occurred_at < ?", start, end),
		filter,
	)
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Create appends a record with its lines
func (r *GormConsumptionRecordRepository) Create(ctx context.Context, record *ledger.ConsumptionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// SumConsumedByProduct sums total quantity consumed for a product
func (r *GormConsumptionRecordRepository) SumConsumedByProduct(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&ledger.ConsumptionRecord{}).
		Select("COALESCE(SUM(total_quantity), 0) AS total").
		Where("product_id = ?", productID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// SumCostByProductAndRange sums cost of goods for a product within [start, end)
func (r *GormConsumptionRecordRepository) SumCostByProductAndRange(ctx context.Context, productID uuid.UUID, start, end time.Time) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&ledger.ConsumptionRecord{}).
		Select("COALESCE(SUM(total_cost), 0) AS total").
		Where("product_id = ? AND occurred_at >= ? AND occurred_at < ?", productID, start, end).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// applyFilter applies filter options to the query
func (r *GormConsumptionRecordRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
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
		query = query.Order("occurred_at DESC")
	}

	for key, value := range filter.Filters {
		switch key {
		case "reason":
			query = query.Where("reason = ?", value)
		}
	}

	return query
}

// Ensure GormConsumptionRecordRepository implements ConsumptionRecordRepository
var _ ledger.ConsumptionRecordRepository = (*GormConsumptionRecordRepository)(nil)
