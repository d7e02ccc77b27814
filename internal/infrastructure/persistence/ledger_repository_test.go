package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	appledger "github.com/restopos/backend/internal/application/ledger"
	"github.com/restopos/backend/internal/domain/ledger"
	"github.com/restopos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&ledger.Batch{},
		&ledger.ConsumptionRecord{},
		&ledger.ConsumptionLine{},
		&ledger.ProductSummary{},
	)
	require.NoError(t, err)

	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newBatch(t *testing.T, productID uuid.UUID, qty, cost string, receivedOffset time.Duration) *ledger.Batch {
	t.Helper()
	batch, err := ledger.NewBatch(productID, dec(qty), dec(cost), nil, "", "")
	require.NoError(t, err)
	batch.ReceivedAt = time.Now().Add(receivedOffset)
	batch.ClearDomainEvents()
	return batch
}

func TestGormBatchRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create and FindByID round-trips", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormBatchRepository(db)
		batch := newBatch(t, uuid.New(), "10", "5.00", 0)

		require.NoError(t, repo.Create(ctx, batch))

		found, err := repo.FindByID(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, batch.ID, found.ID)
		assert.True(t, found.Quantity.Equal(dec("10")))
		assert.True(t, found.UnitCost.Equal(dec("5")))
		assert.True(t, found.Active)
	})

	t.Run("FindByID reports not found", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormBatchRepository(db)

		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("FindActiveByProduct returns FIFO order and skips inactive", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormBatchRepository(db)
		productID := uuid.New()

		newest := newBatch(t, productID, "1", "1", 0)
		oldest := newBatch(t, productID, "1", "1", -2*time.Hour)
		middle := newBatch(t, productID, "1", "1", -time.Hour)
		retired := newBatch(t, productID, "1", "1", -3*time.Hour)
		retired.Retire()
		other := newBatch(t, uuid.New(), "1", "1", -4*time.Hour)

		for _, b := range []*ledger.Batch{newest, oldest, middle, retired, other} {
			require.NoError(t, repo.Create(ctx, b))
		}

		batches, err := repo.FindActiveByProduct(ctx, productID)
		require.NoError(t, err)
		require.Len(t, batches, 3)
		assert.Equal(t, oldest.ID, batches[0].ID)
		assert.Equal(t, middle.ID, batches[1].ID)
		assert.Equal(t, newest.ID, batches[2].ID)
	})

	t.Run("Save persists deduction and version", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormBatchRepository(db)
		batch := newBatch(t, uuid.New(), "10", "5.00", 0)
		require.NoError(t, repo.Create(ctx, batch))

		require.NoError(t, batch.Deduct(dec("4")))
		require.NoError(t, repo.Save(ctx, batch))

		found, err := repo.FindByID(ctx, batch.ID)
		require.NoError(t, err)
		assert.True(t, found.Quantity.Equal(dec("6")))
		assert.Equal(t, 2, found.Version)
	})

	t.Run("Save rejects stale version", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormBatchRepository(db)
		batch := newBatch(t, uuid.New(), "10", "5.00", 0)
		require.NoError(t, repo.Create(ctx, batch))

		require.NoError(t, batch.Deduct(dec("4")))
		require.NoError(t, repo.Save(ctx, batch))

		// Saving the same version transition again must conflict.
		err := repo.Save(ctx, batch)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("Expiry queries split expired from expiring", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormBatchRepository(db)
		productID := uuid.New()

		expired := newBatch(t, productID, "2", "1", -2*time.Hour)
		past := time.Now().Add(-time.Hour)
		expired.ExpiryDate = &past

		expiring := newBatch(t, productID, "2", "1", -time.Hour)
		soon := time.Now().Add(2 * 24 * time.Hour)
		expiring.ExpiryDate = &soon

		fresh := newBatch(t, productID, "2", "1", 0)

		for _, b := range []*ledger.Batch{expired, expiring, fresh} {
			require.NoError(t, repo.Create(ctx, b))
		}

		gone, err := repo.FindExpired(ctx)
		require.NoError(t, err)
		require.Len(t, gone, 1)
		assert.Equal(t, expired.ID, gone[0].ID)

		closing, err := repo.FindExpiringSoon(ctx, 7*24*time.Hour)
		require.NoError(t, err)
		require.Len(t, closing, 1)
		assert.Equal(t, expiring.ID, closing[0].ID)
	})

	t.Run("Aggregates count and sum active stock", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormBatchRepository(db)
		productID := uuid.New()

		a := newBatch(t, productID, "10", "5.00", -time.Hour)
		b := newBatch(t, productID, "5", "7.00", 0)
		retired := newBatch(t, productID, "3", "1.00", -2*time.Hour)
		retired.Retire()
		for _, batch := range []*ledger.Batch{a, b, retired} {
			require.NoError(t, repo.Create(ctx, batch))
		}

		count, err := repo.CountActiveByProduct(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		total, err := repo.SumActiveQuantity(ctx, productID)
		require.NoError(t, err)
		assert.True(t, total.Equal(dec("15")), "total was %s", total)
	})
}

func TestGormConsumptionRecordRepository(t *testing.T) {
	ctx := context.Background()

	createRecord := func(t *testing.T, repo *GormConsumptionRecordRepository, productID uuid.UUID, qty, cost string) *ledger.ConsumptionRecord {
		t.Helper()
		batch := newBatch(t, productID, qty, cost, -time.Hour)
		plan, err := ledger.PlanConsumption(dec(qty), []*ledger.Batch{batch})
		require.NoError(t, err)
		record, err := ledger.NewConsumptionRecord(productID, ledger.ReasonSale, plan)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, record))
		return record
	}

	t.Run("Create persists lines and FindByID preloads them", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormConsumptionRecordRepository(db)
		productID := uuid.New()

		record := createRecord(t, repo, productID, "4", "2.50")

		found, err := repo.FindByID(ctx, record.ID)
		require.NoError(t, err)
		require.Len(t, found.Lines, 1)
		assert.True(t, found.Lines[0].Quantity.Equal(dec("4")))
		assert.True(t, found.TotalCost.Equal(dec("10")))
	})

	t.Run("FindByProduct filters and orders newest first", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormConsumptionRecordRepository(db)
		productID := uuid.New()

		createRecord(t, repo, productID, "4", "2.50")
		createRecord(t, repo, productID, "2", "3.00")
		createRecord(t, repo, uuid.New(), "1", "1.00")

		records, err := repo.FindByProduct(ctx, productID, shared.NewFilter())
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("SumConsumedByProduct totals the audit trail", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormConsumptionRecordRepository(db)
		productID := uuid.New()

		createRecord(t, repo, productID, "4", "2.50")
		createRecord(t, repo, productID, "2", "3.00")

		total, err := repo.SumConsumedByProduct(ctx, productID)
		require.NoError(t, err)
		assert.True(t, total.Equal(dec("6")), "total was %s", total)
	})
}

func TestGormSummaryRepository(t *testing.T) {
	ctx := context.Background()

	summaryFor := func(productID uuid.UUID, onHand, min string, expired int) ledger.ProductSummary {
		return ledger.ProductSummary{
			ProductID:      productID,
			OnHandQuantity: dec(onHand),
			AverageCost:    dec("5"),
			MinQuantity:    dec(min),
			ExpiredCount:   expired,
			ComputedAt:     time.Now(),
		}
	}

	t.Run("Upsert inserts then updates in place", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormSummaryRepository(db)
		productID := uuid.New()

		require.NoError(t, repo.Upsert(ctx, summaryFor(productID, "10", "3", 0)))
		require.NoError(t, repo.Upsert(ctx, summaryFor(productID, "7", "3", 0)))

		found, err := repo.FindByProduct(ctx, productID)
		require.NoError(t, err)
		assert.True(t, found.OnHandQuantity.Equal(dec("7")))

		var count int64
		require.NoError(t, db.Model(&ledger.ProductSummary{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("ListNeedingAttention matches the classifier predicate", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormSummaryRepository(db)

		healthy := uuid.New()
		low := uuid.New()
		holdingExpired := uuid.New()
		require.NoError(t, repo.Upsert(ctx, summaryFor(healthy, "10", "3", 0)))
		require.NoError(t, repo.Upsert(ctx, summaryFor(low, "2", "3", 0)))
		require.NoError(t, repo.Upsert(ctx, summaryFor(holdingExpired, "10", "3", 1)))

		flagged, err := repo.ListNeedingAttention(ctx, shared.NewFilter())
		require.NoError(t, err)
		require.Len(t, flagged, 2)
		ids := []uuid.UUID{flagged[0].ProductID, flagged[1].ProductID}
		assert.Contains(t, ids, low)
		assert.Contains(t, ids, holdingExpired)
	})

	t.Run("Delete removes the cache row", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormSummaryRepository(db)
		productID := uuid.New()

		require.NoError(t, repo.Upsert(ctx, summaryFor(productID, "10", "3", 0)))
		require.NoError(t, repo.Delete(ctx, productID))

		_, err := repo.FindByProduct(ctx, productID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormTransactionScope(t *testing.T) {
	ctx := context.Background()

	t.Run("Commits batch, record and summary together", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		scope := NewGormTransactionScope(db)
		productID := uuid.New()
		batch := newBatch(t, productID, "10", "5.00", -time.Hour)

		err := scope.Execute(ctx, func(repos appledger.TransactionalRepositories) error {
			if err := repos.BatchRepo().Create(ctx, batch); err != nil {
				return err
			}
			return repos.SummaryRepo().Upsert(ctx, ledger.ProductSummary{
				ProductID:      productID,
				OnHandQuantity: dec("10"),
				AverageCost:    dec("5"),
				ComputedAt:     time.Now(),
			})
		})
		require.NoError(t, err)

		found, err := NewGormBatchRepository(db).FindByID(ctx, batch.ID)
		require.NoError(t, err)
		assert.True(t, found.Active)

		summary, err := NewGormSummaryRepository(db).FindByProduct(ctx, productID)
		require.NoError(t, err)
		assert.True(t, summary.OnHandQuantity.Equal(dec("10")))
	})

	t.Run("Rolls everything back when the function fails", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		scope := NewGormTransactionScope(db)
		batch := newBatch(t, uuid.New(), "10", "5.00", -time.Hour)

		err := scope.Execute(ctx, func(repos appledger.TransactionalRepositories) error {
			if err := repos.BatchRepo().Create(ctx, batch); err != nil {
				return err
			}
			return assert.AnError
		})
		require.Error(t, err)

		_, err = NewGormBatchRepository(db).FindByID(ctx, batch.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
