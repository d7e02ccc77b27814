package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestBatch builds a batch received at the given offset from now.
func createTestBatch(t *testing.T, productID uuid.UUID, qty, cost string, receivedOffset time.Duration) *Batch {
	t.Helper()
	batch, err := NewBatch(productID, dec(qty), dec(cost), nil, "", "")
	require.NoError(t, err)
	batch.ReceivedAt = time.Now().Add(receivedOffset)
	batch.ClearDomainEvents()
	return batch
}

func TestSortFIFO(t *testing.T) {
	productID := uuid.New()

	t.Run("Orders by received time ascending", func(t *testing.T) {
		newest := createTestBatch(t, productID, "1", "1", 0)
		oldest := createTestBatch(t, productID, "1", "1", -2*time.Hour)
		middle := createTestBatch(t, productID, "1", "1", -time.Hour)

		batches := []*Batch{newest, oldest, middle}
		SortFIFO(batches)

		assert.Equal(t, oldest.ID, batches[0].ID)
		assert.Equal(t, middle.ID, batches[1].ID)
		assert.Equal(t, newest.ID, batches[2].ID)
	})

	t.Run("Breaks received-time ties deterministically by ID", func(t *testing.T) {
		ts := time.Now()
		a := createTestBatch(t, productID, "1", "1", 0)
		b := createTestBatch(t, productID, "1", "1", 0)
		a.ReceivedAt = ts
		b.ReceivedAt = ts
		a.ID = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
		b.ID = uuid.MustParse("00000000-0000-0000-0000-0000000000bb")

		for _, batches := range [][]*Batch{{a, b}, {b, a}} {
			SortFIFO(batches)
			assert.Equal(t, a.ID, batches[0].ID)
			assert.Equal(t, b.ID, batches[1].ID)
		}
	})
}

func TestPlanConsumption(t *testing.T) {
	productID := uuid.New()

	t.Run("Takes everything from the oldest batch when it suffices", func(t *testing.T) {
		batchA := createTestBatch(t, productID, "10", "5.00", -2*time.Hour)
		batchB := createTestBatch(t, productID, "5", "7.00", -time.Hour)

		plan, err := PlanConsumption(dec("8"), []*Batch{batchB, batchA})

		require.NoError(t, err)
		assert.True(t, plan.FullySatisfied)
		require.Len(t, plan.Lines, 1)
		assert.Equal(t, batchA.ID, plan.Lines[0].BatchID)
		assert.True(t, plan.Lines[0].Quantity.Equal(dec("8")))
		assert.True(t, plan.Lines[0].RemainingInBatch.Equal(dec("2")))
		assert.False(t, plan.Lines[0].FullyConsumed)
		assert.True(t, plan.TotalCost.Equal(dec("40")))
		assert.True(t, plan.BlendedUnitCost.Equal(dec("5")))
	})

	t.Run("Spans batches and blends the cost", func(t *testing.T) {
		batchA := createTestBatch(t, productID, "2", "5.00", -2*time.Hour)
		batchB := createTestBatch(t, productID, "5", "7.00", -time.Hour)

		plan, err := PlanConsumption(dec("5"), []*Batch{batchA, batchB})

		require.NoError(t, err)
		assert.True(t, plan.FullySatisfied)
		require.Len(t, plan.Lines, 2)

		assert.Equal(t, batchA.ID, plan.Lines[0].BatchID)
		assert.True(t, plan.Lines[0].Quantity.Equal(dec("2")))
		assert.True(t, plan.Lines[0].FullyConsumed)

		assert.Equal(t, batchB.ID, plan.Lines[1].BatchID)
		assert.True(t, plan.Lines[1].Quantity.Equal(dec("3")))
		assert.True(t, plan.Lines[1].RemainingInBatch.Equal(dec("2")))

		// (2*5 + 3*7) / 5 = 5.80
		assert.True(t, plan.TotalCost.Equal(dec("31")))
		assert.True(t, plan.BlendedUnitCost.Equal(dec("5.80")), "blended cost was %s", plan.BlendedUnitCost)
	})

	t.Run("Reports the shortfall when stock cannot cover the request", func(t *testing.T) {
		batchA := createTestBatch(t, productID, "2", "5.00", -time.Hour)

		plan, err := PlanConsumption(dec("100"), []*Batch{batchA})

		require.NoError(t, err)
		assert.False(t, plan.FullySatisfied)
		assert.True(t, plan.Shortfall.Equal(dec("98")))
		assert.True(t, plan.TotalQuantity.Equal(dec("2")))
	})

	t.Run("Skips inactive and empty batches", func(t *testing.T) {
		retired := createTestBatch(t, productID, "10", "1.00", -3*time.Hour)
		retired.Retire()
		empty := createTestBatch(t, productID, "4", "1.00", -2*time.Hour)
		require.NoError(t, empty.Deduct(dec("4")))
		live := createTestBatch(t, productID, "6", "2.00", -time.Hour)

		plan, err := PlanConsumption(dec("6"), []*Batch{retired, empty, live})

		require.NoError(t, err)
		require.Len(t, plan.Lines, 1)
		assert.Equal(t, live.ID, plan.Lines[0].BatchID)
	})

	t.Run("Expired batches still participate in consumption", func(t *testing.T) {
		expired := createTestBatch(t, productID, "5", "3.00", -2*time.Hour)
		expired.ExpiryDate = timePtr(time.Now().Add(-time.Hour))
		fresh := createTestBatch(t, productID, "5", "4.00", -time.Hour)

		plan, err := PlanConsumption(dec("7"), []*Batch{fresh, expired})

		require.NoError(t, err)
		require.Len(t, plan.Lines, 2)
		assert.Equal(t, expired.ID, plan.Lines[0].BatchID)
	})

	t.Run("Rejects non-positive requests", func(t *testing.T) {
		_, err := PlanConsumption(decimal.Zero, nil)
		assert.Error(t, err)

		_, err = PlanConsumption(dec("-3"), nil)
		assert.Error(t, err)
	})

	t.Run("Does not mutate any batch", func(t *testing.T) {
		batch := createTestBatch(t, productID, "10", "5.00", -time.Hour)

		_, err := PlanConsumption(dec("4"), []*Batch{batch})

		require.NoError(t, err)
		assert.True(t, batch.Quantity.Equal(dec("10")))
		assert.Equal(t, 1, batch.Version)
	})
}

func TestApplyPlan(t *testing.T) {
	productID := uuid.New()

	t.Run("Deducts exactly what was planned", func(t *testing.T) {
		batchA := createTestBatch(t, productID, "2", "5.00", -2*time.Hour)
		batchB := createTestBatch(t, productID, "5", "7.00", -time.Hour)
		batches := []*Batch{batchA, batchB}

		plan, err := PlanConsumption(dec("5"), batches)
		require.NoError(t, err)

		require.NoError(t, ApplyPlan(batches, plan))

		assert.True(t, batchA.Quantity.IsZero())
		assert.False(t, batchA.Active)
		assert.True(t, batchB.Quantity.Equal(dec("2")))
		assert.True(t, batchB.Active)
	})

	t.Run("Fails when a batch changed between plan and apply", func(t *testing.T) {
		batch := createTestBatch(t, productID, "10", "5.00", -time.Hour)
		batches := []*Batch{batch}

		plan, err := PlanConsumption(dec("4"), batches)
		require.NoError(t, err)

		// Concurrent deduction invalidates the plan.
		require.NoError(t, batch.Deduct(dec("9")))

		assert.Error(t, ApplyPlan(batches, plan))
	})

	t.Run("Fails when a planned batch is missing", func(t *testing.T) {
		batch := createTestBatch(t, productID, "10", "5.00", -time.Hour)

		plan, err := PlanConsumption(dec("4"), []*Batch{batch})
		require.NoError(t, err)

		assert.Error(t, ApplyPlan([]*Batch{}, plan))
	})
}

func TestConservation(t *testing.T) {
	t.Run("Received equals remaining plus consumed across a consumption chain", func(t *testing.T) {
		productID := uuid.New()
		batchA := createTestBatch(t, productID, "10", "5.00", -2*time.Hour)
		batchB := createTestBatch(t, productID, "5", "7.00", -time.Hour)
		batches := []*Batch{batchA, batchB}

		received := batchA.OriginalQuantity.Add(batchB.OriginalQuantity)
		consumed := decimal.Zero

		for _, qty := range []string{"8", "5", "1"} {
			plan, err := PlanConsumption(dec(qty), batches)
			require.NoError(t, err)
			require.True(t, plan.FullySatisfied)
			require.NoError(t, ApplyPlan(batches, plan))
			consumed = consumed.Add(plan.TotalQuantity)
		}

		remaining := AvailableQuantity(batches)
		assert.True(t, received.Equal(remaining.Add(consumed)),
			"received %s != remaining %s + consumed %s", received, remaining, consumed)
		assert.True(t, remaining.Equal(dec("1")))
	})
}
