package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewBatch(t *testing.T) {
	productID := uuid.New()

	t.Run("Creates active batch with original quantity preserved", func(t *testing.T) {
		expiry := timePtr(time.Now().Add(30 * 24 * time.Hour))
		batch, err := NewBatch(productID, dec("10"), dec("5.00"), expiry, "Fresh Farms", "morning delivery")

		require.NoError(t, err)
		assert.Equal(t, productID, batch.ProductID)
		assert.True(t, batch.Quantity.Equal(dec("10")))
		assert.True(t, batch.OriginalQuantity.Equal(dec("10")))
		assert.True(t, batch.UnitCost.Equal(dec("5.00")))
		assert.True(t, batch.Active)
		assert.Equal(t, "Fresh Farms", batch.Supplier)
	})

	t.Run("Emits BatchReceived event", func(t *testing.T) {
		batch, err := NewBatch(productID, dec("3"), dec("2.50"), nil, "", "")

		require.NoError(t, err)
		events := batch.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeBatchReceived, events[0].EventType())

		received, ok := events[0].(*BatchReceivedEvent)
		require.True(t, ok)
		assert.Equal(t, batch.ID, received.BatchID)
		assert.True(t, received.Quantity.Equal(dec("3")))
	})

	t.Run("Rounds unit cost to four decimal places", func(t *testing.T) {
		batch, err := NewBatch(productID, dec("1"), dec("0.333333"), nil, "", "")

		require.NoError(t, err)
		assert.True(t, batch.UnitCost.Equal(dec("0.3333")))
	})

	t.Run("Rejects nil product ID", func(t *testing.T) {
		_, err := NewBatch(uuid.Nil, dec("1"), dec("1"), nil, "", "")
		assert.Error(t, err)
	})

	t.Run("Rejects zero and negative quantity", func(t *testing.T) {
		_, err := NewBatch(productID, decimal.Zero, dec("1"), nil, "", "")
		assert.Error(t, err)

		_, err = NewBatch(productID, dec("-2"), dec("1"), nil, "", "")
		assert.Error(t, err)
	})

	t.Run("Rejects negative unit cost but allows zero", func(t *testing.T) {
		_, err := NewBatch(productID, dec("1"), dec("-0.01"), nil, "", "")
		assert.Error(t, err)

		batch, err := NewBatch(productID, dec("1"), decimal.Zero, nil, "", "")
		require.NoError(t, err)
		assert.True(t, batch.UnitCost.IsZero())
	})

	t.Run("Rejects already-expired stock with typed error", func(t *testing.T) {
		expiry := timePtr(time.Now().Add(-48 * time.Hour))
		_, err := NewBatch(productID, dec("5"), dec("1"), expiry, "", "")

		require.Error(t, err)
		var expiredErr *ExpiredBatchError
		require.ErrorAs(t, err, &expiredErr)
		assert.Equal(t, productID, expiredErr.ProductID)
	})

	t.Run("Accepts expiry later today", func(t *testing.T) {
		expiry := timePtr(time.Now().Add(time.Minute))
		_, err := NewBatch(productID, dec("5"), dec("1"), expiry, "", "")
		assert.NoError(t, err)
	})
}

func TestBatchDeduct(t *testing.T) {
	newActiveBatch := func(qty string) *Batch {
		b, err := NewBatch(uuid.New(), dec(qty), dec("4.00"), nil, "", "")
		require.NoError(t, err)
		return b
	}

	t.Run("Reduces remaining quantity and bumps version", func(t *testing.T) {
		batch := newActiveBatch("10")
		versionBefore := batch.Version

		err := batch.Deduct(dec("4"))

		require.NoError(t, err)
		assert.True(t, batch.Quantity.Equal(dec("6")))
		assert.True(t, batch.OriginalQuantity.Equal(dec("10")))
		assert.True(t, batch.Active)
		assert.Equal(t, versionBefore+1, batch.Version)
	})

	t.Run("Deactivates batch when quantity reaches zero", func(t *testing.T) {
		batch := newActiveBatch("5")

		err := batch.Deduct(dec("5"))

		require.NoError(t, err)
		assert.True(t, batch.Quantity.IsZero())
		assert.False(t, batch.Active)
	})

	t.Run("Refuses to overdraw instead of clamping", func(t *testing.T) {
		batch := newActiveBatch("3")

		err := batch.Deduct(dec("3.0001"))

		assert.Error(t, err)
		assert.True(t, batch.Quantity.Equal(dec("3")))
		assert.True(t, batch.Active)
	})

	t.Run("Refuses deduction from inactive batch", func(t *testing.T) {
		batch := newActiveBatch("3")
		batch.Retire()

		err := batch.Deduct(dec("1"))
		assert.Error(t, err)
	})

	t.Run("Refuses non-positive deduction", func(t *testing.T) {
		batch := newActiveBatch("3")

		assert.Error(t, batch.Deduct(decimal.Zero))
		assert.Error(t, batch.Deduct(dec("-1")))
	})
}

func TestBatchRetire(t *testing.T) {
	t.Run("Deactivates and emits BatchRetired with remaining quantity", func(t *testing.T) {
		batch, err := NewBatch(uuid.New(), dec("8"), dec("2.00"), nil, "", "")
		require.NoError(t, err)
		batch.ClearDomainEvents()

		batch.Retire()

		assert.False(t, batch.Active)
		events := batch.GetDomainEvents()
		require.Len(t, events, 1)
		retired, ok := events[0].(*BatchRetiredEvent)
		require.True(t, ok)
		assert.True(t, retired.QuantityRemaining.Equal(dec("8")))
	})

	t.Run("Is a no-op on an already inactive batch", func(t *testing.T) {
		batch, err := NewBatch(uuid.New(), dec("8"), dec("2.00"), nil, "", "")
		require.NoError(t, err)
		batch.Retire()
		batch.ClearDomainEvents()
		versionBefore := batch.Version

		batch.Retire()

		assert.Empty(t, batch.GetDomainEvents())
		assert.Equal(t, versionBefore, batch.Version)
	})
}

func TestBatchExpiry(t *testing.T) {
	now := time.Now()
	horizon := 7 * 24 * time.Hour

	t.Run("Batch without expiry date never expires", func(t *testing.T) {
		batch := &Batch{ExpiryDate: nil}
		assert.False(t, batch.IsExpired(now))
		assert.False(t, batch.ExpiresWithin(now, horizon))
	})

	t.Run("Past expiry date is expired, not expiring-soon", func(t *testing.T) {
		batch := &Batch{ExpiryDate: timePtr(now.Add(-time.Hour))}
		assert.True(t, batch.IsExpired(now))
		assert.False(t, batch.ExpiresWithin(now, horizon))
	})

	t.Run("Expiry inside horizon is expiring-soon", func(t *testing.T) {
		batch := &Batch{ExpiryDate: timePtr(now.Add(3 * 24 * time.Hour))}
		assert.False(t, batch.IsExpired(now))
		assert.True(t, batch.ExpiresWithin(now, horizon))
	})

	t.Run("Expiry beyond horizon is fresh", func(t *testing.T) {
		batch := &Batch{ExpiryDate: timePtr(now.Add(10 * 24 * time.Hour))}
		assert.False(t, batch.IsExpired(now))
		assert.False(t, batch.ExpiresWithin(now, horizon))
	})
}

func TestBatchAccounting(t *testing.T) {
	t.Run("Tracks consumed quantity and remaining value", func(t *testing.T) {
		batch, err := NewBatch(uuid.New(), dec("10"), dec("5.00"), nil, "", "")
		require.NoError(t, err)
		require.NoError(t, batch.Deduct(dec("4")))

		assert.True(t, batch.ConsumedQuantity().Equal(dec("4")))
		assert.True(t, batch.PercentConsumed().Equal(dec("40")))
		assert.True(t, batch.RemainingValue().Equal(dec("30")))
	})
}

func TestBatchFIFOOrdering(t *testing.T) {
	t.Run("Earlier received batch comes first", func(t *testing.T) {
		older := &Batch{ReceivedAt: time.Now().Add(-time.Hour)}
		newer := &Batch{ReceivedAt: time.Now()}

		assert.True(t, older.Before(newer))
		assert.False(t, newer.Before(older))
	})

	t.Run("Identical timestamps break ties by batch ID bytes", func(t *testing.T) {
		ts := time.Now()
		a := &Batch{ReceivedAt: ts}
		b := &Batch{ReceivedAt: ts}
		a.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
		b.ID = uuid.MustParse("00000000-0000-0000-0000-000000000002")

		assert.True(t, a.Before(b))
		assert.False(t, b.Before(a))
	})
}
