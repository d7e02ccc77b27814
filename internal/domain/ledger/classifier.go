package ledger

import "github.com/shopspring/decimal"

// QuantityStatus describes the stock level axis of a product's status
type QuantityStatus string

const (
	// QuantityStatusOutOfStock means no units are on hand
	QuantityStatusOutOfStock QuantityStatus = "out_of_stock"
	// QuantityStatusLowStock means on-hand is at or below the reorder threshold
	QuantityStatusLowStock QuantityStatus = "low_stock"
	// QuantityStatusInStock means on-hand is above the reorder threshold
	QuantityStatusInStock QuantityStatus = "in_stock"
)

// String returns the string representation
func (s QuantityStatus) String() string {
	return string(s)
}

// ExpiryStatus describes the expiry axis of a product's status
type ExpiryStatus string

const (
	// ExpiryStatusExpired means at least one active batch is past its expiry date
	ExpiryStatusExpired ExpiryStatus = "expired"
	// ExpiryStatusExpiringSoon means at least one active batch expires within the horizon
	ExpiryStatusExpiringSoon ExpiryStatus = "expiring_soon"
	// ExpiryStatusFresh means no active batch is expired or expiring within the horizon
	ExpiryStatusFresh ExpiryStatus = "fresh"
)

// String returns the string representation
func (s ExpiryStatus) String() string {
	return string(s)
}

// StockStatus carries both classification axes. They are reported together,
// never collapsed into one enum: a product can be simultaneously low on
// stock and holding an expired batch, and callers need both facts.
type StockStatus struct {
	Quantity QuantityStatus `json:"quantity_status"`
	Expiry   ExpiryStatus   `json:"expiry_status"`
}

// Classify derives the two-axis status from a product summary. Expired takes
// precedence over expiring-soon on the expiry axis; out-of-stock over
// low-stock on the quantity axis.
func Classify(summary ProductSummary) StockStatus {
	status := StockStatus{
		Quantity: QuantityStatusInStock,
		Expiry:   ExpiryStatusFresh,
	}

	switch {
	case summary.OnHandQuantity.LessThanOrEqual(decimal.Zero):
		status.Quantity = QuantityStatusOutOfStock
	case summary.OnHandQuantity.LessThanOrEqual(summary.MinQuantity):
		status.Quantity = QuantityStatusLowStock
	}

	switch {
	case summary.ExpiredCount > 0:
		status.Expiry = ExpiryStatusExpired
	case summary.ExpiringCount > 0:
		status.Expiry = ExpiryStatusExpiringSoon
	}

	return status
}

// NeedsAttention returns true when the status warrants an operator alert
func (s StockStatus) NeedsAttention() bool {
	return s.Quantity != QuantityStatusInStock || s.Expiry != ExpiryStatusFresh
}
