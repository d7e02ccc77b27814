package ledger

import (
	"context"
	"fmt"

	"github.com/restopos/backend/internal/domain/ledger"
	"github.com/restopos/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LowStockHandler handles StockBelowThreshold events and triggers
// notifications when a product falls to or below its reorder threshold
type LowStockHandler struct {
	logger   *zap.Logger
	notifier StockAlertNotifier
}

// StockAlertNotifier is the interface for sending stock alerts.
// Implementations can support different channels (in-app, email, SMS, etc.)
type StockAlertNotifier interface {
	// SendAlert sends a stock alert notification
	SendAlert(ctx context.Context, alert StockAlert) error
}

// StockAlert represents a stock level alert
type StockAlert struct {
	ProductID       string `json:"product_id"`
	CurrentQuantity string `json:"current_quantity"`
	MinimumQuantity string `json:"minimum_quantity"`
	AlertType       string `json:"alert_type"` // "low_stock", "out_of_stock"
}

// NewLowStockHandler creates a new handler for stock below threshold events
func NewLowStockHandler(logger *zap.Logger) *LowStockHandler {
	return &LowStockHandler{
		logger: logger,
	}
}

// WithNotifier sets the notifier for sending alerts
func (h *LowStockHandler) WithNotifier(notifier StockAlertNotifier) *LowStockHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *LowStockHandler) EventTypes() []string {
	return []string{ledger.EventTypeStockBelowThreshold}
}

// Handle processes a StockBelowThresholdEvent
func (h *LowStockHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	thresholdEvent, ok := event.(*ledger.StockBelowThresholdEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", ledger.EventTypeStockBelowThreshold),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			ledger.EventTypeStockBelowThreshold, event.EventType())
	}

	h.logger.Warn("stock below threshold detected",
		zap.String("product_id", thresholdEvent.ProductID.String()),
		zap.String("on_hand_quantity", thresholdEvent.OnHandQuantity.String()),
		zap.String("minimum_quantity", thresholdEvent.MinimumQuantity.String()),
	)

	alertType := "low_stock"
	if !thresholdEvent.OnHandQuantity.IsPositive() {
		alertType = "out_of_stock"
	}

	if h.notifier != nil {
		alert := StockAlert{
			ProductID:       thresholdEvent.ProductID.String(),
			CurrentQuantity: thresholdEvent.OnHandQuantity.String(),
			MinimumQuantity: thresholdEvent.MinimumQuantity.String(),
			AlertType:       alertType,
		}
		if err := h.notifier.SendAlert(ctx, alert); err != nil {
			// Notification failure must not fail the event handling.
			h.logger.Error("failed to send stock alert notification",
				zap.String("product_id", alert.ProductID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// Ensure LowStockHandler implements shared.EventHandler
var _ shared.EventHandler = (*LowStockHandler)(nil)

// LoggingStockAlertNotifier is a simple notifier that logs alerts.
// This is useful for development and testing.
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a new logging notifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{
		logger: logger,
	}
}

// SendAlert logs the stock alert
func (n *LoggingStockAlertNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("product_id", alert.ProductID),
		zap.String("current_qty", alert.CurrentQuantity),
		zap.String("minimum_qty", alert.MinimumQuantity),
	)
	return nil
}

// Ensure LoggingStockAlertNotifier implements StockAlertNotifier
var _ StockAlertNotifier = (*LoggingStockAlertNotifier)(nil)
