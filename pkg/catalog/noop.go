package catalog

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) ProductChanged(ctx context.Context, product *Product) error { return nil }

func (n *NoopEventSink) ProductDeleted(ctx context.Context, productID int64) error { return nil }

func (n *NoopEventSink) OrderCreated(ctx context.Context, order *Order) error { return nil }

// LoggingEventSink logs events but takes no other action.
// Useful for development and debugging.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink; nil means slog.Default()
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// ProductChanged logs the product change event
func (l *LoggingEventSink) ProductChanged(ctx context.Context, product *Product) error {
	l.logger.InfoContext(ctx, "product changed", "id", product.ID, "name", product.Name, "category", product.Category)
	return nil
}

// ProductDeleted logs the product deletion event
func (l *LoggingEventSink) ProductDeleted(ctx context.Context, productID int64) error {
	l.logger.InfoContext(ctx, "product deleted", "id", productID)
	return nil
}

// OrderCreated logs the order creation event
func (l *LoggingEventSink) OrderCreated(ctx context.Context, order *Order) error {
	l.logger.InfoContext(ctx, "order created", "id", order.ID, "user_id", order.UserID, "items", len(order.Items), "total", order.Total.String())
	return nil
}

// MultiEventSink fans each event out to several sinks. Every sink is called;
// the first error is returned.
type MultiEventSink []EventSink

func (m MultiEventSink) ProductChanged(ctx context.Context, product *Product) error {
	var first error
	for _, s := range m {
		if err := s.ProductChanged(ctx, product); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiEventSink) ProductDeleted(ctx context.Context, productID int64) error {
	var first error
	for _, s := range m {
		if err := s.ProductDeleted(ctx, productID); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiEventSink) OrderCreated(ctx context.Context, order *Order) error {
	var first error
	for _, s := range m {
		if err := s.OrderCreated(ctx, order); err != nil && first == nil {
			first = err
		}
	}
	return first
}
