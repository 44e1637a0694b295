package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column on outbox_events.
type OutboxAggregateType string

const (
	AggregateSale         OutboxAggregateType = "sale"
	AggregateOrder        OutboxAggregateType = "order"
	AggregateProduct      OutboxAggregateType = "product"
	AggregateReport       OutboxAggregateType = "report"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateSale,
	AggregateOrder,
	AggregateProduct,
	AggregateReport,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column on outbox_events.
type OutboxEventType string

const (
	EventSaleCompleted        OutboxEventType = "sale_completed"
	EventSaleCancelled        OutboxEventType = "sale_cancelled"
	EventOrderCreated         OutboxEventType = "order_created"
	EventOrderPaymentUploaded OutboxEventType = "order_payment_uploaded"
	EventOrderConfirmed       OutboxEventType = "order_confirmed"
	EventOrderStatusChanged   OutboxEventType = "order_status_changed"
	EventOrderCancelled       OutboxEventType = "order_cancelled"
	EventStockDegraded        OutboxEventType = "stock_degraded"
	EventReportGenerated      OutboxEventType = "report_generated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSaleCompleted,
	EventSaleCancelled,
	EventOrderCreated,
	EventOrderPaymentUploaded,
	EventOrderConfirmed,
	EventOrderStatusChanged,
	EventOrderCancelled,
	EventStockDegraded,
	EventReportGenerated,
}

// IsValid reports whether the value matches the canonical event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
