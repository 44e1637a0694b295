package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmucavele/pdv-backend/pkg/enums"
)

// SaleCompletedEvent is emitted when a sale commits.
type SaleCompletedEvent struct {
	SaleID      uuid.UUID       `json:"sale_id"`
	SaleNumber  string          `json:"sale_number"`
	SellerID    uuid.UUID       `json:"seller_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// SaleCancelledEvent is emitted when a completed sale is voided.
type SaleCancelledEvent struct {
	SaleID      uuid.UUID `json:"sale_id"`
	SaleNumber  string    `json:"sale_number"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// OrderCreatedEvent is emitted when an order is registered, before any stock
// is reserved.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	Code        string          `json:"code"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderPaymentUploadedEvent is emitted when a payment proof lands on a
// pending order.
type OrderPaymentUploadedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	Code       string    `json:"code"`
	ProofKey   string    `json:"proof_key"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// OrderConfirmedEvent is emitted when a manager confirms an order and stock
// is decremented.
type OrderConfirmedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	Code        string    `json:"code"`
	ConfirmedBy uuid.UUID `json:"confirmed_by"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// OrderStatusChangedEvent tracks every forward move of the state machine.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	Code    string            `json:"code"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// OrderCancelledEvent is emitted when an order is cancelled. Restocked is
// true when the cancellation returned reserved stock to the shelf.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	Code        string    `json:"code"`
	CancelledAt time.Time `json:"cancelled_at"`
	Restocked   bool      `json:"restocked"`
	Reason      string    `json:"reason,omitempty"`
}

// StockDegradedEvent fires when a reservation pushes a product into
// low_stock or out_of_stock.
type StockDegradedEvent struct {
	ProductID uuid.UUID         `json:"product_id"`
	SKU       string            `json:"sku"`
	Name      string            `json:"name"`
	Quantity  decimal.Decimal   `json:"quantity"`
	Status    enums.StockStatus `json:"status"`
}

// ReportGeneratedEvent is emitted after a weekly aggregation run.
type ReportGeneratedEvent struct {
	ReportID uuid.UUID `json:"report_id"`
	Year     int       `json:"year"`
	Week     int       `json:"week"`
}
