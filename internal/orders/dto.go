package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
)

// OrderDTO is the API projection of a customer order.
type OrderDTO struct {
	ID                     uuid.UUID           `json:"id"`
	Code                   string              `json:"code"`
	CustomerID             uuid.UUID           `json:"customer_id"`
	CreatedByID            uuid.UUID           `json:"created_by_id"`
	Status                 enums.OrderStatus   `json:"status"`
	PaymentMethod          enums.PaymentMethod `json:"payment_method"`
	Subtotal               decimal.Decimal     `json:"subtotal"`
	Discount               decimal.Decimal     `json:"discount"`
	TotalAmount            decimal.Decimal     `json:"total_amount"`
	Notes                  *string             `json:"notes,omitempty"`
	Items                  []OrderItemDTO      `json:"items"`
	PaymentProofKey        *string             `json:"payment_proof_key,omitempty"`
	PaymentProofUploadedAt *time.Time          `json:"payment_proof_uploaded_at,omitempty"`
	ConfirmedByID          *uuid.UUID          `json:"confirmed_by_id,omitempty"`
	ConfirmedAt            *time.Time          `json:"confirmed_at,omitempty"`
	CancelledAt            *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt              time.Time           `json:"created_at"`
}

// OrderItemDTO is the API projection of one order line.
type OrderItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// ListResult bundles a page of orders with its next cursor.
type ListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func toDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:                     order.ID,
		Code:                   order.Code,
		CustomerID:             order.CustomerID,
		CreatedByID:            order.CreatedByID,
		Status:                 order.Status,
		PaymentMethod:          order.PaymentMethod,
		Subtotal:               order.Subtotal,
		Discount:               order.Discount,
		TotalAmount:            order.TotalAmount,
		Notes:                  order.Notes,
		PaymentProofKey:        order.PaymentProofKey,
		PaymentProofUploadedAt: order.PaymentProofUploadedAt,
		ConfirmedByID:          order.ConfirmedByID,
		ConfirmedAt:            order.ConfirmedAt,
		CancelledAt:            order.CancelledAt,
		CreatedAt:              order.CreatedAt,
		Items:                  make([]OrderItemDTO, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}
	return dto
}
