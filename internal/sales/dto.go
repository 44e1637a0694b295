package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
)

// SaleDTO is the API projection of a committed sale.
type SaleDTO struct {
	ID            uuid.UUID           `json:"id"`
	SaleNumber    string              `json:"sale_number"`
	SellerID      uuid.UUID           `json:"seller_id"`
	CustomerID    *uuid.UUID          `json:"customer_id,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Status        enums.SaleStatus    `json:"status"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Discount      decimal.Decimal     `json:"discount"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	AmountPaid    decimal.Decimal     `json:"amount_paid"`
	ChangeAmount  decimal.Decimal     `json:"change_amount"`
	Notes         *string             `json:"notes,omitempty"`
	Items         []SaleItemDTO       `json:"items"`
	CancelledAt   *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// DashboardDTO is the seller-scoped day summary behind the POS home screen.
// The limit fields are omitted for roles that bypass the daily cap.
type DashboardDTO struct {
	Date           string          `json:"date"`
	SalesToday     int             `json:"sales_today"`
	RevenueToday   decimal.Decimal `json:"revenue_today"`
	DailyLimit     *int            `json:"daily_limit,omitempty"`
	RemainingToday *int            `json:"remaining_today,omitempty"`
}

// SaleItemDTO is the API projection of one sale line.
type SaleItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// ListResult bundles a page of sales with its next cursor.
type ListResult struct {
	Sales      []SaleDTO `json:"sales"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

func toDTO(sale *models.Sale) *SaleDTO {
	dto := &SaleDTO{
		ID:            sale.ID,
		SaleNumber:    sale.SaleNumber,
		SellerID:      sale.SellerID,
		CustomerID:    sale.CustomerID,
		PaymentMethod: sale.PaymentMethod,
		Status:        sale.Status,
		Subtotal:      sale.Subtotal,
		Discount:      sale.Discount,
		TotalAmount:   sale.TotalAmount,
		AmountPaid:    sale.AmountPaid,
		ChangeAmount:  sale.ChangeAmount,
		Notes:         sale.Notes,
		CancelledAt:   sale.CancelledAt,
		CreatedAt:     sale.CreatedAt,
		Items:         make([]SaleItemDTO, 0, len(sale.Items)),
	}
	for _, item := range sale.Items {
		dto.Items = append(dto.Items, SaleItemDTO{
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
