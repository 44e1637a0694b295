package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmucavele/pdv-backend/pkg/db/models"
)

// ReportDTO is the API projection of a weekly sales report.
type ReportDTO struct {
	ID           uuid.UUID             `json:"id"`
	Year         int                   `json:"year"`
	Week         int                   `json:"week"`
	StartDate    time.Time             `json:"start_date"`
	EndDate      time.Time             `json:"end_date"`
	TotalRevenue decimal.Decimal       `json:"total_revenue"`
	TotalCost    decimal.Decimal       `json:"total_cost"`
	TotalProfit  decimal.Decimal       `json:"total_profit"`
	SalesCount   int                   `json:"sales_count"`
	OrdersCount  int                   `json:"orders_count"`
	ItemsSold    decimal.Decimal      `json:"items_sold"`
	Sellers      []SellerBreakdownDTO `json:"sellers"`
	GeneratedAt  time.Time            `json:"generated_at"`
}

// SellerBreakdownDTO is one seller's slice of a report or period.
type SellerBreakdownDTO struct {
	SellerID    uuid.UUID       `json:"seller_id"`
	SalesCount  int             `json:"sales_count"`
	Revenue     decimal.Decimal `json:"revenue"`
	ItemsSold   decimal.Decimal `json:"items_sold"`
	AverageSale decimal.Decimal `json:"average_sale"`
}

// PeriodStatsDTO is an on-demand aggregate over an arbitrary date range.
type PeriodStatsDTO struct {
	From          time.Time             `json:"from"`
	To            time.Time             `json:"to"`
	TotalRevenue  decimal.Decimal       `json:"total_revenue"`
	TotalCost     decimal.Decimal       `json:"total_cost"`
	TotalProfit   decimal.Decimal       `json:"total_profit"`
	AverageTicket decimal.Decimal       `json:"average_ticket"`
	SalesCount    int                   `json:"sales_count"`
	ItemsSold     decimal.Decimal       `json:"items_sold"`
	TopSellers    []SellerBreakdownDTO  `json:"top_sellers"`
	TopProducts   []ProductBreakdownDTO `json:"top_products"`
}

// ProductBreakdownDTO is one product's slice of a period aggregate.
type ProductBreakdownDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

func toDTO(report *models.WeeklySalesReport) *ReportDTO {
	dto := &ReportDTO{
		ID:           report.ID,
		Year:         report.Year,
		Week:         report.Week,
		StartDate:    report.StartDate,
		EndDate:      report.EndDate,
		TotalRevenue: report.TotalRevenue,
		TotalCost:    report.TotalCost,
		TotalProfit:  report.TotalProfit,
		SalesCount:   report.SalesCount,
		OrdersCount:  report.OrdersCount,
		ItemsSold:    report.ItemsSold,
		GeneratedAt:  report.GeneratedAt,
		Sellers:      make([]SellerBreakdownDTO, 0, len(report.Sellers)),
	}
	for _, seller := range report.Sellers {
		dto.Sellers = append(dto.Sellers, SellerBreakdownDTO{
			SellerID:    seller.SellerID,
			SalesCount:  seller.SalesCount,
			Revenue:     seller.Revenue,
			ItemsSold:   seller.ItemsSold,
			AverageSale: seller.AverageSale,
		})
	}
	return dto
}
