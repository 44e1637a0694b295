package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WeeklySalesReport is the idempotent ISO-week aggregate. The (year, week)
// pair is unique; reruns overwrite totals in place.
type WeeklySalesReport struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Year         int                 `gorm:"column:year;not null;uniqueIndex:ux_weekly_reports_year_week"`
	Week         int                 `gorm:"column:week;not null;uniqueIndex:ux_weekly_reports_year_week"`
	StartDate    time.Time           `gorm:"column:start_date;not null"`
	EndDate      time.Time           `gorm:"column:end_date;not null"`
	TotalRevenue decimal.Decimal     `gorm:"column:total_revenue;type:numeric(14,2);not null"`
	TotalCost    decimal.Decimal     `gorm:"column:total_cost;type:numeric(14,2);not null"`
	TotalProfit  decimal.Decimal     `gorm:"column:total_profit;type:numeric(14,2);not null"`
	SalesCount   int                 `gorm:"column:sales_count;not null"`
	OrdersCount  int                 `gorm:"column:orders_count;not null"`
	ItemsSold    decimal.Decimal     `gorm:"column:items_sold;type:numeric(14,3);not null"`
	Sellers      []SellerPerformance `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
	GeneratedAt  time.Time           `gorm:"column:generated_at;not null"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *WeeklySalesReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// SellerPerformance is the per-seller slice of a weekly report.
type SellerPerformance struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ReportID    uuid.UUID       `gorm:"column:report_id;type:uuid;not null;uniqueIndex:ux_seller_performance_report_seller"`
	SellerID    uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_seller_performance_report_seller"`
	SalesCount  int             `gorm:"column:sales_count;not null"`
	Revenue     decimal.Decimal `gorm:"column:revenue;type:numeric(14,2);not null"`
	ItemsSold   decimal.Decimal `gorm:"column:items_sold;type:numeric(14,3);not null"`
	AverageSale decimal.Decimal `gorm:"column:average_sale;type:numeric(14,2);not null"`
	Seller      *User           `gorm:"foreignKey:SellerID"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *SellerPerformance) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
