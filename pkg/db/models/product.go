package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/pkg/enums"
)

// Product is the canonical catalog entry. Quantity is the single source of
// truth for availability; StockStatus is derived from Quantity and
// MinimumStock on every stock movement.
type Product struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	SKU          string            `gorm:"column:sku;type:text;not null;uniqueIndex"`
	Barcode      *string           `gorm:"column:barcode;type:text;uniqueIndex"`
	Name         string            `gorm:"column:name;type:text;not null"`
	Description  *string           `gorm:"column:description;type:text"`
	CategoryID   uuid.UUID         `gorm:"column:category_id;type:uuid;not null"`
	UnitID       uuid.UUID         `gorm:"column:unit_id;type:uuid;not null"`
	CostPrice    decimal.Decimal   `gorm:"column:cost_price;type:numeric(12,2);not null"`
	SalePrice    decimal.Decimal   `gorm:"column:sale_price;type:numeric(12,2);not null"`
	Quantity     decimal.Decimal   `gorm:"column:quantity;type:numeric(12,3);not null"`
	MinimumStock decimal.Decimal   `gorm:"column:minimum_stock;type:numeric(12,3);not null"`
	StockStatus  enums.StockStatus `gorm:"column:stock_status;type:text;not null;default:'in_stock'"`
	IsActive     bool              `gorm:"column:is_active;not null;default:true"`
	Category     *Category         `gorm:"foreignKey:CategoryID"`
	Unit         *UnitOfMeasure    `gorm:"foreignKey:UnitID"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
