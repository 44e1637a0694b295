package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
)

// ProductDTO is the API projection of a catalog product.
type ProductDTO struct {
	ID           uuid.UUID         `json:"id"`
	SKU          string            `json:"sku"`
	Barcode      *string           `json:"barcode,omitempty"`
	Name         string            `json:"name"`
	Description  *string           `json:"description,omitempty"`
	CategoryID   uuid.UUID         `json:"category_id"`
	CategoryName string            `json:"category_name,omitempty"`
	UnitID       uuid.UUID         `json:"unit_id"`
	UnitName     string            `json:"unit_name,omitempty"`
	CostPrice    decimal.Decimal   `json:"cost_price"`
	SalePrice    decimal.Decimal   `json:"sale_price"`
	Quantity     decimal.Decimal   `json:"quantity"`
	MinimumStock decimal.Decimal   `json:"minimum_stock"`
	StockStatus  enums.StockStatus `json:"stock_status"`
	IsActive     bool              `json:"is_active"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// CategoryDTO is the API projection of a category.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// UnitDTO is the API projection of a unit of measure.
type UnitDTO struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Abbreviation   string    `json:"abbreviation"`
	AllowsFraction bool      `json:"allows_fraction"`
}

// QuantityCheckDTO previews the stock effect of a prospective sale line.
type QuantityCheckDTO struct {
	ProductID  uuid.UUID       `json:"product_id"`
	Requested  decimal.Decimal `json:"requested"`
	Available  decimal.Decimal `json:"available"`
	Sufficient bool            `json:"sufficient"`
	Remaining  decimal.Decimal `json:"remaining"`
	WillBeLow  bool            `json:"will_be_low"`
	WillBeOut  bool            `json:"will_be_out"`
	Reason     string          `json:"reason,omitempty"`
}

// ProductListResult bundles a page of products with its next cursor.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toProductDTO(product *models.Product) *ProductDTO {
	dto := &ProductDTO{
		ID:           product.ID,
		SKU:          product.SKU,
		Barcode:      product.Barcode,
		Name:         product.Name,
		Description:  product.Description,
		CategoryID:   product.CategoryID,
		UnitID:       product.UnitID,
		CostPrice:    product.CostPrice,
		SalePrice:    product.SalePrice,
		Quantity:     product.Quantity,
		MinimumStock: product.MinimumStock,
		StockStatus:  product.StockStatus,
		IsActive:     product.IsActive,
		CreatedAt:    product.CreatedAt,
		UpdatedAt:    product.UpdatedAt,
	}
	if product.Category != nil {
		dto.CategoryName = product.Category.Name
	}
	if product.Unit != nil {
		dto.UnitName = product.Unit.Name
	}
	return dto
}

func toCategoryDTO(category *models.Category) *CategoryDTO {
	return &CategoryDTO{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		IsActive:    category.IsActive,
		CreatedAt:   category.CreatedAt,
	}
}

func toUnitDTO(unit *models.UnitOfMeasure) *UnitDTO {
	return &UnitDTO{
		ID:             unit.ID,
		Name:           unit.Name,
		Abbreviation:   unit.Abbreviation,
		AllowsFraction: unit.AllowsFraction,
	}
}
