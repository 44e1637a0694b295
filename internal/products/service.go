package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/internal/audit"
	"github.com/jmucavele/pdv-backend/internal/stock"
	"github.com/jmucavele/pdv-backend/pkg/db"
	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
	"github.com/jmucavele/pdv-backend/pkg/pagination"
)

// maxSearchResults caps point-of-sale search responses.
const maxSearchResults = 20

// Service exposes catalog and stock management operations.
type Service interface {
	CreateProduct(ctx context.Context, actor audit.Actor, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, actor audit.Actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeactivateProduct(ctx context.Context, actor audit.Actor, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]ProductDTO, error)
	ListLowStock(ctx context.Context, limit int) ([]ProductDTO, error)
	CheckQuantity(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*QuantityCheckDTO, error)
	AdjustStock(ctx context.Context, actor audit.Actor, productID uuid.UUID, input AdjustStockInput) (*ProductDTO, error)

	CreateCategory(ctx context.Context, actor audit.Actor, input CreateCategoryInput) (*CategoryDTO, error)
	UpdateCategory(ctx context.Context, actor audit.Actor, categoryID uuid.UUID, input UpdateCategoryInput) (*CategoryDTO, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]CategoryDTO, error)

	CreateUnit(ctx context.Context, actor audit.Actor, input CreateUnitInput) (*UnitDTO, error)
	ListUnits(ctx context.Context) ([]UnitDTO, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	SKU          string
	Barcode      *string
	Name         string
	Description  *string
	CategoryID   uuid.UUID
	UnitID       uuid.UUID
	CostPrice    decimal.Decimal
	SalePrice    decimal.Decimal
	Quantity     decimal.Decimal
	MinimumStock decimal.Decimal
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	SKU          *string
	Barcode      *string
	Name         *string
	Description  *string
	CategoryID   *uuid.UUID
	UnitID       *uuid.UUID
	CostPrice    *decimal.Decimal
	SalePrice    *decimal.Decimal
	MinimumStock *decimal.Decimal
	IsActive     *bool
}

// AdjustStockInput is a manual stock correction. Delta may be negative.
type AdjustStockInput struct {
	Delta  decimal.Decimal
	Reason string
}

// ListProductsInput filters product listings.
type ListProductsInput struct {
	Search      string
	CategoryID  *uuid.UUID
	StockStatus *enums.StockStatus
	ActiveOnly  bool
	Limit       int
	Cursor      string
}

// CreateCategoryInput holds the payload to create a category.
type CreateCategoryInput struct {
	Name        string
	Description *string
}

// UpdateCategoryInput holds optional mutation values for a category.
type UpdateCategoryInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// CreateUnitInput holds the payload to create a unit of measure.
type CreateUnitInput struct {
	Name           string
	Abbreviation   string
	AllowsFraction bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox stock.Publisher
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, tx txRunner, publisher stock.Publisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher}, nil
}

func (s *service) CreateProduct(ctx context.Context, actor audit.Actor, input CreateProductInput) (*ProductDTO, error) {
	if !actor.Role.Can(enums.CapManageCatalog) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "catalog management not allowed")
	}
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	var created *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindCategoryByID(ctx, input.CategoryID); err != nil {
			return err
		}
		if _, err := repo.FindUnitByID(ctx, input.UnitID); err != nil {
			return err
		}

		product := &models.Product{
			SKU:          strings.TrimSpace(input.SKU),
			Barcode:      input.Barcode,
			Name:         strings.TrimSpace(input.Name),
			Description:  input.Description,
			CategoryID:   input.CategoryID,
			UnitID:       input.UnitID,
			CostPrice:    input.CostPrice,
			SalePrice:    input.SalePrice,
			Quantity:     input.Quantity,
			MinimumStock: input.MinimumStock,
			StockStatus:  stock.StatusFor(input.Quantity, input.MinimumStock),
			IsActive:     true,
		}
		if err := repo.Create(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "sku") {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already in use")
			}
			if db.IsUniqueViolation(err, "barcode") {
				return pkgerrors.New(pkgerrors.CodeConflict, "barcode already in use")
			}
			return err
		}
		if err := audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionCreate,
			EntityType: "product",
			EntityID:   product.ID,
			Detail:     map[string]string{"sku": product.SKU},
		}); err != nil {
			return err
		}
		created = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, created.ID)
}

func (s *service) UpdateProduct(ctx context.Context, actor audit.Actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if !actor.Role.Can(enums.CapManageCatalog) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "catalog management not allowed")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, productID)
		if err != nil {
			return err
		}

		if input.SKU != nil {
			product.SKU = strings.TrimSpace(*input.SKU)
		}
		if input.Barcode != nil {
			if trimmed := strings.TrimSpace(*input.Barcode); trimmed == "" {
				product.Barcode = nil
			} else {
				product.Barcode = &trimmed
			}
		}
		if input.Name != nil {
			product.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			product.Description = input.Description
		}
		if input.CategoryID != nil {
			if _, err := repo.FindCategoryByID(ctx, *input.CategoryID); err != nil {
				return err
			}
			product.CategoryID = *input.CategoryID
		}
		if input.UnitID != nil {
			if _, err := repo.FindUnitByID(ctx, *input.UnitID); err != nil {
				return err
			}
			product.UnitID = *input.UnitID
		}
		if input.CostPrice != nil {
			if input.CostPrice.Sign() < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "cost price must not be negative")
			}
			product.CostPrice = *input.CostPrice
		}
		if input.SalePrice != nil {
			if input.SalePrice.Sign() < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "sale price must not be negative")
			}
			product.SalePrice = *input.SalePrice
		}
		if input.MinimumStock != nil {
			if input.MinimumStock.Sign() < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "minimum stock must not be negative")
			}
			product.MinimumStock = *input.MinimumStock
			product.StockStatus = stock.StatusFor(product.Quantity, product.MinimumStock)
		}
		if input.IsActive != nil {
			product.IsActive = *input.IsActive
		}
		if product.Name == "" || product.SKU == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name and sku are required")
		}

		product.Category = nil
		product.Unit = nil
		if err := repo.Update(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "sku") {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already in use")
			}
			if db.IsUniqueViolation(err, "barcode") {
				return pkgerrors.New(pkgerrors.CodeConflict, "barcode already in use")
			}
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionUpdate,
			EntityType: "product",
			EntityID:   product.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, productID)
}

func (s *service) DeactivateProduct(ctx context.Context, actor audit.Actor, productID uuid.UUID) error {
	if !actor.Role.Can(enums.CapManageCatalog) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "catalog management not allowed")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Deactivate(ctx, productID); err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionDelete,
			EntityType: "product",
			EntityID:   productID,
		})
	})
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return toProductDTO(product), nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, ListParams{
		Search:      input.Search,
		CategoryID:  input.CategoryID,
		StockStatus: input.StockStatus,
		ActiveOnly:  input.ActiveOnly,
		Limit:       input.Limit,
		Cursor:      cursor,
	})
	if err != nil {
		return nil, err
	}

	result := &ProductListResult{Products: make([]ProductDTO, 0, len(rows))}
	for i := range rows {
		result.Products = append(result.Products, *toProductDTO(&rows[i]))
	}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// SearchProducts matches active products by name, SKU or barcode for the
// point-of-sale screens. Queries shorter than two characters are rejected to
// keep the scan bounded.
func (s *service) SearchProducts(ctx context.Context, query string, limit int) ([]ProductDTO, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query must have at least two characters")
	}
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}

	rows, err := s.repo.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *toProductDTO(&rows[i]))
	}
	return dtos, nil
}

// ListLowStock returns active products at or below their minimum stock.
func (s *service) ListLowStock(ctx context.Context, limit int) ([]ProductDTO, error) {
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}
	rows, err := s.repo.ListDegraded(ctx, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *toProductDTO(&rows[i]))
	}
	return dtos, nil
}

// CheckQuantity previews what committing the given quantity would do to the
// product's stock without touching it.
func (s *service) CheckQuantity(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*QuantityCheckDTO, error) {
	if quantity.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	check := &QuantityCheckDTO{
		ProductID: product.ID,
		Requested: quantity,
		Available: product.Quantity,
	}
	if !product.IsActive {
		check.Reason = "product is inactive"
		return check, nil
	}
	if product.Unit != nil && !product.Unit.AllowsFraction && !quantity.Equal(quantity.Truncate(0)) {
		check.Reason = "unit does not allow fractional quantities"
		return check, nil
	}
	if quantity.GreaterThan(product.Quantity) {
		check.Reason = "insufficient stock"
		return check, nil
	}

	remaining := product.Quantity.Sub(quantity)
	status := stock.StatusFor(remaining, product.MinimumStock)
	check.Sufficient = true
	check.Remaining = remaining
	check.WillBeLow = status == enums.StockStatusLowStock
	check.WillBeOut = status == enums.StockStatusOutOfStock
	return check, nil
}

func (s *service) AdjustStock(ctx context.Context, actor audit.Actor, productID uuid.UUID, input AdjustStockInput) (*ProductDTO, error) {
	if !actor.Role.Can(enums.CapAdjustStock) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "stock adjustment not allowed")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment reason required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		movement, err := stock.Apply(ctx, tx, productID, input.Delta)
		if err != nil {
			return err
		}
		if err := stock.EmitDegradations(ctx, tx, s.outbox, []stock.Movement{movement}); err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionStockAdjustment,
			EntityType: "product",
			EntityID:   productID,
			Detail: map[string]interface{}{
				"delta":  input.Delta,
				"reason": input.Reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, productID)
}

func (s *service) CreateCategory(ctx context.Context, actor audit.Actor, input CreateCategoryInput) (*CategoryDTO, error) {
	if !actor.Role.Can(enums.CapManageCatalog) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "catalog management not allowed")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name required")
	}

	category := &models.Category{Name: name, Description: input.Description, IsActive: true}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateCategory(ctx, category); err != nil {
			if db.IsUniqueViolation(err, "name") {
				return pkgerrors.New(pkgerrors.CodeConflict, "category name already in use")
			}
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionCreate,
			EntityType: "category",
			EntityID:   category.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return toCategoryDTO(category), nil
}

func (s *service) UpdateCategory(ctx context.Context, actor audit.Actor, categoryID uuid.UUID, input UpdateCategoryInput) (*CategoryDTO, error) {
	if !actor.Role.Can(enums.CapManageCatalog) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "catalog management not allowed")
	}

	var updated *models.Category
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		category, err := repo.FindCategoryByID(ctx, categoryID)
		if err != nil {
			return err
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "category name required")
			}
			category.Name = name
		}
		if input.Description != nil {
			category.Description = input.Description
		}
		if input.IsActive != nil {
			category.IsActive = *input.IsActive
		}
		if err := repo.UpdateCategory(ctx, category); err != nil {
			if db.IsUniqueViolation(err, "name") {
				return pkgerrors.New(pkgerrors.CodeConflict, "category name already in use")
			}
			return err
		}
		updated = category
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionUpdate,
			EntityType: "category",
			EntityID:   category.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return toCategoryDTO(updated), nil
}

func (s *service) ListCategories(ctx context.Context, activeOnly bool) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	dtos := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *toCategoryDTO(&rows[i]))
	}
	return dtos, nil
}

func (s *service) CreateUnit(ctx context.Context, actor audit.Actor, input CreateUnitInput) (*UnitDTO, error) {
	if !actor.Role.Can(enums.CapManageCatalog) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "catalog management not allowed")
	}
	name := strings.TrimSpace(input.Name)
	abbreviation := strings.TrimSpace(input.Abbreviation)
	if name == "" || abbreviation == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit name and abbreviation required")
	}

	unit := &models.UnitOfMeasure{Name: name, Abbreviation: abbreviation, AllowsFraction: input.AllowsFraction}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateUnit(ctx, unit); err != nil {
			if db.IsUniqueViolation(err, "name") {
				return pkgerrors.New(pkgerrors.CodeConflict, "unit name already in use")
			}
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionCreate,
			EntityType: "unit_of_measure",
			EntityID:   unit.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return toUnitDTO(unit), nil
}

func (s *service) ListUnits(ctx context.Context) ([]UnitDTO, error) {
	rows, err := s.repo.ListUnits(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]UnitDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *toUnitDTO(&rows[i]))
	}
	return dtos, nil
}

func validateProductInput(input CreateProductInput) error {
	if strings.TrimSpace(input.SKU) == "" || strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name and sku are required")
	}
	if input.CategoryID == uuid.Nil || input.UnitID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "category and unit are required")
	}
	if input.CostPrice.Sign() < 0 || input.SalePrice.Sign() < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "prices must not be negative")
	}
	if input.Quantity.Sign() < 0 || input.MinimumStock.Sign() < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock quantities must not be negative")
	}
	return nil
}
