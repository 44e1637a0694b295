package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/internal/audit"
	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
	"github.com/jmucavele/pdv-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type capturePublisher struct {
	events []outbox.DomainEvent
}

func (p *capturePublisher) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	p.events = append(p.events, event)
	return nil
}

func managerActor() audit.Actor {
	return audit.Actor{UserID: uuid.New(), Role: enums.UserRoleManager}
}

func sellerActor() audit.Actor {
	return audit.Actor{UserID: uuid.New(), Role: enums.UserRoleSeller}
}

func TestCreateProduct(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	category, unit := seedCatalog(t, db)

	dto, err := svc.CreateProduct(ctx, managerActor(), CreateProductInput{
		SKU:          "COF-001",
		Name:         "Coffee Beans 1kg",
		CategoryID:   category.ID,
		UnitID:       unit.ID,
		CostPrice:    decimal.NewFromInt(30),
		SalePrice:    decimal.NewFromInt(55),
		Quantity:     decimal.NewFromInt(20),
		MinimumStock: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	require.Equal(t, "COF-001", dto.SKU)
	require.Equal(t, enums.StockStatusInStock, dto.StockStatus)
	require.Equal(t, category.Name, dto.CategoryName)

	var auditCount int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("entity_id = ?", dto.ID).Count(&auditCount).Error)
	require.EqualValues(t, 1, auditCount)
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	category, unit := seedCatalog(t, db)

	input := CreateProductInput{
		SKU:        "DUP-001",
		Name:       "First",
		CategoryID: category.ID,
		UnitID:     unit.ID,
		CostPrice:  decimal.NewFromInt(1),
		SalePrice:  decimal.NewFromInt(2),
	}
	_, err := svc.CreateProduct(ctx, managerActor(), input)
	require.NoError(t, err)

	input.Name = "Second"
	_, err = svc.CreateProduct(ctx, managerActor(), input)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestCreateProductForbiddenForSeller(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	_, err := svc.CreateProduct(context.Background(), sellerActor(), CreateProductInput{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestAdjustStockEmitsDegradation(t *testing.T) {
	t.Parallel()

	svc, db, publisher := newTestService(t)
	ctx := context.Background()
	category, unit := seedCatalog(t, db)

	dto, err := svc.CreateProduct(ctx, managerActor(), CreateProductInput{
		SKU:          "ADJ-001",
		Name:         "Rice 5kg",
		CategoryID:   category.ID,
		UnitID:       unit.ID,
		CostPrice:    decimal.NewFromInt(10),
		SalePrice:    decimal.NewFromInt(18),
		Quantity:     decimal.NewFromInt(10),
		MinimumStock: decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	adjusted, err := svc.AdjustStock(ctx, managerActor(), dto.ID, AdjustStockInput{
		Delta:  decimal.NewFromInt(-6),
		Reason: "damaged bags",
	})
	require.NoError(t, err)
	require.True(t, adjusted.Quantity.Equal(decimal.NewFromInt(4)))
	require.Equal(t, enums.StockStatusLowStock, adjusted.StockStatus)

	require.Len(t, publisher.events, 1)
	require.Equal(t, enums.EventStockDegraded, publisher.events[0].EventType)

	var auditCount int64
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("entity_id = ? AND action = ?", dto.ID, enums.AuditActionStockAdjustment).
		Count(&auditCount).Error)
	require.EqualValues(t, 1, auditCount)
}

func TestAdjustStockRequiresReason(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	_, err := svc.AdjustStock(context.Background(), managerActor(), uuid.New(), AdjustStockInput{
		Delta: decimal.NewFromInt(1),
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestListProductsFilters(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	category, unit := seedCatalog(t, db)

	for _, name := range []string{"Black Tea", "Green Tea", "Sugar"} {
		_, err := svc.CreateProduct(ctx, managerActor(), CreateProductInput{
			SKU:        "SKU-" + uuid.NewString()[:8],
			Name:       name,
			CategoryID: category.ID,
			UnitID:     unit.ID,
			CostPrice:  decimal.NewFromInt(1),
			SalePrice:  decimal.NewFromInt(2),
			Quantity:   decimal.NewFromInt(10),
		})
		require.NoError(t, err)
	}

	result, err := svc.ListProducts(ctx, ListProductsInput{Search: "tea", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, result.Products, 2)

	result, err = svc.ListProducts(ctx, ListProductsInput{Limit: 2})
	require.NoError(t, err)
	require.Len(t, result.Products, 2)
	require.NotEmpty(t, result.NextCursor)

	result, err = svc.ListProducts(ctx, ListProductsInput{Limit: 2, Cursor: result.NextCursor})
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	require.Empty(t, result.NextCursor)
}

func TestSearchProducts(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	category, unit := seedCatalog(t, db)

	barcode := "7891000100103"
	_, err := svc.CreateProduct(ctx, managerActor(), CreateProductInput{
		SKU:        "MLK-001",
		Barcode:    &barcode,
		Name:       "Whole Milk 1L",
		CategoryID: category.ID,
		UnitID:     unit.ID,
		CostPrice:  decimal.NewFromInt(3),
		SalePrice:  decimal.NewFromInt(5),
		Quantity:   decimal.NewFromInt(30),
	})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, managerActor(), CreateProductInput{
		SKU:        "BRD-001",
		Name:       "Bread Loaf",
		CategoryID: category.ID,
		UnitID:     unit.ID,
		CostPrice:  decimal.NewFromInt(2),
		SalePrice:  decimal.NewFromInt(4),
		Quantity:   decimal.NewFromInt(12),
	})
	require.NoError(t, err)

	found, err := svc.SearchProducts(ctx, "milk", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "MLK-001", found[0].SKU)

	found, err = svc.SearchProducts(ctx, "7891000", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.NotNil(t, found[0].Barcode)

	_, err = svc.SearchProducts(ctx, "m", 10)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestListLowStock(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	category, unit := seedCatalog(t, db)

	seed := func(sku string, qty, minimum int64) {
		_, err := svc.CreateProduct(ctx, managerActor(), CreateProductInput{
			SKU:          sku,
			Name:         "Product " + sku,
			CategoryID:   category.ID,
			UnitID:       unit.ID,
			CostPrice:    decimal.NewFromInt(1),
			SalePrice:    decimal.NewFromInt(2),
			Quantity:     decimal.NewFromInt(qty),
			MinimumStock: decimal.NewFromInt(minimum),
		})
		require.NoError(t, err)
	}
	seed("LOW-001", 2, 5)
	seed("OUT-001", 0, 5)
	seed("OK-001", 50, 5)

	low, err := svc.ListLowStock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, low, 2)
	require.Equal(t, "OUT-001", low[0].SKU, "emptiest first")
	require.Equal(t, "LOW-001", low[1].SKU)
}

func TestCheckQuantity(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	category, unit := seedCatalog(t, db)

	dto, err := svc.CreateProduct(ctx, managerActor(), CreateProductInput{
		SKU:          "CHK-001",
		Name:         "Olive Oil 500ml",
		CategoryID:   category.ID,
		UnitID:       unit.ID,
		CostPrice:    decimal.NewFromInt(12),
		SalePrice:    decimal.NewFromInt(20),
		Quantity:     decimal.NewFromInt(10),
		MinimumStock: decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	check, err := svc.CheckQuantity(ctx, dto.ID, decimal.NewFromInt(6))
	require.NoError(t, err)
	require.True(t, check.Sufficient)
	require.True(t, check.Remaining.Equal(decimal.NewFromInt(4)))
	require.True(t, check.WillBeLow)
	require.False(t, check.WillBeOut)

	check, err = svc.CheckQuantity(ctx, dto.ID, decimal.NewFromInt(11))
	require.NoError(t, err)
	require.False(t, check.Sufficient)
	require.Equal(t, "insufficient stock", check.Reason)

	check, err = svc.CheckQuantity(ctx, dto.ID, decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	require.False(t, check.Sufficient)
	require.Equal(t, "unit does not allow fractional quantities", check.Reason)

	_, err = svc.CheckQuantity(ctx, dto.ID, decimal.Zero)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCategoryAndUnitLifecycle(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	actor := managerActor()

	category, err := svc.CreateCategory(ctx, actor, CreateCategoryInput{Name: "Beverages"})
	require.NoError(t, err)
	require.True(t, category.IsActive)

	inactive := false
	updated, err := svc.UpdateCategory(ctx, actor, category.ID, UpdateCategoryInput{IsActive: &inactive})
	require.NoError(t, err)
	require.False(t, updated.IsActive)

	active, err := svc.ListCategories(ctx, true)
	require.NoError(t, err)
	require.Empty(t, active)

	unit, err := svc.CreateUnit(ctx, actor, CreateUnitInput{Name: "Kilogram", Abbreviation: "kg", AllowsFraction: true})
	require.NoError(t, err)
	require.True(t, unit.AllowsFraction)

	units, err := svc.ListUnits(ctx)
	require.NoError(t, err)
	require.Len(t, units, 1)
}

func newTestService(t *testing.T) (Service, *gorm.DB, *capturePublisher) {
	t.Helper()
	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Category{},
		&models.UnitOfMeasure{},
		&models.Product{},
		&models.AuditLog{},
	))

	publisher := &capturePublisher{}
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, publisher)
	require.NoError(t, err)
	return svc, db, publisher
}

func seedCatalog(t *testing.T, db *gorm.DB) (*models.Category, *models.UnitOfMeasure) {
	t.Helper()
	category := &models.Category{Name: "Category " + uuid.NewString()[:8], IsActive: true}
	require.NoError(t, db.Create(category).Error)
	unit := &models.UnitOfMeasure{Name: "Unit " + uuid.NewString()[:8], Abbreviation: "un"}
	require.NoError(t, db.Create(unit).Error)
	return category, unit
}
