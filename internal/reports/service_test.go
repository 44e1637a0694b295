package reports

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/internal/audit"
	"github.com/jmucavele/pdv-backend/internal/orders"
	"github.com/jmucavele/pdv-backend/internal/products"
	"github.com/jmucavele/pdv-backend/internal/sales"
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

func TestWeekRange(t *testing.T) {
	t.Parallel()

	start, end, err := weekRange(2026, 1, time.UTC)
	require.NoError(t, err)
	require.Equal(t, time.Monday, start.Weekday())
	y, w := start.ISOWeek()
	require.Equal(t, 2026, y)
	require.Equal(t, 1, w)
	require.Equal(t, start.AddDate(0, 0, 7), end)

	_, _, err = weekRange(2026, 0, time.UTC)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	// 2026 has 53 ISO weeks; 2025 does not.
	_, _, err = weekRange(2025, 53, time.UTC)
	require.Error(t, err)
	_, _, err = weekRange(2026, 53, time.UTC)
	require.NoError(t, err)
}

func TestGenerateAggregatesWeek(t *testing.T) {
	t.Parallel()

	svc, db, publisher := newTestService(t)
	ctx := context.Background()

	sellerA := uuid.New()
	sellerB := uuid.New()
	product := seedProduct(t, db, "10", "40") // cost 10, price 40

	year, week := time.Now().ISOWeek()
	start, _, err := weekRange(year, week, time.Local)
	require.NoError(t, err)
	inWeek := start.Add(26 * time.Hour)

	seedSale(t, db, sellerA, product, "2", inWeek)             // revenue 80, cost 20
	seedSale(t, db, sellerA, product, "1", inWeek.Add(time.Hour)) // revenue 40, cost 10
	seedSale(t, db, sellerB, product, "3", inWeek.Add(2*time.Hour)) // revenue 120, cost 30
	seedSale(t, db, sellerB, product, "5", start.AddDate(0, 0, -2)) // previous week, ignored

	report, err := svc.Generate(ctx, year, week)
	require.NoError(t, err)
	require.Equal(t, 3, report.SalesCount)
	require.True(t, report.TotalRevenue.Equal(decimal.NewFromInt(240)))
	require.True(t, report.TotalCost.Equal(decimal.NewFromInt(60)))
	require.True(t, report.TotalProfit.Equal(decimal.NewFromInt(180)))
	require.True(t, report.ItemsSold.Equal(decimal.NewFromInt(6)))
	require.Len(t, report.Sellers, 2)

	for _, seller := range report.Sellers {
		switch seller.SellerID {
		case sellerA:
			require.Equal(t, 2, seller.SalesCount)
			require.True(t, seller.Revenue.Equal(decimal.NewFromInt(120)))
			require.True(t, seller.ItemsSold.Equal(decimal.NewFromInt(3)))
			require.True(t, seller.AverageSale.Equal(decimal.NewFromInt(60)))
		case sellerB:
			require.Equal(t, 1, seller.SalesCount)
			require.True(t, seller.Revenue.Equal(decimal.NewFromInt(120)))
			require.True(t, seller.ItemsSold.Equal(decimal.NewFromInt(3)))
			require.True(t, seller.AverageSale.Equal(decimal.NewFromInt(120)))
		default:
			t.Fatalf("unexpected seller %s", seller.SellerID)
		}
	}

	require.Len(t, publisher.events, 1)
	require.Equal(t, enums.EventReportGenerated, publisher.events[0].EventType)
}

func TestGenerateIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()

	seller := uuid.New()
	product := seedProduct(t, db, "5", "20")
	year, week := time.Now().ISOWeek()
	start, _, err := weekRange(year, week, time.Local)
	require.NoError(t, err)

	seedSale(t, db, seller, product, "1", start.Add(time.Hour))

	first, err := svc.Generate(ctx, year, week)
	require.NoError(t, err)

	// A new sale lands, then the week is recomputed.
	seedSale(t, db, seller, product, "2", start.Add(2*time.Hour))
	second, err := svc.Generate(ctx, year, week)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID, "rerun must overwrite the same row")
	require.Equal(t, 2, second.SalesCount)
	require.True(t, second.TotalRevenue.Equal(decimal.NewFromInt(60)))

	var reportCount, sellerCount int64
	require.NoError(t, db.Model(&models.WeeklySalesReport{}).Count(&reportCount).Error)
	require.NoError(t, db.Model(&models.SellerPerformance{}).Count(&sellerCount).Error)
	require.EqualValues(t, 1, reportCount)
	require.EqualValues(t, 1, sellerCount)
}

func TestPeriodStats(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()
	manager := audit.Actor{UserID: uuid.New(), Role: enums.UserRoleManager}

	sellerA := uuid.New()
	sellerB := uuid.New()
	coffee := seedProduct(t, db, "10", "40")
	sugar := seedProduct(t, db, "2", "6")

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	seedSale(t, db, sellerA, coffee, "2", base)                   // revenue 80, cost 20
	seedSale(t, db, sellerB, sugar, "5", base.Add(time.Hour))     // revenue 30, cost 10
	seedSale(t, db, sellerB, sugar, "1", base.AddDate(0, 0, 5))   // outside the range

	stats, err := svc.PeriodStats(ctx, manager, base.AddDate(0, 0, -1), base.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, 2, stats.SalesCount)
	require.True(t, stats.TotalRevenue.Equal(decimal.NewFromInt(110)))
	require.True(t, stats.TotalCost.Equal(decimal.NewFromInt(30)))
	require.True(t, stats.TotalProfit.Equal(decimal.NewFromInt(80)))
	require.True(t, stats.AverageTicket.Equal(decimal.NewFromInt(55)))
	require.True(t, stats.ItemsSold.Equal(decimal.NewFromInt(7)))

	require.Len(t, stats.TopSellers, 2)
	require.Equal(t, sellerA, stats.TopSellers[0].SellerID, "highest revenue first")
	require.True(t, stats.TopSellers[0].AverageSale.Equal(decimal.NewFromInt(80)))

	require.Len(t, stats.TopProducts, 2)
	require.Equal(t, sugar.ID, stats.TopProducts[0].ProductID, "highest quantity first")
	require.True(t, stats.TopProducts[0].Revenue.Equal(decimal.NewFromInt(30)))

	_, err = svc.PeriodStats(ctx, manager, base, base)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	seller := audit.Actor{UserID: sellerA, Role: enums.UserRoleSeller}
	_, err = svc.PeriodStats(ctx, seller, base.AddDate(0, 0, -1), base.AddDate(0, 0, 1))
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestReportAccessRequiresCapability(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	seller := audit.Actor{UserID: uuid.New(), Role: enums.UserRoleSeller}

	_, err := svc.Get(ctx, seller, 2026, 10)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	_, err = svc.List(ctx, seller, 10)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestGenerateFoldsInCompletedOrders(t *testing.T) {
	t.Parallel()

	svc, db, _ := newTestService(t)
	ctx := context.Background()

	seller := uuid.New()
	product := seedProduct(t, db, "10", "40") // cost 10, price 40

	year, week := time.Now().ISOWeek()
	start, _, err := weekRange(year, week, time.Local)
	require.NoError(t, err)
	inWeek := start.Add(26 * time.Hour)

	seedSale(t, db, seller, product, "2", inWeek)            // revenue 80, cost 20
	seedOrder(t, db, product, "3", inWeek.Add(time.Hour))    // revenue 120, cost 30
	seedOrder(t, db, product, "1", start.AddDate(0, 0, -1))  // previous week, ignored

	report, err := svc.Generate(ctx, year, week)
	require.NoError(t, err)
	require.Equal(t, 1, report.SalesCount)
	require.Equal(t, 1, report.OrdersCount)
	require.True(t, report.TotalRevenue.Equal(decimal.NewFromInt(200)), report.TotalRevenue.String())
	require.True(t, report.TotalCost.Equal(decimal.NewFromInt(50)), report.TotalCost.String())
	require.True(t, report.TotalProfit.Equal(decimal.NewFromInt(150)))
	require.True(t, report.ItemsSold.Equal(decimal.NewFromInt(5)))

	// Orders have no seller, so only the sale shows up per seller.
	require.Len(t, report.Sellers, 1)
	require.True(t, report.Sellers[0].Revenue.Equal(decimal.NewFromInt(80)))
}

func newTestService(t *testing.T) (Service, *gorm.DB, *capturePublisher) {
	t.Helper()
	dsn := "file:reports_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Category{},
		&models.UnitOfMeasure{},
		&models.Product{},
		&models.Sale{},
		&models.SaleItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.WeeklySalesReport{},
		&models.SellerPerformance{},
	))

	publisher := &capturePublisher{}
	svc, err := NewService(
		NewRepository(db),
		sales.NewRepository(db),
		orders.NewRepository(db),
		products.NewRepository(db),
		gormTxRunner{db: db},
		publisher,
	)
	require.NoError(t, err)
	return svc, db, publisher
}

func seedProduct(t *testing.T, db *gorm.DB, cost, price string) *models.Product {
	t.Helper()
	category := &models.Category{Name: "Category " + uuid.NewString()[:8], IsActive: true}
	require.NoError(t, db.Create(category).Error)
	unit := &models.UnitOfMeasure{Name: "Unit " + uuid.NewString()[:8], Abbreviation: "un"}
	require.NoError(t, db.Create(unit).Error)

	product := &models.Product{
		SKU:          "SKU-" + uuid.NewString()[:8],
		Name:         "Product",
		CategoryID:   category.ID,
		UnitID:       unit.ID,
		CostPrice:    decimal.RequireFromString(cost),
		SalePrice:    decimal.RequireFromString(price),
		Quantity:     decimal.NewFromInt(1000),
		MinimumStock: decimal.NewFromInt(1),
		StockStatus:  enums.StockStatusInStock,
		IsActive:     true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func seedSale(t *testing.T, db *gorm.DB, sellerID uuid.UUID, product *models.Product, qty string, at time.Time) {
	t.Helper()
	quantity := decimal.RequireFromString(qty)
	total := product.SalePrice.Mul(quantity).Round(2)

	sale := &models.Sale{
		SaleNumber:    at.Format("20060102") + uuid.NewString()[:4],
		SellerID:      sellerID,
		PaymentMethod: enums.PaymentMethodCash,
		Status:        enums.SaleStatusCompleted,
		Subtotal:      total,
		Discount:      decimal.Zero,
		TotalAmount:   total,
		AmountPaid:    total,
		ChangeAmount:  decimal.Zero,
		Items: []models.SaleItem{{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.SalePrice,
			Quantity:    quantity,
			LineTotal:   total,
		}},
	}
	require.NoError(t, db.Create(sale).Error)
	require.NoError(t, db.Model(&models.Sale{}).Where("id = ?", sale.ID).UpdateColumn("created_at", at).Error)
}

func seedOrder(t *testing.T, db *gorm.DB, product *models.Product, qty string, at time.Time) {
	t.Helper()
	quantity := decimal.RequireFromString(qty)
	total := product.SalePrice.Mul(quantity).Round(2)

	order := &models.Order{
		Code:          "ORD-" + uuid.NewString()[:8],
		CustomerID:    uuid.New(),
		CreatedByID:   uuid.New(),
		Status:        enums.OrderStatusCompleted,
		PaymentMethod: enums.PaymentMethodPix,
		Subtotal:      total,
		Discount:      decimal.Zero,
		TotalAmount:   total,
		Items: []models.OrderItem{{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.SalePrice,
			Quantity:    quantity,
			LineTotal:   total,
		}},
	}
	require.NoError(t, db.Create(order).Error)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).UpdateColumn("updated_at", at).Error)
}
