package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()

	min := decimal.NewFromInt(5)
	require.Equal(t, enums.StockStatusOutOfStock, StatusFor(decimal.Zero, min))
	require.Equal(t, enums.StockStatusOutOfStock, StatusFor(decimal.NewFromInt(-1), min))
	require.Equal(t, enums.StockStatusLowStock, StatusFor(decimal.NewFromInt(5), min))
	require.Equal(t, enums.StockStatusLowStock, StatusFor(decimal.NewFromInt(1), min))
	require.Equal(t, enums.StockStatusInStock, StatusFor(decimal.NewFromInt(6), min))
}

func TestReserveDecrementsAndDegrades(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	product := seedProduct(t, db, "10", "5")

	var movements []Movement
	err := db.Transaction(func(tx *gorm.DB) error {
		var terr error
		movements, terr = Reserve(context.Background(), tx, []ReservationRequest{
			{ProductID: product.ID, Qty: decimal.NewFromInt(6)},
		})
		return terr
	})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.True(t, movements[0].Degraded())
	require.Equal(t, enums.StockStatusInStock, movements[0].PrevStatus)
	require.Equal(t, enums.StockStatusLowStock, movements[0].Product.StockStatus)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	require.True(t, reloaded.Quantity.Equal(decimal.NewFromInt(4)))
	require.Equal(t, enums.StockStatusLowStock, reloaded.StockStatus)
}

func TestReserveInsufficientRollsBackBatch(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	plenty := seedProduct(t, db, "10", "2")
	scarce := seedProduct(t, db, "1", "2")

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := Reserve(context.Background(), tx, []ReservationRequest{
			{ProductID: plenty.ID, Qty: decimal.NewFromInt(3)},
			{ProductID: scarce.ID, Qty: decimal.NewFromInt(2)},
		})
		return terr
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStockShort, typed.Code())

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", plenty.ID).Error)
	require.True(t, reloaded.Quantity.Equal(decimal.NewFromInt(10)), "failed batch must not leave partial decrements")
}

func TestReserveMergesDuplicateLines(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	product := seedProduct(t, db, "10", "2")

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := Reserve(context.Background(), tx, []ReservationRequest{
			{ProductID: product.ID, Qty: decimal.NewFromInt(4)},
			{ProductID: product.ID, Qty: decimal.NewFromInt(3)},
		})
		return terr
	})
	require.NoError(t, err)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	require.True(t, reloaded.Quantity.Equal(decimal.NewFromInt(3)))
}

func TestReleaseRestocks(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	product := seedProduct(t, db, "0", "5")

	err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := Release(context.Background(), tx, []ReservationRequest{
			{ProductID: product.ID, Qty: decimal.NewFromInt(8)},
		})
		return terr
	})
	require.NoError(t, err)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	require.True(t, reloaded.Quantity.Equal(decimal.NewFromInt(8)))
	require.Equal(t, enums.StockStatusInStock, reloaded.StockStatus)
}

func TestReserveValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	product := seedProduct(t, db, "10", "2")

	cases := []struct {
		name     string
		requests []ReservationRequest
	}{
		{name: "empty batch", requests: nil},
		{name: "zero qty", requests: []ReservationRequest{{ProductID: product.ID, Qty: decimal.Zero}}},
		{name: "negative qty", requests: []ReservationRequest{{ProductID: product.ID, Qty: decimal.NewFromInt(-1)}}},
		{name: "nil product", requests: []ReservationRequest{{Qty: decimal.NewFromInt(1)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Reserve(context.Background(), db, tc.requests)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			require.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	product := seedProduct(t, db, "4", "2")

	err := db.Transaction(func(tx *gorm.DB) error {
		movement, terr := Apply(context.Background(), tx, product.ID, decimal.NewFromInt(-3))
		if terr != nil {
			return terr
		}
		require.Equal(t, enums.StockStatusLowStock, movement.Product.StockStatus)
		return nil
	})
	require.NoError(t, err)

	_, err = Apply(context.Background(), db, product.ID, decimal.Zero)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func seedProduct(t *testing.T, db *gorm.DB, qty, minimum string) *models.Product {
	t.Helper()
	quantity, err := decimal.NewFromString(qty)
	require.NoError(t, err)
	minStock, err := decimal.NewFromString(minimum)
	require.NoError(t, err)

	product := &models.Product{
		SKU:          "SKU-" + uuid.NewString()[:8],
		Name:         "Test Product",
		CategoryID:   uuid.New(),
		UnitID:       uuid.New(),
		CostPrice:    decimal.NewFromInt(5),
		SalePrice:    decimal.NewFromInt(10),
		Quantity:     quantity,
		MinimumStock: minStock,
		StockStatus:  StatusFor(quantity, minStock),
		IsActive:     true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:stock_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}))
	return db
}
