package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
	"github.com/jmucavele/pdv-backend/pkg/outbox"
	"github.com/jmucavele/pdv-backend/pkg/outbox/payloads"
)

// ReservationRequest asks for qty units of a product to be removed from the
// shelf inside the caller's transaction.
type ReservationRequest struct {
	ProductID uuid.UUID
	Qty       decimal.Decimal
}

// Movement is the post-movement state of one product together with the
// status band it was in before the movement.
type Movement struct {
	Product    *models.Product
	PrevStatus enums.StockStatus
}

// Degraded reports whether the movement pushed the product into a worse
// availability band.
func (m Movement) Degraded() bool {
	return statusRank(m.Product.StockStatus) > statusRank(m.PrevStatus)
}

func statusRank(s enums.StockStatus) int {
	switch s {
	case enums.StockStatusOutOfStock:
		return 2
	case enums.StockStatusLowStock:
		return 1
	default:
		return 0
	}
}

// StatusFor derives the availability band from quantity and minimum stock.
func StatusFor(quantity, minimum decimal.Decimal) enums.StockStatus {
	if quantity.Sign() <= 0 {
		return enums.StockStatusOutOfStock
	}
	if quantity.LessThanOrEqual(minimum) {
		return enums.StockStatusLowStock
	}
	return enums.StockStatusInStock
}

// Reserve decrements stock for every request or fails the whole batch.
// Products are locked FOR UPDATE in ID order so concurrent reservations
// cannot deadlock, and a shortage on any line aborts with no partial
// decrement.
func Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]Movement, error) {
	return move(ctx, tx, requests, decimal.NewFromInt(-1))
}

// Release returns previously reserved stock to the shelf. Quantities must be
// positive; the delta applied is the request quantity.
func Release(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]Movement, error) {
	return move(ctx, tx, requests, decimal.NewFromInt(1))
}

func move(ctx context.Context, tx *gorm.DB, requests []ReservationRequest, direction decimal.Decimal) ([]Movement, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	merged, err := mergeRequests(requests)
	if err != nil {
		return nil, err
	}

	movements := make([]Movement, 0, len(merged))
	for _, req := range merged {
		product, err := lockProduct(ctx, tx, req.ProductID)
		if err != nil {
			return nil, err
		}

		delta := req.Qty.Mul(direction)
		next := product.Quantity.Add(delta)
		if next.Sign() < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeStockShort, "insufficient stock").
				WithDetails(map[string]interface{}{
					"product_id": product.ID,
					"sku":        product.SKU,
					"available":  product.Quantity,
					"requested":  req.Qty,
				})
		}

		prev := product.StockStatus
		product.Quantity = next
		product.StockStatus = StatusFor(next, product.MinimumStock)
		if err := tx.WithContext(ctx).Model(product).
			Select("quantity", "stock_status", "updated_at").
			Updates(map[string]interface{}{
				"quantity":     product.Quantity,
				"stock_status": product.StockStatus,
				"updated_at":   time.Now(),
			}).Error; err != nil {
			return nil, err
		}
		movements = append(movements, Movement{Product: product, PrevStatus: prev})
	}
	return movements, nil
}

// Apply moves a single product by delta (positive or negative) under a row
// lock. Used by manual stock adjustments.
func Apply(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta decimal.Decimal) (Movement, error) {
	if delta.IsZero() {
		return Movement{}, pkgerrors.New(pkgerrors.CodeValidation, "adjustment delta must be non-zero")
	}
	if delta.Sign() > 0 {
		moves, err := Release(ctx, tx, []ReservationRequest{{ProductID: productID, Qty: delta}})
		if err != nil {
			return Movement{}, err
		}
		return moves[0], nil
	}
	moves, err := Reserve(ctx, tx, []ReservationRequest{{ProductID: productID, Qty: delta.Neg()}})
	if err != nil {
		return Movement{}, err
	}
	return moves[0], nil
}

// Publisher emits domain events inside an open transaction.
type Publisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// EmitDegradations writes a stock_degraded event for every movement that
// crossed into a worse band. Must run in the same transaction as the
// movement.
func EmitDegradations(ctx context.Context, tx *gorm.DB, publisher Publisher, movements []Movement) error {
	for _, movement := range movements {
		if !movement.Degraded() {
			continue
		}
		product := movement.Product
		event := outbox.DomainEvent{
			EventType:     enums.EventStockDegraded,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			Data: payloads.StockDegradedEvent{
				ProductID: product.ID,
				SKU:       product.SKU,
				Name:      product.Name,
				Quantity:  product.Quantity,
				Status:    product.StockStatus,
			},
			Version: 1,
		}
		if err := publisher.Emit(ctx, tx, event); err != nil {
			return err
		}
	}
	return nil
}

func lockProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	query := tx.WithContext(ctx)
	// sqlite has no row locks and serializes writers itself.
	if tx.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var product models.Product
	err := query.First(&product, "id = ?", productID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", productID))
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func mergeRequests(requests []ReservationRequest) ([]ReservationRequest, error) {
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no stock movements requested")
	}
	byProduct := make(map[uuid.UUID]decimal.Decimal, len(requests))
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty.Sign() <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]interface{}{"product_id": req.ProductID})
		}
		byProduct[req.ProductID] = byProduct[req.ProductID].Add(req.Qty)
	}

	merged := make([]ReservationRequest, 0, len(byProduct))
	for id, qty := range byProduct {
		merged = append(merged, ReservationRequest{ProductID: id, Qty: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID.String() < merged[j].ProductID.String()
	})
	return merged, nil
}
