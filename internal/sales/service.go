package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/internal/audit"
	"github.com/jmucavele/pdv-backend/internal/stock"
	"github.com/jmucavele/pdv-backend/pkg/config"
	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
	"github.com/jmucavele/pdv-backend/pkg/outbox"
	"github.com/jmucavele/pdv-backend/pkg/outbox/payloads"
	"github.com/jmucavele/pdv-backend/pkg/pagination"
)

// Service exposes the point-of-sale commit protocol.
type Service interface {
	Commit(ctx context.Context, actor audit.Actor, input CommitInput) (*SaleDTO, error)
	Cancel(ctx context.Context, actor audit.Actor, saleID uuid.UUID, reason string) (*SaleDTO, error)
	Get(ctx context.Context, saleID uuid.UUID) (*SaleDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Dashboard(ctx context.Context, actor audit.Actor) (*DashboardDTO, error)
}

// CommitInput is the payload of a sale commit.
type CommitInput struct {
	Items         []ItemInput
	PaymentMethod enums.PaymentMethod
	Discount      decimal.Decimal
	AmountPaid    decimal.Decimal
	CustomerID    *uuid.UUID
	Notes         *string
}

// ItemInput is one line of a sale commit. Prices come from the catalog, not
// from the client.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  decimal.Decimal
}

// ListInput filters sale listings.
type ListInput struct {
	SellerID *uuid.UUID
	Status   *enums.SaleStatus
	From     *time.Time
	To       *time.Time
	Limit    int
	Cursor   string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type customerLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo      *Repository
	products  catalogReader
	customers customerLoader
	tx        txRunner
	outbox    outboxPublisher
	cfg       config.SalesConfig
	now       func() time.Time
}

// catalogReader is the slice of the product repository the sale commit needs.
type catalogReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindUnitByID(ctx context.Context, id uuid.UUID) (*models.UnitOfMeasure, error)
}

// NewService constructs a sales service instance.
func NewService(repo *Repository, products catalogReader, customers customerLoader, tx txRunner, publisher outboxPublisher, cfg config.SalesConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if customers == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      repo,
		products:  products,
		customers: customers,
		tx:        tx,
		outbox:    publisher,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

// Commit validates the cart, allocates the sale number, reserves stock and
// writes the sale with its lines in one transaction. Nothing is persisted
// when any step fails.
func (s *service) Commit(ctx context.Context, actor audit.Actor, input CommitInput) (*SaleDTO, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale requires at least one item")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}
	if input.AmountPaid.Sign() < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount paid must not be negative")
	}
	if input.Discount.Sign() < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must not be negative")
	}

	var saleID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		if !actor.Role.Can(enums.CapBypassDailyLimit) {
			count, err := repo.CountCompletedForSellerOn(ctx, actor.UserID, now)
			if err != nil {
				return err
			}
			if count >= int64(s.cfg.DailyLimit) {
				return pkgerrors.New(pkgerrors.CodeDailyLimit, "daily sales limit reached").
					WithDetails(map[string]interface{}{"limit": s.cfg.DailyLimit})
			}
		}

		if input.CustomerID != nil {
			if _, err := s.customers.FindByID(ctx, *input.CustomerID); err != nil {
				return err
			}
		}

		lines, reservations, subtotal, err := s.buildLines(ctx, input.Items)
		if err != nil {
			return err
		}

		discount := input.Discount.Round(2)
		if discount.GreaterThan(subtotal) {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds the sale subtotal").
				WithDetails(map[string]interface{}{"subtotal": subtotal, "discount": discount})
		}
		total := subtotal.Sub(discount)

		// An underpaid sale still commits; change is clamped at zero.
		paid := input.AmountPaid
		change := paid.Sub(total)
		if change.Sign() < 0 {
			change = decimal.Zero
		}

		movements, err := stock.Reserve(ctx, tx, reservations)
		if err != nil {
			return err
		}

		number, err := repo.NextSaleNumber(ctx, now)
		if err != nil {
			return err
		}

		sale := &models.Sale{
			SaleNumber:    number,
			SellerID:      actor.UserID,
			CustomerID:    input.CustomerID,
			PaymentMethod: input.PaymentMethod,
			Status:        enums.SaleStatusCompleted,
			Subtotal:      subtotal,
			Discount:      discount,
			TotalAmount:   total,
			AmountPaid:    paid,
			ChangeAmount:  change,
			Notes:         input.Notes,
			Items:         lines,
		}
		if err := repo.Create(ctx, sale); err != nil {
			return err
		}
		saleID = sale.ID

		if err := stock.EmitDegradations(ctx, tx, s.outbox, movements); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleCompleted,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: payloads.SaleCompletedEvent{
				SaleID:      sale.ID,
				SaleNumber:  sale.SaleNumber,
				SellerID:    sale.SellerID,
				TotalAmount: sale.TotalAmount,
				ItemCount:   len(sale.Items),
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionCreate,
			EntityType: "sale",
			EntityID:   sale.ID,
			Detail:     map[string]string{"sale_number": sale.SaleNumber},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, saleID)
}

// buildLines resolves catalog rows, enforces fraction rules and computes the
// decimal line totals.
func (s *service) buildLines(ctx context.Context, items []ItemInput) ([]models.SaleItem, []stock.ReservationRequest, decimal.Decimal, error) {
	lines := make([]models.SaleItem, 0, len(items))
	reservations := make([]stock.ReservationRequest, 0, len(items))
	total := decimal.Zero
	units := map[uuid.UUID]*models.UnitOfMeasure{}

	for _, item := range items {
		if item.Quantity.Sign() <= 0 {
			return nil, nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, nil, decimal.Zero, err
		}
		if !product.IsActive {
			return nil, nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "product is inactive").
				WithDetails(map[string]interface{}{"product_id": product.ID})
		}

		unit := product.Unit
		if unit == nil {
			if unit = units[product.UnitID]; unit == nil {
				unit, err = s.products.FindUnitByID(ctx, product.UnitID)
				if err != nil {
					return nil, nil, decimal.Zero, err
				}
				units[product.UnitID] = unit
			}
		}
		if !unit.AllowsFraction && !item.Quantity.Equal(item.Quantity.Truncate(0)) {
			return nil, nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unit does not allow fractional quantities").
				WithDetails(map[string]interface{}{"product_id": product.ID, "unit": unit.Name})
		}

		lineTotal := product.SalePrice.Mul(item.Quantity).Round(2)
		lines = append(lines, models.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.SalePrice,
			Quantity:    item.Quantity,
			LineTotal:   lineTotal,
		})
		reservations = append(reservations, stock.ReservationRequest{ProductID: product.ID, Qty: item.Quantity})
		total = total.Add(lineTotal)
	}
	return lines, reservations, total, nil
}

// Cancel voids a completed sale. Stock is deliberately not returned: a void
// usually follows a physical loss or a correction resolved by a manual
// adjustment.
func (s *service) Cancel(ctx context.Context, actor audit.Actor, saleID uuid.UUID, reason string) (*SaleDTO, error) {
	if !actor.Role.Can(enums.CapCancelSales) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sale cancellation not allowed")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := repo.FindByID(ctx, saleID)
		if err != nil {
			return err
		}
		now := s.now()
		updated, err := repo.UpdateStatus(ctx, saleID, enums.SaleStatusCompleted, enums.SaleStatusCancelled, &now)
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only completed sales can be cancelled")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleCancelled,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: payloads.SaleCancelledEvent{
				SaleID:      sale.ID,
				SaleNumber:  sale.SaleNumber,
				CancelledAt: now,
				Reason:      reason,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionCancel,
			EntityType: "sale",
			EntityID:   sale.ID,
			Detail:     map[string]string{"reason": reason},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, saleID)
}

func (s *service) Get(ctx context.Context, saleID uuid.UUID) (*SaleDTO, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return toDTO(sale), nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, ListParams{
		SellerID: input.SellerID,
		Status:   input.Status,
		From:     input.From,
		To:       input.To,
		Limit:    input.Limit,
		Cursor:   cursor,
	})
	if err != nil {
		return nil, err
	}

	result := &ListResult{Sales: make([]SaleDTO, 0, len(rows))}
	for i := range rows {
		result.Sales = append(result.Sales, *toDTO(&rows[i]))
	}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// Dashboard summarizes the acting seller's day for the POS home screen.
func (s *service) Dashboard(ctx context.Context, actor audit.Actor) (*DashboardDTO, error) {
	today := s.now()
	count, revenue, err := s.repo.SellerDayStats(ctx, actor.UserID, today)
	if err != nil {
		return nil, err
	}

	dto := &DashboardDTO{
		Date:         today.Format("2006-01-02"),
		SalesToday:   int(count),
		RevenueToday: revenue,
	}
	if !actor.Role.Can(enums.CapBypassDailyLimit) {
		limit := s.cfg.DailyLimit
		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		dto.DailyLimit = &limit
		dto.RemainingToday = &remaining
	}
	return dto, nil
}
