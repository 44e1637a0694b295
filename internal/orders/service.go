package orders

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

// Service exposes the customer order lifecycle. Orders defer stock: nothing
// is reserved until a manager confirms.
type Service interface {
	Create(ctx context.Context, actor audit.Actor, input CreateInput) (*OrderDTO, error)
	UploadPaymentProof(ctx context.Context, actor audit.Actor, orderID uuid.UUID, proofKey string) (*OrderDTO, error)
	Confirm(ctx context.Context, actor audit.Actor, orderID uuid.UUID) (*OrderDTO, error)
	Advance(ctx context.Context, actor audit.Actor, orderID uuid.UUID, next enums.OrderStatus) (*OrderDTO, error)
	Cancel(ctx context.Context, actor audit.Actor, orderID uuid.UUID, reason string) (*OrderDTO, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	GetByCode(ctx context.Context, code string) (*OrderDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
}

// CreateInput is the payload to register an order.
type CreateInput struct {
	CustomerID    uuid.UUID
	PaymentMethod enums.PaymentMethod
	Items         []ItemInput
	Discount      decimal.Decimal
	Notes         *string
}

// ItemInput is one line of an order. Prices come from the catalog.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  decimal.Decimal
}

// ListInput filters order listings.
type ListInput struct {
	Status     *enums.OrderStatus
	CustomerID *uuid.UUID
	Limit      int
	Cursor     string
}

// reservedStatuses hold stock that must return to the shelf on cancellation.
var reservedStatuses = map[enums.OrderStatus]bool{
	enums.OrderStatusConfirmed:  true,
	enums.OrderStatusProcessing: true,
	enums.OrderStatusReady:      true,
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindUnitByID(ctx context.Context, id uuid.UUID) (*models.UnitOfMeasure, error)
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

// NewService constructs an orders service instance.
func NewService(repo *Repository, products catalogReader, customers customerLoader, tx txRunner, publisher outboxPublisher, cfg config.SalesConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
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

// Create registers a pending order. Availability is not checked here; the
// catalog may well change before a manager confirms.
func (s *service) Create(ctx context.Context, actor audit.Actor, input CreateInput) (*OrderDTO, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer required")
	}
	if input.Discount.Sign() < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must not be negative")
	}

	var orderID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.customers.FindByID(ctx, input.CustomerID); err != nil {
			return err
		}

		lines, subtotal, err := s.buildLines(ctx, input.Items)
		if err != nil {
			return err
		}
		discount := input.Discount.Round(2)
		if discount.GreaterThan(subtotal) {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds the order subtotal").
				WithDetails(map[string]interface{}{"subtotal": subtotal, "discount": discount})
		}
		code, err := generateCode(ctx, repo, s.cfg.OrderCodeMaxRetries)
		if err != nil {
			return err
		}

		order := &models.Order{
			Code:          code,
			CustomerID:    input.CustomerID,
			CreatedByID:   actor.UserID,
			Status:        enums.OrderStatusPending,
			PaymentMethod: input.PaymentMethod,
			Subtotal:      subtotal,
			Discount:      discount,
			TotalAmount:   subtotal.Sub(discount),
			Notes:         input.Notes,
			Items:         lines,
		}
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		orderID = order.ID

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				Code:        order.Code,
				CustomerID:  order.CustomerID,
				TotalAmount: order.TotalAmount,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionCreate,
			EntityType: "order",
			EntityID:   order.ID,
			Detail:     map[string]string{"code": order.Code},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

func (s *service) buildLines(ctx context.Context, items []ItemInput) ([]models.OrderItem, decimal.Decimal, error) {
	lines := make([]models.OrderItem, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		if item.Quantity.Sign() <= 0 {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if !product.IsActive {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "product is inactive").
				WithDetails(map[string]interface{}{"product_id": product.ID})
		}
		unit := product.Unit
		if unit == nil {
			unit, err = s.products.FindUnitByID(ctx, product.UnitID)
			if err != nil {
				return nil, decimal.Zero, err
			}
		}
		if !unit.AllowsFraction && !item.Quantity.Equal(item.Quantity.Truncate(0)) {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unit does not allow fractional quantities").
				WithDetails(map[string]interface{}{"product_id": product.ID, "unit": unit.Name})
		}

		lineTotal := product.SalePrice.Mul(item.Quantity).Round(2)
		lines = append(lines, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.SalePrice,
			Quantity:    item.Quantity,
			LineTotal:   lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return lines, total, nil
}

// UploadPaymentProof attaches a stored proof reference to a pending order
// and moves it to payment_uploaded.
func (s *service) UploadPaymentProof(ctx context.Context, actor audit.Actor, orderID uuid.UUID, proofKey string) (*OrderDTO, error) {
	if strings.TrimSpace(proofKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment proof reference required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusPaymentUploaded) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
				WithDetails(map[string]interface{}{"status": order.Status})
		}

		now := s.now()
		updated, err := repo.UpdateStatus(ctx, orderID, order.Status, enums.OrderStatusPaymentUploaded,
			map[string]interface{}{
				"payment_proof_key":         proofKey,
				"payment_proof_uploaded_at": now,
			})
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentUploaded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: payloads.OrderPaymentUploadedEvent{
				OrderID:    order.ID,
				Code:       order.Code,
				ProofKey:   proofKey,
				UploadedAt: now,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionStatusChange,
			EntityType: "order",
			EntityID:   order.ID,
			Detail:     map[string]string{"from": order.Status.String(), "to": enums.OrderStatusPaymentUploaded.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

// Confirm reserves stock for the order and moves it to confirmed. This is
// the point where availability is checked; a shortage rejects the whole
// confirmation.
func (s *service) Confirm(ctx context.Context, actor audit.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	if !actor.Role.Can(enums.CapConfirmOrders) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order confirmation not allowed")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusConfirmed) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be confirmed from its current status").
				WithDetails(map[string]interface{}{"status": order.Status})
		}

		requests := make([]stock.ReservationRequest, 0, len(order.Items))
		for _, item := range order.Items {
			requests = append(requests, stock.ReservationRequest{ProductID: item.ProductID, Qty: item.Quantity})
		}
		movements, err := stock.Reserve(ctx, tx, requests)
		if err != nil {
			return err
		}

		now := s.now()
		updated, err := repo.UpdateStatus(ctx, orderID, order.Status, enums.OrderStatusConfirmed,
			map[string]interface{}{"confirmed_by_id": actor.UserID, "confirmed_at": now})
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		if err := stock.EmitDegradations(ctx, tx, s.outbox, movements); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: payloads.OrderConfirmedEvent{
				OrderID:     order.ID,
				Code:        order.Code,
				ConfirmedBy: actor.UserID,
				ConfirmedAt: now,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionStatusChange,
			EntityType: "order",
			EntityID:   order.ID,
			Detail:     map[string]string{"from": order.Status.String(), "to": enums.OrderStatusConfirmed.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

// Advance moves the order one step forward. Confirmation and cancellation
// have dedicated entry points because they touch stock.
func (s *service) Advance(ctx context.Context, actor audit.Actor, orderID uuid.UUID, next enums.OrderStatus) (*OrderDTO, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if next == enums.OrderStatusConfirmed || next == enums.OrderStatusCancelled || next == enums.OrderStatusPaymentUploaded {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use the confirm, cancel or payment proof operations")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed").
				WithDetails(map[string]interface{}{"from": order.Status, "to": next})
		}
		updated, err := repo.UpdateStatus(ctx, orderID, order.Status, next, nil)
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				Code:    order.Code,
				From:    order.Status,
				To:      next,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionStatusChange,
			EntityType: "order",
			EntityID:   order.ID,
			Detail:     map[string]string{"from": order.Status.String(), "to": next.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

// Cancel voids an order from any non-terminal status. Stock goes back to
// the shelf when the order had already been confirmed. Once stock is held,
// cancelling requires the confirm-orders capability.
func (s *service) Cancel(ctx context.Context, actor audit.Actor, orderID uuid.UUID, reason string) (*OrderDTO, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already terminal").
				WithDetails(map[string]interface{}{"status": order.Status})
		}

		restock := reservedStatuses[order.Status]
		if restock && !actor.Role.Can(enums.CapConfirmOrders) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cancelling a confirmed order not allowed")
		}

		now := s.now()
		updated, err := repo.UpdateStatus(ctx, orderID, order.Status, enums.OrderStatusCancelled,
			map[string]interface{}{"cancelled_at": now})
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		if restock {
			requests := make([]stock.ReservationRequest, 0, len(order.Items))
			for _, item := range order.Items {
				requests = append(requests, stock.ReservationRequest{ProductID: item.ProductID, Qty: item.Quantity})
			}
			if _, err := stock.Release(ctx, tx, requests); err != nil {
				return err
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				Code:        order.Code,
				CancelledAt: now,
				Restocked:   restock,
				Reason:      reason,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			Actor:      &actor,
			Action:     enums.AuditActionCancel,
			EntityType: "order",
			EntityID:   order.ID,
			Detail:     map[string]string{"reason": reason},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return toDTO(order), nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*OrderDTO, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order code")
	}
	order, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return toDTO(order), nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.List(ctx, ListParams{
		Status:     input.Status,
		CustomerID: input.CustomerID,
		Limit:      input.Limit,
		Cursor:     cursor,
	})
	if err != nil {
		return nil, err
	}

	result := &ListResult{Orders: make([]OrderDTO, 0, len(rows))}
	for i := range rows {
		result.Orders = append(result.Orders, *toDTO(&rows[i]))
	}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}
