package notifications

import (
	"context"
	"fmt"

	"github.com/jmucavele/pdv-backend/pkg/config"
	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	"github.com/jmucavele/pdv-backend/pkg/logger"
	"github.com/jmucavele/pdv-backend/pkg/outbox/idempotency"
	"github.com/jmucavele/pdv-backend/pkg/outbox/payloads"
	"github.com/jmucavele/pdv-backend/pkg/outbox/registry"
	"github.com/google/uuid"
)

const notificationConsumer = "notifications-worker"

type salesCounter interface {
	CountCompleted(ctx context.Context) (int64, error)
}

// Consumer turns dispatched domain events into in-app notifications.
type Consumer struct {
	repo        Repository
	sales       salesCounter
	idempotency *idempotency.Manager
	logg        *logger.Logger
	cfg         config.SalesConfig
}

// NewConsumer builds the notifications consumer.
func NewConsumer(repo Repository, sales salesCounter, manager *idempotency.Manager, logg *logger.Logger, cfg config.SalesConfig) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if sales == nil {
		return nil, fmt.Errorf("sales counter required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{repo: repo, sales: sales, idempotency: manager, logg: logg, cfg: cfg}, nil
}

// Name identifies the consumer in idempotency keys and logs.
func (c *Consumer) Name() string {
	return notificationConsumer
}

// Handle processes one resolved outbox event. Errors are retryable unless
// wrapped as non-retryable by the registry.
func (c *Consumer) Handle(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID.String(),
		"event_type": string(event.EventType),
	})

	eventID, err := uuid.Parse(resolved.Envelope.EventID)
	if err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("invalid envelope event id: %w", err))
	}
	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationConsumer, eventID)
	if err != nil {
		return err
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	if err := c.process(ctx, event, resolved); err != nil {
		_ = c.idempotency.Delete(ctx, notificationConsumer, eventID)
		return err
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	switch event.EventType {
	case enums.EventSaleCompleted:
		return c.handleSaleCompleted(ctx)
	case enums.EventStockDegraded:
		payload, ok := resolved.Payload.(*payloads.StockDegradedEvent)
		if !ok {
			return registry.NewNonRetryableError(fmt.Errorf("unexpected payload type for %s", event.EventType))
		}
		return c.handleStockDegraded(ctx, payload)
	case enums.EventOrderCreated:
		payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
		if !ok {
			return registry.NewNonRetryableError(fmt.Errorf("unexpected payload type for %s", event.EventType))
		}
		return c.broadcast(ctx, enums.NotificationTypeOrderUpdate,
			"New order "+payload.Code,
			fmt.Sprintf("Order %s was registered and awaits confirmation.", payload.Code))
	case enums.EventOrderPaymentUploaded:
		payload, ok := resolved.Payload.(*payloads.OrderPaymentUploadedEvent)
		if !ok {
			return registry.NewNonRetryableError(fmt.Errorf("unexpected payload type for %s", event.EventType))
		}
		return c.broadcast(ctx, enums.NotificationTypeOrderUpdate,
			"Payment uploaded for "+payload.Code,
			fmt.Sprintf("Order %s received a payment proof and awaits confirmation.", payload.Code))
	case enums.EventOrderConfirmed:
		payload, ok := resolved.Payload.(*payloads.OrderConfirmedEvent)
		if !ok {
			return registry.NewNonRetryableError(fmt.Errorf("unexpected payload type for %s", event.EventType))
		}
		return c.broadcast(ctx, enums.NotificationTypeOrderUpdate,
			"Order "+payload.Code+" confirmed",
			fmt.Sprintf("Order %s was confirmed and its stock is now reserved.", payload.Code))
	case enums.EventOrderStatusChanged:
		payload, ok := resolved.Payload.(*payloads.OrderStatusChangedEvent)
		if !ok {
			return registry.NewNonRetryableError(fmt.Errorf("unexpected payload type for %s", event.EventType))
		}
		return c.broadcast(ctx, enums.NotificationTypeOrderUpdate,
			"Order "+payload.Code+" updated",
			fmt.Sprintf("Order %s moved from %s to %s.", payload.Code, payload.From, payload.To))
	case enums.EventOrderCancelled:
		payload, ok := resolved.Payload.(*payloads.OrderCancelledEvent)
		if !ok {
			return registry.NewNonRetryableError(fmt.Errorf("unexpected payload type for %s", event.EventType))
		}
		message := fmt.Sprintf("Order %s was cancelled.", payload.Code)
		if payload.Restocked {
			message = fmt.Sprintf("Order %s was cancelled and its stock returned to the shelf.", payload.Code)
		}
		return c.broadcast(ctx, enums.NotificationTypeOrderUpdate, "Order "+payload.Code+" cancelled", message)
	default:
		// Sale cancellations and report events carry no notification today.
		return nil
	}
}

// handleSaleCompleted posts a milestone announcement every N completed
// sales.
func (c *Consumer) handleSaleCompleted(ctx context.Context) error {
	interval := int64(c.cfg.MilestoneInterval)
	if interval <= 0 {
		return nil
	}
	count, err := c.sales.CountCompleted(ctx)
	if err != nil {
		return err
	}
	if count == 0 || count%interval != 0 {
		return nil
	}
	return c.broadcast(ctx, enums.NotificationTypeSaleMilestone,
		fmt.Sprintf("%d sales!", count),
		fmt.Sprintf("The store just completed its sale number %d.", count))
}

func (c *Consumer) handleStockDegraded(ctx context.Context, payload *payloads.StockDegradedEvent) error {
	title := fmt.Sprintf("Low stock: %s", payload.Name)
	message := fmt.Sprintf("%s (%s) is down to %s units.", payload.Name, payload.SKU, payload.Quantity.String())
	if payload.Status == enums.StockStatusOutOfStock {
		title = fmt.Sprintf("Out of stock: %s", payload.Name)
		message = fmt.Sprintf("%s (%s) is out of stock.", payload.Name, payload.SKU)
	}
	return c.broadcast(ctx, enums.NotificationTypeStockAlert, title, message)
}

func (c *Consumer) broadcast(ctx context.Context, kind enums.NotificationType, title, message string) error {
	return c.repo.Create(ctx, &models.Notification{
		Type:    kind,
		Title:   title,
		Message: message,
	})
}
