package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/pkg/enums"
)

// Order is a deferred sale: stock is reserved at confirmation, not at
// creation, and the status column walks the order state machine.
type Order struct {
	ID                     uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code                   string              `gorm:"column:code;type:text;not null;uniqueIndex"`
	CustomerID             uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	CreatedByID            uuid.UUID           `gorm:"column:created_by_id;type:uuid;not null"`
	Status                 enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMethod          enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Subtotal               decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount               decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	TotalAmount            decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Notes                  *string             `gorm:"column:notes;type:text"`
	PaymentProofKey        *string             `gorm:"column:payment_proof_key;type:text"`
	PaymentProofUploadedAt *time.Time          `gorm:"column:payment_proof_uploaded_at"`
	Customer               *Customer           `gorm:"foreignKey:CustomerID"`
	CreatedBy              *User               `gorm:"foreignKey:CreatedByID"`
	Items                  []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ConfirmedByID          *uuid.UUID          `gorm:"column:confirmed_by_id;type:uuid"`
	ConfirmedBy            *User               `gorm:"foreignKey:ConfirmedByID;constraint:OnDelete:SET NULL"`
	ConfirmedAt            *time.Time          `gorm:"column:confirmed_at"`
	CancelledAt            *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt              time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt              time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem snapshots product name and unit price at order creation.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;type:text;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
