package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/pkg/enums"
)

// Sale is a point-of-sale transaction committed atomically with its line
// items and the matching stock decrement.
type Sale struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SaleNumber    string              `gorm:"column:sale_number;type:text;not null;uniqueIndex"`
	SellerID      uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	CustomerID    *uuid.UUID          `gorm:"column:customer_id;type:uuid"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Status        enums.SaleStatus    `gorm:"column:status;type:text;not null;default:'completed'"`
	Subtotal      decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount      decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	AmountPaid    decimal.Decimal     `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	ChangeAmount  decimal.Decimal     `gorm:"column:change_amount;type:numeric(12,2);not null"`
	Notes         *string             `gorm:"column:notes;type:text"`
	Seller        *User               `gorm:"foreignKey:SellerID"`
	Customer      *Customer           `gorm:"foreignKey:CustomerID"`
	Items         []SaleItem          `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CancelledAt   *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Sale) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SaleItem snapshots the product name and unit price at commit time so later
// catalog edits never rewrite history.
type SaleItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SaleID      uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;type:text;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *SaleItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// SaleCounter tracks the last sequence suffix handed out for a day's sale
// numbers. Day is the YYYYMMDD prefix of the numbers it guards.
type SaleCounter struct {
	Day     string `gorm:"column:day;type:char(8);primaryKey"`
	LastSeq int    `gorm:"column:last_seq;not null"`
}
