package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnitOfMeasure describes how a product is counted or weighed. Units that do
// not allow fractions force integral sale quantities.
type UnitOfMeasure struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name           string    `gorm:"column:name;type:text;not null;uniqueIndex"`
	Abbreviation   string    `gorm:"column:abbreviation;type:text;not null"`
	AllowsFraction bool      `gorm:"column:allows_fraction;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *UnitOfMeasure) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
