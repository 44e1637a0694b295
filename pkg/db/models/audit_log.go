package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/pkg/enums"
)

// AuditLog is append-only. Rows are written inside the same transaction as
// the mutation they describe and are never updated or deleted.
type AuditLog struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ActorID    *uuid.UUID        `gorm:"column:actor_id;type:uuid;index"`
	ActorRole  *enums.UserRole   `gorm:"column:actor_role;type:text"`
	Action     enums.AuditAction `gorm:"column:action;type:text;not null"`
	EntityType string            `gorm:"column:entity_type;type:text;not null;index:ix_audit_logs_entity"`
	EntityID   uuid.UUID         `gorm:"column:entity_id;type:uuid;not null;index:ix_audit_logs_entity"`
	Detail     json.RawMessage   `gorm:"column:detail;type:jsonb"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime;index"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
