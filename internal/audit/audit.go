package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
	"github.com/jmucavele/pdv-backend/pkg/pagination"
)

// Actor identifies who performed the audited mutation. A zero Actor records
// a system action.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// Entry captures one mutation for the append-only ledger.
type Entry struct {
	Actor      *Actor
	Action     enums.AuditAction
	EntityType string
	EntityID   uuid.UUID
	Detail     interface{}
}

// Record writes the entry inside the caller's transaction so the audit row
// commits or rolls back with the mutation it describes.
func Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if !entry.Action.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid audit action")
	}
	if entry.EntityType == "" || entry.EntityID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "audit entry requires entity type and id")
	}

	row := models.AuditLog{
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
	}
	if entry.Actor != nil {
		actorID := entry.Actor.UserID
		role := entry.Actor.Role
		row.ActorID = &actorID
		row.ActorRole = &role
	}
	if entry.Detail != nil {
		detail, err := json.Marshal(entry.Detail)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal audit detail")
		}
		row.Detail = detail
	}
	return tx.WithContext(ctx).Create(&row).Error
}

// ListParams filters the audit trail. All filters are optional.
type ListParams struct {
	EntityType string
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	Action     *enums.AuditAction
	Limit      int
	Cursor     *pagination.Cursor
}

// Repository reads the audit ledger. There are deliberately no update or
// delete methods.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns ledger entries newest first with cursor pagination.
func (r *Repository) List(ctx context.Context, params ListParams) ([]models.AuditLog, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if params.EntityType != "" {
		query = query.Where("entity_type = ?", params.EntityType)
	}
	if params.EntityID != nil {
		query = query.Where("entity_id = ?", *params.EntityID)
	}
	if params.ActorID != nil {
		query = query.Where("actor_id = ?", *params.ActorID)
	}
	if params.Action != nil {
		query = query.Where("action = ?", *params.Action)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.AuditLog
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[normalized-1]
		return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return rows, nil, nil
}
