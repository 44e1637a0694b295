package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
	"github.com/jmucavele/pdv-backend/pkg/pagination"
)

const saleNumberSeqDigits = 4

// Repository exposes persistence helpers for sales.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a sales repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create persists a sale with its line items.
func (r *Repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

// FindByID loads a sale with its items, seller and customer.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Seller").
		Preload("Customer").
		First(&sale, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// UpdateStatus moves a sale between statuses with an optimistic predicate on
// the current status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.SaleStatus, cancelledAt *time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to, "updated_at": time.Now()}
	if cancelledAt != nil {
		updates["cancelled_at"] = *cancelledAt
	}
	result := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// NextSaleNumber allocates the next sequential number for the given day.
// The caller must hold an open transaction: the upsert locks the day's
// counter row, so concurrent commits serialize on it and never see the
// same sequence value.
func (r *Repository) NextSaleNumber(ctx context.Context, day time.Time) (string, error) {
	prefix := day.Format("20060102")

	var seq int
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO sale_counters (day, last_seq) VALUES (?, 1)
		ON CONFLICT (day) DO UPDATE SET last_seq = sale_counters.last_seq + 1
		RETURNING last_seq`, prefix).Scan(&seq).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%0*d", prefix, saleNumberSeqDigits, seq), nil
}

// CountCompletedForSellerOn counts completed sales a seller committed during
// the given calendar day.
func (r *Repository) CountCompletedForSellerOn(ctx context.Context, sellerID uuid.UUID, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("seller_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
			sellerID, enums.SaleStatusCompleted, start, end).
		Count(&count).Error
	return count, err
}

// SellerDayStats sums a seller's completed sales during the given calendar
// day.
func (r *Repository) SellerDayStats(ctx context.Context, sellerID uuid.UUID, day time.Time) (int64, decimal.Decimal, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var row struct {
		SalesCount int64           `gorm:"column:sales_count"`
		Revenue    decimal.Decimal `gorm:"column:revenue"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("COUNT(*) AS sales_count, COALESCE(SUM(total_amount), 0) AS revenue").
		Where("seller_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
			sellerID, enums.SaleStatusCompleted, start, end).
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	return row.SalesCount, row.Revenue, nil
}

// CountCompleted counts every completed sale. Used for milestone checks.
func (r *Repository) CountCompleted(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("status = ?", enums.SaleStatusCompleted).
		Count(&count).Error
	return count, err
}

// ListParams filters sale listings.
type ListParams struct {
	SellerID *uuid.UUID
	Status   *enums.SaleStatus
	From     *time.Time
	To       *time.Time
	Limit    int
	Cursor   *pagination.Cursor
}

// List returns sales newest first with cursor pagination.
func (r *Repository) List(ctx context.Context, params ListParams) ([]models.Sale, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Sale{}).Preload("Items")
	if params.SellerID != nil {
		query = query.Where("seller_id = ?", *params.SellerID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at < ?", *params.To)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Sale
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

// ListCompletedBetween loads completed sales in [from, to) with items. Used
// by the weekly aggregation job.
func (r *Repository) ListCompletedBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error) {
	var rows []models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND created_at >= ? AND created_at < ?", enums.SaleStatusCompleted, from, to).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
