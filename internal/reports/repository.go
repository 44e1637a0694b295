package reports

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/pkg/db/models"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
)

// Repository exposes persistence helpers for weekly sales reports.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a reports repository bound to the provided database.
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

// FindByYearWeek loads a report with its seller breakdown.
func (r *Repository) FindByYearWeek(ctx context.Context, year, week int) (*models.WeeklySalesReport, error) {
	var report models.WeeklySalesReport
	err := r.db.WithContext(ctx).
		Preload("Sellers").
		First(&report, "year = ? AND week = ?", year, week).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "report not found")
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Upsert writes the report for its (year, week) slot, replacing the seller
// breakdown wholesale. Reruns converge on the same row.
func (r *Repository) Upsert(ctx context.Context, report *models.WeeklySalesReport) error {
	var existing models.WeeklySalesReport
	err := r.db.WithContext(ctx).
		First(&existing, "year = ? AND week = ?", report.Year, report.Week).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		return r.db.WithContext(ctx).Create(report).Error
	case err != nil:
		return err
	}

	report.ID = existing.ID
	report.CreatedAt = existing.CreatedAt
	if err := r.db.WithContext(ctx).
		Where("report_id = ?", existing.ID).
		Delete(&models.SellerPerformance{}).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).
		Model(&models.WeeklySalesReport{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"start_date":    report.StartDate,
			"end_date":      report.EndDate,
			"total_revenue": report.TotalRevenue,
			"total_cost":    report.TotalCost,
			"total_profit":  report.TotalProfit,
			"sales_count":   report.SalesCount,
			"orders_count":  report.OrdersCount,
			"items_sold":    report.ItemsSold,
			"generated_at":  report.GeneratedAt,
		}).Error; err != nil {
		return err
	}
	for i := range report.Sellers {
		report.Sellers[i].ID = uuid.Nil
		report.Sellers[i].ReportID = existing.ID
	}
	if len(report.Sellers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&report.Sellers).Error
}

// List returns reports most recent week first.
func (r *Repository) List(ctx context.Context, limit int) ([]models.WeeklySalesReport, error) {
	if limit <= 0 || limit > 100 {
		limit = 26
	}
	var rows []models.WeeklySalesReport
	err := r.db.WithContext(ctx).
		Preload("Sellers").
		Order("year DESC, week DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
