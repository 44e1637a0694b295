package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/jmucavele/pdv-backend/internal/reports"
	"github.com/jmucavele/pdv-backend/pkg/logger"
)

const defaultBackfillWeeks = 1

type reportGenerator interface {
	Generate(ctx context.Context, year, week int) (*reports.ReportDTO, error)
}

// WeeklyReportJobParams configure the weekly report aggregation job.
type WeeklyReportJobParams struct {
	Logger        *logger.Logger
	Reports       reportGenerator
	BackfillWeeks int
	Location      *time.Location
}

// NewWeeklyReportJob builds the job that aggregates the previous ISO week
// plus a configurable backfill window. Generation is idempotent, so
// re-running after a crash or an overlapping schedule converges on the
// same rows.
func NewWeeklyReportJob(params WeeklyReportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reports == nil {
		return nil, fmt.Errorf("reports service required")
	}
	backfill := params.BackfillWeeks
	if backfill <= 0 {
		backfill = defaultBackfillWeeks
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &weeklyReportJob{
		logg:     params.Logger,
		reports:  params.Reports,
		backfill: backfill,
		loc:      loc,
		now:      time.Now,
	}, nil
}

type weeklyReportJob struct {
	logg     *logger.Logger
	reports  reportGenerator
	backfill int
	loc      *time.Location
	now      func() time.Time
}

func (j *weeklyReportJob) Name() string { return "weekly-report" }

func (j *weeklyReportJob) Run(ctx context.Context) error {
	// Week 0 is the one that just closed; older weeks catch up runs the
	// scheduler missed.
	ref := j.now().In(j.loc)
	var errs []error
	for offset := 1; offset <= j.backfill; offset++ {
		year, week := ref.AddDate(0, 0, -7*offset).ISOWeek()
		report, err := j.reports.Generate(ctx, year, week)
		if err != nil {
			errs = append(errs, fmt.Errorf("generate report %d/W%02d: %w", year, week, err))
			continue
		}
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"year":         report.Year,
			"week":         report.Week,
			"sales_count":  report.SalesCount,
			"orders_count": report.OrdersCount,
		})
		j.logg.Info(logCtx, "weekly report generated")
	}
	return multierr.Combine(errs...)
}
