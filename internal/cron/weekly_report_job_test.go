package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmucavele/pdv-backend/internal/reports"
	"github.com/jmucavele/pdv-backend/pkg/logger"
)

type fakeReportGenerator struct {
	calls  [][2]int
	failOn map[[2]int]error
}

func (f *fakeReportGenerator) Generate(ctx context.Context, year, week int) (*reports.ReportDTO, error) {
	key := [2]int{year, week}
	f.calls = append(f.calls, key)
	if err, ok := f.failOn[key]; ok {
		return nil, err
	}
	return &reports.ReportDTO{Year: year, Week: week}, nil
}

func newWeeklyReportJob(t *testing.T, gen *fakeReportGenerator, backfill int) *weeklyReportJob {
	t.Helper()
	job, err := NewWeeklyReportJob(WeeklyReportJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test"}),
		Reports:       gen,
		BackfillWeeks: backfill,
	})
	if err != nil {
		t.Fatalf("NewWeeklyReportJob: %v", err)
	}
	return job.(*weeklyReportJob)
}

func TestWeeklyReportJobGeneratesPreviousWeek(t *testing.T) {
	// Monday 2026-02-09 06:00 UTC; the week that just closed is 2026/W06.
	now := time.Date(2026, 2, 9, 6, 0, 0, 0, time.UTC)
	gen := &fakeReportGenerator{}
	job := newWeeklyReportJob(t, gen, 0)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(gen.calls) != 1 {
		t.Fatalf("expected 1 generation, got %d", len(gen.calls))
	}
	if gen.calls[0] != [2]int{2026, 6} {
		t.Fatalf("expected 2026/W06, got %v", gen.calls[0])
	}
}

func TestWeeklyReportJobBackfillsAcrossYearBoundary(t *testing.T) {
	// Early January: backfill reaches into the previous ISO year.
	now := time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)
	gen := &fakeReportGenerator{}
	job := newWeeklyReportJob(t, gen, 3)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expected := [][2]int{{2026, 1}, {2025, 52}, {2025, 51}}
	if len(gen.calls) != len(expected) {
		t.Fatalf("expected %d generations, got %d", len(expected), len(gen.calls))
	}
	for i, want := range expected {
		if gen.calls[i] != want {
			t.Fatalf("call %d: expected %v, got %v", i, want, gen.calls[i])
		}
	}
}

func TestWeeklyReportJobContinuesPastWeekFailures(t *testing.T) {
	now := time.Date(2026, 2, 9, 6, 0, 0, 0, time.UTC)
	gen := &fakeReportGenerator{failOn: map[[2]int]error{
		{2026, 6}: errors.New("boom"),
	}}
	job := newWeeklyReportJob(t, gen, 2)
	job.now = func() time.Time { return now }

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(gen.calls) != 2 {
		t.Fatalf("expected both weeks attempted, got %d", len(gen.calls))
	}
}
