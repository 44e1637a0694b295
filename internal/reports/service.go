package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jmucavele/pdv-backend/internal/audit"
	"github.com/jmucavele/pdv-backend/pkg/db/models"
	"github.com/jmucavele/pdv-backend/pkg/enums"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
	"github.com/jmucavele/pdv-backend/pkg/outbox"
	"github.com/jmucavele/pdv-backend/pkg/outbox/payloads"
)

// Service builds and serves the weekly sales aggregates.
type Service interface {
	Generate(ctx context.Context, year, week int) (*ReportDTO, error)
	Get(ctx context.Context, actor audit.Actor, year, week int) (*ReportDTO, error)
	List(ctx context.Context, actor audit.Actor, limit int) ([]ReportDTO, error)
	PeriodStats(ctx context.Context, actor audit.Actor, from, to time.Time) (*PeriodStatsDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type salesReader interface {
	ListCompletedBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error)
}

type ordersReader interface {
	ListCompletedBetween(ctx context.Context, from, to time.Time) ([]models.Order, error)
}

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo     *Repository
	sales    salesReader
	orders   ordersReader
	products productReader
	tx       txRunner
	outbox   outboxPublisher
	loc      *time.Location
	now      func() time.Time
}

// NewService constructs a reports service instance.
func NewService(repo *Repository, sales salesReader, orders ordersReader, products productReader, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	if sales == nil {
		return nil, fmt.Errorf("sales reader required")
	}
	if orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		sales:    sales,
		orders:   orders,
		products: products,
		tx:       tx,
		outbox:   publisher,
		loc:      time.Local,
		now:      time.Now,
	}, nil
}

// Generate aggregates one ISO week and upserts its report row. Running it
// again for the same week recomputes and overwrites the same row, so crashed
// or repeated runs converge.
func (s *service) Generate(ctx context.Context, year, week int) (*ReportDTO, error) {
	start, end, err := weekRange(year, week, s.loc)
	if err != nil {
		return nil, err
	}

	sales, err := s.sales.ListCompletedBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListCompletedBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	report := &models.WeeklySalesReport{
		Year:         year,
		Week:         week,
		StartDate:    start,
		EndDate:      end.Add(-time.Nanosecond),
		TotalRevenue: decimal.Zero,
		TotalCost:    decimal.Zero,
		TotalProfit:  decimal.Zero,
		SalesCount:   len(sales),
		OrdersCount:  len(orders),
		ItemsSold:    decimal.Zero,
		GeneratedAt:  s.now(),
	}

	cache := newProductCache(s.products)
	bySeller := map[uuid.UUID]*sellerAgg{}

	for i := range sales {
		sale := &sales[i]
		report.TotalRevenue = report.TotalRevenue.Add(sale.TotalAmount)

		agg := bySeller[sale.SellerID]
		if agg == nil {
			agg = newSellerAgg()
			bySeller[sale.SellerID] = agg
		}
		agg.count++
		agg.revenue = agg.revenue.Add(sale.TotalAmount)

		for _, item := range sale.Items {
			report.ItemsSold = report.ItemsSold.Add(item.Quantity)
			agg.items = agg.items.Add(item.Quantity)
			cost, err := cache.costFor(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			report.TotalCost = report.TotalCost.Add(cost.Mul(item.Quantity).Round(2))
		}
	}

	// Completed orders contribute revenue and line costs alongside sales,
	// but have no seller to attribute.
	for i := range orders {
		order := &orders[i]
		report.TotalRevenue = report.TotalRevenue.Add(order.TotalAmount)
		for _, item := range order.Items {
			report.ItemsSold = report.ItemsSold.Add(item.Quantity)
			cost, err := cache.costFor(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			report.TotalCost = report.TotalCost.Add(cost.Mul(item.Quantity).Round(2))
		}
	}
	report.TotalProfit = report.TotalRevenue.Sub(report.TotalCost)

	sellerIDs := make([]uuid.UUID, 0, len(bySeller))
	for id := range bySeller {
		sellerIDs = append(sellerIDs, id)
	}
	sort.Slice(sellerIDs, func(i, j int) bool { return sellerIDs[i].String() < sellerIDs[j].String() })
	for _, id := range sellerIDs {
		agg := bySeller[id]
		report.Sellers = append(report.Sellers, models.SellerPerformance{
			SellerID:    id,
			SalesCount:  agg.count,
			Revenue:     agg.revenue,
			ItemsSold:   agg.items,
			AverageSale: agg.average(),
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Upsert(ctx, report); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReportGenerated,
			AggregateType: enums.AggregateReport,
			AggregateID:   report.ID,
			Data: payloads.ReportGeneratedEvent{
				ReportID: report.ID,
				Year:     year,
				Week:     week,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, audit.Actor{Role: enums.UserRoleAdmin}, year, week)
}

func (s *service) Get(ctx context.Context, actor audit.Actor, year, week int) (*ReportDTO, error) {
	if !actor.Role.Can(enums.CapViewReports) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "report access not allowed")
	}
	report, err := s.repo.FindByYearWeek(ctx, year, week)
	if err != nil {
		return nil, err
	}
	return toDTO(report), nil
}

func (s *service) List(ctx context.Context, actor audit.Actor, limit int) ([]ReportDTO, error) {
	if !actor.Role.Can(enums.CapViewReports) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "report access not allowed")
	}
	rows, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]ReportDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *toDTO(&rows[i]))
	}
	return dtos, nil
}

const periodTopLimit = 5

// PeriodStats aggregates completed sales over an arbitrary range without
// persisting anything. The range end is exclusive.
func (s *service) PeriodStats(ctx context.Context, actor audit.Actor, from, to time.Time) (*PeriodStatsDTO, error) {
	if !actor.Role.Can(enums.CapViewReports) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "report access not allowed")
	}
	if !to.After(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period end must be after its start")
	}

	sales, err := s.sales.ListCompletedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	stats := &PeriodStatsDTO{
		From:          from,
		To:            to,
		TotalRevenue:  decimal.Zero,
		TotalCost:     decimal.Zero,
		TotalProfit:   decimal.Zero,
		AverageTicket: decimal.Zero,
		ItemsSold:     decimal.Zero,
		SalesCount:    len(sales),
		TopSellers:    []SellerBreakdownDTO{},
		TopProducts:   []ProductBreakdownDTO{},
	}

	cache := newProductCache(s.products)
	bySeller := map[uuid.UUID]*sellerAgg{}
	byProduct := map[uuid.UUID]*ProductBreakdownDTO{}

	for i := range sales {
		sale := &sales[i]
		stats.TotalRevenue = stats.TotalRevenue.Add(sale.TotalAmount)

		agg := bySeller[sale.SellerID]
		if agg == nil {
			agg = newSellerAgg()
			bySeller[sale.SellerID] = agg
		}
		agg.count++
		agg.revenue = agg.revenue.Add(sale.TotalAmount)

		for _, item := range sale.Items {
			stats.ItemsSold = stats.ItemsSold.Add(item.Quantity)
			agg.items = agg.items.Add(item.Quantity)

			cost, err := cache.costFor(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			stats.TotalCost = stats.TotalCost.Add(cost.Mul(item.Quantity).Round(2))

			product := byProduct[item.ProductID]
			if product == nil {
				product = &ProductBreakdownDTO{
					ProductID: item.ProductID,
					Name:      item.ProductName,
					Quantity:  decimal.Zero,
					Revenue:   decimal.Zero,
				}
				byProduct[item.ProductID] = product
			}
			product.Quantity = product.Quantity.Add(item.Quantity)
			product.Revenue = product.Revenue.Add(item.LineTotal)
		}
	}
	stats.TotalProfit = stats.TotalRevenue.Sub(stats.TotalCost)
	if stats.SalesCount > 0 {
		stats.AverageTicket = stats.TotalRevenue.Div(decimal.NewFromInt(int64(stats.SalesCount))).Round(2)
	}

	for id, agg := range bySeller {
		stats.TopSellers = append(stats.TopSellers, SellerBreakdownDTO{
			SellerID:    id,
			SalesCount:  agg.count,
			Revenue:     agg.revenue,
			ItemsSold:   agg.items,
			AverageSale: agg.average(),
		})
	}
	sort.Slice(stats.TopSellers, func(i, j int) bool {
		a, b := stats.TopSellers[i], stats.TopSellers[j]
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.SellerID.String() < b.SellerID.String()
	})
	if len(stats.TopSellers) > periodTopLimit {
		stats.TopSellers = stats.TopSellers[:periodTopLimit]
	}

	for _, product := range byProduct {
		stats.TopProducts = append(stats.TopProducts, *product)
	}
	sort.Slice(stats.TopProducts, func(i, j int) bool {
		a, b := stats.TopProducts[i], stats.TopProducts[j]
		if !a.Quantity.Equal(b.Quantity) {
			return a.Quantity.GreaterThan(b.Quantity)
		}
		return a.ProductID.String() < b.ProductID.String()
	})
	if len(stats.TopProducts) > periodTopLimit {
		stats.TopProducts = stats.TopProducts[:periodTopLimit]
	}

	return stats, nil
}

type sellerAgg struct {
	count   int
	revenue decimal.Decimal
	items   decimal.Decimal
}

func newSellerAgg() *sellerAgg {
	return &sellerAgg{revenue: decimal.Zero, items: decimal.Zero}
}

func (a *sellerAgg) average() decimal.Decimal {
	if a.count == 0 {
		return decimal.Zero
	}
	return a.revenue.Div(decimal.NewFromInt(int64(a.count))).Round(2)
}

// productCache memoizes catalog lookups during aggregation. Products purged
// after their sales resolve to zero cost so historical lines still count.
type productCache struct {
	reader productReader
	costs  map[uuid.UUID]decimal.Decimal
}

func newProductCache(reader productReader) *productCache {
	return &productCache{reader: reader, costs: map[uuid.UUID]decimal.Decimal{}}
}

func (c *productCache) costFor(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	if cost, ok := c.costs[id]; ok {
		return cost, nil
	}
	cost := decimal.Zero
	product, err := c.reader.FindByID(ctx, id)
	switch {
	case err == nil:
		cost = product.CostPrice
	default:
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			return decimal.Zero, err
		}
	}
	c.costs[id] = cost
	return cost, nil
}
