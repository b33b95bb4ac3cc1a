package reporting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Omarrio321/ElectronicsPOS/internal/cache"
	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/inventory"
	"github.com/Omarrio321/ElectronicsPOS/internal/money"
	"github.com/Omarrio321/ElectronicsPOS/internal/sales"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
)

const (
	TopProductsLimit = 10
	DefaultCacheTTL  = 10 * time.Minute
)

type Aggregator struct {
	sales    *sales.Store
	expenses store.ExpenseLedger
	ledger   *inventory.Ledger
	cache    cache.ReportCache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Aggregator)

// WithCache stores reports for periods that ended before today.
func WithCache(c cache.ReportCache, ttl time.Duration) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.cache = c
		}
		if ttl > 0 {
			a.cacheTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func New(saleStore *sales.Store, expenses store.ExpenseLedger, ledger *inventory.Ledger, opts ...Option) *Aggregator {
	a := &Aggregator{
		sales:    saleStore,
		expenses: expenses,
		ledger:   ledger,
		cache:    cache.NoopReportCache{},
		cacheTTL: DefaultCacheTTL,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetReport aggregates completed sales and expenses over the inclusive UTC
// days from start to end.
func (a *Aggregator) GetReport(ctx context.Context, start, end time.Time) (*domain.Report, error) {
	r, err := domain.NewDateRange(start, end)
	if err != nil {
		return nil, err
	}
	return a.GetRangeReport(ctx, r)
}

// GetRangeReport serves closed periods from the cache when it can. The
// low-stock count describes the catalog now, so it is never cached.
func (a *Aggregator) GetRangeReport(ctx context.Context, r domain.DateRange) (*domain.Report, error) {
	period, err := a.periodReport(ctx, r)
	if err != nil {
		return nil, err
	}
	lowStock, err := a.ledger.LowStockCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("low stock count: %w", err)
	}
	report := *period
	report.LowStockCount = lowStock
	return &report, nil
}

func (a *Aggregator) periodReport(ctx context.Context, r domain.DateRange) (*domain.Report, error) {
	closed := a.isClosed(r)
	key := cache.ReportKey(r)
	if closed {
		cached, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			a.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	report, err := a.build(ctx, r)
	if err != nil {
		return nil, err
	}

	if closed {
		if err := a.cache.Set(ctx, key, report, a.cacheTTL); err != nil {
			a.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return report, nil
}

func (a *Aggregator) build(ctx context.Context, r domain.DateRange) (*domain.Report, error) {
	totals, err := a.sales.RangeAggregate(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("sales totals: %w", err)
	}
	cogs, err := a.sales.CostOfGoodsSold(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("cost of goods sold: %w", err)
	}
	daily, err := a.sales.GroupByDay(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("daily series: %w", err)
	}
	top, err := a.sales.TopProducts(ctx, r, TopProductsLimit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	payments, err := a.sales.GroupByPaymentMethod(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("payment breakdown: %w", err)
	}
	users, err := a.sales.GroupByUser(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("sales by user: %w", err)
	}

	from, to := r.Bounds()
	expenses, err := a.expenses.ExpenseTotals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("expense totals: %w", err)
	}
	categories, err := a.expenses.ExpensesByCategory(ctx, from, to, domain.ExpensePaid)
	if err != nil {
		return nil, fmt.Errorf("expenses by category: %w", err)
	}
	gross := totals.GrandTotal.Sub(cogs)
	report := &domain.Report{
		StartDate:          r.Start.Format(domain.DateLayout),
		EndDate:            r.End.Format(domain.DateLayout),
		Revenue:            totals.GrandTotal,
		OrderCount:         totals.Count,
		ItemsSold:          totals.ItemsSold,
		Subtotal:           totals.Subtotal,
		Tax:                totals.TaxAmount,
		Discount:           totals.Discount,
		COGS:               cogs,
		GrossProfit:        gross,
		PaidExpenses:       expenses.Paid,
		PendingExpenses:    expenses.Pending,
		TotalExpenses:      expenses.Paid.Add(expenses.Pending),
		NetProfit:          gross.Sub(expenses.Paid),
		AverageOrderValue:  AverageOrderValue(totals.GrandTotal, totals.Count),
		DailySeries:        daily,
		TopProducts:        nonNil(top),
		PaymentBreakdown:   nonNil(payments),
		SalesByUser:        nonNil(users),
		ExpensesByCategory: nonNil(categories),
		GeneratedAt:        a.now().UTC(),
	}
	return report, nil
}

// AverageOrderValue is zero when there were no orders.
func AverageOrderValue(revenue money.Money, count int64) money.Money {
	if count <= 0 {
		return money.Zero()
	}
	return revenue.Div(count)
}

func (a *Aggregator) isClosed(r domain.DateRange) bool {
	now := a.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return r.End.Before(today)
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
