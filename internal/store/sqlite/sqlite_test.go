package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Omarrio321/ElectronicsPOS/internal/audit"
	"github.com/Omarrio321/ElectronicsPOS/internal/checkout"
	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/inventory"
	"github.com/Omarrio321/ElectronicsPOS/internal/money"
	"github.com/Omarrio321/ElectronicsPOS/internal/sales"
	"github.com/Omarrio321/ElectronicsPOS/internal/settings"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "pos.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addProduct(t *testing.T, s *Store, sku string, qty int, price string) domain.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), domain.Product{
		SKU:               sku,
		Name:              "Product " + sku,
		CostPrice:         money.MustParse("1.50"),
		SellingPrice:      money.MustParse(price),
		QuantityInStock:   qty,
		LowStockThreshold: 5,
		IsActive:          true,
	})
	require.NoError(t, err)
	return *p
}

func saleFor(p domain.Product, qty int, at time.Time) *domain.Sale {
	line := p.SellingPrice.MulQty(int64(qty))
	return &domain.Sale{
		UserID:        "u-1",
		Username:      "cashier",
		Subtotal:      line,
		TaxRate:       money.MustRate("0.08"),
		GrandTotal:    line,
		PaymentMethod: domain.PaymentMobileMoney,
		AmountPaid:    line,
		CreatedAt:     at,
		Items: []domain.SaleItem{{
			ProductID:       p.ID,
			ProductName:     p.Name,
			QuantitySold:    qty,
			UnitPriceAtTime: p.SellingPrice,
			TotalPrice:      line,
		}},
	}
}

func TestOpenTwiceRunsMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.db")
	first, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer second.Close()

	var categories int
	require.NoError(t, second.db.Get(&categories, `SELECT COUNT(*) FROM expense_categories WHERE is_system = 1`))
	assert.Equal(t, 4, categories)
}

func TestCommitPersistsSaleAndStock(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := addProduct(t, s, "EL-MSE-WL", 10, "15.00")
	at := time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	locked, err := tx.LockProduct(ctx, p.ID)
	require.NoError(t, err)
	version, err := tx.SetStock(ctx, p.ID, locked.QuantityInStock-3, locked.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	sale := saleFor(p, 3, at)
	require.NoError(t, tx.InsertSale(ctx, sale))
	require.NoError(t, tx.Commit(ctx))
	require.ErrorIs(t, tx.Commit(ctx), store.ErrTxDone)

	after, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, after.QuantityInStock)

	stored, err := s.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "45.00", stored.GrandTotal.String())
	assert.Equal(t, "0.0800", stored.TaxRate.String())
	assert.Equal(t, domain.PaymentMobileMoney, stored.PaymentMethod)
	assert.Equal(t, domain.SaleCompleted, stored.Status)
	assert.True(t, at.Equal(stored.CreatedAt))
	require.Len(t, stored.Items, 1)
	assert.Equal(t, sale.Items[0].ID, stored.Items[0].ID)

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	totals, err := s.SalesTotals(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.Count)
	assert.Equal(t, int64(3), totals.ItemsSold)

	byDay, err := s.SalesByDay(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, byDay, 1)
	assert.Equal(t, "2024-06-03", byDay[0].Date)

	cogs, err := s.CostOfGoodsSold(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "4.50", cogs.String())
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := addProduct(t, s, "A", 4, "2.00")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	locked, err := tx.LockProduct(ctx, p.ID)
	require.NoError(t, err)
	_, err = tx.SetStock(ctx, p.ID, 0, locked.Version)
	require.NoError(t, err)
	require.NoError(t, tx.InsertSale(ctx, saleFor(p, 4, time.Now())))
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx))

	after, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, after.QuantityInStock)
	totals, err := s.SalesTotals(ctx, time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, totals.Count)
}

func TestSecondWriterGetsBusy(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, WithLockTimeout(50*time.Millisecond))

	holder, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = holder.Rollback(ctx) }()

	_, err = s.Begin(ctx)
	require.ErrorIs(t, err, store.ErrBusy)
}

func TestSetStockGuards(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := addProduct(t, s, "A", 4, "2.00")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.SetStock(ctx, p.ID, 3, p.Version)
	require.ErrorIs(t, err, store.ErrInvalid)

	locked, err := tx.LockProduct(ctx, p.ID)
	require.NoError(t, err)
	_, err = tx.SetStock(ctx, p.ID, -1, locked.Version)
	require.ErrorIs(t, err, store.ErrInvalid)
	_, err = tx.SetStock(ctx, p.ID, 3, locked.Version+1)
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestCatalogErrors(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	addProduct(t, s, "DUP", 1, "1.00")

	_, err := s.CreateProduct(ctx, domain.Product{SKU: "dup", Name: "Other", SellingPrice: money.MustParse("1.00")})
	require.ErrorIs(t, err, store.ErrInvalid)

	_, err = s.GetProduct(ctx, 999)
	require.ErrorIs(t, err, store.ErrNotFound)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	_, err = tx.LockProduct(ctx, 999)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLowStockCount(t *testing.T) {
	s := openTestStore(t)
	addProduct(t, s, "A", 5, "1.00")
	addProduct(t, s, "B", 6, "1.00")

	n, err := s.CountLowStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestExpensesSplitByStatus(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	_, err := s.CreateExpense(ctx, domain.Expense{CategoryID: 1, Title: "Rent", Amount: money.MustParse("50"), Date: day, Status: domain.ExpensePaid})
	require.NoError(t, err)
	_, err = s.CreateExpense(ctx, domain.Expense{CategoryID: 2, Title: "Power", Amount: money.MustParse("30"), Date: day.Add(20 * time.Hour)})
	require.NoError(t, err)
	_, err = s.CreateExpense(ctx, domain.Expense{CategoryID: 77, Title: "Nope", Amount: money.MustParse("1"), Date: day})
	require.ErrorIs(t, err, store.ErrNotFound)

	totals, err := s.ExpenseTotals(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "50.00", totals.Paid.String())
	assert.Equal(t, "30.00", totals.Pending.String())

	byCategory, err := s.ExpensesByCategory(ctx, day, day.AddDate(0, 0, 1), domain.ExpensePaid)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Rent", byCategory[0].Name)
	assert.Equal(t, "#0d6efd", byCategory[0].Color)
}

func TestAuditLogsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	for i, action := range []string{"first", "second", "third"} {
		require.NoError(t, s.CreateAuditLog(ctx, domain.AuditEvent{
			Action:    action,
			Detail:    map[string]any{"n": i},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := s.ListAuditLogs(ctx, base, base.Add(time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "third", events[0].Action)
	assert.Equal(t, "second", events[1].Action)
	assert.EqualValues(t, 2, events[0].Detail["n"])
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	s := openTestStore(t)
	p := addProduct(t, s, "EL-SSD-1TB", 10, "99.00")
	rates, err := settings.ParseStatic("0.08")
	require.NoError(t, err)
	coord := checkout.New(s, inventory.NewLedger(s), sales.NewStore(s), rates, audit.NewStoreSink(s), zaptest.NewLogger(t))
	actor := domain.Actor{ID: "u-1", Username: "cashier", Role: domain.RoleCashier}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
		shortages int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coord.Checkout(context.Background(), checkout.Request{
				Items:         []checkout.LineItem{{ProductID: p.ID, Quantity: 6}},
				PaymentMethod: "Card",
			}, actor)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				committed++
				return
			}
			if kind, _ := checkout.KindOf(err); kind == checkout.KindInsufficientStock {
				shortages++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, shortages)
	after, err := s.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, after.QuantityInStock)
}

func TestCreateExpenseRejectsUnknownEnums(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.CreateExpense(ctx, domain.Expense{CategoryID: 1, Title: "Odd", Amount: money.MustParse("5"), Status: "bogus"})
	assert.ErrorIs(t, err, store.ErrInvalid)
	_, err = s.CreateExpense(ctx, domain.Expense{CategoryID: 1, Title: "Odd", Amount: money.MustParse("5"), Type: "weekly"})
	assert.ErrorIs(t, err, store.ErrInvalid)
}
