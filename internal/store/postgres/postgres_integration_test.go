package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/money"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TEST_DATABASE_URL to run postgres integration tests")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL, WithLockTimeout(200*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func seedProduct(t *testing.T, s *Store, qty int) domain.Product {
	t.Helper()
	ctx := context.Background()
	sku := fmt.Sprintf("IT-%d", time.Now().UnixNano())
	p, err := s.CreateProduct(ctx, domain.Product{
		SKU:               sku,
		Name:              "Integration Cable " + sku,
		CostPrice:         money.MustParse("2.00"),
		SellingPrice:      money.MustParse("5.00"),
		QuantityInStock:   qty,
		LowStockThreshold: 10,
		IsActive:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id IN (SELECT sale_id FROM sale_items WHERE product_id = $1)`, p.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, p.ID)
	})
	return *p
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestCommittedSaleDecrementsStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 10)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	locked, err := tx.LockProduct(ctx, p.ID)
	require.NoError(t, err)
	_, err = tx.SetStock(ctx, p.ID, locked.QuantityInStock-2, locked.Version)
	require.NoError(t, err)

	line := p.SellingPrice.MulQty(2)
	sale := &domain.Sale{
		UserID:        "u-it",
		Username:      "integration",
		Subtotal:      line,
		TaxRate:       money.MustRate("0.0800"),
		TaxAmount:     line.MulRate(money.MustRate("0.08")),
		PaymentMethod: domain.PaymentCard,
		Items: []domain.SaleItem{{
			ProductID:       p.ID,
			ProductName:     p.Name,
			QuantitySold:    2,
			UnitPriceAtTime: p.SellingPrice,
			TotalPrice:      line,
		}},
	}
	sale.GrandTotal = sale.Subtotal.Add(sale.TaxAmount)
	sale.AmountPaid = sale.GrandTotal
	require.NoError(t, tx.InsertSale(ctx, sale))
	require.NoError(t, tx.Commit(ctx))

	after, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, after.QuantityInStock)
	assert.Equal(t, p.Version+1, after.Version)

	stored, err := s.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.80", stored.GrandTotal.String())
	assert.Equal(t, domain.PaymentCard, stored.PaymentMethod)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 2, stored.Items[0].QuantitySold)
}

func TestRollbackLeavesStockUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 4)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	locked, err := tx.LockProduct(ctx, p.ID)
	require.NoError(t, err)
	_, err = tx.SetStock(ctx, p.ID, 0, locked.Version)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx))
	require.ErrorIs(t, tx.Commit(ctx), store.ErrTxDone)

	after, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, after.QuantityInStock)
}

func TestLockTimeoutIsBusy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 4)

	holder, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = holder.Rollback(ctx) }()
	_, err = holder.LockProduct(ctx, p.ID)
	require.NoError(t, err)

	waiter, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = waiter.Rollback(ctx) }()
	_, err = waiter.LockProduct(ctx, p.ID)
	require.ErrorIs(t, err, store.ErrBusy)
}

func TestStaleVersionIsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 4)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	locked, err := tx.LockProduct(ctx, p.ID)
	require.NoError(t, err)

	_, err = tx.SetStock(ctx, p.ID, 3, locked.Version+7)
	require.ErrorIs(t, err, store.ErrConflict)
	_, err = tx.SetStock(ctx, p.ID, -1, locked.Version)
	require.ErrorIs(t, err, store.ErrInvalid)
}

func TestDuplicateSKUIsInvalid(t *testing.T) {
	s := newTestStore(t)
	p := seedProduct(t, s, 1)

	_, err := s.CreateProduct(context.Background(), domain.Product{
		SKU:          p.SKU,
		Name:         "dup",
		SellingPrice: money.MustParse("1.00"),
	})
	require.ErrorIs(t, err, store.ErrInvalid)
}

func TestUnknownProductIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetProduct(context.Background(), -1)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuditLogRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.CreateAuditLog(ctx, domain.AuditEvent{
		ActorUsername: "integration",
		Action:        domain.ActionCheckout,
		TargetType:    "sale",
		TargetID:      "1",
		Detail:        map[string]any{"grand_total": "10.80"},
		CreatedAt:     at,
	}))

	events, err := s.ListAuditLogs(ctx, at, at.Add(time.Second), 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "10.80", events[0].Detail["grand_total"])
}
