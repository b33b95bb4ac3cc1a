package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/money"
	"github.com/Omarrio321/ElectronicsPOS/internal/store/memory"
)

func validSale(productID int64, qty int, price string, at time.Time) *domain.Sale {
	unit := money.MustParse(price)
	line := unit.MulQty(int64(qty))
	tax := line.MulRate(money.MustRate("0.08"))
	return &domain.Sale{
		UserID:        "u-1",
		Username:      "cashier",
		Subtotal:      line,
		TaxRate:       money.MustRate("0.08"),
		TaxAmount:     tax,
		GrandTotal:    line.Add(tax),
		PaymentMethod: domain.PaymentCash,
		AmountPaid:    line.Add(tax),
		Status:        domain.SaleCompleted,
		CreatedAt:     at,
		Items: []domain.SaleItem{{
			ProductID:       productID,
			QuantitySold:    qty,
			UnitPriceAtTime: unit,
			TotalPrice:      line,
		}},
	}
}

func TestValidateRejectsBrokenInvariants(t *testing.T) {
	at := time.Now()

	s := validSale(1, 2, "10.00", at)
	require.NoError(t, Validate(s))

	noItems := validSale(1, 2, "10.00", at)
	noItems.Items = nil
	require.ErrorIs(t, Validate(noItems), ErrInvalidSale)

	zeroQty := validSale(1, 2, "10.00", at)
	zeroQty.Items[0].QuantitySold = 0
	require.ErrorIs(t, Validate(zeroQty), ErrInvalidSale)

	badLine := validSale(1, 2, "10.00", at)
	badLine.Items[0].TotalPrice = money.MustParse("19.99")
	require.ErrorIs(t, Validate(badLine), ErrInvalidSale)

	badGrand := validSale(1, 2, "10.00", at)
	badGrand.GrandTotal = badGrand.GrandTotal.Add(money.MustParse("0.01"))
	require.ErrorIs(t, Validate(badGrand), ErrInvalidSale)

	badMethod := validSale(1, 2, "10.00", at)
	badMethod.PaymentMethod = "cheque"
	require.ErrorIs(t, Validate(badMethod), ErrInvalidSale)
}

func TestGroupByDayFillsGaps(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSeeded()
	s := NewStore(repo)

	day := func(d int) time.Time { return time.Date(2024, 3, d, 15, 0, 0, 0, time.UTC) }
	for _, at := range []time.Time{day(2), day(2), day(5)} {
		tx, err := repo.Begin(ctx)
		require.NoError(t, err)
		_, err = s.Insert(ctx, tx, validSale(1, 1, "100.00", at))
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
	}

	r, err := domain.ParseDateRange("2024-03-01", "2024-03-07")
	require.NoError(t, err)
	series, err := s.GroupByDay(ctx, r)
	require.NoError(t, err)

	require.Len(t, series, 7)
	want := []string{"0.00", "216.00", "0.00", "0.00", "108.00", "0.00", "0.00"}
	for i, entry := range series {
		assert.Equal(t, r.Start.AddDate(0, 0, i).Format(domain.DateLayout), entry.Date)
		assert.Equal(t, want[i], entry.Total.String(), entry.Date)
	}

	totals, err := s.RangeAggregate(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, int64(3), totals.Count)
	assert.Equal(t, "324.00", totals.GrandTotal.String())
	assert.Equal(t, "300.00", totals.Subtotal.String())
	assert.Equal(t, "24.00", totals.TaxAmount.String())
}

func TestFillDaysSingleDayRange(t *testing.T) {
	r, err := domain.ParseDateRange("2024-01-31", "2024-01-31")
	require.NoError(t, err)
	series := FillDays(r, nil)
	require.Len(t, series, 1)
	assert.Equal(t, "2024-01-31", series[0].Date)
	assert.True(t, series[0].Total.IsZero())
}

func TestFillDaysCrossesMonthAndLeapDay(t *testing.T) {
	r, err := domain.ParseDateRange("2024-02-27", "2024-03-02")
	require.NoError(t, err)
	series := FillDays(r, []domain.DailyTotal{{Date: "2024-02-29", Total: money.MustParse("5")}})
	require.Len(t, series, 5)
	assert.Equal(t, "2024-02-29", series[2].Date)
	assert.Equal(t, "5.00", series[2].Total.String())
	assert.Equal(t, "2024-03-02", series[4].Date)
}
