// Package sales persists sales and answers range aggregates over them.
package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/money"
	"github.com/Omarrio321/ElectronicsPOS/internal/store"
)

var ErrInvalidSale = errors.New("invalid sale")

type Store struct {
	reader store.SaleReader
}

func NewStore(reader store.SaleReader) *Store {
	return &Store{reader: reader}
}

// Insert writes the sale and its items through tx and returns the new id.
// The sale must already satisfy the totals identity; nothing is recomputed.
func (s *Store) Insert(ctx context.Context, tx store.Tx, sale *domain.Sale) (int64, error) {
	if err := Validate(sale); err != nil {
		return 0, err
	}
	if err := tx.InsertSale(ctx, sale); err != nil {
		return 0, fmt.Errorf("insert sale: %w", err)
	}
	return sale.ID, nil
}

// Validate checks the item and totals invariants of a sale.
func Validate(sale *domain.Sale) error {
	if sale == nil || len(sale.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidSale)
	}
	if !sale.PaymentMethod.Valid() {
		return fmt.Errorf("%w: payment method %q", ErrInvalidSale, sale.PaymentMethod)
	}

	sum := money.Zero()
	for _, item := range sale.Items {
		if item.QuantitySold <= 0 {
			return fmt.Errorf("%w: product %d quantity %d", ErrInvalidSale, item.ProductID, item.QuantitySold)
		}
		want := item.UnitPriceAtTime.MulQty(int64(item.QuantitySold))
		if !item.TotalPrice.Equal(want) {
			return fmt.Errorf("%w: product %d total %s, expected %s", ErrInvalidSale, item.ProductID, item.TotalPrice, want)
		}
		sum = sum.Add(item.TotalPrice)
	}
	if !sale.Subtotal.Equal(sum) {
		return fmt.Errorf("%w: subtotal %s does not match items %s", ErrInvalidSale, sale.Subtotal, sum)
	}
	grand := sale.Subtotal.Add(sale.TaxAmount).Sub(sale.Discount)
	if !sale.GrandTotal.Equal(grand) {
		return fmt.Errorf("%w: grand total %s, expected %s", ErrInvalidSale, sale.GrandTotal, grand)
	}
	if sale.GrandTotal.IsNegative() || sale.Discount.IsNegative() || sale.TaxAmount.IsNegative() {
		return fmt.Errorf("%w: negative amounts", ErrInvalidSale)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (*domain.Sale, error) {
	return s.reader.GetSale(ctx, id)
}

func (s *Store) RangeAggregate(ctx context.Context, r domain.DateRange) (domain.RangeTotals, error) {
	from, to := r.Bounds()
	return s.reader.SalesTotals(ctx, from, to)
}

// GroupByDay returns one entry per calendar day of r, ascending, with days
// that had no sales reported as zero.
func (s *Store) GroupByDay(ctx context.Context, r domain.DateRange) ([]domain.DailyTotal, error) {
	from, to := r.Bounds()
	rows, err := s.reader.SalesByDay(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return FillDays(r, rows), nil
}

// FillDays expands sparse per-day rows to the full range.
func FillDays(r domain.DateRange, rows []domain.DailyTotal) []domain.DailyTotal {
	byDay := make(map[string]money.Money, len(rows))
	for _, row := range rows {
		byDay[row.Date] = byDay[row.Date].Add(row.Total)
	}

	days := r.Days()
	series := make([]domain.DailyTotal, 0, days)
	for i := 0; i < days; i++ {
		day := r.Start.AddDate(0, 0, i).Format(domain.DateLayout)
		series = append(series, domain.DailyTotal{Date: day, Total: byDay[day]})
	}
	return series
}

func (s *Store) GroupByPaymentMethod(ctx context.Context, r domain.DateRange) ([]domain.PaymentTotal, error) {
	from, to := r.Bounds()
	return s.reader.SalesByPaymentMethod(ctx, from, to)
}

func (s *Store) TopProducts(ctx context.Context, r domain.DateRange, limit int) ([]domain.ProductSales, error) {
	from, to := r.Bounds()
	return s.reader.TopProducts(ctx, from, to, limit)
}

func (s *Store) GroupByUser(ctx context.Context, r domain.DateRange) ([]domain.UserSales, error) {
	from, to := r.Bounds()
	return s.reader.SalesByUser(ctx, from, to)
}

func (s *Store) CostOfGoodsSold(ctx context.Context, r domain.DateRange) (money.Money, error) {
	from, to := r.Bounds()
	return s.reader.CostOfGoodsSold(ctx, from, to)
}
