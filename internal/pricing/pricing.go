package pricing

import (
	"errors"
	"fmt"

	"github.com/Omarrio321/ElectronicsPOS/internal/money"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidQuantity  = errors.New("line quantity must be positive")
	ErrNegativePrice    = errors.New("unit price must not be negative")
	ErrNegativeDiscount = errors.New("discount must not be negative")
	ErrInvalidTaxRate   = errors.New("tax rate must be between 0 and 1")
)

type Line struct {
	ProductID int64
	Quantity  int
	UnitPrice money.Money
}

type Totals struct {
	LineTotals []money.Money
	Subtotal   money.Money
	// Discount is the discount actually applied, never more than Subtotal.
	Discount      money.Money
	TaxableAmount money.Money
	TaxRate       money.Rate
	TaxAmount     money.Money
	GrandTotal    money.Money
}

// Calculate prices a cart. A discount larger than the subtotal clamps the
// taxable amount to zero, so tax and grand total are never negative.
func Calculate(lines []Line, discount money.Money, rate money.Rate) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, ErrEmptyCart
	}
	if discount.IsNegative() {
		return Totals{}, ErrNegativeDiscount
	}
	if !rate.Valid() {
		return Totals{}, fmt.Errorf("%w: %s", ErrInvalidTaxRate, rate)
	}

	totals := Totals{
		LineTotals: make([]money.Money, len(lines)),
		TaxRate:    rate,
	}
	for i, line := range lines {
		if line.Quantity <= 0 {
			return Totals{}, fmt.Errorf("product %d: %w", line.ProductID, ErrInvalidQuantity)
		}
		if line.UnitPrice.IsNegative() {
			return Totals{}, fmt.Errorf("product %d: %w", line.ProductID, ErrNegativePrice)
		}
		lineTotal := line.UnitPrice.MulQty(int64(line.Quantity))
		totals.LineTotals[i] = lineTotal
		totals.Subtotal = totals.Subtotal.Add(lineTotal)
	}

	totals.Discount = money.Min(discount, totals.Subtotal)
	totals.TaxableAmount = money.Max(money.Zero(), totals.Subtotal.Sub(discount))
	totals.TaxAmount = totals.TaxableAmount.MulRate(rate)
	totals.GrandTotal = totals.TaxableAmount.Add(totals.TaxAmount)
	return totals, nil
}
